package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/letrus-care/letrus-api/internal/service"
	appErrors "github.com/letrus-care/letrus-api/pkg/errors"
	"github.com/letrus-care/letrus-api/pkg/response"
)

// SchoolYearHandler exposes school year and centre endpoints.
type SchoolYearHandler struct {
	schoolYears *service.SchoolYearService
}

// NewSchoolYearHandler constructs SchoolYearHandler.
func NewSchoolYearHandler(schoolYears *service.SchoolYearService) *SchoolYearHandler {
	return &SchoolYearHandler{schoolYears: schoolYears}
}

// List godoc
// @Summary List school years
// @Tags SchoolYears
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /school-years [get]
func (h *SchoolYearHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	years, err := h.schoolYears.List(c.Request.Context(), claims.CenterID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, years, nil)
}

// Current godoc
// @Summary Get the active school year
// @Tags SchoolYears
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /school-years/current [get]
func (h *SchoolYearHandler) Current(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	year, err := h.schoolYears.Current(c.Request.Context(), claims.CenterID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, year, nil)
}

// Create godoc
// @Summary Create a school year
// @Tags SchoolYears
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateSchoolYearRequest true "School year payload"
// @Success 201 {object} response.Envelope
// @Router /school-years [post]
func (h *SchoolYearHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateSchoolYearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.CenterID = claims.CenterID

	year, err := h.schoolYears.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, year)
}

// Center godoc
// @Summary Get the centre profile
// @Tags SchoolYears
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /center [get]
func (h *SchoolYearHandler) Center(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	center, err := h.schoolYears.Center(c.Request.Context(), claims.CenterID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, center, nil)
}
