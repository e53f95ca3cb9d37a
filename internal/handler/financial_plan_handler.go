package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/letrus-care/letrus-api/internal/models"
	"github.com/letrus-care/letrus-api/internal/service"
	appErrors "github.com/letrus-care/letrus-api/pkg/errors"
	"github.com/letrus-care/letrus-api/pkg/response"
)

// FinancialPlanHandler exposes the monthly tuition schedule.
type FinancialPlanHandler struct {
	plans *service.FinancialPlanService
}

// NewFinancialPlanHandler constructs FinancialPlanHandler.
func NewFinancialPlanHandler(plans *service.FinancialPlanService) *FinancialPlanHandler {
	return &FinancialPlanHandler{plans: plans}
}

// List godoc
// @Summary List financial plan entries
// @Tags FinancialPlans
// @Produce json
// @Security BearerAuth
// @Param enrollmentId query string false "Filter by enrollment"
// @Param schoolYearId query string false "Filter by school year"
// @Param status query string false "Filter by settlement status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /financial-plans [get]
func (h *FinancialPlanHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := models.FinancialPlanFilter{
		CenterID:     claims.CenterID,
		EnrollmentID: c.Query("enrollmentId"),
		SchoolYearID: c.Query("schoolYearId"),
		Status:       models.PaymentStatus(c.Query("status")),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}

	entries, total, err := h.plans.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, paginationFor(filter.Page, filter.PageSize, total))
}

// ListByEnrollment godoc
// @Summary List the full schedule for one enrollment
// @Tags FinancialPlans
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/financial-plan [get]
func (h *FinancialPlanHandler) ListByEnrollment(c *gin.Context) {
	entries, err := h.plans.ListByEnrollment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// MarkOverdue godoc
// @Summary Run the overdue sweep
// @Tags FinancialPlans
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /financial-plans/overdue-sweep [post]
func (h *FinancialPlanHandler) MarkOverdue(c *gin.Context) {
	updated, err := h.plans.MarkOverdueSweep(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"updated": updated}, nil)
}
