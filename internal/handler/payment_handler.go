package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/letrus-care/letrus-api/internal/models"
	"github.com/letrus-care/letrus-api/internal/repository"
	"github.com/letrus-care/letrus-api/internal/service"
	appErrors "github.com/letrus-care/letrus-api/pkg/errors"
	"github.com/letrus-care/letrus-api/pkg/export"
	"github.com/letrus-care/letrus-api/pkg/response"
)

// PaymentHandler exposes the payment calculation and recording endpoints.
type PaymentHandler struct {
	billing  *service.BillingService
	payments *repository.PaymentRepository
	metrics  *service.MetricsService
	exporter *export.CSVExporter
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(billing *service.BillingService, payments *repository.PaymentRepository, metrics *service.MetricsService) *PaymentHandler {
	return &PaymentHandler{billing: billing, payments: payments, metrics: metrics, exporter: export.NewCSVExporter()}
}

// ComputeDue godoc
// @Summary Preview the amount due for a month
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param enrollmentId query string true "Enrollment ID"
// @Param month query string true "Plan month label"
// @Param schoolYearId query string true "School year ID"
// @Success 200 {object} response.Envelope
// @Router /payments/due [get]
func (h *PaymentHandler) ComputeDue(c *gin.Context) {
	due, err := h.billing.ComputeDue(c.Request.Context(),
		c.Query("enrollmentId"), c.Query("month"), c.Query("schoolYearId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, due, nil)
}

// Create godoc
// @Summary Record a payment
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.RecordPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.CenterID = claims.CenterID
	req.UserID = claims.UserID

	payment, err := h.billing.RecordPayment(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordPayment(payment.Method)
	}
	response.Created(c, payment)
}

// List godoc
// @Summary List payments
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param enrollmentId query string false "Filter by enrollment"
// @Param schoolYearId query string false "Filter by school year"
// @Param method query string false "Filter by payment method"
// @Param from query string false "Paid-at lower bound (RFC3339)"
// @Param to query string false "Paid-at upper bound (RFC3339)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := models.PaymentFilter{
		EnrollmentID: c.Query("enrollmentId"),
		CenterID:     claims.CenterID,
		SchoolYearID: c.Query("schoolYearId"),
		Method:       models.PaymentMethod(c.Query("method")),
	}
	if raw := c.Query("from"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.From = &ts
		}
	}
	if raw := c.Query("to"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.To = &ts
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	payments, total, err := h.payments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, paginationFor(filter.Page, filter.PageSize, total))
}

// Export godoc
// @Summary Export payments as CSV
// @Tags Payments
// @Produce text/csv
// @Security BearerAuth
// @Param schoolYearId query string false "Filter by school year"
// @Success 200 {string} string "CSV stream"
// @Router /payments/export [get]
func (h *PaymentHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := models.PaymentFilter{
		CenterID:     claims.CenterID,
		SchoolYearID: c.Query("schoolYearId"),
		PageSize:     100,
		Page:         1,
	}

	headers := []string{"payment_id", "student", "course", "class", "month", "year", "amount", "late_fee", "method", "paid_at"}
	dataset := export.Dataset{Headers: headers}
	for {
		payments, total, err := h.payments.List(c.Request.Context(), filter)
		if err != nil {
			response.Error(c, err)
			return
		}
		for _, p := range payments {
			dataset.Rows = append(dataset.Rows, map[string]string{
				"payment_id": p.ID,
				"student":    p.StudentName,
				"course":     p.CourseName,
				"class":      p.ClassName,
				"month":      p.Month,
				"year":       strconv.Itoa(p.Year),
				"amount":     fmt.Sprintf("%.2f", p.Amount),
				"late_fee":   fmt.Sprintf("%.2f", p.LateFee),
				"method":     string(p.Method),
				"paid_at":    p.PaidAt.Format(time.RFC3339),
			})
		}
		if len(dataset.Rows) >= total || len(payments) == 0 {
			break
		}
		filter.Page++
	}

	data, err := h.exporter.Render(dataset)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export"))
		return
	}
	c.Header("Content-Disposition", `attachment; filename=pagamentos.csv`)
	c.Data(http.StatusOK, "text/csv", data)
}

// Get godoc
// @Summary Get a payment with resolved names
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	payment, err := h.payments.FindDetailByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "payment not found"))
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}
