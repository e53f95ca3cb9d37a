package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/letrus-care/letrus-api/internal/service"
	appErrors "github.com/letrus-care/letrus-api/pkg/errors"
	"github.com/letrus-care/letrus-api/pkg/response"
	"github.com/letrus-care/letrus-api/pkg/storage"
)

// ReceiptHandler exposes receipt status and download endpoints.
type ReceiptHandler struct {
	receipts *service.ReceiptService
	store    *storage.LocalStorage
}

// NewReceiptHandler constructs ReceiptHandler.
func NewReceiptHandler(receipts *service.ReceiptService, store *storage.LocalStorage) *ReceiptHandler {
	return &ReceiptHandler{receipts: receipts, store: store}
}

// Status godoc
// @Summary Receipt rendering status for a payment
// @Tags Receipts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /payments/{id}/receipt [get]
func (h *ReceiptHandler) Status(c *gin.Context) {
	job, err := h.receipts.StatusForPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download godoc
// @Summary Issue a signed download link for a rendered receipt
// @Tags Receipts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /payments/{id}/receipt/download [post]
func (h *ReceiptHandler) Download(c *gin.Context) {
	download, err := h.receipts.Download(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, download, nil)
}

// Fetch serves the receipt PDF referenced by a signed token. The token is the
// only credential; the route is intentionally outside the JWT group so links
// can be opened from a browser.
//
// Fetch godoc
// @Summary Serve a receipt PDF by signed token
// @Tags Receipts
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200
// @Router /receipts/fetch [get]
func (h *ReceiptHandler) Fetch(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	relPath, err := h.receipts.Resolve(token)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", "inline; filename=recibo.pdf")
	c.File(h.store.Path(relPath))
}
