package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-cms-api/internal/middleware"
	"github.com/noah-isme/course-cms-api/internal/models"
	"github.com/noah-isme/course-cms-api/internal/service"
	appErrors "github.com/noah-isme/course-cms-api/pkg/errors"
	"github.com/noah-isme/course-cms-api/pkg/response"
)

// PaymentHandler handles payment schedule endpoints.
type PaymentHandler struct {
	service *service.PaymentService
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(svc *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: svc}
}

// Schedule godoc
// @Summary Get payment schedule
// @Description Return the monthly schedule for a group membership, generating it on first access
// @Tags Payments
// @Produce json
// @Param id path string true "Group student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /group-students/{id}/payments [get]
func (h *PaymentHandler) Schedule(c *gin.Context) {
	schedule, err := h.service.GetOrCreateSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// List godoc
// @Summary List payments
// @Description List payments, optionally filtered by status
// @Tags Payments
// @Produce json
// @Param status query string false "Payment status (PAID or UNPAID)"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	var status *models.PaymentStatus
	if raw := c.Query("status"); raw != "" {
		value := models.PaymentStatus(raw)
		if value != models.PaymentStatusPaid && value != models.PaymentStatusUnpaid {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown payment status"))
			return
		}
		status = &value
	}

	payments, err := h.service.List(c.Request.Context(), status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// Get godoc
// @Summary Get payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	payment, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Confirm godoc
// @Summary Confirm payment
// @Description Mark an installment as paid, stamping the payment date
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id}/confirm [post]
func (h *PaymentHandler) Confirm(c *gin.Context) {
	payment, err := h.service.Confirm(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Update godoc
// @Summary Update payment
// @Description Adjust month, amount or status of an installment
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body service.UpdatePaymentRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payments/{id} [put]
func (h *PaymentHandler) Update(c *gin.Context) {
	var req service.UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	payment, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Delete godoc
// @Summary Delete payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id} [delete]
func (h *PaymentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Overdue godoc
// @Summary List overdue payments
// @Description Unpaid installments whose due date has passed
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /payments/overdue [get]
func (h *PaymentHandler) Overdue(c *gin.Context) {
	payments, err := h.service.ListOverdue(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// Statistics godoc
// @Summary Payment statistics
// @Description Aggregate totals, amounts and completion rate
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /payments/statistics [get]
func (h *PaymentHandler) Statistics(c *gin.Context) {
	stats, err := h.service.Statistics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}

// BlockStudent godoc
// @Summary Block student account
// @Description Disable a delinquent student's login
// @Tags Payments
// @Produce json
// @Param id path string true "Student ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/block [post]
func (h *PaymentHandler) BlockStudent(c *gin.Context) {
	if err := h.service.BlockStudent(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UnblockStudent godoc
// @Summary Unblock student account
// @Tags Payments
// @Produce json
// @Param id path string true "Student ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/unblock [post]
func (h *PaymentHandler) UnblockStudent(c *gin.Context) {
	if err := h.service.UnblockStudent(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
