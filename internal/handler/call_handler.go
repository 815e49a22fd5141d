package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-cms-api/internal/service"
	appErrors "github.com/noah-isme/course-cms-api/pkg/errors"
	"github.com/noah-isme/course-cms-api/pkg/response"
)

// CallHandler handles enrollment call endpoints.
type CallHandler struct {
	service *service.CallService
}

// NewCallHandler creates a new call handler.
func NewCallHandler(svc *service.CallService) *CallHandler {
	return &CallHandler{service: svc}
}

// List godoc
// @Summary List calls
// @Description List open enrollment calls with course info
// @Tags Calls
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /calls [get]
func (h *CallHandler) List(c *gin.Context) {
	calls, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, calls, nil)
}

// Get godoc
// @Summary Get call
// @Tags Calls
// @Produce json
// @Param id path string true "Call ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /calls/{id} [get]
func (h *CallHandler) Get(c *gin.Context) {
	call, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, call, nil)
}

// Create godoc
// @Summary Create call
// @Description Open an enrollment call for a course
// @Tags Calls
// @Accept json
// @Produce json
// @Param payload body service.CreateCallRequest true "Create call payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /calls [post]
func (h *CallHandler) Create(c *gin.Context) {
	var req service.CreateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	call, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, call)
}

// Update godoc
// @Summary Update call
// @Description Update call capacity or deadline
// @Tags Calls
// @Accept json
// @Produce json
// @Param id path string true "Call ID"
// @Param payload body service.UpdateCallRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /calls/{id} [put]
func (h *CallHandler) Update(c *gin.Context) {
	var req service.UpdateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	call, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, call, nil)
}

// Delete godoc
// @Summary Delete call
// @Tags Calls
// @Produce json
// @Param id path string true "Call ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /calls/{id} [delete]
func (h *CallHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
