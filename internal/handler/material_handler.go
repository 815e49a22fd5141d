package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-cms-api/internal/service"
	appErrors "github.com/noah-isme/course-cms-api/pkg/errors"
	"github.com/noah-isme/course-cms-api/pkg/response"
)

// MaterialHandler handles group material endpoints.
type MaterialHandler struct {
	service *service.MaterialService
}

// NewMaterialHandler creates a new material handler.
func NewMaterialHandler(svc *service.MaterialService) *MaterialHandler {
	return &MaterialHandler{service: svc}
}

// ListByGroup godoc
// @Summary List group materials
// @Tags Materials
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Router /groups/{id}/materials [get]
func (h *MaterialHandler) ListByGroup(c *gin.Context) {
	materials, err := h.service.ListByGroup(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, materials, nil)
}

// Get godoc
// @Summary Get material
// @Tags Materials
// @Produce json
// @Param id path string true "Material ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /materials/{id} [get]
func (h *MaterialHandler) Get(c *gin.Context) {
	material, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, material, nil)
}

// Create godoc
// @Summary Create material
// @Description Attach a weekly material to an ongoing group
// @Tags Materials
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param payload body service.MaterialRequest true "Material payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /groups/{id}/materials [post]
func (h *MaterialHandler) Create(c *gin.Context) {
	var req service.MaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	material, err := h.service.Create(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, material)
}

// Update godoc
// @Summary Update material
// @Tags Materials
// @Accept json
// @Produce json
// @Param id path string true "Material ID"
// @Param payload body service.MaterialRequest true "Material payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /materials/{id} [put]
func (h *MaterialHandler) Update(c *gin.Context) {
	var req service.MaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	material, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, material, nil)
}

// Delete godoc
// @Summary Delete material
// @Tags Materials
// @Produce json
// @Param id path string true "Material ID"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /materials/{id} [delete]
func (h *MaterialHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
