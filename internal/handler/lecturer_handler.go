package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-cms-api/internal/service"
	appErrors "github.com/noah-isme/course-cms-api/pkg/errors"
	"github.com/noah-isme/course-cms-api/pkg/response"
)

// LecturerHandler handles lecturer profile endpoints.
type LecturerHandler struct {
	service *service.LecturerService
	groups  *service.GroupService
}

// NewLecturerHandler creates a new lecturer handler.
func NewLecturerHandler(svc *service.LecturerService, groups *service.GroupService) *LecturerHandler {
	return &LecturerHandler{service: svc, groups: groups}
}

// List godoc
// @Summary List lecturers
// @Tags Lecturers
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /lecturers [get]
func (h *LecturerHandler) List(c *gin.Context) {
	lecturers, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lecturers, nil)
}

// Get godoc
// @Summary Get lecturer
// @Tags Lecturers
// @Produce json
// @Param id path string true "Lecturer ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /lecturers/{id} [get]
func (h *LecturerHandler) Get(c *gin.Context) {
	lecturer, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lecturer, nil)
}

// Create godoc
// @Summary Create lecturer
// @Description Register a lecturer account and profile
// @Tags Lecturers
// @Accept json
// @Produce json
// @Param payload body service.CreateLecturerRequest true "Create lecturer payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /lecturers [post]
func (h *LecturerHandler) Create(c *gin.Context) {
	var req service.CreateLecturerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	lecturer, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lecturer)
}

// Update godoc
// @Summary Update lecturer
// @Tags Lecturers
// @Accept json
// @Produce json
// @Param id path string true "Lecturer ID"
// @Param payload body service.UpdateLecturerRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /lecturers/{id} [put]
func (h *LecturerHandler) Update(c *gin.Context) {
	var req service.UpdateLecturerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	lecturer, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lecturer, nil)
}

// Delete godoc
// @Summary Delete lecturer
// @Description Deactivate a lecturer and disable their account
// @Tags Lecturers
// @Produce json
// @Param id path string true "Lecturer ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /lecturers/{id} [delete]
func (h *LecturerHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Groups godoc
// @Summary List lecturer groups
// @Description List groups taught by a lecturer
// @Tags Lecturers
// @Produce json
// @Param id path string true "Lecturer ID"
// @Success 200 {object} response.Envelope
// @Router /lecturers/{id}/groups [get]
func (h *LecturerHandler) Groups(c *gin.Context) {
	groups, err := h.groups.ListByLecturer(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups, nil)
}
