package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-cms-api/internal/models"
	"github.com/noah-isme/course-cms-api/internal/service"
	appErrors "github.com/noah-isme/course-cms-api/pkg/errors"
	"github.com/noah-isme/course-cms-api/pkg/response"
)

// GroupHandler handles course group endpoints.
type GroupHandler struct {
	service *service.GroupService
}

// NewGroupHandler creates a new group handler.
func NewGroupHandler(svc *service.GroupService) *GroupHandler {
	return &GroupHandler{service: svc}
}

// List godoc
// @Summary List groups
// @Description List groups, optionally filtered by status
// @Tags Groups
// @Produce json
// @Param status query string false "Group status (ONGOING or FINISHED)"
// @Success 200 {object} response.Envelope
// @Router /groups [get]
func (h *GroupHandler) List(c *gin.Context) {
	var status *models.GroupStatus
	if raw := c.Query("status"); raw != "" {
		value := models.GroupStatus(raw)
		if value != models.GroupStatusOngoing && value != models.GroupStatusFinished {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown group status"))
			return
		}
		status = &value
	}

	groups, err := h.service.List(c.Request.Context(), status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups, nil)
}

// Get godoc
// @Summary Get group
// @Tags Groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /groups/{id} [get]
func (h *GroupHandler) Get(c *gin.Context) {
	group, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// Create godoc
// @Summary Create group
// @Description Open a group for a course/lecturer assignment, optionally seeding students
// @Tags Groups
// @Accept json
// @Produce json
// @Param payload body service.CreateGroupRequest true "Create group payload"
// @Success 201 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /groups [post]
func (h *GroupHandler) Create(c *gin.Context) {
	var req service.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	group, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, group)
}

// Update godoc
// @Summary Update group
// @Tags Groups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param payload body service.UpdateGroupRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /groups/{id} [put]
func (h *GroupHandler) Update(c *gin.Context) {
	var req service.UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	group, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// Finish godoc
// @Summary Finish group
// @Description Mark a group as finished, freezing its roster and materials
// @Tags Groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /groups/{id}/finish [post]
func (h *GroupHandler) Finish(c *gin.Context) {
	group, err := h.service.Finish(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// Assignments godoc
// @Summary List course/lecturer assignments
// @Tags Groups
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /course-lecturers [get]
func (h *GroupHandler) Assignments(c *gin.Context) {
	assignments, err := h.service.ListCourseLecturers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}
