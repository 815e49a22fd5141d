package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-cms-api/internal/service"
	appErrors "github.com/noah-isme/course-cms-api/pkg/errors"
	"github.com/noah-isme/course-cms-api/pkg/response"
)

// GroupStudentHandler handles group membership endpoints.
type GroupStudentHandler struct {
	service *service.GroupStudentService
}

// NewGroupStudentHandler creates a new membership handler.
func NewGroupStudentHandler(svc *service.GroupStudentService) *GroupStudentHandler {
	return &GroupStudentHandler{service: svc}
}

// List godoc
// @Summary List group members
// @Tags GroupStudents
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Router /groups/{id}/students [get]
func (h *GroupStudentHandler) List(c *gin.Context) {
	members, err := h.service.ListByGroup(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, members, nil)
}

// Add godoc
// @Summary Add student to group
// @Tags GroupStudents
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param payload body service.AddGroupStudentRequest true "Membership payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /groups/{id}/students [post]
func (h *GroupStudentHandler) Add(c *gin.Context) {
	var req service.AddGroupStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	member, err := h.service.Add(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, member)
}

// Remove godoc
// @Summary Remove student from group
// @Tags GroupStudents
// @Produce json
// @Param id path string true "Group ID"
// @Param studentId path string true "Student ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /groups/{id}/students/{studentId} [delete]
func (h *GroupStudentHandler) Remove(c *gin.Context) {
	if err := h.service.Remove(c.Request.Context(), c.Param("id"), c.Param("studentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Feedback godoc
// @Summary Submit member feedback
// @Description Record a 0-10 satisfaction score for a group member
// @Tags GroupStudents
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param studentId path string true "Student ID"
// @Param payload body service.FeedbackRequest true "Feedback payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /groups/{id}/students/{studentId}/feedback [post]
func (h *GroupStudentHandler) Feedback(c *gin.Context) {
	var req service.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	member, err := h.service.SubmitFeedback(c.Request.Context(), c.Param("id"), c.Param("studentId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, member, nil)
}

// UpdateStatus godoc
// @Summary Update member status
// @Description Set a member's completion status
// @Tags GroupStudents
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param studentId path string true "Student ID"
// @Param payload body service.UpdateMembershipStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /groups/{id}/students/{studentId}/status [put]
func (h *GroupStudentHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateMembershipStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	member, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), c.Param("studentId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, member, nil)
}
