package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-cms-api/internal/models"
	"github.com/noah-isme/course-cms-api/internal/repository"
	appErrors "github.com/noah-isme/course-cms-api/pkg/errors"
)

type groupStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.GroupStudent, error)
	FindByPair(ctx context.Context, groupID, studentID string) (*models.GroupStudent, error)
	ListByGroup(ctx context.Context, groupID string) ([]models.GroupStudentDetail, error)
	Create(ctx context.Context, gs *models.GroupStudent) error
	Delete(ctx context.Context, groupID, studentID string) error
	UpdateFeedback(ctx context.Context, groupID, studentID string, feedback int) error
	UpdateStatus(ctx context.Context, groupID, studentID string, status models.GroupStudentStatus) error
}

type groupReader interface {
	FindByID(ctx context.Context, id string) (*models.Group, error)
}

type membershipStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

// AddGroupStudentRequest adds a student to a group.
type AddGroupStudentRequest struct {
	StudentID string `json:"student_id" validate:"required"`
}

// FeedbackRequest records a student's course rating on a 0 to 10 scale.
type FeedbackRequest struct {
	Feedback *int `json:"feedback" validate:"required,min=0,max=10"`
}

// UpdateMembershipStatusRequest changes a member's satisfaction state.
type UpdateMembershipStatusRequest struct {
	Status models.GroupStudentStatus `json:"status" validate:"required,oneof=UNSATISFIED SATISFIED PENDING"`
}

// GroupStudentService manages group membership and feedback.
type GroupStudentService struct {
	repo      groupStudentRepository
	groups    groupReader
	students  membershipStudentReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGroupStudentService constructs GroupStudentService.
func NewGroupStudentService(repo groupStudentRepository, groups groupReader, students membershipStudentReader, validate *validator.Validate, logger *zap.Logger) *GroupStudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroupStudentService{repo: repo, groups: groups, students: students, validator: validate, logger: logger}
}

// ListByGroup returns the members of a group.
func (s *GroupStudentService) ListByGroup(ctx context.Context, groupID string) ([]models.GroupStudentDetail, error) {
	if _, err := s.groups.FindByID(ctx, groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	members, err := s.repo.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list group members")
	}
	return members, nil
}

// Add enrolls a student into an ongoing group.
func (s *GroupStudentService) Add(ctx context.Context, groupID string, req AddGroupStudentRequest) (*models.GroupStudent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid membership payload")
	}

	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	if group.Status != models.GroupStatusOngoing {
		return nil, appErrors.Clone(appErrors.ErrFinalized, "cannot add students to a finished group")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student is inactive")
	}

	gs := &models.GroupStudent{GroupID: groupID, StudentID: req.StudentID, Status: models.GroupStudentUnsatisfied}
	if err := s.repo.Create(ctx, gs); err != nil {
		if errors.Is(err, repository.ErrAlreadyApplied) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student is already in this group")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add group member")
	}
	s.logger.Info("student added to group", zap.String("group_id", groupID), zap.String("student_id", req.StudentID))
	return gs, nil
}

// Remove drops a student from a group.
func (s *GroupStudentService) Remove(ctx context.Context, groupID, studentID string) error {
	if err := s.repo.Delete(ctx, groupID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student is not in this group")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove group member")
	}
	return nil
}

// SubmitFeedback records the student's rating for the group.
func (s *GroupStudentService) SubmitFeedback(ctx context.Context, groupID, studentID string, req FeedbackRequest) (*models.GroupStudent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "feedback must be between 0 and 10")
	}

	if _, err := s.repo.FindByPair(ctx, groupID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student is not in this group")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load membership")
	}

	if err := s.repo.UpdateFeedback(ctx, groupID, studentID, *req.Feedback); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record feedback")
	}
	gs, err := s.repo.FindByPair(ctx, groupID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload membership")
	}
	return gs, nil
}

// UpdateStatus changes a member's satisfaction state.
func (s *GroupStudentService) UpdateStatus(ctx context.Context, groupID, studentID string, req UpdateMembershipStatusRequest) (*models.GroupStudent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if err := s.repo.UpdateStatus(ctx, groupID, studentID, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student is not in this group")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update membership status")
	}
	gs, err := s.repo.FindByPair(ctx, groupID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload membership")
	}
	return gs, nil
}
