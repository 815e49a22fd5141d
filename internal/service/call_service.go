package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-cms-api/internal/models"
	appErrors "github.com/noah-isme/course-cms-api/pkg/errors"
)

type callRepository interface {
	FindByID(ctx context.Context, id string) (*models.Call, error)
	FindDetailByID(ctx context.Context, id string) (*models.CallDetail, error)
	List(ctx context.Context) ([]models.CallDetail, error)
	Create(ctx context.Context, call *models.Call) error
	Update(ctx context.Context, call *models.Call) error
	Delete(ctx context.Context, id string) error
}

type callCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type applicationCounter interface {
	CountByCall(ctx context.Context, callID string) (int, error)
}

// CreateCallRequest opens a new enrollment window for a course.
type CreateCallRequest struct {
	CourseID            string     `json:"course_id" validate:"required"`
	Capacity            int        `json:"capacity" validate:"gte=0"`
	ApplicationDeadline *time.Time `json:"application_deadline"`
}

// UpdateCallRequest carries the editable call fields.
type UpdateCallRequest struct {
	Capacity            int        `json:"capacity" validate:"gte=0"`
	ApplicationDeadline *time.Time `json:"application_deadline"`
}

// CallService manages enrollment windows.
type CallService struct {
	repo         callRepository
	courses      callCourseReader
	applications applicationCounter
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewCallService constructs CallService.
func NewCallService(repo callRepository, courses callCourseReader, applications applicationCounter, validate *validator.Validate, logger *zap.Logger) *CallService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CallService{repo: repo, courses: courses, applications: applications, validator: validate, logger: logger}
}

// List returns all calls with course context.
func (s *CallService) List(ctx context.Context) ([]models.CallDetail, error) {
	calls, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list calls")
	}
	return calls, nil
}

// Get returns a call with course context.
func (s *CallService) Get(ctx context.Context, id string) (*models.CallDetail, error) {
	call, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "call not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load call")
	}
	return call, nil
}

// Create opens a call for an active course. The application deadline, when
// given, must lie in the future.
func (s *CallService) Create(ctx context.Context, req CreateCallRequest) (*models.Call, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid call payload")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "course is inactive")
	}

	now := time.Now().UTC()
	if req.ApplicationDeadline != nil && !req.ApplicationDeadline.After(now) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "application deadline must be in the future")
	}

	call := &models.Call{
		CourseID:            req.CourseID,
		Capacity:            req.Capacity,
		DateAdded:           now,
		ApplicationDeadline: req.ApplicationDeadline,
	}
	if err := s.repo.Create(ctx, call); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create call")
	}
	s.logger.Info("call created",
		zap.String("call_id", call.ID),
		zap.String("course_id", call.CourseID),
		zap.Int("capacity", call.Capacity))
	return call, nil
}

// Update changes the capacity or deadline of a call. The deadline must stay
// after the call creation date.
func (s *CallService) Update(ctx context.Context, id string, req UpdateCallRequest) (*models.Call, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid call payload")
	}

	call, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "call not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load call")
	}

	if req.ApplicationDeadline != nil && !req.ApplicationDeadline.After(call.DateAdded) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "application deadline must be after the call creation date")
	}

	current, err := s.applications.CountByCall(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count applications")
	}
	if req.Capacity < current {
		return nil, appErrors.Clone(appErrors.ErrConflict, "capacity cannot be lower than current enrollment")
	}

	call.Capacity = req.Capacity
	call.ApplicationDeadline = req.ApplicationDeadline

	if err := s.repo.Update(ctx, call); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update call")
	}
	return call, nil
}

// Delete removes a call and, through cascading, its applications.
func (s *CallService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "call not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete call")
	}
	return nil
}
