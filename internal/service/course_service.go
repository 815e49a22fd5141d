package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/course-cms-api/internal/models"
	"github.com/noah-isme/course-cms-api/internal/repository"
	appErrors "github.com/noah-isme/course-cms-api/pkg/errors"
)

type courseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context) ([]models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
	AssignLecturer(ctx context.Context, cl *models.CourseLecturer) error
	FindCourseLecturer(ctx context.Context, id string) (*models.CourseLecturer, error)
}

type lecturerReader interface {
	FindByID(ctx context.Context, id string) (*models.LecturerDetail, error)
}

// CreateCourseRequest describes a new course.
type CreateCourseRequest struct {
	Name     string          `json:"name" validate:"required"`
	Duration int             `json:"duration" validate:"required,min=1"`
	Price    decimal.Decimal `json:"price" validate:"required"`
	Level    string          `json:"level" validate:"required"`
}

// UpdateCourseRequest carries the editable course fields.
type UpdateCourseRequest struct {
	Name     string          `json:"name" validate:"required"`
	Duration int             `json:"duration" validate:"required,min=1"`
	Price    decimal.Decimal `json:"price" validate:"required"`
	Level    string          `json:"level" validate:"required"`
	Active   *bool           `json:"active"`
}

// AssignLecturerRequest links a lecturer to a course.
type AssignLecturerRequest struct {
	LecturerID string `json:"lecturer_id" validate:"required"`
}

// CourseService manages the course catalog and lecturer assignments.
type CourseService struct {
	repo      courseRepository
	lecturers lecturerReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, lecturers lecturerReader, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, lecturers: lecturers, validator: validate, logger: logger}
}

// List returns the course catalog.
func (s *CourseService) List(ctx context.Context) ([]models.Course, error) {
	courses, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}

// Get returns a course by ID.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create adds a course to the catalog.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if !req.Price.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "price must be positive")
	}

	course := &models.Course{
		Name:     req.Name,
		Duration: req.Duration,
		Price:    req.Price,
		Level:    req.Level,
		Active:   true,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("name", course.Name))
	return course, nil
}

// Update modifies a course.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if !req.Price.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "price must be positive")
	}

	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	course.Name = req.Name
	course.Duration = req.Duration
	course.Price = req.Price
	course.Level = req.Level
	if req.Active != nil {
		course.Active = *req.Active
	}

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return course, nil
}

// Delete removes a course.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	return nil
}

// AssignLecturer links a lecturer to a course so groups can be scheduled.
func (s *CourseService) AssignLecturer(ctx context.Context, courseID string, req AssignLecturerRequest) (*models.CourseLecturer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	if _, err := s.repo.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	lecturer, err := s.lecturers.FindByID(ctx, req.LecturerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecturer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecturer")
	}
	if !lecturer.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "lecturer is inactive")
	}

	cl := &models.CourseLecturer{CourseID: courseID, LecturerID: req.LecturerID}
	if err := s.repo.AssignLecturer(ctx, cl); err != nil {
		if errors.Is(err, repository.ErrAlreadyApplied) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "lecturer is already assigned to this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign lecturer")
	}
	return cl, nil
}
