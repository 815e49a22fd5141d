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

type groupRepository interface {
	FindByID(ctx context.Context, id string) (*models.Group, error)
	FindDetailByID(ctx context.Context, id string) (*models.GroupDetail, error)
	List(ctx context.Context, status *models.GroupStatus) ([]models.GroupDetail, error)
	ListByLecturer(ctx context.Context, lecturerID string) ([]models.GroupDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.GroupDetail, error)
	CreateWithStudents(ctx context.Context, group *models.Group, studentIDs []string) error
	UpdateClassroom(ctx context.Context, id, classroom string) error
	Finish(ctx context.Context, id string) (bool, error)
	ListCourseLecturers(ctx context.Context) ([]models.CourseLecturerDetail, error)
}

type assignmentReader interface {
	FindCourseLecturer(ctx context.Context, id string) (*models.CourseLecturer, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// CreateGroupRequest describes a new course group.
type CreateGroupRequest struct {
	Classroom        string    `json:"classroom" validate:"required"`
	StartDate        time.Time `json:"start_date" validate:"required"`
	CourseLecturerID string    `json:"course_lecturer_id" validate:"required"`
	StudentIDs       []string  `json:"student_ids"`
}

// UpdateGroupRequest carries the editable group fields.
type UpdateGroupRequest struct {
	Classroom string `json:"classroom" validate:"required"`
}

// GroupService manages running course groups. A group's end date is derived
// from the course duration at creation; its status only moves forward.
type GroupService struct {
	repo      groupRepository
	courses   assignmentReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGroupService constructs GroupService.
func NewGroupService(repo groupRepository, courses assignmentReader, validate *validator.Validate, logger *zap.Logger) *GroupService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroupService{repo: repo, courses: courses, validator: validate, logger: logger}
}

// List returns groups, optionally filtered by status.
func (s *GroupService) List(ctx context.Context, status *models.GroupStatus) ([]models.GroupDetail, error) {
	groups, err := s.repo.List(ctx, status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}
	return groups, nil
}

// Get returns a group with course and lecturer context.
func (s *GroupService) Get(ctx context.Context, id string) (*models.GroupDetail, error) {
	group, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	return group, nil
}

// ListByLecturer returns the groups taught by one lecturer.
func (s *GroupService) ListByLecturer(ctx context.Context, lecturerID string) ([]models.GroupDetail, error) {
	groups, err := s.repo.ListByLecturer(ctx, lecturerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lecturer groups")
	}
	return groups, nil
}

// ListByStudent returns the groups a student belongs to.
func (s *GroupService) ListByStudent(ctx context.Context, studentID string) ([]models.GroupDetail, error) {
	groups, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student groups")
	}
	return groups, nil
}

// Create opens a new group. The end date is the start date plus the course
// duration in months. Initial members may be supplied; unknown ids are
// skipped.
func (s *GroupService) Create(ctx context.Context, req CreateGroupRequest) (*models.GroupDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}

	assignment, err := s.courses.FindCourseLecturer(ctx, req.CourseLecturerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course lecturer assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	course, err := s.courses.FindByID(ctx, assignment.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "course is inactive")
	}

	group := &models.Group{
		Classroom:        req.Classroom,
		StartDate:        req.StartDate,
		EndDate:          req.StartDate.AddDate(0, 0, course.Duration*30),
		Status:           models.GroupStatusOngoing,
		CourseLecturerID: req.CourseLecturerID,
	}
	if err := s.repo.CreateWithStudents(ctx, group, req.StudentIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create group")
	}

	detail, err := s.repo.FindDetailByID(ctx, group.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load created group")
	}
	s.logger.Info("group created",
		zap.String("group_id", group.ID),
		zap.String("course", detail.CourseName),
		zap.Int("initial_members", len(req.StudentIDs)))
	return detail, nil
}

// Update changes the group classroom.
func (s *GroupService) Update(ctx context.Context, id string, req UpdateGroupRequest) (*models.GroupDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}
	if err := s.repo.UpdateClassroom(ctx, id, req.Classroom); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update group")
	}
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	return detail, nil
}

// Finish closes a group. The transition only goes forward; finishing an
// already finished group is a conflict.
func (s *GroupService) Finish(ctx context.Context, id string) (*models.GroupDetail, error) {
	finished, err := s.repo.Finish(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finish group")
	}
	if !finished {
		group, err := s.repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
		}
		if group.Status == models.GroupStatusFinished {
			return nil, appErrors.Clone(appErrors.ErrConflict, "group is already finished")
		}
		return nil, appErrors.Clone(appErrors.ErrInternal, "group state could not be updated")
	}

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	s.logger.Info("group finished", zap.String("group_id", id))
	return detail, nil
}

// ListCourseLecturers returns all course lecturer assignments for group
// scheduling.
func (s *GroupService) ListCourseLecturers(ctx context.Context) ([]models.CourseLecturerDetail, error) {
	assignments, err := s.repo.ListCourseLecturers(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course lecturers")
	}
	return assignments, nil
}
