package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/course-cms-api/internal/models"
	appErrors "github.com/noah-isme/course-cms-api/pkg/errors"
)

type mockGroupRepo struct {
	groups      map[string]*models.Group
	assignments map[string]*models.CourseLecturer
	created     *models.Group
	seeded      []string
}

func newMockGroupRepo() *mockGroupRepo {
	return &mockGroupRepo{
		groups:      make(map[string]*models.Group),
		assignments: make(map[string]*models.CourseLecturer),
	}
}

func (m *mockGroupRepo) FindByID(ctx context.Context, id string) (*models.Group, error) {
	if group, ok := m.groups[id]; ok {
		return group, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockGroupRepo) FindDetailByID(ctx context.Context, id string) (*models.GroupDetail, error) {
	if group, ok := m.groups[id]; ok {
		return &models.GroupDetail{Group: *group}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockGroupRepo) List(ctx context.Context, status *models.GroupStatus) ([]models.GroupDetail, error) {
	var groups []models.GroupDetail
	for _, g := range m.groups {
		if status == nil || g.Status == *status {
			groups = append(groups, models.GroupDetail{Group: *g})
		}
	}
	return groups, nil
}

func (m *mockGroupRepo) ListByLecturer(ctx context.Context, lecturerID string) ([]models.GroupDetail, error) {
	return nil, nil
}

func (m *mockGroupRepo) ListByStudent(ctx context.Context, studentID string) ([]models.GroupDetail, error) {
	return nil, nil
}

func (m *mockGroupRepo) CreateWithStudents(ctx context.Context, group *models.Group, studentIDs []string) error {
	if group.ID == "" {
		group.ID = "g1"
	}
	copy := *group
	m.groups[group.ID] = &copy
	m.created = &copy
	m.seeded = studentIDs
	return nil
}

func (m *mockGroupRepo) UpdateClassroom(ctx context.Context, id, classroom string) error {
	group, ok := m.groups[id]
	if !ok {
		return sql.ErrNoRows
	}
	group.Classroom = classroom
	return nil
}

func (m *mockGroupRepo) Finish(ctx context.Context, id string) (bool, error) {
	group, ok := m.groups[id]
	if !ok || group.Status == models.GroupStatusFinished {
		return false, nil
	}
	group.Status = models.GroupStatusFinished
	return true, nil
}

func (m *mockGroupRepo) ListCourseLecturers(ctx context.Context) ([]models.CourseLecturerDetail, error) {
	return nil, nil
}

type mockAssignmentReader struct {
	assignments map[string]*models.CourseLecturer
	courses     map[string]*models.Course
}

func (m *mockAssignmentReader) FindCourseLecturer(ctx context.Context, id string) (*models.CourseLecturer, error) {
	if assignment, ok := m.assignments[id]; ok {
		return assignment, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAssignmentReader) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if course, ok := m.courses[id]; ok {
		return course, nil
	}
	return nil, sql.ErrNoRows
}

func newGroupService(repo *mockGroupRepo, courses *mockAssignmentReader) *GroupService {
	return NewGroupService(repo, courses, validator.New(), zap.NewNop())
}

func TestGroupCreateDerivesEndDate(t *testing.T) {
	repo := newMockGroupRepo()
	courses := &mockAssignmentReader{
		assignments: map[string]*models.CourseLecturer{"cl1": {ID: "cl1", CourseID: "c1", LecturerID: "l1"}},
		courses:     map[string]*models.Course{"c1": {ID: "c1", Name: "Go", Duration: 6, Active: true}},
	}
	svc := newGroupService(repo, courses)

	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	group, err := svc.Create(context.Background(), CreateGroupRequest{
		Classroom:        "B-204",
		StartDate:        start,
		CourseLecturerID: "cl1",
		StudentIDs:       []string{"s1", "s2"},
	})
	require.NoError(t, err)

	assert.Equal(t, start.AddDate(0, 0, 6*30), group.EndDate)
	assert.Equal(t, models.GroupStatusOngoing, group.Status)
	assert.Equal(t, []string{"s1", "s2"}, repo.seeded)
}

func TestGroupCreateInactiveCourse(t *testing.T) {
	repo := newMockGroupRepo()
	courses := &mockAssignmentReader{
		assignments: map[string]*models.CourseLecturer{"cl1": {ID: "cl1", CourseID: "c1"}},
		courses:     map[string]*models.Course{"c1": {ID: "c1", Duration: 6, Active: false}},
	}
	svc := newGroupService(repo, courses)

	_, err := svc.Create(context.Background(), CreateGroupRequest{
		Classroom:        "B-204",
		StartDate:        time.Now().UTC(),
		CourseLecturerID: "cl1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestGroupCreateUnknownAssignment(t *testing.T) {
	svc := newGroupService(newMockGroupRepo(), &mockAssignmentReader{
		assignments: map[string]*models.CourseLecturer{},
		courses:     map[string]*models.Course{},
	})

	_, err := svc.Create(context.Background(), CreateGroupRequest{
		Classroom:        "B-204",
		StartDate:        time.Now().UTC(),
		CourseLecturerID: "missing",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGroupFinish(t *testing.T) {
	repo := newMockGroupRepo()
	repo.groups["g1"] = &models.Group{ID: "g1", Status: models.GroupStatusOngoing}
	svc := newGroupService(repo, &mockAssignmentReader{})

	group, err := svc.Finish(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, models.GroupStatusFinished, group.Status)
}

func TestGroupFinishAlreadyFinished(t *testing.T) {
	repo := newMockGroupRepo()
	repo.groups["g1"] = &models.Group{ID: "g1", Status: models.GroupStatusFinished}
	svc := newGroupService(repo, &mockAssignmentReader{})

	_, err := svc.Finish(context.Background(), "g1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestGroupFinishMissing(t *testing.T) {
	svc := newGroupService(newMockGroupRepo(), &mockAssignmentReader{})

	_, err := svc.Finish(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
