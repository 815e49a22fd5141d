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

type mockCallRepo struct {
	calls map[string]*models.Call
}

func newMockCallRepo() *mockCallRepo {
	return &mockCallRepo{calls: make(map[string]*models.Call)}
}

func (m *mockCallRepo) FindByID(ctx context.Context, id string) (*models.Call, error) {
	if call, ok := m.calls[id]; ok {
		copy := *call
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCallRepo) FindDetailByID(ctx context.Context, id string) (*models.CallDetail, error) {
	if call, ok := m.calls[id]; ok {
		return &models.CallDetail{Call: *call}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCallRepo) List(ctx context.Context) ([]models.CallDetail, error) {
	var calls []models.CallDetail
	for _, call := range m.calls {
		calls = append(calls, models.CallDetail{Call: *call})
	}
	return calls, nil
}

func (m *mockCallRepo) Create(ctx context.Context, call *models.Call) error {
	if call.ID == "" {
		call.ID = "c1"
	}
	copy := *call
	m.calls[call.ID] = &copy
	return nil
}

func (m *mockCallRepo) Update(ctx context.Context, call *models.Call) error {
	if _, ok := m.calls[call.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *call
	m.calls[call.ID] = &copy
	return nil
}

func (m *mockCallRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.calls[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.calls, id)
	return nil
}

type mockCourseReader struct {
	courses map[string]*models.Course
}

func (m *mockCourseReader) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if course, ok := m.courses[id]; ok {
		return course, nil
	}
	return nil, sql.ErrNoRows
}

type mockApplicationCounter struct {
	counts map[string]int
}

func (m *mockApplicationCounter) CountByCall(ctx context.Context, callID string) (int, error) {
	return m.counts[callID], nil
}

func newCallService(repo *mockCallRepo, courses *mockCourseReader, counter *mockApplicationCounter) *CallService {
	return NewCallService(repo, courses, counter, validator.New(), zap.NewNop())
}

func TestCallCreate(t *testing.T) {
	repo := newMockCallRepo()
	courses := &mockCourseReader{courses: map[string]*models.Course{"course1": {ID: "course1", Active: true}}}
	svc := newCallService(repo, courses, &mockApplicationCounter{})

	deadline := time.Now().UTC().Add(72 * time.Hour)
	call, err := svc.Create(context.Background(), CreateCallRequest{
		CourseID:            "course1",
		Capacity:            25,
		ApplicationDeadline: &deadline,
	})
	require.NoError(t, err)
	assert.Equal(t, 25, call.Capacity)
	assert.False(t, call.DateAdded.IsZero())
}

func TestCallCreateZeroCapacity(t *testing.T) {
	repo := newMockCallRepo()
	courses := &mockCourseReader{courses: map[string]*models.Course{"course1": {ID: "course1", Active: true}}}
	svc := newCallService(repo, courses, &mockApplicationCounter{})

	call, err := svc.Create(context.Background(), CreateCallRequest{CourseID: "course1", Capacity: 0})
	require.NoError(t, err)
	assert.Equal(t, 0, call.Capacity)
}

func TestCallCreateNegativeCapacity(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]*models.Course{"course1": {ID: "course1", Active: true}}}
	svc := newCallService(newMockCallRepo(), courses, &mockApplicationCounter{})

	_, err := svc.Create(context.Background(), CreateCallRequest{CourseID: "course1", Capacity: -1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCallCreateInactiveCourse(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]*models.Course{"course1": {ID: "course1", Active: false}}}
	svc := newCallService(newMockCallRepo(), courses, &mockApplicationCounter{})

	_, err := svc.Create(context.Background(), CreateCallRequest{CourseID: "course1", Capacity: 10})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestCallCreatePastDeadline(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]*models.Course{"course1": {ID: "course1", Active: true}}}
	svc := newCallService(newMockCallRepo(), courses, &mockApplicationCounter{})

	past := time.Now().UTC().Add(-time.Hour)
	_, err := svc.Create(context.Background(), CreateCallRequest{
		CourseID:            "course1",
		Capacity:            10,
		ApplicationDeadline: &past,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCallUpdateCapacityBelowEnrollment(t *testing.T) {
	repo := newMockCallRepo()
	repo.calls["c1"] = &models.Call{ID: "c1", CourseID: "course1", Capacity: 20, DateAdded: time.Now().UTC().AddDate(0, 0, -7)}
	counter := &mockApplicationCounter{counts: map[string]int{"c1": 15}}
	svc := newCallService(repo, &mockCourseReader{}, counter)

	_, err := svc.Update(context.Background(), "c1", UpdateCallRequest{Capacity: 10})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	call, err := svc.Update(context.Background(), "c1", UpdateCallRequest{Capacity: 15})
	require.NoError(t, err)
	assert.Equal(t, 15, call.Capacity)
}

func TestCallUpdateMissing(t *testing.T) {
	svc := newCallService(newMockCallRepo(), &mockCourseReader{}, &mockApplicationCounter{})

	_, err := svc.Update(context.Background(), "missing", UpdateCallRequest{Capacity: 10})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
