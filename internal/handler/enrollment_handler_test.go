package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-cms-api/internal/models"
	"github.com/noah-isme/course-cms-api/internal/repository"
	"github.com/noah-isme/course-cms-api/internal/service"
	"github.com/noah-isme/course-cms-api/pkg/response"
)

type enrollmentRepoStub struct {
	enrolled map[string]bool
	count    int
	capacity int
}

func enrollKey(studentID, callID string) string { return studentID + "/" + callID }

func (s *enrollmentRepoStub) Enroll(ctx context.Context, studentID, callID string) (*models.StudentCall, error) {
	key := enrollKey(studentID, callID)
	if s.enrolled[key] {
		return nil, repository.ErrAlreadyApplied
	}
	if s.count >= s.capacity {
		return nil, repository.ErrCallFull
	}
	s.enrolled[key] = true
	s.count++
	return &models.StudentCall{ID: "sc1", StudentID: studentID, CallID: callID, AppliedAt: time.Now().UTC()}, nil
}

func (s *enrollmentRepoStub) Withdraw(ctx context.Context, studentID, callID string) error {
	key := enrollKey(studentID, callID)
	if !s.enrolled[key] {
		return sql.ErrNoRows
	}
	delete(s.enrolled, key)
	s.count--
	return nil
}

func (s *enrollmentRepoStub) BulkEnroll(ctx context.Context, callID string, studentIDs []string) (*repository.BulkEnrollOutcome, error) {
	return &repository.BulkEnrollOutcome{}, nil
}

func (s *enrollmentRepoStub) BulkWithdraw(ctx context.Context, callID string, studentIDs []string) (int, error) {
	return 0, nil
}

func (s *enrollmentRepoStub) CountByCall(ctx context.Context, callID string) (int, error) {
	return s.count, nil
}

func (s *enrollmentRepoStub) Exists(ctx context.Context, studentID, callID string) (bool, error) {
	return s.enrolled[enrollKey(studentID, callID)], nil
}

func (s *enrollmentRepoStub) ListStudentsByCall(ctx context.Context, callID string) ([]models.StudentDetail, error) {
	return nil, nil
}

func (s *enrollmentRepoStub) ListCallsByStudent(ctx context.Context, studentID string) ([]models.CallDetail, error) {
	return nil, nil
}

func (s *enrollmentRepoStub) ListAll(ctx context.Context) ([]models.StudentCallDetail, error) {
	return nil, nil
}

func (s *enrollmentRepoStub) Statistics(ctx context.Context) (*models.EnrollmentStats, error) {
	return &models.EnrollmentStats{}, nil
}

type callReaderStub struct {
	calls map[string]*models.Call
}

func (s *callReaderStub) FindByID(ctx context.Context, id string) (*models.Call, error) {
	if call, ok := s.calls[id]; ok {
		return call, nil
	}
	return nil, sql.ErrNoRows
}

type studentReaderStub struct {
	students map[string]*models.StudentDetail
}

func (s *studentReaderStub) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if student, ok := s.students[id]; ok {
		return student, nil
	}
	return nil, sql.ErrNoRows
}

func newEnrollmentHandler(repo *enrollmentRepoStub, calls *callReaderStub, students *studentReaderStub) *EnrollmentHandler {
	svc := service.NewEnrollmentService(repo, calls, students, nil, time.Minute, nil, nil)
	return NewEnrollmentHandler(svc)
}

func enrollmentFixture() (*enrollmentRepoStub, *callReaderStub, *studentReaderStub) {
	repo := &enrollmentRepoStub{enrolled: make(map[string]bool), capacity: 2}
	calls := &callReaderStub{calls: map[string]*models.Call{"c1": {ID: "c1", Capacity: 2}}}
	students := &studentReaderStub{students: map[string]*models.StudentDetail{
		"s1": {Student: models.Student{ID: "s1", UserID: "u1", Active: true}, AccountActive: true},
	}}
	return repo, calls, students
}

func performEnroll(h *EnrollmentHandler, callID, studentID string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/calls/"+callID+"/students/"+studentID, nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: callID}, {Key: "studentId", Value: studentID}}
	h.Enroll(c)
	return w
}

func TestEnrollmentHandlerEnroll(t *testing.T) {
	handler := newEnrollmentHandler(enrollmentFixture())

	w := performEnroll(handler, "c1", "s1")
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Nil(t, envelope.Error)
}

func TestEnrollmentHandlerEnrollDuplicate(t *testing.T) {
	handler := newEnrollmentHandler(enrollmentFixture())

	require.Equal(t, http.StatusCreated, performEnroll(handler, "c1", "s1").Code)
	w := performEnroll(handler, "c1", "s1")
	require.Equal(t, http.StatusConflict, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "ALREADY_ENROLLED", envelope.Error.Code)
}

func TestEnrollmentHandlerEnrollUnknownStudent(t *testing.T) {
	handler := newEnrollmentHandler(enrollmentFixture())

	w := performEnroll(handler, "c1", "ghost")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestEnrollmentHandlerCapacity(t *testing.T) {
	repo, calls, students := enrollmentFixture()
	handler := newEnrollmentHandler(repo, calls, students)
	repo.count = 1

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/calls/c1/capacity", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "c1"}}

	handler.Capacity(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.CapacityInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, 2, envelope.Data.Capacity)
	assert.Equal(t, 1, envelope.Data.Current)
	assert.Equal(t, 1, envelope.Data.Available)
	assert.False(t, envelope.Data.IsFull)
}
