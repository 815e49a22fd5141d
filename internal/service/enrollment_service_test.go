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
	"github.com/noah-isme/course-cms-api/internal/repository"
	appErrors "github.com/noah-isme/course-cms-api/pkg/errors"
)

type mockStudentCallRepo struct {
	enrolled map[string]map[string]bool // callID -> studentID
	counts   map[string]int
	students map[string]bool
	capacity map[string]int
	stats    *models.EnrollmentStats
}

func newMockStudentCallRepo() *mockStudentCallRepo {
	return &mockStudentCallRepo{
		enrolled: make(map[string]map[string]bool),
		counts:   make(map[string]int),
		students: make(map[string]bool),
		capacity: make(map[string]int),
	}
}

func (m *mockStudentCallRepo) Enroll(ctx context.Context, studentID, callID string) (*models.StudentCall, error) {
	cap, ok := m.capacity[callID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if m.enrolled[callID][studentID] {
		return nil, repository.ErrAlreadyApplied
	}
	if m.counts[callID] >= cap {
		return nil, repository.ErrCallFull
	}
	if m.enrolled[callID] == nil {
		m.enrolled[callID] = make(map[string]bool)
	}
	m.enrolled[callID][studentID] = true
	m.counts[callID]++
	return &models.StudentCall{ID: "sc1", StudentID: studentID, CallID: callID, AppliedAt: time.Now()}, nil
}

func (m *mockStudentCallRepo) Withdraw(ctx context.Context, studentID, callID string) error {
	if !m.enrolled[callID][studentID] {
		return sql.ErrNoRows
	}
	delete(m.enrolled[callID], studentID)
	m.counts[callID]--
	return nil
}

func (m *mockStudentCallRepo) BulkEnroll(ctx context.Context, callID string, studentIDs []string) (*repository.BulkEnrollOutcome, error) {
	cap, ok := m.capacity[callID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	outcome := &repository.BulkEnrollOutcome{}
	seen := make(map[string]bool)
	for _, id := range studentIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		switch {
		case m.enrolled[callID][id]:
			outcome.AlreadyEnrolled = append(outcome.AlreadyEnrolled, id)
		case !m.students[id]:
			outcome.Unknown = append(outcome.Unknown, id)
		case m.counts[callID]+len(outcome.Admitted) >= cap:
			outcome.OverCapacity = append(outcome.OverCapacity, id)
		default:
			outcome.Admitted = append(outcome.Admitted, id)
		}
	}
	return outcome, nil
}

func (m *mockStudentCallRepo) BulkWithdraw(ctx context.Context, callID string, studentIDs []string) (int, error) {
	removed := 0
	for _, id := range studentIDs {
		if m.enrolled[callID][id] {
			delete(m.enrolled[callID], id)
			m.counts[callID]--
			removed++
		}
	}
	return removed, nil
}

func (m *mockStudentCallRepo) CountByCall(ctx context.Context, callID string) (int, error) {
	return m.counts[callID], nil
}

func (m *mockStudentCallRepo) Exists(ctx context.Context, studentID, callID string) (bool, error) {
	return m.enrolled[callID][studentID], nil
}

func (m *mockStudentCallRepo) ListStudentsByCall(ctx context.Context, callID string) ([]models.StudentDetail, error) {
	return nil, nil
}

func (m *mockStudentCallRepo) ListCallsByStudent(ctx context.Context, studentID string) ([]models.CallDetail, error) {
	return nil, nil
}

func (m *mockStudentCallRepo) ListAll(ctx context.Context) ([]models.StudentCallDetail, error) {
	return nil, nil
}

func (m *mockStudentCallRepo) Statistics(ctx context.Context) (*models.EnrollmentStats, error) {
	return m.stats, nil
}

type mockCallReader struct {
	calls map[string]*models.Call
}

func (m *mockCallReader) FindByID(ctx context.Context, id string) (*models.Call, error) {
	if call, ok := m.calls[id]; ok {
		return call, nil
	}
	return nil, sql.ErrNoRows
}

type mockStudentReader struct {
	students map[string]*models.StudentDetail
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if student, ok := m.students[id]; ok {
		return student, nil
	}
	return nil, sql.ErrNoRows
}

func activeStudent(id string) *models.StudentDetail {
	return &models.StudentDetail{
		Student:       models.Student{ID: id, UserID: "u-" + id, Active: true},
		AccountActive: true,
	}
}

func newEnrollmentService(repo *mockStudentCallRepo, calls *mockCallReader, students *mockStudentReader) *EnrollmentService {
	return NewEnrollmentService(repo, calls, students, nil, time.Minute, validator.New(), zap.NewNop())
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	repo := newMockStudentCallRepo()
	repo.capacity["c1"] = 2
	repo.students["s1"] = true
	calls := &mockCallReader{calls: map[string]*models.Call{"c1": {ID: "c1", Capacity: 2}}}
	students := &mockStudentReader{students: map[string]*models.StudentDetail{"s1": activeStudent("s1")}}
	svc := newEnrollmentService(repo, calls, students)

	sc, err := svc.Enroll(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "s1", sc.StudentID)
	assert.True(t, repo.enrolled["c1"]["s1"])
}

func TestEnrollmentServiceEnrollDuplicate(t *testing.T) {
	repo := newMockStudentCallRepo()
	repo.capacity["c1"] = 2
	repo.enrolled["c1"] = map[string]bool{"s1": true}
	repo.counts["c1"] = 1
	calls := &mockCallReader{calls: map[string]*models.Call{"c1": {ID: "c1", Capacity: 2}}}
	students := &mockStudentReader{students: map[string]*models.StudentDetail{"s1": activeStudent("s1")}}
	svc := newEnrollmentService(repo, calls, students)

	_, err := svc.Enroll(context.Background(), "s1", "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyEnrolled.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollFull(t *testing.T) {
	repo := newMockStudentCallRepo()
	repo.capacity["c1"] = 1
	repo.enrolled["c1"] = map[string]bool{"other": true}
	repo.counts["c1"] = 1
	calls := &mockCallReader{calls: map[string]*models.Call{"c1": {ID: "c1", Capacity: 1}}}
	students := &mockStudentReader{students: map[string]*models.StudentDetail{"s1": activeStudent("s1")}}
	svc := newEnrollmentService(repo, calls, students)

	_, err := svc.Enroll(context.Background(), "s1", "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCapacityExceeded.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollDeadlinePassed(t *testing.T) {
	past := time.Now().UTC().Add(-time.Hour)
	repo := newMockStudentCallRepo()
	repo.capacity["c1"] = 5
	calls := &mockCallReader{calls: map[string]*models.Call{"c1": {ID: "c1", Capacity: 5, ApplicationDeadline: &past}}}
	students := &mockStudentReader{students: map[string]*models.StudentDetail{"s1": activeStudent("s1")}}
	svc := newEnrollmentService(repo, calls, students)

	_, err := svc.Enroll(context.Background(), "s1", "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollInactiveStudent(t *testing.T) {
	repo := newMockStudentCallRepo()
	repo.capacity["c1"] = 5
	inactive := activeStudent("s1")
	inactive.AccountActive = false
	calls := &mockCallReader{calls: map[string]*models.Call{"c1": {ID: "c1", Capacity: 5}}}
	students := &mockStudentReader{students: map[string]*models.StudentDetail{"s1": inactive}}
	svc := newEnrollmentService(repo, calls, students)

	_, err := svc.Enroll(context.Background(), "s1", "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceWithdrawMissing(t *testing.T) {
	repo := newMockStudentCallRepo()
	repo.capacity["c1"] = 2
	calls := &mockCallReader{calls: map[string]*models.Call{"c1": {ID: "c1", Capacity: 2}}}
	students := &mockStudentReader{students: map[string]*models.StudentDetail{"s1": activeStudent("s1")}}
	svc := newEnrollmentService(repo, calls, students)

	err := svc.Withdraw(context.Background(), "s1", "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceBulkEnrollPartial(t *testing.T) {
	repo := newMockStudentCallRepo()
	repo.capacity["c1"] = 3
	repo.counts["c1"] = 1
	repo.enrolled["c1"] = map[string]bool{"s1": true}
	for _, id := range []string{"s1", "s2", "s3", "s5"} {
		repo.students[id] = true
	}
	calls := &mockCallReader{calls: map[string]*models.Call{"c1": {ID: "c1", Capacity: 3}}}
	students := &mockStudentReader{}
	svc := newEnrollmentService(repo, calls, students)

	result, err := svc.BulkEnroll(context.Background(), "c1", BulkEnrollRequest{StudentIDs: []string{"s1", "s2", "s3", "s4", "s5"}})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Accepted)
	require.Len(t, result.Rejected, 3)

	reasons := make(map[string]string)
	for _, rejection := range result.Rejected {
		reasons[rejection.StudentID] = rejection.Reason
	}
	assert.Equal(t, "already enrolled", reasons["s1"])
	assert.Equal(t, "student not found", reasons["s4"])
	assert.Equal(t, "capacity reached", reasons["s5"])
}

func TestEnrollmentServiceBulkEnrollEmptyPayload(t *testing.T) {
	svc := newEnrollmentService(newMockStudentCallRepo(), &mockCallReader{}, &mockStudentReader{})
	_, err := svc.BulkEnroll(context.Background(), "c1", BulkEnrollRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceCapacityInfo(t *testing.T) {
	repo := newMockStudentCallRepo()
	repo.capacity["c1"] = 4
	repo.counts["c1"] = 3
	calls := &mockCallReader{calls: map[string]*models.Call{"c1": {ID: "c1", Capacity: 4}}}
	svc := newEnrollmentService(repo, calls, &mockStudentReader{})

	info, err := svc.CapacityInfo(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 4, info.Capacity)
	assert.Equal(t, 3, info.Current)
	assert.Equal(t, 1, info.Available)
	assert.False(t, info.IsFull)
	assert.InDelta(t, 75.0, info.UtilizationPct, 0.001)
}

func TestEnrollmentServiceCapacityInfoRoundsUtilization(t *testing.T) {
	repo := newMockStudentCallRepo()
	repo.capacity["c1"] = 3
	repo.counts["c1"] = 1
	calls := &mockCallReader{calls: map[string]*models.Call{"c1": {ID: "c1", Capacity: 3}}}
	svc := newEnrollmentService(repo, calls, &mockStudentReader{})

	info, err := svc.CapacityInfo(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 33.33, info.UtilizationPct)
}

func TestEnrollmentServiceCapacityInfoFull(t *testing.T) {
	repo := newMockStudentCallRepo()
	repo.capacity["c1"] = 2
	repo.counts["c1"] = 2
	calls := &mockCallReader{calls: map[string]*models.Call{"c1": {ID: "c1", Capacity: 2}}}
	svc := newEnrollmentService(repo, calls, &mockStudentReader{})

	info, err := svc.CapacityInfo(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, info.IsFull)
	assert.Zero(t, info.Available)
}
