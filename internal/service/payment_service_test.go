package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/course-cms-api/internal/models"
	"github.com/noah-isme/course-cms-api/internal/repository"
	appErrors "github.com/noah-isme/course-cms-api/pkg/errors"
)

type mockPaymentRepo struct {
	billing     map[string]*repository.EnrollmentBilling
	schedules   map[string][]models.Payment
	payments    map[string]*models.Payment
	insertErr   error
	insertCalls int
	listCalls   int
	raceWinner  []models.Payment
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{
		billing:   make(map[string]*repository.EnrollmentBilling),
		schedules: make(map[string][]models.Payment),
		payments:  make(map[string]*models.Payment),
	}
}

func (m *mockPaymentRepo) FindBilling(ctx context.Context, groupStudentID string) (*repository.EnrollmentBilling, error) {
	if billing, ok := m.billing[groupStudentID]; ok {
		return billing, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentRepo) ListByGroupStudent(ctx context.Context, groupStudentID string) ([]models.Payment, error) {
	m.listCalls++
	if m.raceWinner != nil {
		// First read sees no schedule, the re-read after a lost insert
		// race returns the concurrent winner's rows.
		if m.listCalls == 1 {
			return nil, nil
		}
		return m.raceWinner, nil
	}
	return m.schedules[groupStudentID], nil
}

func (m *mockPaymentRepo) InsertSchedule(ctx context.Context, payments []models.Payment) error {
	m.insertCalls++
	if m.insertErr != nil {
		return m.insertErr
	}
	if len(payments) == 0 {
		return nil
	}
	key := payments[0].GroupStudentID
	m.schedules[key] = append([]models.Payment(nil), payments...)
	return nil
}

func (m *mockPaymentRepo) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	if payment, ok := m.payments[id]; ok {
		copy := *payment
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentRepo) Confirm(ctx context.Context, id string, paidOn time.Time) error {
	payment, ok := m.payments[id]
	if !ok {
		return sql.ErrNoRows
	}
	payment.Status = models.PaymentStatusPaid
	payment.PaymentDate = &paidOn
	return nil
}

func (m *mockPaymentRepo) Update(ctx context.Context, payment *models.Payment) error {
	if _, ok := m.payments[payment.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *payment
	m.payments[payment.ID] = &copy
	return nil
}

func (m *mockPaymentRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.payments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.payments, id)
	return nil
}

func (m *mockPaymentRepo) ListAll(ctx context.Context) ([]models.Payment, error) {
	var payments []models.Payment
	for _, p := range m.payments {
		payments = append(payments, *p)
	}
	return payments, nil
}

func (m *mockPaymentRepo) ListByStatus(ctx context.Context, status models.PaymentStatus) ([]models.Payment, error) {
	var payments []models.Payment
	for _, p := range m.payments {
		if p.Status == status {
			payments = append(payments, *p)
		}
	}
	return payments, nil
}

func (m *mockPaymentRepo) ListOverdue(ctx context.Context, before time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	for _, p := range m.payments {
		if p.Status == models.PaymentStatusUnpaid && p.DueDate.Before(before) {
			payments = append(payments, *p)
		}
	}
	return payments, nil
}

func (m *mockPaymentRepo) Statistics(ctx context.Context) (*models.PaymentStatistics, error) {
	return &models.PaymentStatistics{}, nil
}

type mockAccountToggler struct {
	active map[string]bool
}

func (m *mockAccountToggler) SetActive(ctx context.Context, id string, active bool) error {
	if m.active == nil {
		m.active = make(map[string]bool)
	}
	m.active[id] = active
	return nil
}

func newPaymentService(repo *mockPaymentRepo, accounts *mockAccountToggler, students *mockStudentReader) *PaymentService {
	return NewPaymentService(repo, accounts, students, nil, time.Minute, validator.New(), zap.NewNop())
}

func TestPaymentScheduleGeneration(t *testing.T) {
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	repo := newMockPaymentRepo()
	repo.billing["gs1"] = &repository.EnrollmentBilling{
		GroupStudentID: "gs1",
		StartDate:      start,
		Duration:       6,
		Price:          decimal.RequireFromString("1500.00"),
	}
	svc := newPaymentService(repo, &mockAccountToggler{}, &mockStudentReader{})

	schedule, err := svc.GetOrCreateSchedule(context.Background(), "gs1")
	require.NoError(t, err)
	require.Len(t, schedule, 6)

	total := decimal.Zero
	for i, payment := range schedule {
		assert.Equal(t, i+1, payment.Month)
		assert.Equal(t, models.PaymentStatusUnpaid, payment.Status)
		assert.Equal(t, start.AddDate(0, 0, i*30), payment.DueDate)
		total = total.Add(payment.Amount)
	}
	assert.True(t, total.Equal(decimal.RequireFromString("1500.00")))
	assert.True(t, schedule[0].Amount.Equal(decimal.RequireFromString("250.00")))
}

func TestPaymentScheduleDueDatesSpacedThirtyDays(t *testing.T) {
	repo := newMockPaymentRepo()
	repo.billing["gs1"] = &repository.EnrollmentBilling{
		GroupStudentID: "gs1",
		StartDate:      time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Duration:       3,
		Price:          decimal.RequireFromString("300.00"),
	}
	svc := newPaymentService(repo, &mockAccountToggler{}, &mockStudentReader{})

	schedule, err := svc.GetOrCreateSchedule(context.Background(), "gs1")
	require.NoError(t, err)
	require.Len(t, schedule, 3)

	// 30-day steps, not calendar months: February shifts the later dates.
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), schedule[0].DueDate)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), schedule[1].DueDate)
	assert.Equal(t, time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC), schedule[2].DueDate)
}

func TestPaymentScheduleRemainderOnLastInstallment(t *testing.T) {
	repo := newMockPaymentRepo()
	repo.billing["gs1"] = &repository.EnrollmentBilling{
		GroupStudentID: "gs1",
		StartDate:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Duration:       3,
		Price:          decimal.RequireFromString("1000.00"),
	}
	svc := newPaymentService(repo, &mockAccountToggler{}, &mockStudentReader{})

	schedule, err := svc.GetOrCreateSchedule(context.Background(), "gs1")
	require.NoError(t, err)
	require.Len(t, schedule, 3)

	assert.True(t, schedule[0].Amount.Equal(decimal.RequireFromString("333.33")))
	assert.True(t, schedule[1].Amount.Equal(decimal.RequireFromString("333.33")))
	assert.True(t, schedule[2].Amount.Equal(decimal.RequireFromString("333.34")))

	total := schedule[0].Amount.Add(schedule[1].Amount).Add(schedule[2].Amount)
	assert.True(t, total.Equal(decimal.RequireFromString("1000.00")))
}

func TestPaymentScheduleIdempotent(t *testing.T) {
	repo := newMockPaymentRepo()
	repo.billing["gs1"] = &repository.EnrollmentBilling{
		GroupStudentID: "gs1",
		StartDate:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Duration:       2,
		Price:          decimal.RequireFromString("500.00"),
	}
	svc := newPaymentService(repo, &mockAccountToggler{}, &mockStudentReader{})

	first, err := svc.GetOrCreateSchedule(context.Background(), "gs1")
	require.NoError(t, err)
	second, err := svc.GetOrCreateSchedule(context.Background(), "gs1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.insertCalls)
}

func TestPaymentScheduleLostRaceFallsBackToRead(t *testing.T) {
	repo := newMockPaymentRepo()
	repo.billing["gs1"] = &repository.EnrollmentBilling{
		GroupStudentID: "gs1",
		StartDate:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Duration:       2,
		Price:          decimal.RequireFromString("500.00"),
	}
	winner := []models.Payment{
		{ID: "p1", GroupStudentID: "gs1", Month: 1, Amount: decimal.RequireFromString("250.00"), Status: models.PaymentStatusUnpaid},
		{ID: "p2", GroupStudentID: "gs1", Month: 2, Amount: decimal.RequireFromString("250.00"), Status: models.PaymentStatusUnpaid},
	}
	repo.insertErr = repository.ErrScheduleExists
	repo.raceWinner = winner
	svc := newPaymentService(repo, &mockAccountToggler{}, &mockStudentReader{})

	schedule, err := svc.GetOrCreateSchedule(context.Background(), "gs1")
	require.NoError(t, err)
	assert.Equal(t, winner, schedule)
	assert.Equal(t, 1, repo.insertCalls)
}

func TestPaymentScheduleMissingEnrollment(t *testing.T) {
	svc := newPaymentService(newMockPaymentRepo(), &mockAccountToggler{}, &mockStudentReader{})
	_, err := svc.GetOrCreateSchedule(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPaymentConfirmRestampsPaidRow(t *testing.T) {
	previous := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	repo := newMockPaymentRepo()
	repo.payments["p1"] = &models.Payment{
		ID:          "p1",
		Month:       1,
		Amount:      decimal.NewFromInt(100),
		Status:      models.PaymentStatusPaid,
		PaymentDate: &previous,
	}
	svc := newPaymentService(repo, &mockAccountToggler{}, &mockStudentReader{})

	payment, err := svc.Confirm(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, payment.Status)
	require.NotNil(t, payment.PaymentDate)
	assert.True(t, payment.PaymentDate.After(previous))
}

func TestPaymentUpdateRevertClearsPaymentDate(t *testing.T) {
	paidOn := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	repo := newMockPaymentRepo()
	repo.payments["p1"] = &models.Payment{
		ID:          "p1",
		Month:       1,
		Amount:      decimal.NewFromInt(100),
		Status:      models.PaymentStatusPaid,
		PaymentDate: &paidOn,
	}
	svc := newPaymentService(repo, &mockAccountToggler{}, &mockStudentReader{})

	payment, err := svc.Update(context.Background(), "p1", UpdatePaymentRequest{
		Month:  1,
		Amount: decimal.NewFromInt(120),
		Status: models.PaymentStatusUnpaid,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusUnpaid, payment.Status)
	assert.Nil(t, payment.PaymentDate)
	assert.True(t, payment.Amount.Equal(decimal.NewFromInt(120)))
}

func TestPaymentUpdateNegativeAmount(t *testing.T) {
	repo := newMockPaymentRepo()
	repo.payments["p1"] = &models.Payment{ID: "p1", Month: 1, Amount: decimal.NewFromInt(100), Status: models.PaymentStatusUnpaid}
	svc := newPaymentService(repo, &mockAccountToggler{}, &mockStudentReader{})

	_, err := svc.Update(context.Background(), "p1", UpdatePaymentRequest{
		Month:  1,
		Amount: decimal.NewFromInt(-5),
		Status: models.PaymentStatusUnpaid,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPaymentListOverdue(t *testing.T) {
	repo := newMockPaymentRepo()
	repo.payments["p1"] = &models.Payment{ID: "p1", Status: models.PaymentStatusUnpaid, DueDate: time.Now().UTC().AddDate(0, -1, 0)}
	repo.payments["p2"] = &models.Payment{ID: "p2", Status: models.PaymentStatusUnpaid, DueDate: time.Now().UTC().AddDate(0, 1, 0)}
	repo.payments["p3"] = &models.Payment{ID: "p3", Status: models.PaymentStatusPaid, DueDate: time.Now().UTC().AddDate(0, -1, 0)}
	svc := newPaymentService(repo, &mockAccountToggler{}, &mockStudentReader{})

	overdue, err := svc.ListOverdue(context.Background())
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "p1", overdue[0].ID)
}

func TestPaymentBlockAndUnblockStudent(t *testing.T) {
	accounts := &mockAccountToggler{}
	students := &mockStudentReader{students: map[string]*models.StudentDetail{"s1": activeStudent("s1")}}
	svc := newPaymentService(newMockPaymentRepo(), accounts, students)

	require.NoError(t, svc.BlockStudent(context.Background(), "s1"))
	assert.False(t, accounts.active["u-s1"])

	require.NoError(t, svc.UnblockStudent(context.Background(), "s1"))
	assert.True(t, accounts.active["u-s1"])
}

func TestPaymentBlockUnknownStudent(t *testing.T) {
	svc := newPaymentService(newMockPaymentRepo(), &mockAccountToggler{}, &mockStudentReader{})
	err := svc.BlockStudent(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
