package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/course-cms-api/internal/models"
	"github.com/noah-isme/course-cms-api/internal/repository"
	appErrors "github.com/noah-isme/course-cms-api/pkg/errors"
)

const paymentStatsCacheKey = "payments:statistics"

type paymentRepository interface {
	FindBilling(ctx context.Context, groupStudentID string) (*repository.EnrollmentBilling, error)
	ListByGroupStudent(ctx context.Context, groupStudentID string) ([]models.Payment, error)
	InsertSchedule(ctx context.Context, payments []models.Payment) error
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	Confirm(ctx context.Context, id string, paidOn time.Time) error
	Update(ctx context.Context, payment *models.Payment) error
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context) ([]models.Payment, error)
	ListByStatus(ctx context.Context, status models.PaymentStatus) ([]models.Payment, error)
	ListOverdue(ctx context.Context, before time.Time) ([]models.Payment, error)
	Statistics(ctx context.Context) (*models.PaymentStatistics, error)
}

type accountToggler interface {
	SetActive(ctx context.Context, id string, active bool) error
}

type paymentStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

// UpdatePaymentRequest carries the editable fields of a payment row.
type UpdatePaymentRequest struct {
	Month  int                  `json:"month" validate:"required,min=1"`
	Amount decimal.Decimal      `json:"amount" validate:"required"`
	Status models.PaymentStatus `json:"status" validate:"required,oneof=PAID UNPAID"`
}

// PaymentService manages monthly payment schedules. Schedules are generated
// lazily on first read and are idempotent under concurrent generation.
type PaymentService struct {
	repo      paymentRepository
	accounts  accountToggler
	students  paymentStudentReader
	cache     *CacheService
	statsTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentService constructs PaymentService.
func NewPaymentService(repo paymentRepository, accounts accountToggler, students paymentStudentReader, cache *CacheService, statsTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{repo: repo, accounts: accounts, students: students, cache: cache, statsTTL: statsTTL, validator: validate, logger: logger}
}

// GetOrCreateSchedule returns the payment schedule for an enrollment,
// generating it on first access. A concurrent generator losing the insert
// race falls back to reading the winner's rows, so both requests observe
// the same schedule.
func (s *PaymentService) GetOrCreateSchedule(ctx context.Context, groupStudentID string) ([]models.Payment, error) {
	existing, err := s.repo.ListByGroupStudent(ctx, groupStudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	if len(existing) > 0 {
		return existing, nil
	}

	billing, err := s.repo.FindBilling(ctx, groupStudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve enrollment billing")
	}
	if billing.Duration <= 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "course duration must be positive")
	}

	schedule := buildSchedule(billing)
	if err := s.repo.InsertSchedule(ctx, schedule); err != nil {
		if errors.Is(err, repository.ErrScheduleExists) {
			return s.repo.ListByGroupStudent(ctx, groupStudentID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate schedule")
	}

	s.invalidateStats(ctx)
	s.logger.Info("payment schedule generated",
		zap.String("group_student_id", groupStudentID),
		zap.Int("installments", len(schedule)))
	return schedule, nil
}

// Get returns a single payment by identifier.
func (s *PaymentService) Get(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return payment, nil
}

// Confirm marks a payment as paid on the current day. Re-confirming an
// already paid row refreshes the payment date.
func (s *PaymentService) Confirm(ctx context.Context, id string) (*models.Payment, error) {
	if err := s.repo.Confirm(ctx, id, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm payment")
	}
	s.invalidateStats(ctx)

	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload payment")
	}
	s.logger.Info("payment confirmed", zap.String("payment_id", id))
	return payment, nil
}

// Update overwrites the editable fields of a payment. Reverting to UNPAID
// clears the payment date; setting PAID stamps it when missing.
func (s *PaymentService) Update(ctx context.Context, id string, req UpdatePaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if req.Amount.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must not be negative")
	}

	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}

	payment.Month = req.Month
	payment.Amount = req.Amount
	payment.Status = req.Status
	switch req.Status {
	case models.PaymentStatusUnpaid:
		payment.PaymentDate = nil
	case models.PaymentStatusPaid:
		if payment.PaymentDate == nil {
			now := time.Now().UTC()
			payment.PaymentDate = &now
		}
	}

	if err := s.repo.Update(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrDuplicateMonth) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a payment for this month already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment")
	}

	s.invalidateStats(ctx)
	return payment, nil
}

// Delete removes a payment row.
func (s *PaymentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete payment")
	}
	s.invalidateStats(ctx)
	return nil
}

// List returns all payments, optionally filtered on settlement state.
func (s *PaymentService) List(ctx context.Context, status *models.PaymentStatus) ([]models.Payment, error) {
	var (
		payments []models.Payment
		err      error
	)
	if status != nil {
		payments, err = s.repo.ListByStatus(ctx, *status)
	} else {
		payments, err = s.repo.ListAll(ctx)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, nil
}

// ListOverdue returns unpaid payments whose due date has passed.
func (s *PaymentService) ListOverdue(ctx context.Context) ([]models.Payment, error) {
	payments, err := s.repo.ListOverdue(ctx, startOfDay(time.Now().UTC()))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list overdue payments")
	}
	return payments, nil
}

// Statistics aggregates amounts and counts across all payments, served from
// cache when available.
func (s *PaymentService) Statistics(ctx context.Context) (*models.PaymentStatistics, error) {
	var cached models.PaymentStatistics
	if hit, _ := s.cache.Get(ctx, paymentStatsCacheKey, &cached); hit {
		return &cached, nil
	}

	stats, err := s.repo.Statistics(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute payment statistics")
	}
	if err := s.cache.Set(ctx, paymentStatsCacheKey, stats, s.statsTTL); err != nil {
		s.logger.Debug("statistics cache write failed", zap.Error(err))
	}
	return stats, nil
}

// BlockStudent disables a student's account, typically for payment arrears.
func (s *PaymentService) BlockStudent(ctx context.Context, studentID string) error {
	return s.setStudentAccess(ctx, studentID, false)
}

// UnblockStudent restores a previously blocked student's account.
func (s *PaymentService) UnblockStudent(ctx context.Context, studentID string) error {
	return s.setStudentAccess(ctx, studentID, true)
}

func (s *PaymentService) setStudentAccess(ctx context.Context, studentID string, active bool) error {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.accounts.SetActive(ctx, student.UserID, active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student account not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update account state")
	}
	s.logger.Info("student access changed",
		zap.String("student_id", studentID),
		zap.Bool("active", active))
	return nil
}

func (s *PaymentService) invalidateStats(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, paymentStatsCacheKey); err != nil {
		s.logger.Debug("statistics cache invalidation failed", zap.Error(err))
	}
}

// buildSchedule splits the course price into equal monthly installments.
// The final installment absorbs the rounding remainder so the schedule sums
// exactly to the course price. Due dates advance in fixed 30-day steps from
// the group start date rather than calendar months.
func buildSchedule(billing *repository.EnrollmentBilling) []models.Payment {
	months := billing.Duration
	installment := billing.Price.Div(decimal.NewFromInt(int64(months))).Round(2)

	payments := make([]models.Payment, 0, months)
	for month := 1; month <= months; month++ {
		amount := installment
		if month == months {
			amount = billing.Price.Sub(installment.Mul(decimal.NewFromInt(int64(months - 1))))
		}
		payments = append(payments, models.Payment{
			GroupStudentID: billing.GroupStudentID,
			Month:          month,
			Amount:         amount,
			Status:         models.PaymentStatusUnpaid,
			DueDate:        billing.StartDate.AddDate(0, 0, (month-1)*30),
		})
	}
	return payments
}
