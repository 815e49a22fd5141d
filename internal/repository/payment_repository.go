package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/course-cms-api/internal/models"
)

// ErrScheduleExists signals that another request generated the schedule
// first; callers should re-read and return the stored rows.
var ErrScheduleExists = errors.New("payment schedule already generated")

// ErrDuplicateMonth is returned when an update collides with the unique
// (group_student, month) constraint.
var ErrDuplicateMonth = errors.New("payment month already exists for enrollment")

// EnrollmentBilling carries the pricing chain resolved for one enrollment.
type EnrollmentBilling struct {
	GroupStudentID string          `db:"group_student_id"`
	StartDate      time.Time       `db:"start_date"`
	Duration       int             `db:"duration"`
	Price          decimal.Decimal `db:"price"`
}

// PaymentRepository handles persistence of payment schedules.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// FindBilling resolves the group start date and course pricing for an
// enrollment. sql.ErrNoRows is returned when the chain is broken.
func (r *PaymentRepository) FindBilling(ctx context.Context, groupStudentID string) (*EnrollmentBilling, error) {
	const query = `SELECT gs.id AS group_student_id, g.start_date, co.duration, co.price
        FROM group_students gs
        JOIN groups g ON g.id = gs.group_id
        JOIN course_lecturers cl ON cl.id = g.course_lecturer_id
        JOIN courses co ON co.id = cl.course_id
        WHERE gs.id = $1`
	var billing EnrollmentBilling
	if err := r.db.GetContext(ctx, &billing, query, groupStudentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment billing: %w", err)
	}
	return &billing, nil
}

// ListByGroupStudent returns the schedule rows for one enrollment ordered
// by month.
func (r *PaymentRepository) ListByGroupStudent(ctx context.Context, groupStudentID string) ([]models.Payment, error) {
	const query = `SELECT id, group_student_id, month, amount, status, due_date, payment_date, created_at
        FROM payments WHERE group_student_id = $1 ORDER BY month`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, groupStudentID); err != nil {
		return nil, fmt.Errorf("list schedule: %w", err)
	}
	return payments, nil
}

// InsertSchedule inserts all rows of a freshly generated schedule in one
// transaction. A unique violation on (group_student, month) means a
// concurrent request won the generation race; ErrScheduleExists is returned
// and nothing is committed.
func (r *PaymentRepository) InsertSchedule(ctx context.Context, payments []models.Payment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schedule insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insert = `INSERT INTO payments (id, group_student_id, month, amount, status, due_date, payment_date, created_at)
        VALUES (:id, :group_student_id, :month, :amount, :status, :due_date, :payment_date, :created_at)`
	for i := range payments {
		if payments[i].ID == "" {
			payments[i].ID = uuid.NewString()
		}
		if payments[i].CreatedAt.IsZero() {
			payments[i].CreatedAt = time.Now().UTC()
		}
		if _, err := tx.NamedExecContext(ctx, insert, payments[i]); err != nil {
			if isUniqueViolation(err) {
				return ErrScheduleExists
			}
			return fmt.Errorf("insert payment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schedule insert: %w", err)
	}
	return nil
}

// FindByID returns a payment by identifier.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	const query = `SELECT id, group_student_id, month, amount, status, due_date, payment_date, created_at FROM payments WHERE id = $1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return &payment, nil
}

// Confirm marks a payment as paid and stamps the payment date.
func (r *PaymentRepository) Confirm(ctx context.Context, id string, paidOn time.Time) error {
	const query = `UPDATE payments SET status = $2, payment_date = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, models.PaymentStatusPaid, paidOn)
	if err != nil {
		return fmt.Errorf("confirm payment: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Update overwrites the mutable fields of a payment. A reverted status
// clears the payment date so PAID stays equivalent to a stamped date.
func (r *PaymentRepository) Update(ctx context.Context, payment *models.Payment) error {
	const query = `UPDATE payments SET month = :month, amount = :amount, status = :status, payment_date = :payment_date WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, payment)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateMonth
		}
		return fmt.Errorf("update payment: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a payment row.
func (r *PaymentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListAll returns every payment ordered by due date.
func (r *PaymentRepository) ListAll(ctx context.Context) ([]models.Payment, error) {
	const query = `SELECT id, group_student_id, month, amount, status, due_date, payment_date, created_at FROM payments ORDER BY due_date`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// ListByStatus returns payments filtered on settlement state.
func (r *PaymentRepository) ListByStatus(ctx context.Context, status models.PaymentStatus) ([]models.Payment, error) {
	const query = `SELECT id, group_student_id, month, amount, status, due_date, payment_date, created_at FROM payments WHERE status = $1 ORDER BY due_date`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, status); err != nil {
		return nil, fmt.Errorf("list payments by status: %w", err)
	}
	return payments, nil
}

// ListOverdue returns unpaid payments whose due date lies before the given
// day.
func (r *PaymentRepository) ListOverdue(ctx context.Context, before time.Time) ([]models.Payment, error) {
	const query = `SELECT id, group_student_id, month, amount, status, due_date, payment_date, created_at
        FROM payments WHERE status = $1 AND due_date < $2 ORDER BY due_date`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, models.PaymentStatusUnpaid, before); err != nil {
		return nil, fmt.Errorf("list overdue payments: %w", err)
	}
	return payments, nil
}

// Statistics aggregates counts and amounts across all payments.
func (r *PaymentRepository) Statistics(ctx context.Context) (*models.PaymentStatistics, error) {
	const query = `SELECT
        COUNT(*) AS total,
        COUNT(*) FILTER (WHERE status = 'PAID') AS paid,
        COUNT(*) FILTER (WHERE status = 'UNPAID') AS pending,
        COALESCE(SUM(amount), 0) AS total_amount,
        COALESCE(SUM(amount) FILTER (WHERE status = 'PAID'), 0) AS paid_amount,
        COALESCE(SUM(amount) FILTER (WHERE status = 'UNPAID'), 0) AS pending_amount
        FROM payments`
	var row struct {
		Total         int             `db:"total"`
		Paid          int             `db:"paid"`
		Pending       int             `db:"pending"`
		TotalAmount   decimal.Decimal `db:"total_amount"`
		PaidAmount    decimal.Decimal `db:"paid_amount"`
		PendingAmount decimal.Decimal `db:"pending_amount"`
	}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return nil, fmt.Errorf("payment statistics: %w", err)
	}

	stats := &models.PaymentStatistics{
		TotalPayments:   row.Total,
		PaidPayments:    row.Paid,
		PendingPayments: row.Pending,
		TotalAmount:     row.TotalAmount,
		PaidAmount:      row.PaidAmount,
		PendingAmount:   row.PendingAmount,
	}
	if row.Total > 0 {
		stats.CompletionRatePct = roundPct(float64(row.Paid) / float64(row.Total) * 100)
	}
	return stats, nil
}
