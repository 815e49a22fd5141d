package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-cms-api/internal/models"
)

func TestFindBilling(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"group_student_id", "start_date", "duration", "price"}).
		AddRow("gs1", start, 6, "1500.00")
	mock.ExpectQuery("SELECT gs.id AS group_student_id").
		WithArgs("gs1").
		WillReturnRows(rows)

	billing, err := repo.FindBilling(context.Background(), "gs1")
	require.NoError(t, err)
	assert.Equal(t, 6, billing.Duration)
	assert.True(t, billing.Price.Equal(decimal.RequireFromString("1500.00")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertSchedule(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	due := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	payments := []models.Payment{
		{GroupStudentID: "gs1", Month: 1, Amount: decimal.RequireFromString("250.00"), Status: models.PaymentStatusUnpaid, DueDate: due},
		{GroupStudentID: "gs1", Month: 2, Amount: decimal.RequireFromString("250.00"), Status: models.PaymentStatusUnpaid, DueDate: due.AddDate(0, 1, 0)},
	}
	err := repo.InsertSchedule(context.Background(), payments)
	require.NoError(t, err)
	assert.NotEmpty(t, payments[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertScheduleLostRace(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payments").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	payments := []models.Payment{
		{GroupStudentID: "gs1", Month: 1, Amount: decimal.NewFromInt(100), Status: models.PaymentStatusUnpaid, DueDate: time.Now()},
	}
	err := repo.InsertSchedule(context.Background(), payments)
	assert.ErrorIs(t, err, ErrScheduleExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPayment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	paidOn := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET status = $2, payment_date = $3 WHERE id = $1")).
		WithArgs("p1", string(models.PaymentStatusPaid), paidOn).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Confirm(context.Background(), "p1", paidOn)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPaymentMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec("UPDATE payments SET status").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Confirm(context.Background(), "missing", time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePaymentDuplicateMonth(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec("UPDATE payments SET month").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Update(context.Background(), &models.Payment{ID: "p1", Month: 2, Amount: decimal.NewFromInt(100), Status: models.PaymentStatusUnpaid})
	assert.ErrorIs(t, err, ErrDuplicateMonth)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListOverdue(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	today := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "group_student_id", "month", "amount", "status", "due_date", "payment_date", "created_at"}).
		AddRow("p1", "gs1", 1, "250.00", string(models.PaymentStatusUnpaid), today.AddDate(0, -1, 0), nil, today.AddDate(0, -2, 0))
	mock.ExpectQuery("FROM payments WHERE status").
		WithArgs(string(models.PaymentStatusUnpaid), today).
		WillReturnRows(rows)

	payments, err := repo.ListOverdue(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, models.PaymentStatusUnpaid, payments[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentStatistics(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	rows := sqlmock.NewRows([]string{"total", "paid", "pending", "total_amount", "paid_amount", "pending_amount"}).
		AddRow(8, 6, 2, "2000.00", "1500.00", "500.00")
	mock.ExpectQuery("FROM payments").WillReturnRows(rows)

	stats, err := repo.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, stats.TotalPayments)
	assert.Equal(t, 6, stats.PaidPayments)
	assert.True(t, stats.PendingAmount.Equal(decimal.RequireFromString("500.00")))
	assert.InDelta(t, 75.0, stats.CompletionRatePct, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}
