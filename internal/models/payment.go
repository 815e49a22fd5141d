package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the settlement state of an installment.
type PaymentStatus string

// Possible payment statuses.
const (
	PaymentStatusUnpaid PaymentStatus = "UNPAID"
	PaymentStatusPaid   PaymentStatus = "PAID"
)

// Payment is one monthly installment of a group enrollment. Exactly one
// row exists per (group_student, month); PaymentDate is set only while
// the status is PAID.
type Payment struct {
	ID             string          `db:"id" json:"id"`
	GroupStudentID string          `db:"group_student_id" json:"group_student_id"`
	Month          int             `db:"month" json:"month"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	Status         PaymentStatus   `db:"status" json:"status"`
	DueDate        time.Time       `db:"due_date" json:"due_date"`
	PaymentDate    *time.Time      `db:"payment_date" json:"payment_date,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// PaymentStatistics aggregates payment figures across the system.
type PaymentStatistics struct {
	TotalPayments     int             `json:"total_payments"`
	PaidPayments      int             `json:"paid_payments"`
	PendingPayments   int             `json:"pending_payments"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	PendingAmount     decimal.Decimal `json:"pending_amount"`
	CompletionRatePct float64         `json:"payment_completion_rate"`
}
