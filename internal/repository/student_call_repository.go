package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/course-cms-api/internal/models"
)

// Outcome errors surfaced by capacity-guarded enrollment writes.
var (
	ErrAlreadyApplied = errors.New("student already applied to call")
	ErrCallFull       = errors.New("call capacity reached")
)

// BulkEnrollOutcome is the raw partition computed inside a bulk enrollment
// transaction. Slices preserve the caller's input order.
type BulkEnrollOutcome struct {
	Admitted        []string
	AlreadyEnrolled []string
	Unknown         []string
	OverCapacity    []string
}

// StudentCallRepository handles persistence of call applications. All
// capacity-sensitive writes lock the call row so concurrent requests cannot
// jointly exceed the capacity.
type StudentCallRepository struct {
	db *sqlx.DB
}

// NewStudentCallRepository constructs the repository.
func NewStudentCallRepository(db *sqlx.DB) *StudentCallRepository {
	return &StudentCallRepository{db: db}
}

// Enroll inserts a (student, call) application atomically. The call row is
// locked for the duration of the transaction; the unique pair constraint
// backstops duplicate applications racing past the existence check.
func (r *StudentCallRepository) Enroll(ctx context.Context, studentID, callID string) (*models.StudentCall, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enroll: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var capacity int
	if err := tx.GetContext(ctx, &capacity, `SELECT capacity FROM calls WHERE id = $1 FOR UPDATE`, callID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock call: %w", err)
	}

	var exists int
	err = tx.GetContext(ctx, &exists, `SELECT 1 FROM student_calls WHERE student_id = $1 AND call_id = $2 LIMIT 1`, studentID, callID)
	if err == nil {
		return nil, ErrAlreadyApplied
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("check application: %w", err)
	}

	var current int
	if err := tx.GetContext(ctx, &current, `SELECT COUNT(*) FROM student_calls WHERE call_id = $1`, callID); err != nil {
		return nil, fmt.Errorf("count applications: %w", err)
	}
	if current >= capacity {
		return nil, ErrCallFull
	}

	sc := &models.StudentCall{
		ID:        uuid.NewString(),
		StudentID: studentID,
		CallID:    callID,
		AppliedAt: time.Now().UTC(),
	}
	const insert = `INSERT INTO student_calls (id, student_id, call_id, applied_at) VALUES (:id, :student_id, :call_id, :applied_at)`
	if _, err := tx.NamedExecContext(ctx, insert, sc); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyApplied
		}
		return nil, fmt.Errorf("insert application: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enroll: %w", err)
	}
	return sc, nil
}

// Withdraw removes a (student, call) application. sql.ErrNoRows is returned
// when the pair does not exist.
func (r *StudentCallRepository) Withdraw(ctx context.Context, studentID, callID string) error {
	const query = `DELETE FROM student_calls WHERE student_id = $1 AND call_id = $2`
	res, err := r.db.ExecContext(ctx, query, studentID, callID)
	if err != nil {
		return fmt.Errorf("withdraw application: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// BulkEnroll admits as many of the given students as the call capacity
// allows, in input order, inside one transaction. Students already enrolled
// or unknown are skipped; partial admission is not an error.
func (r *StudentCallRepository) BulkEnroll(ctx context.Context, callID string, studentIDs []string) (*BulkEnrollOutcome, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin bulk enroll: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var capacity int
	if err := tx.GetContext(ctx, &capacity, `SELECT capacity FROM calls WHERE id = $1 FOR UPDATE`, callID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock call: %w", err)
	}

	var current int
	if err := tx.GetContext(ctx, &current, `SELECT COUNT(*) FROM student_calls WHERE call_id = $1`, callID); err != nil {
		return nil, fmt.Errorf("count applications: %w", err)
	}
	available := capacity - current

	enrolled, err := selectIDSet(ctx, tx, `SELECT student_id FROM student_calls WHERE call_id = $1 AND student_id = ANY($2)`, callID, studentIDs)
	if err != nil {
		return nil, fmt.Errorf("load existing applications: %w", err)
	}
	known, err := selectIDSet(ctx, tx, `SELECT id FROM students WHERE id = ANY($1)`, studentIDs)
	if err != nil {
		return nil, fmt.Errorf("load students: %w", err)
	}

	outcome := &BulkEnrollOutcome{}
	seen := make(map[string]bool, len(studentIDs))
	now := time.Now().UTC()
	for _, id := range studentIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		switch {
		case enrolled[id]:
			outcome.AlreadyEnrolled = append(outcome.AlreadyEnrolled, id)
		case !known[id]:
			outcome.Unknown = append(outcome.Unknown, id)
		case len(outcome.Admitted) >= available:
			outcome.OverCapacity = append(outcome.OverCapacity, id)
		default:
			sc := models.StudentCall{ID: uuid.NewString(), StudentID: id, CallID: callID, AppliedAt: now}
			const insert = `INSERT INTO student_calls (id, student_id, call_id, applied_at) VALUES (:id, :student_id, :call_id, :applied_at)`
			if _, err := tx.NamedExecContext(ctx, insert, sc); err != nil {
				return nil, fmt.Errorf("insert application: %w", err)
			}
			outcome.Admitted = append(outcome.Admitted, id)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bulk enroll: %w", err)
	}
	return outcome, nil
}

// BulkWithdraw deletes all matching applications, returning the number of
// rows actually removed. Unmatched ids are not an error.
func (r *StudentCallRepository) BulkWithdraw(ctx context.Context, callID string, studentIDs []string) (int, error) {
	if len(studentIDs) == 0 {
		return 0, nil
	}
	const query = `DELETE FROM student_calls WHERE call_id = $1 AND student_id = ANY($2)`
	res, err := r.db.ExecContext(ctx, query, callID, pq.Array(studentIDs))
	if err != nil {
		return 0, fmt.Errorf("bulk withdraw: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bulk withdraw rows: %w", err)
	}
	return int(affected), nil
}

// CountByCall returns the number of applications for a call.
func (r *StudentCallRepository) CountByCall(ctx context.Context, callID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM student_calls WHERE call_id = $1`, callID); err != nil {
		return 0, fmt.Errorf("count applications: %w", err)
	}
	return count, nil
}

// Exists reports whether the (student, call) pair exists.
func (r *StudentCallRepository) Exists(ctx context.Context, studentID, callID string) (bool, error) {
	var one int
	err := r.db.GetContext(ctx, &one, `SELECT 1 FROM student_calls WHERE student_id = $1 AND call_id = $2 LIMIT 1`, studentID, callID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check application: %w", err)
	}
	return true, nil
}

// ListStudentsByCall returns student details for every applicant of a call.
func (r *StudentCallRepository) ListStudentsByCall(ctx context.Context, callID string) ([]models.StudentDetail, error) {
	const query = `SELECT s.id, s.user_id, s.employed, s.active, s.created_at, s.updated_at,
        u.full_name, u.email, u.active AS account_active
        FROM student_calls sc
        JOIN students s ON s.id = sc.student_id
        JOIN users u ON u.id = s.user_id
        WHERE sc.call_id = $1
        ORDER BY sc.applied_at`
	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, callID); err != nil {
		return nil, fmt.Errorf("list call students: %w", err)
	}
	return students, nil
}

// ListCallsByStudent returns the calls a student applied for.
func (r *StudentCallRepository) ListCallsByStudent(ctx context.Context, studentID string) ([]models.CallDetail, error) {
	const query = `SELECT c.id, c.course_id, c.capacity, c.date_added, c.application_deadline,
        co.name AS course_name, co.duration AS course_duration, co.level AS course_level
        FROM student_calls sc
        JOIN calls c ON c.id = sc.call_id
        JOIN courses co ON co.id = c.course_id
        WHERE sc.student_id = $1
        ORDER BY sc.applied_at DESC`
	var calls []models.CallDetail
	if err := r.db.SelectContext(ctx, &calls, query, studentID); err != nil {
		return nil, fmt.Errorf("list student calls: %w", err)
	}
	return calls, nil
}

// ListAll returns every application with display context.
func (r *StudentCallRepository) ListAll(ctx context.Context) ([]models.StudentCallDetail, error) {
	const query = `SELECT sc.id, sc.student_id, sc.call_id, sc.applied_at,
        u.full_name AS student_name, c.capacity AS call_capacity, co.name AS course_name
        FROM student_calls sc
        JOIN students s ON s.id = sc.student_id
        JOIN users u ON u.id = s.user_id
        JOIN calls c ON c.id = sc.call_id
        JOIN courses co ON co.id = c.course_id
        ORDER BY sc.applied_at DESC`
	var details []models.StudentCallDetail
	if err := r.db.SelectContext(ctx, &details, query); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return details, nil
}

// Statistics aggregates relationship figures across calls and students.
func (r *StudentCallRepository) Statistics(ctx context.Context) (*models.EnrollmentStats, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM student_calls) AS total,
        (SELECT COUNT(DISTINCT student_id) FROM student_calls) AS with_calls,
        (SELECT COUNT(DISTINCT call_id) FROM student_calls) AS with_students,
        (SELECT COUNT(*) FROM students WHERE active = TRUE) AS students,
        (SELECT COUNT(*) FROM calls) AS calls`
	var row struct {
		Total        int `db:"total"`
		WithCalls    int `db:"with_calls"`
		WithStudents int `db:"with_students"`
		Students     int `db:"students"`
		Calls        int `db:"calls"`
	}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return nil, fmt.Errorf("application statistics: %w", err)
	}

	stats := &models.EnrollmentStats{
		TotalRelationships:   row.Total,
		StudentsWithCalls:    row.WithCalls,
		CallsWithStudents:    row.WithStudents,
		StudentsWithoutCalls: row.Students - row.WithCalls,
		CallsWithoutStudents: row.Calls - row.WithStudents,
	}
	if row.WithStudents > 0 {
		stats.AvgStudentsPerCall = roundPct(float64(row.Total) / float64(row.WithStudents))
	}
	if row.WithCalls > 0 {
		stats.AvgCallsPerStudent = roundPct(float64(row.Total) / float64(row.WithCalls))
	}
	return stats, nil
}

func selectIDSet(ctx context.Context, tx *sqlx.Tx, query string, args ...interface{}) (map[string]bool, error) {
	for i, arg := range args {
		if ids, ok := arg.([]string); ok {
			args[i] = pq.Array(ids)
		}
	}
	rows, err := tx.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		set[id] = true
	}
	return set, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func roundPct(v float64) float64 {
	return math.Round(v*100) / 100
}
