package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-cms-api/internal/models"
)

// GroupStudentRepository handles persistence of group enrollments.
type GroupStudentRepository struct {
	db *sqlx.DB
}

// NewGroupStudentRepository constructs the repository.
func NewGroupStudentRepository(db *sqlx.DB) *GroupStudentRepository {
	return &GroupStudentRepository{db: db}
}

// FindByID returns an enrollment by identifier.
func (r *GroupStudentRepository) FindByID(ctx context.Context, id string) (*models.GroupStudent, error) {
	const query = `SELECT id, group_id, student_id, status, feedback, created_at FROM group_students WHERE id = $1`
	var gs models.GroupStudent
	if err := r.db.GetContext(ctx, &gs, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find group student: %w", err)
	}
	return &gs, nil
}

// FindByPair returns the enrollment for a (group, student) pair.
func (r *GroupStudentRepository) FindByPair(ctx context.Context, groupID, studentID string) (*models.GroupStudent, error) {
	const query = `SELECT id, group_id, student_id, status, feedback, created_at FROM group_students WHERE group_id = $1 AND student_id = $2`
	var gs models.GroupStudent
	if err := r.db.GetContext(ctx, &gs, query, groupID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find group student pair: %w", err)
	}
	return &gs, nil
}

// ListByGroup returns the students of one group with display fields.
func (r *GroupStudentRepository) ListByGroup(ctx context.Context, groupID string) ([]models.GroupStudentDetail, error) {
	const query = `SELECT gs.id, gs.group_id, gs.student_id, gs.status, gs.feedback, gs.created_at,
        u.full_name AS student_name, u.email
        FROM group_students gs
        JOIN students s ON s.id = gs.student_id
        JOIN users u ON u.id = s.user_id
        WHERE gs.group_id = $1
        ORDER BY u.full_name`
	var members []models.GroupStudentDetail
	if err := r.db.SelectContext(ctx, &members, query, groupID); err != nil {
		return nil, fmt.Errorf("list group students: %w", err)
	}
	return members, nil
}

// Create inserts a new enrollment. The unique (group, student) constraint
// surfaces duplicates as ErrAlreadyApplied.
func (r *GroupStudentRepository) Create(ctx context.Context, gs *models.GroupStudent) error {
	if gs.ID == "" {
		gs.ID = uuid.NewString()
	}
	if gs.Status == "" {
		gs.Status = models.GroupStudentUnsatisfied
	}
	if gs.CreatedAt.IsZero() {
		gs.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO group_students (id, group_id, student_id, status, feedback, created_at)
        VALUES (:id, :group_id, :student_id, :status, :feedback, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, gs); err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyApplied
		}
		return fmt.Errorf("create group student: %w", err)
	}
	return nil
}

// Delete removes an enrollment by its (group, student) pair.
func (r *GroupStudentRepository) Delete(ctx context.Context, groupID, studentID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM group_students WHERE group_id = $1 AND student_id = $2`, groupID, studentID)
	if err != nil {
		return fmt.Errorf("delete group student: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateFeedback records a student's feedback rating for a group.
func (r *GroupStudentRepository) UpdateFeedback(ctx context.Context, groupID, studentID string, feedback int) error {
	const query = `UPDATE group_students SET feedback = $3 WHERE group_id = $1 AND student_id = $2`
	res, err := r.db.ExecContext(ctx, query, groupID, studentID, feedback)
	if err != nil {
		return fmt.Errorf("update feedback: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus changes the satisfaction status of an enrollment.
func (r *GroupStudentRepository) UpdateStatus(ctx context.Context, groupID, studentID string, status models.GroupStudentStatus) error {
	const query = `UPDATE group_students SET status = $3 WHERE group_id = $1 AND student_id = $2`
	res, err := r.db.ExecContext(ctx, query, groupID, studentID, status)
	if err != nil {
		return fmt.Errorf("update group student status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
