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

// CallRepository handles persistence of enrollment calls.
type CallRepository struct {
	db *sqlx.DB
}

// NewCallRepository constructs the repository.
func NewCallRepository(db *sqlx.DB) *CallRepository {
	return &CallRepository{db: db}
}

// FindByID returns a call by identifier.
func (r *CallRepository) FindByID(ctx context.Context, id string) (*models.Call, error) {
	const query = `SELECT id, course_id, capacity, date_added, application_deadline FROM calls WHERE id = $1`
	var call models.Call
	if err := r.db.GetContext(ctx, &call, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find call: %w", err)
	}
	return &call, nil
}

// FindDetailByID returns a call with its course context.
func (r *CallRepository) FindDetailByID(ctx context.Context, id string) (*models.CallDetail, error) {
	const query = `SELECT c.id, c.course_id, c.capacity, c.date_added, c.application_deadline,
        co.name AS course_name, co.duration AS course_duration, co.level AS course_level
        FROM calls c
        JOIN courses co ON co.id = c.course_id
        WHERE c.id = $1`
	var detail models.CallDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find call detail: %w", err)
	}
	return &detail, nil
}

// List returns every call with course context, newest first.
func (r *CallRepository) List(ctx context.Context) ([]models.CallDetail, error) {
	const query = `SELECT c.id, c.course_id, c.capacity, c.date_added, c.application_deadline,
        co.name AS course_name, co.duration AS course_duration, co.level AS course_level
        FROM calls c
        JOIN courses co ON co.id = c.course_id
        ORDER BY c.date_added DESC`
	var calls []models.CallDetail
	if err := r.db.SelectContext(ctx, &calls, query); err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	return calls, nil
}

// Create persists a new call.
func (r *CallRepository) Create(ctx context.Context, call *models.Call) error {
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	if call.DateAdded.IsZero() {
		call.DateAdded = time.Now().UTC()
	}
	const query = `INSERT INTO calls (id, course_id, capacity, date_added, application_deadline)
        VALUES (:id, :course_id, :capacity, :date_added, :application_deadline)`
	if _, err := r.db.NamedExecContext(ctx, query, call); err != nil {
		return fmt.Errorf("create call: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of a call.
func (r *CallRepository) Update(ctx context.Context, call *models.Call) error {
	const query = `UPDATE calls SET capacity = :capacity, application_deadline = :application_deadline WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, call)
	if err != nil {
		return fmt.Errorf("update call: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a call. Applications cascade through the foreign key.
func (r *CallRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM calls WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete call: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
