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

// LecturerRepository handles persistence of lecturer profiles.
type LecturerRepository struct {
	db *sqlx.DB
}

// NewLecturerRepository constructs the repository.
func NewLecturerRepository(db *sqlx.DB) *LecturerRepository {
	return &LecturerRepository{db: db}
}

const lecturerDetailSelect = `SELECT l.id, l.user_id, l.contract_start, l.contract_end, l.university_degree, l.active, l.created_at, l.updated_at,
        u.full_name, u.email, u.active AS account_active
        FROM lecturers l
        JOIN users u ON u.id = l.user_id`

// FindByID returns a lecturer with account fields.
func (r *LecturerRepository) FindByID(ctx context.Context, id string) (*models.LecturerDetail, error) {
	query := lecturerDetailSelect + ` WHERE l.id = $1`
	var lecturer models.LecturerDetail
	if err := r.db.GetContext(ctx, &lecturer, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find lecturer: %w", err)
	}
	return &lecturer, nil
}

// List returns every lecturer with account fields.
func (r *LecturerRepository) List(ctx context.Context) ([]models.LecturerDetail, error) {
	query := lecturerDetailSelect + ` ORDER BY u.full_name`
	var lecturers []models.LecturerDetail
	if err := r.db.SelectContext(ctx, &lecturers, query); err != nil {
		return nil, fmt.Errorf("list lecturers: %w", err)
	}
	return lecturers, nil
}

// Create persists a new lecturer profile.
func (r *LecturerRepository) Create(ctx context.Context, lecturer *models.Lecturer) error {
	if lecturer.ID == "" {
		lecturer.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lecturer.CreatedAt.IsZero() {
		lecturer.CreatedAt = now
	}
	lecturer.UpdatedAt = now
	const query = `INSERT INTO lecturers (id, user_id, contract_start, contract_end, university_degree, active, created_at, updated_at)
        VALUES (:id, :user_id, :contract_start, :contract_end, :university_degree, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lecturer); err != nil {
		return fmt.Errorf("create lecturer: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of a lecturer profile.
func (r *LecturerRepository) Update(ctx context.Context, lecturer *models.Lecturer) error {
	lecturer.UpdatedAt = time.Now().UTC()
	const query = `UPDATE lecturers SET contract_start = :contract_start, contract_end = :contract_end, university_degree = :university_degree, active = :active, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, lecturer)
	if err != nil {
		return fmt.Errorf("update lecturer: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Deactivate soft deletes a lecturer profile.
func (r *LecturerRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE lecturers SET active = FALSE, updated_at = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate lecturer: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
