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

// MaterialRepository handles persistence of group materials.
type MaterialRepository struct {
	db *sqlx.DB
}

// NewMaterialRepository constructs the repository.
func NewMaterialRepository(db *sqlx.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

// FindByID returns a material by identifier.
func (r *MaterialRepository) FindByID(ctx context.Context, id string) (*models.Material, error) {
	const query = `SELECT id, group_id, topic, description, week, link, created_at, updated_at FROM materials WHERE id = $1`
	var material models.Material
	if err := r.db.GetContext(ctx, &material, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find material: %w", err)
	}
	return &material, nil
}

// ListByGroup returns the materials of one group ordered by week.
func (r *MaterialRepository) ListByGroup(ctx context.Context, groupID string) ([]models.Material, error) {
	const query = `SELECT id, group_id, topic, description, week, link, created_at, updated_at FROM materials WHERE group_id = $1 ORDER BY week`
	var materials []models.Material
	if err := r.db.SelectContext(ctx, &materials, query, groupID); err != nil {
		return nil, fmt.Errorf("list group materials: %w", err)
	}
	return materials, nil
}

// ListAll returns every material.
func (r *MaterialRepository) ListAll(ctx context.Context) ([]models.Material, error) {
	const query = `SELECT id, group_id, topic, description, week, link, created_at, updated_at FROM materials ORDER BY group_id, week`
	var materials []models.Material
	if err := r.db.SelectContext(ctx, &materials, query); err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	return materials, nil
}

// Create persists a new material.
func (r *MaterialRepository) Create(ctx context.Context, material *models.Material) error {
	if material.ID == "" {
		material.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if material.CreatedAt.IsZero() {
		material.CreatedAt = now
	}
	material.UpdatedAt = now
	const query = `INSERT INTO materials (id, group_id, topic, description, week, link, created_at, updated_at)
        VALUES (:id, :group_id, :topic, :description, :week, :link, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, material); err != nil {
		return fmt.Errorf("create material: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of a material.
func (r *MaterialRepository) Update(ctx context.Context, material *models.Material) error {
	material.UpdatedAt = time.Now().UTC()
	const query = `UPDATE materials SET topic = :topic, description = :description, week = :week, link = :link, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, material)
	if err != nil {
		return fmt.Errorf("update material: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a material.
func (r *MaterialRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM materials WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete material: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
