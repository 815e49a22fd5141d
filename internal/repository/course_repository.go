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

// CourseRepository handles persistence of courses and lecturer assignments.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns a course by identifier.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, name, duration, price, level, active, created_at, updated_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// List returns all courses.
func (r *CourseRepository) List(ctx context.Context) ([]models.Course, error) {
	const query = `SELECT id, name, duration, price, level, active, created_at, updated_at FROM courses ORDER BY name`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// Create persists a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, name, duration, price, level, active, created_at, updated_at)
        VALUES (:id, :name, :duration, :price, :level, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of a course.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET name = :name, duration = :duration, price = :price, level = :level, active = :active, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, course)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a course. Calls and assignments cascade.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AssignLecturer links a lecturer to a course. Duplicate assignments
// surface as ErrAlreadyApplied through the unique pair constraint.
func (r *CourseRepository) AssignLecturer(ctx context.Context, assignment *models.CourseLecturer) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now().UTC()
	}
	const query = `INSERT INTO course_lecturers (id, course_id, lecturer_id, assigned_at)
        VALUES (:id, :course_id, :lecturer_id, :assigned_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyApplied
		}
		return fmt.Errorf("assign lecturer: %w", err)
	}
	return nil
}

// FindCourseLecturer returns an assignment by identifier.
func (r *CourseRepository) FindCourseLecturer(ctx context.Context, id string) (*models.CourseLecturer, error) {
	const query = `SELECT id, course_id, lecturer_id, assigned_at FROM course_lecturers WHERE id = $1`
	var assignment models.CourseLecturer
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course lecturer: %w", err)
	}
	return &assignment, nil
}
