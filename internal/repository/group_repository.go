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

// GroupRepository handles persistence of course groups.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository constructs the repository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

const groupDetailSelect = `SELECT g.id, g.classroom, g.start_date, g.end_date, g.status, g.course_lecturer_id, g.created_at, g.updated_at,
        co.id AS course_id, co.name AS course_name, co.duration AS course_duration, co.level AS course_level,
        l.id AS lecturer_id, u.full_name AS lecturer_name
        FROM groups g
        JOIN course_lecturers cl ON cl.id = g.course_lecturer_id
        JOIN courses co ON co.id = cl.course_id
        JOIN lecturers l ON l.id = cl.lecturer_id
        JOIN users u ON u.id = l.user_id`

// FindByID returns a group by identifier.
func (r *GroupRepository) FindByID(ctx context.Context, id string) (*models.Group, error) {
	const query = `SELECT id, classroom, start_date, end_date, status, course_lecturer_id, created_at, updated_at FROM groups WHERE id = $1`
	var group models.Group
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find group: %w", err)
	}
	return &group, nil
}

// FindDetailByID returns a group with course and lecturer context.
func (r *GroupRepository) FindDetailByID(ctx context.Context, id string) (*models.GroupDetail, error) {
	query := groupDetailSelect + ` WHERE g.id = $1`
	var detail models.GroupDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find group detail: %w", err)
	}
	return &detail, nil
}

// List returns all groups with context, optionally filtered by status.
func (r *GroupRepository) List(ctx context.Context, status *models.GroupStatus) ([]models.GroupDetail, error) {
	query := groupDetailSelect
	var args []interface{}
	if status != nil {
		query += ` WHERE g.status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY g.start_date DESC`
	var groups []models.GroupDetail
	if err := r.db.SelectContext(ctx, &groups, query, args...); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// ListByLecturer returns the groups taught by one lecturer.
func (r *GroupRepository) ListByLecturer(ctx context.Context, lecturerID string) ([]models.GroupDetail, error) {
	query := groupDetailSelect + ` WHERE cl.lecturer_id = $1 ORDER BY g.start_date DESC`
	var groups []models.GroupDetail
	if err := r.db.SelectContext(ctx, &groups, query, lecturerID); err != nil {
		return nil, fmt.Errorf("list lecturer groups: %w", err)
	}
	return groups, nil
}

// ListByStudent returns the groups a student is enrolled in.
func (r *GroupRepository) ListByStudent(ctx context.Context, studentID string) ([]models.GroupDetail, error) {
	query := groupDetailSelect + ` JOIN group_students gs ON gs.group_id = g.id WHERE gs.student_id = $1 ORDER BY g.start_date DESC`
	var groups []models.GroupDetail
	if err := r.db.SelectContext(ctx, &groups, query, studentID); err != nil {
		return nil, fmt.Errorf("list student groups: %w", err)
	}
	return groups, nil
}

// CreateWithStudents inserts the group and its initial enrollments in one
// transaction. Unknown student ids are skipped, duplicate pairs are not
// possible on a fresh group.
func (r *GroupRepository) CreateWithStudents(ctx context.Context, group *models.Group, studentIDs []string) error {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin group create: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertGroup = `INSERT INTO groups (id, classroom, start_date, end_date, status, course_lecturer_id, created_at, updated_at)
        VALUES (:id, :classroom, :start_date, :end_date, :status, :course_lecturer_id, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertGroup, group); err != nil {
		return fmt.Errorf("insert group: %w", err)
	}

	if len(studentIDs) > 0 {
		known, err := selectIDSet(ctx, tx, `SELECT id FROM students WHERE id = ANY($1)`, studentIDs)
		if err != nil {
			return fmt.Errorf("load students: %w", err)
		}
		const insertMember = `INSERT INTO group_students (id, group_id, student_id, status, created_at)
            VALUES (:id, :group_id, :student_id, :status, :created_at)`
		seen := make(map[string]bool, len(studentIDs))
		for _, sid := range studentIDs {
			if !known[sid] || seen[sid] {
				continue
			}
			seen[sid] = true
			member := models.GroupStudent{
				ID:        uuid.NewString(),
				GroupID:   group.ID,
				StudentID: sid,
				Status:    models.GroupStudentUnsatisfied,
				CreatedAt: now,
			}
			if _, err := tx.NamedExecContext(ctx, insertMember, member); err != nil {
				return fmt.Errorf("insert group student: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit group create: %w", err)
	}
	return nil
}

// UpdateClassroom changes the classroom assignment.
func (r *GroupRepository) UpdateClassroom(ctx context.Context, id, classroom string) error {
	const query = `UPDATE groups SET classroom = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, classroom, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update group classroom: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Finish transitions an ongoing group to FINISHED. The status guard in the
// WHERE clause keeps the transition forward-only; zero affected rows on an
// existing group means it was already finished.
func (r *GroupRepository) Finish(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE groups SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id, models.GroupStatusFinished, time.Now().UTC(), models.GroupStatusOngoing)
	if err != nil {
		return false, fmt.Errorf("finish group: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("finish group rows: %w", err)
	}
	return affected > 0, nil
}

// ListCourseLecturers returns every course lecturer assignment with names.
func (r *GroupRepository) ListCourseLecturers(ctx context.Context) ([]models.CourseLecturerDetail, error) {
	const query = `SELECT cl.id, cl.course_id, cl.lecturer_id, cl.assigned_at,
        co.name AS course_name, u.full_name AS lecturer_name
        FROM course_lecturers cl
        JOIN courses co ON co.id = cl.course_id
        JOIN lecturers l ON l.id = cl.lecturer_id
        JOIN users u ON u.id = l.user_id
        ORDER BY cl.assigned_at DESC`
	var details []models.CourseLecturerDetail
	if err := r.db.SelectContext(ctx, &details, query); err != nil {
		return nil, fmt.Errorf("list course lecturers: %w", err)
	}
	return details, nil
}
