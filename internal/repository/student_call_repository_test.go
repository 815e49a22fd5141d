package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnroll(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentCallRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT capacity FROM calls WHERE id = $1 FOR UPDATE")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(10))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM student_calls WHERE student_id = $1 AND call_id = $2 LIMIT 1")).
		WithArgs("s1", "c1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM student_calls WHERE call_id = $1")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectExec("INSERT INTO student_calls").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	sc, err := repo.Enroll(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "s1", sc.StudentID)
	assert.Equal(t, "c1", sc.CallID)
	assert.NotEmpty(t, sc.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentCallRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT capacity FROM calls WHERE id = $1 FOR UPDATE")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(10))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM student_calls WHERE student_id = $1 AND call_id = $2 LIMIT 1")).
		WithArgs("s1", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectRollback()

	_, err := repo.Enroll(context.Background(), "s1", "c1")
	assert.ErrorIs(t, err, ErrAlreadyApplied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollCapacityReached(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentCallRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT capacity FROM calls WHERE id = $1 FOR UPDATE")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM student_calls WHERE student_id = $1 AND call_id = $2 LIMIT 1")).
		WithArgs("s1", "c1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM student_calls WHERE call_id = $1")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	_, err := repo.Enroll(context.Background(), "s1", "c1")
	assert.ErrorIs(t, err, ErrCallFull)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollUniqueBackstop(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentCallRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT capacity FROM calls WHERE id = $1 FOR UPDATE")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(10))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM student_calls WHERE student_id = $1 AND call_id = $2 LIMIT 1")).
		WithArgs("s1", "c1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM student_calls WHERE call_id = $1")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO student_calls").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err := repo.Enroll(context.Background(), "s1", "c1")
	assert.ErrorIs(t, err, ErrAlreadyApplied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentCallRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM student_calls WHERE student_id = $1 AND call_id = $2")).
		WithArgs("s1", "c1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Withdraw(context.Background(), "s1", "c1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkEnrollPartition(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentCallRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT capacity FROM calls WHERE id = $1 FOR UPDATE")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM student_calls WHERE call_id = $1")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT student_id FROM student_calls WHERE call_id = $1 AND student_id = ANY($2)")).
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}).AddRow("s1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM students WHERE id = ANY($1)")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).
			AddRow("s1").AddRow("s2").AddRow("s3").AddRow("s5"))
	mock.ExpectExec("INSERT INTO student_calls").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO student_calls").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	outcome, err := repo.BulkEnroll(context.Background(), "c1", []string{"s1", "s2", "s3", "s4", "s5"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s2", "s3"}, outcome.Admitted)
	assert.Equal(t, []string{"s1"}, outcome.AlreadyEnrolled)
	assert.Equal(t, []string{"s4"}, outcome.Unknown)
	assert.Equal(t, []string{"s5"}, outcome.OverCapacity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkWithdraw(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentCallRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM student_calls WHERE call_id = $1 AND student_id = ANY($2)")).
		WillReturnResult(sqlmock.NewResult(0, 2))

	removed, err := repo.BulkWithdraw(context.Background(), "c1", []string{"s1", "s2", "s9"})
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkWithdrawEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentCallRepository(db)

	removed, err := repo.BulkWithdraw(context.Background(), "c1", nil)
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentStatistics(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentCallRepository(db)

	rows := sqlmock.NewRows([]string{"total", "with_calls", "with_students", "students", "calls"}).
		AddRow(10, 4, 3, 6, 5)
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	stats, err := repo.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, stats.TotalRelationships)
	assert.Equal(t, 2, stats.StudentsWithoutCalls)
	assert.Equal(t, 2, stats.CallsWithoutStudents)
	assert.InDelta(t, 3.33, stats.AvgStudentsPerCall, 0.001)
	assert.InDelta(t, 2.5, stats.AvgCallsPerStudent, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}
