package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newStudentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestStudentRepositoryFindByRollNo(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "roll_no", "name", "email", "enrollment_no", "phone", "dob", "year", "department", "created_at", "updated_at"}).
		AddRow("stu-1", 5, "Asha Rao", "asha@example.com", "EN-2026-005", "", time.Time{}, 2, "Physics", time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, roll_no, name, email").
		WithArgs(5).
		WillReturnRows(rows)

	student, err := repo.FindByRollNo(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, 5, student.RollNo)
	require.Equal(t, "Asha Rao", student.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryExistsByRollNoAbsent(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("SELECT 1 FROM students").
		WithArgs(12).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err := repo.ExistsByRollNo(context.Background(), 12)
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByIDIn(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "roll_no", "name", "email", "enrollment_no", "phone", "dob", "year", "department", "created_at", "updated_at"}).
		AddRow("stu-1", 5, "Asha Rao", "asha@example.com", "EN-2026-005", "", time.Time{}, 2, "Physics", time.Now(), time.Now()).
		AddRow("stu-2", 9, "Dev Patel", "dev@example.com", "EN-2026-009", "", time.Time{}, 3, "Chemistry", time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, roll_no, name, email").
		WithArgs("stu-1", "stu-2").
		WillReturnRows(rows)

	students, err := repo.FindByIDIn(context.Background(), []string{"stu-1", "stu-2"})
	require.NoError(t, err)
	require.Len(t, students, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByIDInEmpty(t *testing.T) {
	db, _, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	students, err := repo.FindByIDIn(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, students)
}

func TestStudentRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("DELETE FROM students").
		WithArgs("stu-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := repo.Delete(context.Background(), "stu-1")
	require.NoError(t, err)
	require.True(t, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}
