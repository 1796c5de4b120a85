package postgres

import (
	"context"
	"database/sql"
	"testing"

	"tender_dashboard/internal/models/user"
	"tender_dashboard/internal/session"
	"tender_dashboard/internal/storage"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectPrepare("CREATE TABLE IF NOT EXISTS dashboardSession").
		ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectPrepare("CREATE TABLE IF NOT EXISTS comparisonRemark").
		ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))

	s, err := NewWithDB(db)
	require.NoError(t, err)
	return s, mock
}

func TestGetSession(t *testing.T) {
	s, mock := setupStorage(t)
	ctx := context.Background()

	mock.ExpectPrepare("SELECT token, role, email FROM dashboardSession").
		ExpectQuery().
		WithArgs("sid").
		WillReturnRows(sqlmock.NewRows([]string{"token", "role", "email"}).AddRow("tok", "emp", "a@b.io"))

	st, err := s.GetSession(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, session.State{Token: "tok", Role: user.RoleEmployee, Email: "a@b.io"}, st)

	mock.ExpectPrepare("SELECT token, role, email FROM dashboardSession").
		ExpectQuery().
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err = s.GetSession(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAndDeleteSession(t *testing.T) {
	s, mock := setupStorage(t)
	ctx := context.Background()

	mock.ExpectPrepare("INSERT INTO dashboardSession").
		ExpectExec().
		WithArgs("sid", "tok", "admin", "a@b.io").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.SaveSession(ctx, "sid", session.State{Token: "tok", Role: user.RoleAdmin, Email: "a@b.io"}))

	mock.ExpectPrepare("DELETE FROM dashboardSession").
		ExpectExec().
		WithArgs("sid").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectPrepare("DELETE FROM dashboardSession").
		ExpectExec().
		WithArgs("sid").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.DeleteSession(ctx, "sid"))
	require.ErrorIs(t, s.DeleteSession(ctx, "sid"), storage.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRemarks(t *testing.T) {
	s, mock := setupStorage(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM comparisonRemark").
		WithArgs("a@b.io").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO comparisonRemark").
		WithArgs("a@b.io", "tender_value", "cheapest").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.SaveRemarks(ctx, "a@b.io", map[string]string{"tender_value": "cheapest", "location": ""})
	require.NoError(t, err)

	mock.ExpectPrepare("SELECT aspect, remark FROM comparisonRemark").
		ExpectQuery().
		WithArgs("a@b.io").
		WillReturnRows(sqlmock.NewRows([]string{"aspect", "remark"}).AddRow("tender_value", "cheapest"))

	got, err := s.GetRemarks(ctx, "a@b.io")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"tender_value": "cheapest"}, got)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRemarks_RollsBackOnError(t *testing.T) {
	s, mock := setupStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM comparisonRemark").
		WithArgs("a@b.io").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := s.SaveRemarks(context.Background(), "a@b.io", map[string]string{"x": "y"})
	require.ErrorIs(t, err, sql.ErrConnDone)
	require.NoError(t, mock.ExpectationsWereMet())
}
