package stores_test

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/keyshift/internal/stores"
	"github.com/systmms/keyshift/pkg/migrate"
)

func newPostgresStore(t *testing.T) (*stores.PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return stores.NewPostgresStore(db), mock
}

func TestPostgresStoreGet(t *testing.T) {
	t.Parallel()

	s, mock := newPostgresStore(t)

	mock.ExpectQuery(`SELECT record FROM sessions`).
		WithArgs("sid-p1").
		WillReturnRows(sqlmock.NewRows([]string{"record"}).
			AddRow([]byte(`{"authenticatedPrincipal":"user-3","cart":"items"}`)))

	got, err := s.Get(context.Background(), "sid-p1")
	require.NoError(t, err)
	assert.Equal(t, "user-3", got["authenticatedPrincipal"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetMissing(t *testing.T) {
	t.Parallel()

	s, mock := newPostgresStore(t)

	mock.ExpectQuery(`SELECT record FROM sessions`).
		WithArgs("absent").
		WillReturnRows(sqlmock.NewRows([]string{"record"}))

	_, err := s.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, migrate.ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSetUpserts(t *testing.T) {
	t.Parallel()

	s, mock := newPostgresStore(t)

	mock.ExpectExec(`INSERT INTO sessions .+ ON CONFLICT`).
		WithArgs("sid-p2", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Set(context.Background(), "sid-p2", migrate.Record{"k": "v"}, time.Hour)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreDestroy(t *testing.T) {
	t.Parallel()

	s, mock := newPostgresStore(t)

	mock.ExpectExec(`DELETE FROM sessions`).
		WithArgs("sid-p3").
		WillReturnResult(sqlmock.NewResult(0, 0))

	// Deleting an absent session is not an error.
	assert.NoError(t, s.Destroy(context.Background(), "sid-p3"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreTouch(t *testing.T) {
	t.Parallel()

	s, mock := newPostgresStore(t)

	mock.ExpectExec(`UPDATE sessions SET expires_at`).
		WithArgs("sid-p4", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Touch(context.Background(), "sid-p4", time.Hour))

	mock.ExpectExec(`UPDATE sessions SET expires_at`).
		WithArgs("absent", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.Touch(context.Background(), "absent", time.Hour), migrate.ErrSessionNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreRegenerate(t *testing.T) {
	t.Parallel()

	s, mock := newPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE sessions SET sid`).
		WithArgs("sid-old", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	newID, err := s.Regenerate(context.Background(), "sid-old")
	require.NoError(t, err)
	assert.NotEqual(t, "sid-old", newID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreRegenerateMissing(t *testing.T) {
	t.Parallel()

	s, mock := newPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE sessions SET sid`).
		WithArgs("absent", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := s.Regenerate(context.Background(), "absent")
	assert.ErrorIs(t, err, migrate.ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreEnsureSchema(t *testing.T) {
	t.Parallel()

	s, mock := newPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS sessions`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
