package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := newPostgresStore(mock, "")
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	q := regexp.QuoteMeta(`SELECT value FROM "farmauth_session_kv" WHERE key = $1`)
	mock.ExpectQuery(q).
		WithArgs("farm_access_token", fixed).
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow("tok"))
	mock.ExpectQuery(q).
		WithArgs("missing", fixed).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(q).
		WithArgs("broken", fixed).
		WillReturnError(errors.New("conn reset"))

	ctx := context.Background()
	v, err := s.Get(ctx, "farm_access_token")
	require.NoError(t, err)
	assert.Equal(t, "tok", v)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Get(ctx, "broken")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetDelete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := newPostgresStore(mock, "session_kv")
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	exp := fixed.Add(time.Hour)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "session_kv"`)).
		WithArgs("k", "v", (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "session_kv"`)).
		WithArgs("k", "v2", &exp).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "session_kv" WHERE key = $1`)).
		WithArgs("k").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", "v", 0))
	require.NoError(t, s.Set(ctx, "k", "v2", time.Hour))
	require.NoError(t, s.Delete(ctx, "k"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := newPostgresStore(mock, "farmauth_session_kv")
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "farmauth_session_kv"`)).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "farmauth_session_kv"`)).
		WillReturnError(errors.New("permission denied"))

	require.NoError(t, s.Migrate(context.Background()))
	err = s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")

	require.NoError(t, mock.ExpectationsWereMet())
}
