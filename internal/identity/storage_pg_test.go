package identity

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPGStorageSaveUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sess := Session{AccessToken: "at", RefreshToken: "rt", ExpiresAt: time.Unix(2000000000, 0).UTC()}
	mock.ExpectExec("INSERT INTO identity_sessions").
		WithArgs("tab-1", sqlmock.AnyArg(), sess.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, NewPGStorage(db).Save(context.Background(), "tab-1", sess))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStorageLoad(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	want := Session{AccessToken: "at", ExpiresAt: time.Unix(2000000000, 0).UTC(), UserID: "u1"}
	payload, err := json.Marshal(want)
	require.NoError(t, err)
	mock.ExpectQuery("SELECT payload FROM identity_sessions").
		WithArgs("tab-1").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	got, ok, err := NewPGStorage(db).Load(context.Background(), "tab-1")

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStorageLoadMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("SELECT payload FROM identity_sessions").
		WithArgs("tab-9").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	_, ok, err := NewPGStorage(db).Load(context.Background(), "tab-9")

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPGStorageDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("DELETE FROM identity_sessions").
		WithArgs("tab-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewPGStorage(db).Delete(context.Background(), "tab-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
