package identity

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/multipass/pkg/sso"
	"github.com/platinummonkey/multipass/pkg/storage"
)

func newSQLiteStore(t *testing.T) (*SQLStore, *sql.DB) {
	t.Helper()
	ctx := context.Background()

	cfg := storage.DefaultConfig()
	cfg.DatabaseURL = "sqlite://" + filepath.Join(t.TempDir(), "identity.db")
	db, dialect, err := storage.OpenDB(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.Migrate(ctx, db, dialect))

	return NewSQLStore(db), db
}

func TestSQLStore_CreateAndLookup(t *testing.T) {
	store, _ := newSQLiteStore(t)
	ctx := context.Background()

	personID, err := store.CreateDatabaseLogin(ctx, NewDatabaseLogin{
		Username:  "TDecker",
		Password:  "hunter2",
		Confirmed: true,
		Person:    Person{Email: "ted@example.com", FirstName: "Theodore", LastName: "Decker", NickName: "Ted"},
	})
	require.NoError(t, err)
	assert.NotZero(t, personID)

	login, err := store.LookupLogin(ctx, "tdecker")
	require.NoError(t, err)
	assert.Equal(t, "TDecker", login.Username)
	assert.Equal(t, LoginTypeDatabase, login.LoginType)
	assert.True(t, login.IsConfirmed())
	assert.False(t, login.IsLockedOut())
	assert.Nil(t, login.LastLoginAt)
	assert.Equal(t, personID, login.Person.ID)
	assert.Equal(t, "Ted", login.Identity().PreferredName())
	assert.True(t, NewBcryptMechanism(true).Verify(login, "hunter2"))

	_, err = store.CreateDatabaseLogin(ctx, NewDatabaseLogin{Username: "TDecker", Password: "x"})
	assert.ErrorIs(t, err, ErrDuplicateLogin)
}

func TestSQLStore_LookupMissing(t *testing.T) {
	store, _ := newSQLiteStore(t)
	_, err := store.LookupLogin(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStore_RecordLastLogin(t *testing.T) {
	store, _ := newSQLiteStore(t)
	ctx := context.Background()

	_, err := store.CreateDatabaseLogin(ctx, NewDatabaseLogin{Username: "ted", Password: "pw", Confirmed: true})
	require.NoError(t, err)

	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, store.RecordLastLogin(ctx, "TED", at))

	login, err := store.LookupLogin(ctx, "ted")
	require.NoError(t, err)
	require.NotNil(t, login.LastLoginAt)
	assert.True(t, at.Equal(*login.LastLoginAt))

	assert.ErrorIs(t, store.RecordLastLogin(ctx, "ghost", at), ErrNotFound)
}

func TestSQLStore_ProvisionRemoteLogin(t *testing.T) {
	store, db := newSQLiteStore(t)
	ctx := context.Background()

	user := &sso.RemoteUser{
		ExternalID:   "1234567890",
		Email:        "ann@example.com",
		FirstName:    "Ann",
		LastName:     "Smith",
		ProviderName: "Google",
	}

	username, err := store.ProvisionRemoteLogin(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "GOOGLE_1234567890", username)

	again, err := store.ProvisionRemoteLogin(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, username, again)

	// A second provider for the same person reuses the person row.
	fb := *user
	fb.ProviderName = "facebook"
	fb.ExternalID = "42"
	fbUsername, err := store.ProvisionRemoteLogin(ctx, &fb)
	require.NoError(t, err)
	assert.Equal(t, "FACEBOOK_42", fbUsername)

	var people int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM people`).Scan(&people))
	assert.Equal(t, 1, people)

	login, err := store.LookupLogin(ctx, username)
	require.NoError(t, err)
	assert.Equal(t, "google", login.LoginType)
	assert.True(t, login.IsConfirmed())
	assert.Equal(t, "Ann", login.Person.NickName)

	_, err = store.ProvisionRemoteLogin(ctx, &sso.RemoteUser{ProviderName: "google"})
	assert.Error(t, err)
}

func TestSQLStore_LookupQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("connection reset")
	mock.ExpectQuery("SELECT l.id, l.user_name").WithArgs("ted").WillReturnError(boom)

	_, err = NewSQLStore(db).LookupLogin(context.Background(), "ted")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_LookupNullableColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"id", "user_name", "login_type", "password", "is_confirmed", "is_locked_out",
		"last_login_at", "person_id", "email", "first_name", "last_name", "nick_name",
	}).AddRow(7, "ted", "database", nil, nil, true, nil, 3, "t@example.com", "Ted", "D", nil)
	mock.ExpectQuery("SELECT l.id, l.user_name").WithArgs("ted").WillReturnRows(rows)

	login, err := NewSQLStore(db).LookupLogin(context.Background(), "ted")
	require.NoError(t, err)
	assert.Nil(t, login.Confirmed)
	assert.True(t, login.IsConfirmed())
	assert.True(t, login.IsLockedOut())
	assert.Empty(t, login.Password)
	assert.Equal(t, "Ted", login.Identity().PreferredName())
}

func TestSQLStore_ProvisionRaceReturnsExistingLogin(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id FROM user_logins").WithArgs("OKTA_abc").WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM people").
		WithArgs("a@b.com", "A", "B").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectExec("INSERT INTO user_logins").
		WithArgs("OKTA_abc", "okta", int64(9), true, sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	username, err := NewSQLStore(db).ProvisionRemoteLogin(context.Background(), &sso.RemoteUser{
		ExternalID: "abc", Email: "a@b.com", FirstName: "A", LastName: "B", ProviderName: "Okta",
	})
	require.NoError(t, err)
	assert.Equal(t, "OKTA_abc", username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoteUsername(t *testing.T) {
	assert.Equal(t, "AZUREAD_x1", RemoteUsername("azuread", "x1"))
}
