package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/platinummonkey/multipass/pkg/sso"
)

// SQLStore is the identity store backed by Postgres or SQLite
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a store over db
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const lookupLoginQuery = `
	SELECT l.id, l.user_name, l.login_type, l.password, l.is_confirmed, l.is_locked_out,
		l.last_login_at, p.id, p.email, p.first_name, p.last_name, p.nick_name
	FROM user_logins l
	JOIN people p ON p.id = l.person_id
	WHERE LOWER(l.user_name) = LOWER($1)`

// LookupLogin returns the login for username. Usernames are matched case
// insensitively.
func (s *SQLStore) LookupLogin(ctx context.Context, username string) (*Login, error) {
	var (
		login     Login
		password  sql.NullString
		confirmed sql.NullBool
		locked    sql.NullBool
		lastLogin sql.NullTime
		nickName  sql.NullString
	)

	err := s.db.QueryRowContext(ctx, lookupLoginQuery, username).Scan(
		&login.ID, &login.Username, &login.LoginType, &password, &confirmed, &locked,
		&lastLogin, &login.Person.ID, &login.Person.Email, &login.Person.FirstName,
		&login.Person.LastName, &nickName)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up login: %w", err)
	}

	login.Password = password.String
	login.Person.NickName = nickName.String
	if confirmed.Valid {
		login.Confirmed = &confirmed.Bool
	}
	if locked.Valid {
		login.LockedOut = &locked.Bool
	}
	if lastLogin.Valid {
		login.LastLoginAt = &lastLogin.Time
	}
	return &login, nil
}

// RecordLastLogin sets last_login_at for username
func (s *SQLStore) RecordLastLogin(ctx context.Context, username string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_logins SET last_login_at = $1 WHERE LOWER(user_name) = LOWER($2)`,
		at.UTC(), username)
	if err != nil {
		return fmt.Errorf("failed to record last login: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoteUsername is the login name created for a remote provider's user
func RemoteUsername(provider, externalID string) string {
	return strings.ToUpper(provider) + "_" + externalID
}

// ProvisionRemoteLogin returns the login name for a user vouched for by a
// remote provider, creating the person and login on first sight.
func (s *SQLStore) ProvisionRemoteLogin(ctx context.Context, user *sso.RemoteUser) (string, error) {
	if user == nil || user.ExternalID == "" {
		return "", fmt.Errorf("remote user has no external id")
	}
	username := RemoteUsername(user.ProviderName, user.ExternalID)

	var existing int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM user_logins WHERE LOWER(user_name) = LOWER($1)`, username).Scan(&existing)
	if err == nil {
		return username, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to check remote login: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	personID, err := findOrCreatePerson(ctx, tx, user)
	if err != nil {
		return "", err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_logins (user_name, login_type, person_id, is_confirmed, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		username, strings.ToLower(user.ProviderName), personID, true, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return username, nil
		}
		return "", fmt.Errorf("failed to create remote login: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return username, nil
}

// findOrCreatePerson matches an existing person on email and name before
// creating a new one
func findOrCreatePerson(ctx context.Context, tx *sql.Tx, user *sso.RemoteUser) (int64, error) {
	var personID int64
	if user.Email != "" {
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM people
			WHERE LOWER(email) = LOWER($1) AND LOWER(first_name) = LOWER($2) AND LOWER(last_name) = LOWER($3)
			ORDER BY id LIMIT 1`,
			user.Email, user.FirstName, user.LastName).Scan(&personID)
		if err == nil {
			return personID, nil
		}
		if err != sql.ErrNoRows {
			return 0, fmt.Errorf("failed to match person: %w", err)
		}
	}

	err := tx.QueryRowContext(ctx, `
		INSERT INTO people (email, first_name, last_name, nick_name)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		user.Email, user.FirstName, user.LastName, user.FirstName).Scan(&personID)
	if err != nil {
		return 0, fmt.Errorf("failed to create person: %w", err)
	}
	return personID, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// NewDatabaseLogin describes a local password login to create
type NewDatabaseLogin struct {
	Username  string
	Password  string
	Confirmed bool
	Person    Person
}

// CreateDatabaseLogin stores a person and a bcrypt protected login for
// them. It returns ErrDuplicateLogin when the username is taken.
func (s *SQLStore) CreateDatabaseLogin(ctx context.Context, in NewDatabaseLogin) (int64, error) {
	if strings.TrimSpace(in.Username) == "" {
		return 0, fmt.Errorf("username is required")
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var personID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO people (email, first_name, last_name, nick_name)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		in.Person.Email, in.Person.FirstName, in.Person.LastName, in.Person.NickName).Scan(&personID)
	if err != nil {
		return 0, fmt.Errorf("failed to create person: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_logins (user_name, login_type, password, person_id, is_confirmed, is_locked_out, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		in.Username, LoginTypeDatabase, hash, personID, in.Confirmed, false, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateLogin
		}
		return 0, fmt.Errorf("failed to create login: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return personID, nil
}
