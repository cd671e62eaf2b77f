package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// schema lists the identity and attendance tables. {{id}} expands to the
// dialect's auto-increment primary key.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS people (
		id {{id}},
		email TEXT NOT NULL DEFAULT '',
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		nick_name TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS user_logins (
		id {{id}},
		user_name TEXT NOT NULL UNIQUE,
		login_type TEXT NOT NULL,
		password TEXT,
		is_confirmed BOOLEAN,
		is_locked_out BOOLEAN,
		last_login_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		person_id BIGINT NOT NULL REFERENCES people(id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_logins_lower_name ON user_logins (LOWER(user_name))`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id {{id}},
		person_id BIGINT NOT NULL REFERENCES people(id),
		group_id BIGINT NOT NULL,
		campus_id BIGINT NOT NULL,
		schedule_id BIGINT NOT NULL,
		start_date_time TIMESTAMP NOT NULL,
		end_date_time TIMESTAMP,
		did_attend BOOLEAN NOT NULL
	)`,
}

func primaryKey(dialect Dialect) string {
	if dialect == DialectSQLite {
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	return "BIGSERIAL PRIMARY KEY"
}

// Migrate creates any missing tables and indexes. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	pk := primaryKey(dialect)
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, strings.ReplaceAll(stmt, "{{id}}", pk)); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
