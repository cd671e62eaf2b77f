// Package storage opens the relational database and Redis connections the
// login service depends on and owns the schema of the identity tables.
//
// Postgres is the production backend. A database URL starting with
// sqlite:// selects SQLite for local development and tests:
//
//	db, dialect, err := storage.OpenDB(ctx, storage.Config{DatabaseURL: "sqlite://multipass.db"})
//	err = storage.Migrate(ctx, db, dialect)
package storage
