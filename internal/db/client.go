// Package db implements the relational persistence layer spec.md
// section 6 specifies at design level: users and wallets, including
// the reserved-wallet claim transition (spec.md section 9). The HARD
// CORE engine treats this package as an external collaborator; it
// exists here because a complete server needs it, built in the
// teacher's own db-package idiom (github.com/jackc/pgx/v5, thin
// per-table files, fmt.Errorf-wrapped SQL errors, pgx.ErrNoRows mapped
// to package-level sentinels or an ok=false result for not-found, and
// RETURNING-based conditional UPDATEs).
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a pgx connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// New opens a connection pool against dsn.
func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("db: failed to open connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db: failed to ping database: %w", err)
	}
	return &DB{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// QueryRow forwards to the underlying pool, letting callers Scan
// directly the way the teacher's own db-package files do.
func (db *DB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return db.pool.QueryRow(ctx, sql, args...)
}

// Exec forwards a statement to the underlying pool, used to apply
// Schema on boot and from other packages' integration tests.
func (db *DB) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := db.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("db: failed to execute statement: %w", err)
	}
	return nil
}

// Schema is the relational schema spec.md section 6 sketches at design
// level, applied verbatim by integration tests and by cmd/server on
// every boot (each statement is IF NOT EXISTS).
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id                 uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	external_id        text NOT NULL,
	platform_user_id   bigint,
	platform_username  text,
	display_name       text,
	created_at         timestamptz NOT NULL DEFAULT now(),
	updated_at         timestamptz NOT NULL DEFAULT now(),
	UNIQUE (platform_user_id)
);
CREATE UNIQUE INDEX IF NOT EXISTS users_platform_username_lower_idx
	ON users (LOWER(platform_username))
	WHERE platform_username IS NOT NULL;

CREATE TABLE IF NOT EXISTS wallets (
	id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id     uuid NOT NULL REFERENCES users (id),
	pubkey      text NOT NULL UNIQUE,
	key_handle  text NOT NULL,
	created_at  timestamptz NOT NULL DEFAULT now(),
	updated_at  timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS wallets_user_id_idx ON wallets (user_id);
`
