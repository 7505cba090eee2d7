package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// User is a custodied identity: either live (has a platform_user_id)
// or reserved (platform_username only, awaiting first login), per
// spec.md section 3's Wallet lifecycle and section 9's reserved-wallet
// design note.
type User struct {
	ID               uuid.UUID
	ExternalID       string
	PlatformUserID   *int64
	PlatformUsername *string
	DisplayName      *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ErrUserNotFound is returned by lookups that find no matching row.
var ErrUserNotFound = errors.New("db: user not found")

// GetUserByPlatformID looks up a live user by their platform numeric id.
func (db *DB) GetUserByPlatformID(ctx context.Context, platformUserID int64) (*User, error) {
	var u User
	err := db.QueryRow(ctx, `
		SELECT id, external_id, platform_user_id, platform_username, display_name, created_at, updated_at
		FROM users
		WHERE platform_user_id = $1
	`, platformUserID).Scan(
		&u.ID, &u.ExternalID, &u.PlatformUserID, &u.PlatformUsername, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("db: failed to get user by platform id: %w", err)
	}
	return &u, nil
}

// GetUserByUsername looks up a user (live or reserved) by
// case-insensitive platform username, used to resolve the
// transfer-by-username recipient (spec.md section 6:
// "/api/transfers/<recipient-by-username>").
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := db.QueryRow(ctx, `
		SELECT id, external_id, platform_user_id, platform_username, display_name, created_at, updated_at
		FROM users
		WHERE LOWER(platform_username) = LOWER($1)
	`, username).Scan(
		&u.ID, &u.ExternalID, &u.PlatformUserID, &u.PlatformUsername, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("db: failed to get user by username: %w", err)
	}
	return &u, nil
}

// CreateReservedUser pre-creates a user row for a platform username
// that has not yet authenticated (spec.md section 3: "pre-reserved
// under a platform username lacking a numeric id").
func (db *DB) CreateReservedUser(ctx context.Context, externalID, username string) (*User, error) {
	var u User
	err := db.QueryRow(ctx, `
		INSERT INTO users (external_id, platform_username)
		VALUES ($1, $2)
		RETURNING id, external_id, platform_user_id, platform_username, display_name, created_at, updated_at
	`, externalID, username).Scan(
		&u.ID, &u.ExternalID, &u.PlatformUserID, &u.PlatformUsername, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("db: failed to create reserved user: %w", err)
	}
	return &u, nil
}

// CreateLiveUser creates a brand-new live user, used when no reserved
// record exists under the platform username (or none was given).
func (db *DB) CreateLiveUser(ctx context.Context, externalID string, platformUserID int64, username, displayName string) (*User, error) {
	var u User
	err := db.QueryRow(ctx, `
		INSERT INTO users (external_id, platform_user_id, platform_username, display_name)
		VALUES ($1, $2, $3, $4)
		RETURNING id, external_id, platform_user_id, platform_username, display_name, created_at, updated_at
	`, externalID, platformUserID, nullableString(username), nullableString(displayName)).Scan(
		&u.ID, &u.ExternalID, &u.PlatformUserID, &u.PlatformUsername, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("db: failed to create live user: %w", err)
	}
	return &u, nil
}

// ClaimReservedUser converts a reserved record (platform_user_id IS
// NULL) into a live one by attaching platformUserID, but only if the
// username still matches case-insensitively and no other login beat
// this one to the claim (spec.md section 9: "Enforce with a conditional
// update keyed on platform_user_id IS NULL AND LOWER(platform_username)
// = LOWER($1)"). Returns (nil, false, nil) if no reserved row matched,
// letting the caller fall back to CreateLiveUser.
func (db *DB) ClaimReservedUser(ctx context.Context, username string, platformUserID int64, displayName string) (*User, bool, error) {
	var u User
	err := db.QueryRow(ctx, `
		UPDATE users
		SET platform_user_id = $1, display_name = COALESCE($2, display_name), updated_at = now()
		WHERE platform_user_id IS NULL AND LOWER(platform_username) = LOWER($3)
		RETURNING id, external_id, platform_user_id, platform_username, display_name, created_at, updated_at
	`, platformUserID, nullableString(displayName), username).Scan(
		&u.ID, &u.ExternalID, &u.PlatformUserID, &u.PlatformUsername, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("db: failed to claim reserved user: %w", err)
	}
	return &u, true, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
