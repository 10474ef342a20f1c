package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"componentfinder/internal/ports"
)

// Claims implements ports.RefreshClaims on the refresh_claims table, so
// replicas sharing a database do not refresh the same component twice.
type Claims struct{ db *DB }

var _ ports.RefreshClaims = Claims{}

func (db *DB) Claims() Claims { return Claims{db: db} }

// Claim takes key unless a live claim holds it. An expired claim is taken over.
func (c Claims) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	var got string
	err := c.db.Pool.QueryRow(ctx, `
		INSERT INTO refresh_claims (key, expires_at)
		VALUES ($1, now() + $2::interval)
		ON CONFLICT (key) DO UPDATE SET expires_at = EXCLUDED.expires_at
		WHERE refresh_claims.expires_at < now()
		RETURNING key
	`, key, ttl).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c Claims) Release(ctx context.Context, key string) error {
	_, err := c.db.Pool.Exec(ctx, `DELETE FROM refresh_claims WHERE key = $1`, key)
	return err
}
