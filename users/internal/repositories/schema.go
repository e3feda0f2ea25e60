package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"jobber/pkg/db"
)

var (
	ErrBuyerNotFound  = errors.New("buyer not found")
	ErrSellerNotFound = errors.New("seller not found")
	ErrSellerExists   = errors.New("seller already exists")
)

// Schema is portable between postgres and sqlite.
const Schema = `
CREATE TABLE IF NOT EXISTS buyers (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	profile_picture TEXT NOT NULL DEFAULT '',
	country TEXT NOT NULL DEFAULT '',
	is_seller BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS buyers_username_idx ON buyers (username);

CREATE TABLE IF NOT EXISTS buyer_purchased_gigs (
	buyer_id TEXT NOT NULL REFERENCES buyers (id) ON DELETE CASCADE,
	gig_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	added_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS buyer_purchased_gigs_buyer_idx ON buyer_purchased_gigs (buyer_id);

CREATE TABLE IF NOT EXISTS sellers (
	id TEXT PRIMARY KEY,
	full_name TEXT NOT NULL,
	username TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	profile_picture TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	country TEXT NOT NULL DEFAULT '',
	ratings_count INTEGER NOT NULL DEFAULT 0,
	rating_sum INTEGER NOT NULL DEFAULT 0,
	rating_one_value INTEGER NOT NULL DEFAULT 0,
	rating_one_count INTEGER NOT NULL DEFAULT 0,
	rating_two_value INTEGER NOT NULL DEFAULT 0,
	rating_two_count INTEGER NOT NULL DEFAULT 0,
	rating_three_value INTEGER NOT NULL DEFAULT 0,
	rating_three_count INTEGER NOT NULL DEFAULT 0,
	rating_four_value INTEGER NOT NULL DEFAULT 0,
	rating_four_count INTEGER NOT NULL DEFAULT 0,
	rating_five_value INTEGER NOT NULL DEFAULT 0,
	rating_five_count INTEGER NOT NULL DEFAULT 0,
	response_time INTEGER NOT NULL DEFAULT 0,
	recent_delivery TIMESTAMP,
	ongoing_jobs INTEGER NOT NULL DEFAULT 0,
	completed_jobs INTEGER NOT NULL DEFAULT 0,
	cancelled_jobs INTEGER NOT NULL DEFAULT 0,
	total_earnings DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_gigs INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS sellers_username_idx ON sellers (username);
`

// Migrate creates the users service tables.
func Migrate(ctx context.Context, d *db.DB) error {
	return d.Migrate(ctx, Schema)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// execOne runs an UPDATE/DELETE and reports notFound when no row matched.
func execOne(ctx context.Context, ex execer, notFound error, query string, args ...any) error {
	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
