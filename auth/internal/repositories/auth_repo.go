package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"jobber/auth/internal/models"
	"jobber/pkg/db"
)

var (
	ErrUserNotFound = errors.New("auth user not found")
	ErrUserExists   = errors.New("auth user already exists")
)

const Schema = `
CREATE TABLE IF NOT EXISTS auth_users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password TEXT NOT NULL,
	profile_picture TEXT NOT NULL DEFAULT '',
	country TEXT NOT NULL DEFAULT '',
	email_verified BOOLEAN NOT NULL DEFAULT FALSE,
	email_verification_token TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS auth_users_verification_token_idx ON auth_users (email_verification_token);
`

const userColumns = `id, username, email, password, profile_picture, country,
	email_verified, email_verification_token, created_at, updated_at`

func Migrate(ctx context.Context, d *db.DB) error {
	return d.Migrate(ctx, Schema)
}

type AuthRepository struct {
	db *db.DB
}

func NewAuthRepository(db *db.DB) *AuthRepository {
	return &AuthRepository{db: db}
}

// Create inserts the user. A clash on username or email returns
// ErrUserExists.
func (r *AuthRepository) Create(ctx context.Context, user *models.AuthUser) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := r.db.Rebind(`
		INSERT INTO auth_users (id, username, email, password, profile_picture, country,
			email_verified, email_verification_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)

	res, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.Password,
		user.ProfilePicture,
		user.Country,
		user.EmailVerified,
		user.EmailVerificationToken,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert auth user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert auth user: %w", err)
	}
	if n == 0 {
		return ErrUserExists
	}
	return nil
}

// GetByUsernameOrEmail returns the first user matching either value.
func (r *AuthRepository) GetByUsernameOrEmail(ctx context.Context, username, email string) (*models.AuthUser, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM auth_users WHERE username = ? OR email = ? LIMIT 1`)
	return r.scanOne(r.db.QueryRowContext(ctx, query, username, email))
}

func (r *AuthRepository) GetByVerificationToken(ctx context.Context, token string) (*models.AuthUser, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM auth_users WHERE email_verification_token = ?`)
	return r.scanOne(r.db.QueryRowContext(ctx, query, token))
}

// MarkEmailVerified sets email_verified and clears the verification token.
func (r *AuthRepository) MarkEmailVerified(ctx context.Context, id string) error {
	query := r.db.Rebind(`
		UPDATE auth_users
		SET email_verified = ?, email_verification_token = '', updated_at = ?
		WHERE id = ?
	`)
	res, err := r.db.ExecContext(ctx, query, true, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *AuthRepository) scanOne(row *sql.Row) (*models.AuthUser, error) {
	var u models.AuthUser
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.Password,
		&u.ProfilePicture,
		&u.Country,
		&u.EmailVerified,
		&u.EmailVerificationToken,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get auth user: %w", err)
	}
	return &u, nil
}
