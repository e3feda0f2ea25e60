package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"jobber/pkg/db"
	"jobber/users/internal/models"
)

type BuyerRepository struct {
	db *db.DB
}

func NewBuyerRepository(db *db.DB) *BuyerRepository {
	return &BuyerRepository{db: db}
}

// Create inserts the buyer unless one with the same email exists. It reports
// whether a row was inserted, so a redelivered message is a no-op.
func (r *BuyerRepository) Create(ctx context.Context, buyer *models.Buyer) (bool, error) {
	if buyer.ID == "" {
		buyer.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if buyer.CreatedAt.IsZero() {
		buyer.CreatedAt = now
	}
	buyer.UpdatedAt = now

	query := r.db.Rebind(`
		INSERT INTO buyers (id, username, email, profile_picture, country, is_seller, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (email) DO NOTHING
	`)

	res, err := r.db.ExecContext(ctx, query,
		buyer.ID,
		buyer.Username,
		buyer.Email,
		buyer.ProfilePicture,
		buyer.Country,
		buyer.IsSeller,
		buyer.CreatedAt,
		buyer.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert buyer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert buyer: %w", err)
	}
	return n > 0, nil
}

func (r *BuyerRepository) GetByID(ctx context.Context, id string) (*models.Buyer, error) {
	return r.getOne(ctx, "id", id)
}

func (r *BuyerRepository) GetByEmail(ctx context.Context, email string) (*models.Buyer, error) {
	return r.getOne(ctx, "email", email)
}

func (r *BuyerRepository) GetByUsername(ctx context.Context, username string) (*models.Buyer, error) {
	return r.getOne(ctx, "username", username)
}

// getOne loads a buyer by one of the columns above; column never comes from
// input.
func (r *BuyerRepository) getOne(ctx context.Context, column, value string) (*models.Buyer, error) {
	query := r.db.Rebind(`
		SELECT id, username, email, profile_picture, country, is_seller, created_at, updated_at
		FROM buyers
		WHERE ` + column + ` = ?
	`)

	var buyer models.Buyer
	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&buyer.ID,
		&buyer.Username,
		&buyer.Email,
		&buyer.ProfilePicture,
		&buyer.Country,
		&buyer.IsSeller,
		&buyer.CreatedAt,
		&buyer.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBuyerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get buyer by %s: %w", column, err)
	}

	gigs, err := r.PurchasedGigs(ctx, buyer.ID)
	if err != nil {
		return nil, err
	}
	buyer.PurchasedGigs = gigs
	return &buyer, nil
}

// PurchasedGigs returns the buyer's gig ids in purchase order. A gig bought
// twice is listed twice.
func (r *BuyerRepository) PurchasedGigs(ctx context.Context, buyerID string) ([]string, error) {
	query := r.db.Rebind(`
		SELECT gig_id
		FROM buyer_purchased_gigs
		WHERE buyer_id = ?
		ORDER BY seq
	`)

	rows, err := r.db.QueryContext(ctx, query, buyerID)
	if err != nil {
		return nil, fmt.Errorf("purchased gigs: %w", err)
	}
	defer rows.Close()

	gigs := []string{}
	for rows.Next() {
		var gigID string
		if err := rows.Scan(&gigID); err != nil {
			return nil, fmt.Errorf("purchased gigs: %w", err)
		}
		gigs = append(gigs, gigID)
	}
	return gigs, rows.Err()
}

// AddPurchasedGig appends gigID to the buyer's purchased gigs. seq is
// per buyer; the buyer row touched by withBuyer serializes concurrent appends.
func (r *BuyerRepository) AddPurchasedGig(ctx context.Context, buyerID, gigID string) error {
	return r.withBuyer(ctx, buyerID, func(tx *sql.Tx, now time.Time) error {
		var last int
		err := tx.QueryRowContext(ctx, r.db.Rebind(`
			SELECT COALESCE(MAX(seq), 0)
			FROM buyer_purchased_gigs
			WHERE buyer_id = ?
		`), buyerID).Scan(&last)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, r.db.Rebind(`
			INSERT INTO buyer_purchased_gigs (buyer_id, gig_id, seq, added_at)
			VALUES (?, ?, ?, ?)
		`), buyerID, gigID, last+1, now)
		return err
	})
}

// RemovePurchasedGig removes every occurrence of gigID.
func (r *BuyerRepository) RemovePurchasedGig(ctx context.Context, buyerID, gigID string) error {
	return r.withBuyer(ctx, buyerID, func(tx *sql.Tx, _ time.Time) error {
		_, err := tx.ExecContext(ctx, r.db.Rebind(`
			DELETE FROM buyer_purchased_gigs
			WHERE buyer_id = ? AND gig_id = ?
		`), buyerID, gigID)
		return err
	})
}

// MarkAsSeller flips is_seller for the buyer with the given email.
func (r *BuyerRepository) MarkAsSeller(ctx context.Context, email string) error {
	query := r.db.Rebind(`
		UPDATE buyers
		SET is_seller = ?, updated_at = ?
		WHERE email = ?
	`)
	return execOne(ctx, r.db, ErrBuyerNotFound, query, true, time.Now().UTC(), email)
}

// withBuyer touches the buyer row and runs fn in the same transaction. A
// missing buyer aborts with ErrBuyerNotFound.
func (r *BuyerRepository) withBuyer(ctx context.Context, buyerID string, fn func(tx *sql.Tx, now time.Time) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	touch := r.db.Rebind(`UPDATE buyers SET updated_at = ? WHERE id = ?`)
	if err := execOne(ctx, tx, ErrBuyerNotFound, touch, now, buyerID); err != nil {
		return err
	}
	if err := fn(tx, now); err != nil {
		return fmt.Errorf("purchased gigs: %w", err)
	}
	return tx.Commit()
}
