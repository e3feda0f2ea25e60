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

// ratingBuckets maps a 1-5 star rating to its column prefix.
var ratingBuckets = [...]string{
	1: "rating_one",
	2: "rating_two",
	3: "rating_three",
	4: "rating_four",
	5: "rating_five",
}

// ErrInvalidRating is returned for ratings outside 1..5.
var ErrInvalidRating = errors.New("rating must be between 1 and 5")

const sellerColumns = `
	id, full_name, username, email, profile_picture, description, country,
	ratings_count, rating_sum,
	rating_one_value, rating_one_count, rating_two_value, rating_two_count,
	rating_three_value, rating_three_count, rating_four_value, rating_four_count,
	rating_five_value, rating_five_count,
	response_time, recent_delivery,
	ongoing_jobs, completed_jobs, cancelled_jobs, total_earnings, total_gigs,
	created_at, updated_at`

type SellerRepository struct {
	db *db.DB
}

func NewSellerRepository(db *db.DB) *SellerRepository {
	return &SellerRepository{db: db}
}

// Create inserts the seller. A clash on email returns ErrSellerExists.
func (r *SellerRepository) Create(ctx context.Context, seller *models.Seller) error {
	if seller.ID == "" {
		seller.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	seller.CreatedAt = now
	seller.UpdatedAt = now

	query := r.db.Rebind(`
		INSERT INTO sellers (id, full_name, username, email, profile_picture, description, country,
			response_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)

	res, err := r.db.ExecContext(ctx, query,
		seller.ID,
		seller.FullName,
		seller.Username,
		seller.Email,
		seller.ProfilePicture,
		seller.Description,
		seller.Country,
		seller.ResponseTime,
		seller.CreatedAt,
		seller.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert seller: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert seller: %w", err)
	}
	if n == 0 {
		return ErrSellerExists
	}
	return nil
}

func (r *SellerRepository) GetByID(ctx context.Context, id string) (*models.Seller, error) {
	query := r.db.Rebind(`SELECT ` + sellerColumns + ` FROM sellers WHERE id = ?`)

	seller, err := scanSeller(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSellerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get seller: %w", err)
	}
	return seller, nil
}

// Random returns up to count sellers in random order.
func (r *SellerRepository) Random(ctx context.Context, count int) ([]models.Seller, error) {
	query := r.db.Rebind(`SELECT ` + sellerColumns + ` FROM sellers ORDER BY RANDOM() LIMIT ?`)

	rows, err := r.db.QueryContext(ctx, query, count)
	if err != nil {
		return nil, fmt.Errorf("random sellers: %w", err)
	}
	defer rows.Close()

	sellers := []models.Seller{}
	for rows.Next() {
		seller, err := scanSeller(rows)
		if err != nil {
			return nil, fmt.Errorf("random sellers: %w", err)
		}
		sellers = append(sellers, *seller)
	}
	return sellers, rows.Err()
}

// IncrementOngoingJobs adds delta (which may be negative) to ongoing_jobs.
func (r *SellerRepository) IncrementOngoingJobs(ctx context.Context, id string, delta int) error {
	return r.update(ctx, id, `ongoing_jobs = ongoing_jobs + ?`, delta)
}

func (r *SellerRepository) IncrementTotalGigs(ctx context.Context, id string, delta int) error {
	return r.update(ctx, id, `total_gigs = total_gigs + ?`, delta)
}

func (r *SellerRepository) IncrementCancelledJobs(ctx context.Context, id string) error {
	return r.update(ctx, id, `cancelled_jobs = cancelled_jobs + 1`)
}

// ApproveOrder applies all counters of an approved order in one statement.
// A nil RecentDelivery keeps the stored date.
func (r *SellerRepository) ApproveOrder(ctx context.Context, id string, order models.ApprovedOrder) error {
	var recent any
	if order.RecentDelivery != nil {
		recent = order.RecentDelivery.UTC()
	}
	return r.update(ctx, id, `
			ongoing_jobs = ongoing_jobs + ?,
			completed_jobs = completed_jobs + ?,
			total_earnings = total_earnings + ?,
			recent_delivery = COALESCE(?, recent_delivery)`,
		order.OngoingJobs, order.CompletedJobs, order.TotalEarnings, recent)
}

// AddRating counts one review of the given rating into its bucket and the
// overall totals.
func (r *SellerRepository) AddRating(ctx context.Context, id string, rating int) error {
	if rating < 1 || rating >= len(ratingBuckets) {
		return fmt.Errorf("%w: got %d", ErrInvalidRating, rating)
	}
	bucket := ratingBuckets[rating]

	return r.update(ctx, id,
		bucket+`_value = `+bucket+`_value + ?, `+
			bucket+`_count = `+bucket+`_count + 1, `+
			`rating_sum = rating_sum + ?, ratings_count = ratings_count + 1`,
		rating, rating)
}

// update runs "UPDATE sellers SET <set>, updated_at = ? WHERE id = ?" as a
// single statement so concurrent handlers never lose an increment.
func (r *SellerRepository) update(ctx context.Context, id, set string, args ...any) error {
	query := r.db.Rebind(`UPDATE sellers SET ` + set + `, updated_at = ? WHERE id = ?`)
	args = append(args, time.Now().UTC(), id)
	if err := execOne(ctx, r.db, ErrSellerNotFound, query, args...); err != nil {
		if errors.Is(err, ErrSellerNotFound) {
			return fmt.Errorf("%w: %s", ErrSellerNotFound, id)
		}
		return fmt.Errorf("update seller: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSeller(row rowScanner) (*models.Seller, error) {
	var (
		s      models.Seller
		recent sql.NullTime
		rc     = &s.RatingCategories
	)
	err := row.Scan(
		&s.ID, &s.FullName, &s.Username, &s.Email, &s.ProfilePicture, &s.Description, &s.Country,
		&s.RatingsCount, &s.RatingSum,
		&rc.One.Value, &rc.One.Count, &rc.Two.Value, &rc.Two.Count,
		&rc.Three.Value, &rc.Three.Count, &rc.Four.Value, &rc.Four.Count,
		&rc.Five.Value, &rc.Five.Count,
		&s.ResponseTime, &recent,
		&s.OngoingJobs, &s.CompletedJobs, &s.CancelledJobs, &s.TotalEarnings, &s.TotalGigs,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if recent.Valid {
		t := recent.Time
		s.RecentDelivery = &t
	}
	return &s, nil
}
