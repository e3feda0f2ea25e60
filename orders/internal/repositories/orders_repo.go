package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"jobber/orders/internal/models"
	"jobber/pkg/db"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("order is not in the expected status")
)

// Schema is portable between postgres and sqlite.
const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	gig_id TEXT NOT NULL,
	seller_id TEXT NOT NULL,
	seller_username TEXT NOT NULL,
	seller_email TEXT NOT NULL,
	buyer_id TEXT NOT NULL,
	buyer_username TEXT NOT NULL,
	buyer_email TEXT NOT NULL,
	title TEXT NOT NULL,
	price DOUBLE PRECISION NOT NULL,
	service_fee DOUBLE PRECISION NOT NULL DEFAULT 0,
	requirements TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	delivery_days INTEGER NOT NULL,
	due_date TIMESTAMP NOT NULL,
	delivered_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS orders_buyer_idx ON orders (buyer_id);
CREATE INDEX IF NOT EXISTS orders_seller_idx ON orders (seller_id);
`

const orderColumns = `
	id, gig_id, seller_id, seller_username, seller_email,
	buyer_id, buyer_username, buyer_email, title, price, service_fee,
	requirements, status, delivery_days, due_date, delivered_at,
	created_at, updated_at`

// Migrate creates the orders table.
func Migrate(ctx context.Context, d *db.DB) error {
	return d.Migrate(ctx, Schema)
}

type OrderRepository struct {
	db *db.DB
}

func NewOrderRepository(db *db.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create assigns the id and timestamps and inserts the order.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	order.ID = uuid.NewString()
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now
	order.DueDate = now.AddDate(0, 0, order.DeliveryDays)

	query := r.db.Rebind(`
		INSERT INTO orders (id, gig_id, seller_id, seller_username, seller_email,
			buyer_id, buyer_username, buyer_email, title, price, service_fee,
			requirements, status, delivery_days, due_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		order.ID,
		order.GigID,
		order.SellerID,
		order.SellerUsername,
		order.SellerEmail,
		order.BuyerID,
		order.BuyerUsername,
		order.BuyerEmail,
		order.Title,
		order.Price,
		order.ServiceFee,
		order.Requirements,
		string(order.Status),
		order.DeliveryDays,
		order.DueDate,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	query := r.db.Rebind(`SELECT ` + orderColumns + ` FROM orders WHERE id = ?`)

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// GetByBuyerID returns the buyer's orders, newest first.
func (r *OrderRepository) GetByBuyerID(ctx context.Context, buyerID string) ([]models.Order, error) {
	return r.list(ctx, `WHERE buyer_id = ?`, buyerID)
}

// GetBySellerID returns the seller's orders, newest first.
func (r *OrderRepository) GetBySellerID(ctx context.Context, sellerID string) ([]models.Order, error) {
	return r.list(ctx, `WHERE seller_id = ?`, sellerID)
}

func (r *OrderRepository) list(ctx context.Context, where string, args ...any) ([]models.Order, error) {
	query := r.db.Rebind(`SELECT ` + orderColumns + ` FROM orders ` + where + ` ORDER BY created_at DESC`)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

// UpdateStatus moves an order from one of the allowed statuses to the next.
// It sets delivered_at when the new status is delivered.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, to models.OrderStatus, from ...models.OrderStatus) error {
	now := time.Now().UTC()

	args := []any{string(to), now}
	set := `status = ?, updated_at = ?`
	if to == models.OrderStatusDelivered {
		set += `, delivered_at = ?`
		args = append(args, now)
	}
	args = append(args, id)

	where := `id = ?`
	if len(from) > 0 {
		where += ` AND status IN (?` + strings.Repeat(", ?", len(from)-1) + `)`
		for _, s := range from {
			args = append(args, string(s))
		}
	}

	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE orders SET `+set+` WHERE `+where), args...)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	// nothing matched: either the order is missing or its status is wrong
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, current.Status)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*models.Order, error) {
	var (
		o           models.Order
		status      string
		deliveredAt sql.NullTime
	)
	err := row.Scan(
		&o.ID,
		&o.GigID,
		&o.SellerID,
		&o.SellerUsername,
		&o.SellerEmail,
		&o.BuyerID,
		&o.BuyerUsername,
		&o.BuyerEmail,
		&o.Title,
		&o.Price,
		&o.ServiceFee,
		&o.Requirements,
		&status,
		&o.DeliveryDays,
		&o.DueDate,
		&deliveredAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = models.OrderStatus(status)
	if deliveredAt.Valid {
		t := deliveredAt.Time
		o.DeliveredAt = &t
	}
	return &o, nil
}
