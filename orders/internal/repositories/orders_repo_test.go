package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobber/orders/internal/models"
	"jobber/pkg/db"
)

func newRepo(t *testing.T) *OrderRepository {
	t.Helper()
	ctx := context.Background()

	database, err := db.Open(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, Migrate(ctx, database))
	require.NoError(t, Migrate(ctx, database))
	return NewOrderRepository(database)
}

func newOrder(buyerID, sellerID string) *models.Order {
	return &models.Order{
		GigID:          "gig-1",
		SellerID:       sellerID,
		SellerUsername: "Eve",
		SellerEmail:    "eve@test.com",
		BuyerID:        buyerID,
		BuyerUsername:  "Bo",
		BuyerEmail:     "bo@test.com",
		Title:          "Logo design",
		Price:          20,
		ServiceFee:     1.5,
		Status:         models.OrderStatusInProgress,
		DeliveryDays:   3,
	}
}

func TestCreateAndGet(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	order := newOrder("buyer-1", "seller-1")
	require.NoError(t, repo.Create(ctx, order))
	require.NotEmpty(t, order.ID)
	assert.WithinDuration(t, order.CreatedAt.AddDate(0, 0, 3), order.DueDate, time.Second)

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Logo design", got.Title)
	assert.Equal(t, 21.5, got.Total())
	assert.Equal(t, models.OrderStatusInProgress, got.Status)
	assert.Nil(t, got.DeliveredAt)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestListByBuyerAndSeller(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newOrder("buyer-1", "seller-1")))
	require.NoError(t, repo.Create(ctx, newOrder("buyer-1", "seller-2")))
	require.NoError(t, repo.Create(ctx, newOrder("buyer-2", "seller-2")))

	orders, err := repo.GetByBuyerID(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	orders, err = repo.GetBySellerID(ctx, "seller-2")
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	orders, err = repo.GetByBuyerID(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}

func TestUpdateStatus(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	order := newOrder("buyer-1", "seller-1")
	require.NoError(t, repo.Create(ctx, order))

	err := repo.UpdateStatus(ctx, order.ID, models.OrderStatusCompleted, models.OrderStatusDelivered)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorContains(t, err, "in-progress")

	require.NoError(t, repo.UpdateStatus(ctx, order.ID, models.OrderStatusDelivered, models.OrderStatusInProgress))
	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, got.Status)
	require.NotNil(t, got.DeliveredAt)

	require.NoError(t, repo.UpdateStatus(ctx, order.ID, models.OrderStatusCompleted, models.OrderStatusDelivered))
	err = repo.UpdateStatus(ctx, order.ID, models.OrderStatusCancelled,
		models.OrderStatusInProgress, models.OrderStatusDelivered)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	err = repo.UpdateStatus(ctx, "missing", models.OrderStatusDelivered)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
