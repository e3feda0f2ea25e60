package repositories

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobber/pkg/db"
	"jobber/users/internal/models"
)

func newTestDB(t *testing.T) *db.DB {
	t.Helper()

	database, err := db.Open(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, Migrate(context.Background(), database))
	return database
}

func newSeller(t *testing.T, repo *SellerRepository, username string) *models.Seller {
	t.Helper()

	seller := &models.Seller{
		FullName: "Seller " + username,
		Username: username,
		Email:    username + "@example.com",
		Country:  "NL",
	}
	require.NoError(t, repo.Create(context.Background(), seller))
	return seller
}

func TestMigrateIsIdempotent(t *testing.T) {
	database := newTestDB(t)
	assert.NoError(t, Migrate(context.Background(), database))
}

func TestBuyerCreateSkipsExistingEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewBuyerRepository(newTestDB(t))

	first := &models.Buyer{Username: "manny", Email: "manny@example.com", Country: "UK"}
	created, err := repo.Create(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, first.ID)

	again := &models.Buyer{Username: "other", Email: "manny@example.com"}
	created, err = repo.Create(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)

	stored, err := repo.GetByEmail(ctx, "manny@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID)
	assert.Equal(t, "manny", stored.Username)
	assert.False(t, stored.IsSeller)
	assert.Empty(t, stored.PurchasedGigs)
}

func TestBuyerCreateKeepsGivenCreatedAt(t *testing.T) {
	ctx := context.Background()
	repo := NewBuyerRepository(newTestDB(t))

	createdAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	buyer := &models.Buyer{Username: "ana", Email: "ana@example.com", CreatedAt: createdAt}
	_, err := repo.Create(ctx, buyer)
	require.NoError(t, err)

	stored, err := repo.GetByUsername(ctx, "ana")
	require.NoError(t, err)
	assert.True(t, createdAt.Equal(stored.CreatedAt), "created_at = %v", stored.CreatedAt)
}

func TestBuyerLookupNotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewBuyerRepository(newTestDB(t))

	_, err := repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrBuyerNotFound)
	_, err = repo.GetByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, ErrBuyerNotFound)
	_, err = repo.GetByUsername(ctx, "missing")
	assert.ErrorIs(t, err, ErrBuyerNotFound)
}

func TestPurchasedGigsPushAndPull(t *testing.T) {
	ctx := context.Background()
	repo := NewBuyerRepository(newTestDB(t))

	buyer := &models.Buyer{Username: "bo", Email: "bo@example.com"}
	_, err := repo.Create(ctx, buyer)
	require.NoError(t, err)

	require.NoError(t, repo.AddPurchasedGig(ctx, buyer.ID, "gig-a"))
	require.NoError(t, repo.AddPurchasedGig(ctx, buyer.ID, "gig-b"))
	require.NoError(t, repo.AddPurchasedGig(ctx, buyer.ID, "gig-a"))

	gigs, err := repo.PurchasedGigs(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"gig-a", "gig-b", "gig-a"}, gigs)

	// removal pulls every occurrence
	require.NoError(t, repo.RemovePurchasedGig(ctx, buyer.ID, "gig-a"))
	stored, err := repo.GetByID(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"gig-b"}, stored.PurchasedGigs)

	// removing a gig that is not there is fine
	assert.NoError(t, repo.RemovePurchasedGig(ctx, buyer.ID, "gig-z"))
}

func TestPurchasedGigsKeepPurchaseOrder(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	repo := NewBuyerRepository(database)

	buyer := &models.Buyer{Username: "bo", Email: "bo@example.com"}
	_, err := repo.Create(ctx, buyer)
	require.NoError(t, err)

	want := []string{"gig-z", "gig-m", "gig-a", "gig-m"}
	for _, gig := range want {
		require.NoError(t, repo.AddPurchasedGig(ctx, buyer.ID, gig))
	}
	// same timestamp on every row, so only seq can order them
	_, err = database.ExecContext(ctx, database.Rebind(`UPDATE buyer_purchased_gigs SET added_at = ?`), time.Unix(0, 0).UTC())
	require.NoError(t, err)

	gigs, err := repo.PurchasedGigs(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, want, gigs)

	require.NoError(t, repo.RemovePurchasedGig(ctx, buyer.ID, "gig-m"))
	require.NoError(t, repo.AddPurchasedGig(ctx, buyer.ID, "gig-b"))
	gigs, err = repo.PurchasedGigs(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"gig-z", "gig-a", "gig-b"}, gigs)
}

func TestPurchasedGigsUnknownBuyer(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	repo := NewBuyerRepository(database)

	assert.ErrorIs(t, repo.AddPurchasedGig(ctx, "ghost", "gig-a"), ErrBuyerNotFound)
	assert.ErrorIs(t, repo.RemovePurchasedGig(ctx, "ghost", "gig-a"), ErrBuyerNotFound)

	var n int
	require.NoError(t, database.QueryRowContext(ctx, `SELECT COUNT(*) FROM buyer_purchased_gigs`).Scan(&n))
	assert.Zero(t, n, "aborted transaction must not leave rows behind")
}

func TestMarkAsSeller(t *testing.T) {
	ctx := context.Background()
	repo := NewBuyerRepository(newTestDB(t))

	_, err := repo.Create(ctx, &models.Buyer{Username: "cy", Email: "cy@example.com"})
	require.NoError(t, err)

	require.NoError(t, repo.MarkAsSeller(ctx, "cy@example.com"))
	stored, err := repo.GetByEmail(ctx, "cy@example.com")
	require.NoError(t, err)
	assert.True(t, stored.IsSeller)

	assert.ErrorIs(t, repo.MarkAsSeller(ctx, "nobody@example.com"), ErrBuyerNotFound)
}

func TestSellerCountersStartAtZero(t *testing.T) {
	ctx := context.Background()
	repo := NewSellerRepository(newTestDB(t))
	seller := newSeller(t, repo, "dora")

	stored, err := repo.GetByID(ctx, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, "dora", stored.Username)
	assert.Zero(t, stored.OngoingJobs)
	assert.Zero(t, stored.RatingsCount)
	assert.Nil(t, stored.RecentDelivery)
}

func TestSellerCreateRejectsDuplicateEmail(t *testing.T) {
	repo := NewSellerRepository(newTestDB(t))
	newSeller(t, repo, "ann")

	err := repo.Create(context.Background(), &models.Seller{FullName: "Other", Username: "other", Email: "ann@example.com"})
	assert.ErrorIs(t, err, ErrSellerExists)
}

func TestSellerUpdatesUnknownID(t *testing.T) {
	ctx := context.Background()
	repo := NewSellerRepository(newTestDB(t))

	tests := []struct {
		name string
		fn   func() error
	}{
		{"ongoing jobs", func() error { return repo.IncrementOngoingJobs(ctx, "ghost", 1) }},
		{"total gigs", func() error { return repo.IncrementTotalGigs(ctx, "ghost", 1) }},
		{"cancelled jobs", func() error { return repo.IncrementCancelledJobs(ctx, "ghost") }},
		{"approve", func() error { return repo.ApproveOrder(ctx, "ghost", models.ApprovedOrder{}) }},
		{"rating", func() error { return repo.AddRating(ctx, "ghost", 5) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			assert.ErrorIs(t, err, ErrSellerNotFound)
			assert.Contains(t, err.Error(), "ghost")
		})
	}

	_, err := repo.GetByID(ctx, "ghost")
	assert.ErrorIs(t, err, ErrSellerNotFound)
}

func TestSellerConcurrentIncrementsAreNotLost(t *testing.T) {
	ctx := context.Background()
	repo := NewSellerRepository(newTestDB(t))
	seller := newSeller(t, repo, "eve")

	const n = 40
	var wg sync.WaitGroup
	errs := make(chan error, 2*n)
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- repo.IncrementOngoingJobs(ctx, seller.ID, 1)
		}()
		go func() {
			defer wg.Done()
			errs <- repo.IncrementCancelledJobs(ctx, seller.ID)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := repo.GetByID(ctx, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, n, stored.OngoingJobs)
	assert.Equal(t, n, stored.CancelledJobs)
}

func TestSellerRandomSignedDeltasSumUp(t *testing.T) {
	ctx := context.Background()
	repo := NewSellerRepository(newTestDB(t))
	seller := newSeller(t, repo, "gus")

	rng := rand.New(rand.NewPCG(7, 11))

	type op struct {
		kind  int
		delta int
	}
	ops := make([]op, 200)
	var wantOngoing, wantGigs, wantCompleted, wantCancelled int
	var wantEarnings float64
	for i := range ops {
		ops[i] = op{kind: rng.IntN(4), delta: rng.IntN(11) - 5}
		switch ops[i].kind {
		case 0:
			wantOngoing += ops[i].delta
		case 1:
			wantGigs += ops[i].delta
		case 2:
			wantOngoing--
			wantCompleted++
			wantEarnings += float64(ops[i].delta + 5)
		case 3:
			wantCancelled++
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(ops))
	for _, o := range ops {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch o.kind {
			case 0:
				errs <- repo.IncrementOngoingJobs(ctx, seller.ID, o.delta)
			case 1:
				errs <- repo.IncrementTotalGigs(ctx, seller.ID, o.delta)
			case 2:
				errs <- repo.ApproveOrder(ctx, seller.ID, models.ApprovedOrder{
					OngoingJobs:   -1,
					CompletedJobs: 1,
					TotalEarnings: float64(o.delta + 5),
				})
			case 3:
				errs <- repo.IncrementCancelledJobs(ctx, seller.ID)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := repo.GetByID(ctx, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, wantOngoing, stored.OngoingJobs)
	assert.Equal(t, wantGigs, stored.TotalGigs)
	assert.Equal(t, wantCompleted, stored.CompletedJobs)
	assert.Equal(t, wantCancelled, stored.CancelledJobs)
	assert.Equal(t, wantEarnings, stored.TotalEarnings)
}

func TestSellerApproveOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewSellerRepository(newTestDB(t))
	seller := newSeller(t, repo, "fay")
	require.NoError(t, repo.IncrementOngoingJobs(ctx, seller.ID, 2))

	delivered := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	require.NoError(t, repo.ApproveOrder(ctx, seller.ID, models.ApprovedOrder{
		OngoingJobs:    -1,
		CompletedJobs:  1,
		TotalEarnings:  120.5,
		RecentDelivery: &delivered,
	}))

	// a missing delivery date keeps the stored one
	require.NoError(t, repo.ApproveOrder(ctx, seller.ID, models.ApprovedOrder{
		OngoingJobs:   -1,
		CompletedJobs: 1,
		TotalEarnings: 30,
	}))

	stored, err := repo.GetByID(ctx, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.OngoingJobs)
	assert.Equal(t, 2, stored.CompletedJobs)
	assert.InDelta(t, 150.5, stored.TotalEarnings, 1e-9)
	require.NotNil(t, stored.RecentDelivery)
	assert.True(t, delivered.Equal(*stored.RecentDelivery), "recent_delivery = %v", stored.RecentDelivery)
}

func TestSellerAddRatingUpdatesBucketAndTotals(t *testing.T) {
	ctx := context.Background()
	repo := NewSellerRepository(newTestDB(t))
	seller := newSeller(t, repo, "gus")

	for _, rating := range []int{5, 5, 3, 1} {
		require.NoError(t, repo.AddRating(ctx, seller.ID, rating))
	}

	stored, err := repo.GetByID(ctx, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.RatingsCount)
	assert.Equal(t, 14, stored.RatingSum)
	assert.Equal(t, models.RatingCategory{Value: 10, Count: 2}, stored.RatingCategories.Five)
	assert.Equal(t, models.RatingCategory{Value: 3, Count: 1}, stored.RatingCategories.Three)
	assert.Equal(t, models.RatingCategory{Value: 1, Count: 1}, stored.RatingCategories.One)
	assert.Zero(t, stored.RatingCategories.Two)
	assert.Zero(t, stored.RatingCategories.Four)
}

func TestSellerAddRatingRejectsOutOfRange(t *testing.T) {
	ctx := context.Background()
	repo := NewSellerRepository(newTestDB(t))
	seller := newSeller(t, repo, "hal")

	for _, rating := range []int{0, 6, -1} {
		assert.ErrorIs(t, repo.AddRating(ctx, seller.ID, rating), ErrInvalidRating)
	}

	stored, err := repo.GetByID(ctx, seller.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.RatingsCount)
}

func TestSellerRandom(t *testing.T) {
	ctx := context.Background()
	repo := NewSellerRepository(newTestDB(t))

	sellers, err := repo.Random(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, sellers)
	assert.NotNil(t, sellers)

	for _, name := range []string{"ivy", "jon", "kai", "lea"} {
		newSeller(t, repo, name)
	}

	sellers, err = repo.Random(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, sellers, 3)

	sellers, err = repo.Random(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, sellers, 4)
}
