package db_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"boxoffice/db"
	"boxoffice/entity"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePurchaseAllocatesAndPrices(t *testing.T) {
	dbConn := setupDB(t)
	ctx := context.Background()
	tenantID := uuid.NewString()
	section := seedSection(t, dbConn, tenantID, 5, "20.00")

	purchase, err := newPurchaseRepo(dbConn, 10).Create(ctx, db.CreatePurchaseInput{
		UserID:   uuid.NewString(),
		TenantID: tenantID,
		Items: []db.PurchaseItem{
			{SectionID: section.ID, Quantity: 2},
		},
		Note: "birthday treat",
	})
	require.NoError(t, err)

	assert.Equal(t, entity.PurchaseStatusPending, purchase.Status)
	assert.Len(t, purchase.Allocations, 2)
	// 2 x (20.00 + 5% fee)
	assert.True(t, purchase.Total.Equal(decimal.RequireFromString("42.00")),
		"total was %s", purchase.Total)
	for _, a := range purchase.Allocations {
		assert.True(t, a.Unused)
		assert.True(t, a.Subtotal.Equal(decimal.RequireFromString("20.00")))
		assert.True(t, a.SystemFee.Equal(decimal.RequireFromString("1.00")))
	}

	available, err := db.NewTicketRepo(dbConn).CountAvailable(ctx, section.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, 3, available)
}

func TestCreatePurchaseRejectsBadInput(t *testing.T) {
	dbConn := setupDB(t)
	ctx := context.Background()
	repo := newPurchaseRepo(dbConn, 10)

	_, err := repo.Create(ctx, db.CreatePurchaseInput{
		UserID:   uuid.NewString(),
		TenantID: uuid.NewString(),
	})
	assert.ErrorIs(t, err, entity.ErrEmptyItems)

	_, err = repo.Create(ctx, db.CreatePurchaseInput{
		UserID:   uuid.NewString(),
		TenantID: uuid.NewString(),
		Items: []db.PurchaseItem{
			{SectionID: uuid.NewString(), Quantity: 0},
		},
	})
	assert.ErrorIs(t, err, entity.ErrInvalidQuantity)

	_, err = repo.Create(ctx, db.CreatePurchaseInput{
		UserID:   uuid.NewString(),
		TenantID: uuid.NewString(),
		Items: []db.PurchaseItem{
			{SectionID: uuid.NewString(), Quantity: 1},
		},
	})
	assert.ErrorIs(t, err, entity.ErrSectionNotFound)
}

func TestCreatePurchaseIsAllOrNothing(t *testing.T) {
	dbConn := setupDB(t)
	ctx := context.Background()
	tenantID := uuid.NewString()
	plenty := seedSection(t, dbConn, tenantID, 5, "20.00")
	scarce := seedSection(t, dbConn, tenantID, 2, "50.00")

	_, err := newPurchaseRepo(dbConn, 1000).Create(ctx, db.CreatePurchaseInput{
		UserID:   uuid.NewString(),
		TenantID: tenantID,
		Items: []db.PurchaseItem{
			{SectionID: plenty.ID, Quantity: 3},
			{SectionID: scarce.ID, Quantity: 100},
		},
	})

	var insufficient entity.InsufficientInventoryError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, scarce.ID, insufficient.SectionID)
	assert.Equal(t, 100, insufficient.Requested)
	assert.Equal(t, 2, insufficient.Available)

	// The rollback returned the claimable section's tickets too.
	available, err := db.NewTicketRepo(dbConn).CountAvailable(ctx, plenty.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, 5, available)
}

func TestCreatePurchaseNeverOversells(t *testing.T) {
	dbConn := setupDB(t)
	ctx := context.Background()
	tenantID := uuid.NewString()
	section := seedSection(t, dbConn, tenantID, 5, "10.00")
	repo := newPurchaseRepo(dbConn, 1000)

	const buyers = 10
	var wg sync.WaitGroup
	results := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Create(ctx, db.CreatePurchaseInput{
				UserID:   uuid.NewString(),
				TenantID: tenantID,
				Items: []db.PurchaseItem{
					{SectionID: section.ID, Quantity: 2},
				},
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var insufficient entity.InsufficientInventoryError
		require.ErrorAs(t, err, &insufficient)
	}

	// 5 tickets, 2 per buyer: at most 2 purchases can win, and every claimed
	// ticket must belong to a committed purchase.
	require.GreaterOrEqual(t, succeeded, 1)
	require.LessOrEqual(t, succeeded, 2)

	available, err := db.NewTicketRepo(dbConn).CountAvailable(ctx, section.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, 5-2*succeeded, available)
}

func TestCreatePurchaseEnforcesQuota(t *testing.T) {
	dbConn := setupDB(t)
	ctx := context.Background()
	tenantID := uuid.NewString()
	section := seedSection(t, dbConn, tenantID, 20, "10.00")
	repo := newPurchaseRepo(dbConn, 4)
	userID := uuid.NewString()

	_, err := repo.Create(ctx, db.CreatePurchaseInput{
		UserID:   userID,
		TenantID: tenantID,
		Items: []db.PurchaseItem{
			{SectionID: section.ID, Quantity: 4},
		},
	})
	require.NoError(t, err)

	_, err = repo.Create(ctx, db.CreatePurchaseInput{
		UserID:   userID,
		TenantID: tenantID,
		Items: []db.PurchaseItem{
			{SectionID: section.ID, Quantity: 1},
		},
	})
	var quota entity.QuotaExceededError
	require.ErrorAs(t, err, &quota)
	assert.Equal(t, section.EventID, quota.EventID)
	assert.Equal(t, 4, quota.Current)
	assert.Equal(t, 1, quota.Requested)

	// Another buyer is unaffected.
	_, err = repo.Create(ctx, db.CreatePurchaseInput{
		UserID:   uuid.NewString(),
		TenantID: tenantID,
		Items: []db.PurchaseItem{
			{SectionID: section.ID, Quantity: 4},
		},
	})
	require.NoError(t, err)

	held, err := repo.CountUserAllocations(ctx, userID, section.EventID)
	require.NoError(t, err)
	assert.Equal(t, 4, held)
}

func TestReleaseExpiredReclaimsTickets(t *testing.T) {
	dbConn := setupDB(t)
	ctx := context.Background()
	tenantID := uuid.NewString()
	section := seedSection(t, dbConn, tenantID, 3, "15.00")
	repo := newPurchaseRepo(dbConn, 10)

	purchase, err := repo.Create(ctx, db.CreatePurchaseInput{
		UserID:   uuid.NewString(),
		TenantID: tenantID,
		Items: []db.PurchaseItem{
			{SectionID: section.ID, Quantity: 2},
		},
	})
	require.NoError(t, err)

	released, err := repo.ReleaseExpired(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, released, 1)

	got, err := repo.Get(ctx, purchase.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, entity.PurchaseStatusCancelled, got.Status)

	available, err := db.NewTicketRepo(dbConn).CountAvailable(ctx, section.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, 3, available)
}

func TestReleaseExpiredSkipsPaidPurchases(t *testing.T) {
	dbConn := setupDB(t)
	ctx := context.Background()
	tenantID := uuid.NewString()
	section := seedSection(t, dbConn, tenantID, 2, "15.00")

	purchase := paidPurchase(t, dbConn, section, uuid.NewString(), 2)

	repo := newPurchaseRepo(dbConn, 10)
	_, err := repo.ReleaseExpired(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)

	got, err := repo.Get(ctx, purchase.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, entity.PurchaseStatusPaid, got.Status)
}
