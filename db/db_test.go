package db_test

import (
	"context"
	"os"
	"testing"

	"boxoffice/db"
	"boxoffice/entity"
	"boxoffice/fee"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sqlx.DB {
	t.Helper()

	url := os.Getenv("POSTGRES_URL")
	if url == "" {
		t.Skip("POSTGRES_URL not set")
	}

	dbConn, err := sqlx.Open("postgres", url)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = dbConn.Close()
	})

	require.NoError(t, db.CreateSchema(context.Background(), dbConn))

	return dbConn
}

func seedSection(t *testing.T, dbConn *sqlx.DB, tenantID string, tickets int, price string) entity.Section {
	t.Helper()

	section := entity.Section{
		ID:        uuid.NewString(),
		EventID:   uuid.NewString(),
		TenantID:  tenantID,
		Name:      "Stalls",
		UnitPrice: decimal.RequireFromString(price),
		Active:    true,
	}
	require.NoError(t, db.NewSectionRepo(dbConn).Add(context.Background(), section))

	_, err := db.NewTicketRepo(dbConn).AddBatch(context.Background(), section, tickets)
	require.NoError(t, err)

	return section
}

func newPurchaseRepo(dbConn *sqlx.DB, maxQuota int) db.PurchaseRepo {
	fees := fee.NewCalculator(decimal.NewFromFloat(0.05))
	return db.NewPurchaseRepo(dbConn, fees, maxQuota, watermill.NopLogger{})
}

// paidPurchase books tickets and walks the purchase through a completed
// checkout so redemption tests start from a paid state.
func paidPurchase(t *testing.T, dbConn *sqlx.DB, section entity.Section, userID string, quantity int) entity.Purchase {
	t.Helper()
	ctx := context.Background()

	purchase, err := newPurchaseRepo(dbConn, 100).Create(ctx, db.CreatePurchaseInput{
		UserID:   userID,
		TenantID: section.TenantID,
		Items: []db.PurchaseItem{
			{SectionID: section.ID, Quantity: quantity},
		},
	})
	require.NoError(t, err)

	payments := db.NewPaymentRepo(dbConn, watermill.NopLogger{})
	payment, err := payments.Add(ctx, purchase, "session-"+uuid.NewString(), "card")
	require.NoError(t, err)

	_, applied, err := payments.CompleteBySessionID(ctx, payment.SessionID, "intent-"+uuid.NewString())
	require.NoError(t, err)
	require.True(t, applied)

	purchase, err = newPurchaseRepo(dbConn, 100).Get(ctx, purchase.ID, section.TenantID)
	require.NoError(t, err)
	require.Equal(t, entity.PurchaseStatusPaid, purchase.Status)

	return purchase
}
