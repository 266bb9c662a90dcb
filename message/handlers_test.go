package message

import (
	"context"
	"testing"
	"time"

	"boxoffice/entity"
	"boxoffice/event"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAuditAppender struct {
	records []entity.AuditRecord
}

func (m *mockAuditAppender) Append(_ context.Context, record entity.AuditRecord) error {
	m.records = append(m.records, record)
	return nil
}

type mockConfirmationSender struct {
	purchaseIDs []string
	amounts     []string
}

func (m *mockConfirmationSender) SendPaymentConfirmation(_ context.Context, purchaseID, amount string) error {
	m.purchaseIDs = append(m.purchaseIDs, purchaseID)
	m.amounts = append(m.amounts, amount)
	return nil
}

type mockRedemptionNotary struct {
	receipts []entity.RedemptionReceipt
}

func (m *mockRedemptionNotary) NotarizeRedemption(_ context.Context, receipt entity.RedemptionReceipt) error {
	m.receipts = append(m.receipts, receipt)
	return nil
}

func TestAuditHandlersBuildRecords(t *testing.T) {
	ctx := context.Background()

	t.Run("purchase created", func(t *testing.T) {
		appender := &mockAuditAppender{}
		err := handleAuditPurchaseCreated(appender)(ctx, &event.PurchaseCreated{
			PurchaseID: "purchase-1",
			UserID:     "user-1",
			TenantID:   "tenant-1",
		})
		require.NoError(t, err)

		require.Len(t, appender.records, 1)
		record := appender.records[0]
		assert.Equal(t, "purchase.create", record.ActionKind)
		assert.Equal(t, "purchase", record.EntityKind)
		assert.Equal(t, "purchase-1", record.EntityID)
		assert.Equal(t, "user-1", record.ActorUserID)
		assert.Equal(t, "pending", record.NewState)
	})

	t.Run("payment completed", func(t *testing.T) {
		appender := &mockAuditAppender{}
		err := handleAuditPaymentCompleted(appender)(ctx, &event.PaymentCompleted{
			PaymentID:  "payment-1",
			PurchaseID: "purchase-1",
			UserID:     "user-1",
			TenantID:   "tenant-1",
		})
		require.NoError(t, err)

		require.Len(t, appender.records, 1)
		record := appender.records[0]
		assert.Equal(t, "payment.complete", record.ActionKind)
		assert.Equal(t, "pending", record.OldState)
		assert.Equal(t, "completed", record.NewState)
	})

	t.Run("ticket redeemed", func(t *testing.T) {
		appender := &mockAuditAppender{}
		err := handleAuditTicketRedeemed(appender)(ctx, &event.TicketRedeemed{
			AllocationID: "allocation-1",
			TenantID:     "tenant-1",
			ValidatorID:  "gate-7",
		})
		require.NoError(t, err)

		require.Len(t, appender.records, 1)
		record := appender.records[0]
		assert.Equal(t, "allocation.redeem", record.ActionKind)
		assert.Equal(t, "ticket_allocation", record.EntityKind)
		assert.Equal(t, "gate-7", record.ActorUserID)
		assert.Equal(t, "issued", record.OldState)
		assert.Equal(t, "redeemed", record.NewState)
	})
}

func TestSendPaymentConfirmation(t *testing.T) {
	sender := &mockConfirmationSender{}
	err := handleSendPaymentConfirmation(sender)(context.Background(), &event.PaymentCompleted{
		PurchaseID: "purchase-1",
		Amount:     "42.00",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"purchase-1"}, sender.purchaseIDs)
	assert.Equal(t, []string{"42.00"}, sender.amounts)
}

func TestNotarizeRedemption(t *testing.T) {
	notary := &mockRedemptionNotary{}
	validatedAt := time.Now().UTC()
	err := handleNotarizeRedemption(notary)(context.Background(), &event.TicketRedeemed{
		AllocationID: "allocation-1",
		PurchaseID:   "purchase-1",
		TicketID:     "ticket-1",
		ValidatorID:  "gate-7",
		ValidatedAt:  validatedAt,
	})
	require.NoError(t, err)

	require.Len(t, notary.receipts, 1)
	assert.Equal(t, entity.RedemptionReceipt{
		AllocationID: "allocation-1",
		PurchaseID:   "purchase-1",
		TicketID:     "ticket-1",
		ValidatorID:  "gate-7",
		ValidatedAt:  validatedAt,
	}, notary.receipts[0])
}
