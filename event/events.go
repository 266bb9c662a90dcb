package event

import (
	"time"

	"boxoffice/entity"

	"github.com/ThreeDotsLabs/watermill"
)

type header struct {
	ID             string    `json:"id"`
	PublishedAt    time.Time `json:"published_at"`
	IdempotencyKey string    `json:"idempotency_key"`
}

func newHeader(idempotencyKey string) header {
	return header{
		ID:             watermill.NewUUID(),
		PublishedAt:    time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
	}
}

type PurchaseCreated struct {
	Header      header `json:"header"`
	PurchaseID  string `json:"purchase_id"`
	UserID      string `json:"user_id"`
	TenantID    string `json:"tenant_id"`
	Total       string `json:"total"`
	Allocations int    `json:"allocations"`
}

func NewPurchaseCreated(p entity.Purchase) PurchaseCreated {
	return PurchaseCreated{
		Header:      newHeader(p.ID),
		PurchaseID:  p.ID,
		UserID:      p.UserID,
		TenantID:    p.TenantID,
		Total:       p.Total.StringFixed(2),
		Allocations: len(p.Allocations),
	}
}

type PaymentCompleted struct {
	Header     header `json:"header"`
	PaymentID  string `json:"payment_id"`
	PurchaseID string `json:"purchase_id"`
	UserID     string `json:"user_id"`
	TenantID   string `json:"tenant_id"`
	IntentID   string `json:"intent_id"`
	Amount     string `json:"amount"`
}

// NewPaymentCompleted is keyed on the gateway intent id so webhook replays
// collapse to one delivery downstream.
func NewPaymentCompleted(p entity.Payment, userID, tenantID string) PaymentCompleted {
	return PaymentCompleted{
		Header:     newHeader(p.IntentID),
		PaymentID:  p.ID,
		PurchaseID: p.PurchaseID,
		UserID:     userID,
		TenantID:   tenantID,
		IntentID:   p.IntentID,
		Amount:     p.Amount.StringFixed(2),
	}
}

type PaymentFailed struct {
	Header     header `json:"header"`
	PaymentID  string `json:"payment_id"`
	PurchaseID string `json:"purchase_id"`
	TenantID   string `json:"tenant_id"`
	SessionID  string `json:"session_id"`
}

func NewPaymentFailed(p entity.Payment, tenantID string) PaymentFailed {
	return PaymentFailed{
		Header:     newHeader(p.SessionID),
		PaymentID:  p.ID,
		PurchaseID: p.PurchaseID,
		TenantID:   tenantID,
		SessionID:  p.SessionID,
	}
}

type TicketRedeemed struct {
	Header       header    `json:"header"`
	AllocationID string    `json:"allocation_id"`
	PurchaseID   string    `json:"purchase_id"`
	TicketID     string    `json:"ticket_id"`
	TenantID     string    `json:"tenant_id"`
	ValidatorID  string    `json:"validator_id"`
	ValidatedAt  time.Time `json:"validated_at"`
}

func NewTicketRedeemed(receipt entity.RedemptionReceipt, tenantID string) TicketRedeemed {
	return TicketRedeemed{
		Header:       newHeader(receipt.AllocationID),
		AllocationID: receipt.AllocationID,
		PurchaseID:   receipt.PurchaseID,
		TicketID:     receipt.TicketID,
		TenantID:     tenantID,
		ValidatorID:  receipt.ValidatorID,
		ValidatedAt:  receipt.ValidatedAt,
	}
}

type PurchaseExpired struct {
	Header          header `json:"header"`
	PurchaseID      string `json:"purchase_id"`
	TenantID        string `json:"tenant_id"`
	TicketsReleased int    `json:"tickets_released"`
}

func NewPurchaseExpired(purchaseID, tenantID string, ticketsReleased int) PurchaseExpired {
	return PurchaseExpired{
		Header:          newHeader("expired-" + purchaseID),
		PurchaseID:      purchaseID,
		TenantID:        tenantID,
		TicketsReleased: ticketsReleased,
	}
}

type PurchaseRefunded struct {
	Header     header `json:"header"`
	PurchaseID string `json:"purchase_id"`
	TenantID   string `json:"tenant_id"`
	Amount     string `json:"amount"`
}

func NewPurchaseRefunded(purchaseID, tenantID, amount string) PurchaseRefunded {
	return PurchaseRefunded{
		Header:     newHeader("refund-" + purchaseID),
		PurchaseID: purchaseID,
		TenantID:   tenantID,
		Amount:     amount,
	}
}
