package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Section is the read model owned by event management. The engine only
// resolves it to price tickets; it never mutates one.
type Section struct {
	ID        string          `db:"section_id" json:"section_id"`
	EventID   string          `db:"event_id" json:"event_id"`
	TenantID  string          `db:"tenant_id" json:"tenant_id"`
	Name      string          `db:"name" json:"name"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	Active    bool            `db:"active" json:"active"`
}

type Ticket struct {
	ID        string          `db:"ticket_id" json:"ticket_id"`
	SectionID string          `db:"section_id" json:"section_id"`
	TenantID  string          `db:"tenant_id" json:"tenant_id"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Available bool            `db:"available" json:"available"`
}

type PurchaseStatus string

const (
	PurchaseStatusPending       PurchaseStatus = "pending"
	PurchaseStatusPartiallyPaid PurchaseStatus = "partially_paid"
	PurchaseStatusPaid          PurchaseStatus = "paid"
	PurchaseStatusCancelled     PurchaseStatus = "cancelled"
	PurchaseStatusRefunded      PurchaseStatus = "refunded"
	PurchaseStatusCompleted     PurchaseStatus = "completed"
)

type Purchase struct {
	ID          string             `db:"purchase_id" json:"purchase_id"`
	UserID      string             `db:"user_id" json:"user_id"`
	TenantID    string             `db:"tenant_id" json:"tenant_id"`
	Status      PurchaseStatus     `db:"status" json:"status"`
	Total       decimal.Decimal    `db:"total" json:"total"`
	Note        string             `db:"note" json:"note,omitempty"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
	Allocations []TicketAllocation `db:"-" json:"allocations,omitempty"`
}

// TicketAllocation joins one ticket to one purchase. Quantity is always 1;
// multiplicity is expressed as multiple rows. Unused is the redemption flag:
// ValidatedAt is non-null only once Unused has been flipped to false, and the
// flip is one-way.
type TicketAllocation struct {
	ID          string          `db:"allocation_id" json:"allocation_id"`
	PurchaseID  string          `db:"purchase_id" json:"purchase_id"`
	TicketID    string          `db:"ticket_id" json:"ticket_id"`
	TenantID    string          `db:"tenant_id" json:"tenant_id"`
	Quantity    int             `db:"quantity" json:"quantity"`
	Subtotal    decimal.Decimal `db:"subtotal" json:"subtotal"`
	SystemFee   decimal.Decimal `db:"system_fee" json:"system_fee"`
	Unused      bool            `db:"unused" json:"unused"`
	ValidatedAt *time.Time      `db:"validated_at" json:"validated_at,omitempty"`
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment is one-to-one with a purchase and holds the gateway identifiers
// the webhook events are keyed on.
type Payment struct {
	ID          string          `db:"payment_id" json:"payment_id"`
	PurchaseID  string          `db:"purchase_id" json:"purchase_id"`
	SessionID   string          `db:"session_id" json:"session_id"`
	IntentID    string          `db:"intent_id" json:"intent_id,omitempty"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Method      string          `db:"method" json:"method"`
	Status      PaymentStatus   `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	CompletedAt *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}

type RedemptionReceipt struct {
	AllocationID string    `json:"allocation_id"`
	PurchaseID   string    `json:"purchase_id"`
	TicketID     string    `json:"ticket_id"`
	ValidatorID  string    `json:"validator_id"`
	ValidatedAt  time.Time `json:"validated_at"`
}

// AuditRecord is the shape every state transition is reported with.
type AuditRecord struct {
	ActionKind  string `json:"action_kind"`
	EntityKind  string `json:"entity_kind"`
	EntityID    string `json:"entity_id"`
	ActorUserID string `json:"actor_user_id"`
	TenantID    string `json:"tenant_id"`
	OldState    string `json:"old_state,omitempty"`
	NewState    string `json:"new_state,omitempty"`
}
