package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"boxoffice/entity"
	"boxoffice/event"
	"boxoffice/message"
	"boxoffice/monitoring"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type AllocationRepo struct {
	db     *sqlx.DB
	logger watermill.LoggerAdapter
}

func NewAllocationRepo(db *sqlx.DB, logger watermill.LoggerAdapter) AllocationRepo {
	return AllocationRepo{
		db:     db,
		logger: logger,
	}
}

// GetForIssue loads an allocation for token issuance. The caller must own
// the purchase, the purchase must be paid and the allocation still unused.
func (r AllocationRepo) GetForIssue(ctx context.Context, allocationID, userID string) (entity.TicketAllocation, string, error) {
	var a entity.TicketAllocation
	var sectionName string
	var ownerID string
	var purchaseStatus entity.PurchaseStatus

	err := r.db.QueryRowxContext(ctx, `SELECT ta.allocation_id, ta.purchase_id, ta.ticket_id, ta.tenant_id, ta.quantity, ta.subtotal, ta.system_fee, ta.unused, ta.validated_at,
			s.name, p.user_id, p.status
		FROM ticket_allocations ta
		JOIN purchases p ON p.purchase_id = ta.purchase_id
		JOIN tickets t ON t.ticket_id = ta.ticket_id
		JOIN sections s ON s.section_id = t.section_id
		WHERE ta.allocation_id = $1`,
		allocationID).
		Scan(&a.ID, &a.PurchaseID, &a.TicketID, &a.TenantID, &a.Quantity,
			&a.Subtotal, &a.SystemFee, &a.Unused, &a.ValidatedAt,
			&sectionName, &ownerID, &purchaseStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.TicketAllocation{}, "", entity.ErrAllocationNotFound
	}
	if err != nil {
		return entity.TicketAllocation{}, "", fmt.Errorf("querying allocation: %w", err)
	}

	if ownerID != userID {
		return entity.TicketAllocation{}, "", entity.ErrOwnershipMismatch
	}
	if !a.Unused {
		return entity.TicketAllocation{}, "", entity.ErrAlreadyRedeemed
	}
	if purchaseStatus != entity.PurchaseStatusPaid {
		return entity.TicketAllocation{}, "", entity.ErrNotPaid
	}

	return a, sectionName, nil
}

type RedeemInput struct {
	PurchaseID        string
	AllocationID      string
	ValidatorID       string
	ValidatorTenantID string
	// ExpectedSubtotal comes from the verified token and must match the
	// allocation row it names.
	ExpectedSubtotal decimal.Decimal
}

// Redeem flips the allocation's redemption flag one-way, under a row lock so
// two concurrent attempts for the same allocation cannot both succeed. When
// the purchase's last allocation is redeemed the purchase completes.
func (r AllocationRepo) Redeem(ctx context.Context, in RedeemInput) (entity.RedemptionReceipt, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return entity.RedemptionReceipt{}, fmt.Errorf("beginning transaction: %w", err)
	}

	receipt, err := r.redeem(ctx, tx, in)
	if err != nil {
		return entity.RedemptionReceipt{}, errors.Join(err, tx.Rollback())
	}

	if err := tx.Commit(); err != nil {
		return entity.RedemptionReceipt{}, fmt.Errorf("committing transaction: %w", err)
	}

	monitoring.TicketsRedeemed.Inc()

	return receipt, nil
}

func (r AllocationRepo) redeem(ctx context.Context, tx *sqlx.Tx, in RedeemInput) (entity.RedemptionReceipt, error) {
	var a entity.TicketAllocation
	var purchaseStatus entity.PurchaseStatus

	err := tx.QueryRowxContext(ctx, `SELECT ta.allocation_id, ta.purchase_id, ta.ticket_id, ta.tenant_id, ta.quantity, ta.subtotal, ta.unused, ta.validated_at,
			p.status
		FROM ticket_allocations ta
		JOIN purchases p ON p.purchase_id = ta.purchase_id
		WHERE ta.allocation_id = $1
		FOR UPDATE OF ta`,
		in.AllocationID).
		Scan(&a.ID, &a.PurchaseID, &a.TicketID, &a.TenantID, &a.Quantity,
			&a.Subtotal, &a.Unused, &a.ValidatedAt, &purchaseStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.RedemptionReceipt{}, entity.ErrAllocationNotFound
	}
	if err != nil {
		return entity.RedemptionReceipt{}, fmt.Errorf("locking allocation: %w", err)
	}

	if a.PurchaseID != in.PurchaseID {
		return entity.RedemptionReceipt{}, entity.ErrOwnershipMismatch
	}
	if a.TenantID != in.ValidatorTenantID {
		return entity.RedemptionReceipt{}, entity.ErrOwnershipMismatch
	}
	if !a.Subtotal.Equal(in.ExpectedSubtotal) {
		return entity.RedemptionReceipt{}, entity.ErrTokenInvalid
	}
	if !a.Unused {
		return entity.RedemptionReceipt{}, entity.ErrAlreadyRedeemed
	}
	if purchaseStatus != entity.PurchaseStatusPaid {
		return entity.RedemptionReceipt{}, entity.ErrNotPaid
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `UPDATE ticket_allocations
		SET unused = FALSE, validated_at = $2
		WHERE allocation_id = $1`,
		a.ID, now); err != nil {
		return entity.RedemptionReceipt{}, fmt.Errorf("marking allocation redeemed: %w", err)
	}

	var remaining int
	if err := tx.QueryRowxContext(ctx, `SELECT COUNT(*) FROM ticket_allocations
		WHERE purchase_id = $1 AND unused`,
		a.PurchaseID).Scan(&remaining); err != nil {
		return entity.RedemptionReceipt{}, fmt.Errorf("counting remaining allocations: %w", err)
	}
	if remaining == 0 {
		if _, err := tx.ExecContext(ctx, `UPDATE purchases SET status = $2
			WHERE purchase_id = $1 AND status = $3`,
			a.PurchaseID, entity.PurchaseStatusCompleted, entity.PurchaseStatusPaid); err != nil {
			return entity.RedemptionReceipt{}, fmt.Errorf("completing purchase: %w", err)
		}
	}

	receipt := entity.RedemptionReceipt{
		AllocationID: a.ID,
		PurchaseID:   a.PurchaseID,
		TicketID:     a.TicketID,
		ValidatorID:  in.ValidatorID,
		ValidatedAt:  now,
	}

	e := event.NewTicketRedeemed(receipt, a.TenantID)
	if err := message.PublishInTx(ctx, e, tx.Tx, r.logger); err != nil {
		return entity.RedemptionReceipt{}, fmt.Errorf("publishing ticket redeemed event: %w", err)
	}

	return receipt, nil
}
