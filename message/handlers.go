package message

import (
	"context"
	"fmt"

	"boxoffice/entity"
	"boxoffice/event"
)

// AuditAppender receives one record per engine state transition. Persistence
// of the audit log is owned by another system; this side only delivers.
type AuditAppender interface {
	Append(ctx context.Context, record entity.AuditRecord) error
}

type ConfirmationSender interface {
	SendPaymentConfirmation(ctx context.Context, purchaseID, amount string) error
}

type RedemptionNotary interface {
	NotarizeRedemption(ctx context.Context, receipt entity.RedemptionReceipt) error
}

func handleAuditPurchaseCreated(a AuditAppender) func(ctx context.Context, e *event.PurchaseCreated) error {
	return func(ctx context.Context, e *event.PurchaseCreated) error {
		record := entity.AuditRecord{
			ActionKind:  "purchase.create",
			EntityKind:  "purchase",
			EntityID:    e.PurchaseID,
			ActorUserID: e.UserID,
			TenantID:    e.TenantID,
			NewState:    string(entity.PurchaseStatusPending),
		}
		if err := a.Append(ctx, record); err != nil {
			return fmt.Errorf("appending purchase-created audit record: %w", err)
		}

		return nil
	}
}

func handleAuditPaymentCompleted(a AuditAppender) func(ctx context.Context, e *event.PaymentCompleted) error {
	return func(ctx context.Context, e *event.PaymentCompleted) error {
		record := entity.AuditRecord{
			ActionKind:  "payment.complete",
			EntityKind:  "payment",
			EntityID:    e.PaymentID,
			ActorUserID: e.UserID,
			TenantID:    e.TenantID,
			OldState:    string(entity.PaymentStatusPending),
			NewState:    string(entity.PaymentStatusCompleted),
		}
		if err := a.Append(ctx, record); err != nil {
			return fmt.Errorf("appending payment-completed audit record: %w", err)
		}

		return nil
	}
}

func handleAuditPaymentFailed(a AuditAppender) func(ctx context.Context, e *event.PaymentFailed) error {
	return func(ctx context.Context, e *event.PaymentFailed) error {
		record := entity.AuditRecord{
			ActionKind: "payment.fail",
			EntityKind: "payment",
			EntityID:   e.PaymentID,
			TenantID:   e.TenantID,
			OldState:   string(entity.PaymentStatusPending),
			NewState:   string(entity.PaymentStatusFailed),
		}
		if err := a.Append(ctx, record); err != nil {
			return fmt.Errorf("appending payment-failed audit record: %w", err)
		}

		return nil
	}
}

func handleAuditTicketRedeemed(a AuditAppender) func(ctx context.Context, e *event.TicketRedeemed) error {
	return func(ctx context.Context, e *event.TicketRedeemed) error {
		record := entity.AuditRecord{
			ActionKind:  "allocation.redeem",
			EntityKind:  "ticket_allocation",
			EntityID:    e.AllocationID,
			ActorUserID: e.ValidatorID,
			TenantID:    e.TenantID,
			OldState:    "issued",
			NewState:    "redeemed",
		}
		if err := a.Append(ctx, record); err != nil {
			return fmt.Errorf("appending ticket-redeemed audit record: %w", err)
		}

		return nil
	}
}

func handleAuditPurchaseExpired(a AuditAppender) func(ctx context.Context, e *event.PurchaseExpired) error {
	return func(ctx context.Context, e *event.PurchaseExpired) error {
		record := entity.AuditRecord{
			ActionKind: "purchase.expire",
			EntityKind: "purchase",
			EntityID:   e.PurchaseID,
			TenantID:   e.TenantID,
			OldState:   string(entity.PurchaseStatusPending),
			NewState:   string(entity.PurchaseStatusCancelled),
		}
		if err := a.Append(ctx, record); err != nil {
			return fmt.Errorf("appending purchase-expired audit record: %w", err)
		}

		return nil
	}
}

func handleAuditPurchaseRefunded(a AuditAppender) func(ctx context.Context, e *event.PurchaseRefunded) error {
	return func(ctx context.Context, e *event.PurchaseRefunded) error {
		record := entity.AuditRecord{
			ActionKind: "purchase.refund",
			EntityKind: "purchase",
			EntityID:   e.PurchaseID,
			TenantID:   e.TenantID,
			OldState:   string(entity.PurchaseStatusPaid),
			NewState:   string(entity.PurchaseStatusRefunded),
		}
		if err := a.Append(ctx, record); err != nil {
			return fmt.Errorf("appending purchase-refunded audit record: %w", err)
		}

		return nil
	}
}

func handleSendPaymentConfirmation(s ConfirmationSender) func(ctx context.Context, e *event.PaymentCompleted) error {
	return func(ctx context.Context, e *event.PaymentCompleted) error {
		if err := s.SendPaymentConfirmation(ctx, e.PurchaseID, e.Amount); err != nil {
			return fmt.Errorf("sending payment confirmation: %w", err)
		}

		return nil
	}
}

func handleNotarizeRedemption(n RedemptionNotary) func(ctx context.Context, e *event.TicketRedeemed) error {
	return func(ctx context.Context, e *event.TicketRedeemed) error {
		receipt := entity.RedemptionReceipt{
			AllocationID: e.AllocationID,
			PurchaseID:   e.PurchaseID,
			TicketID:     e.TicketID,
			ValidatorID:  e.ValidatorID,
			ValidatedAt:  e.ValidatedAt,
		}
		if err := n.NotarizeRedemption(ctx, receipt); err != nil {
			return fmt.Errorf("notarizing redemption: %w", err)
		}

		return nil
	}
}
