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
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type PaymentRepo struct {
	db     *sqlx.DB
	logger watermill.LoggerAdapter
}

func NewPaymentRepo(db *sqlx.DB, logger watermill.LoggerAdapter) PaymentRepo {
	return PaymentRepo{
		db:     db,
		logger: logger,
	}
}

// Add records the payment created for a purchase's first payment-link
// request. One payment per purchase; a retried link request reuses the row
// via ResetSession.
func (r PaymentRepo) Add(ctx context.Context, purchase entity.Purchase, sessionID, method string) (entity.Payment, error) {
	payment := entity.Payment{
		ID:         uuid.NewString(),
		PurchaseID: purchase.ID,
		SessionID:  sessionID,
		Amount:     purchase.Total,
		Method:     method,
		Status:     entity.PaymentStatusPending,
		CreatedAt:  time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx, `INSERT INTO payments
		(payment_id, purchase_id, session_id, amount, method, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);`,
		payment.ID, payment.PurchaseID, payment.SessionID, payment.Amount,
		payment.Method, payment.Status, payment.CreatedAt)
	if err != nil {
		return entity.Payment{}, fmt.Errorf("inserting payment: %w", err)
	}

	return payment, nil
}

// ResetSession points an unpaid payment at a freshly created checkout
// session and moves it back to pending, so an expired session can be retried
// with a new payment-link request.
func (r PaymentRepo) ResetSession(ctx context.Context, paymentID, sessionID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE payments
		SET session_id = $2, status = $3
		WHERE payment_id = $1 AND status <> $4`,
		paymentID, sessionID, entity.PaymentStatusPending, entity.PaymentStatusCompleted)
	if err != nil {
		return fmt.Errorf("resetting payment session: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n != 1 {
		return entity.ErrPaymentNotFound
	}

	return nil
}

func (r PaymentRepo) FindByPurchase(ctx context.Context, purchaseID string) (*entity.Payment, error) {
	var p entity.Payment
	err := r.db.QueryRowxContext(ctx, `SELECT payment_id, purchase_id, session_id, intent_id, amount, method, status, created_at, completed_at
		FROM payments WHERE purchase_id = $1`,
		purchaseID).
		Scan(&p.ID, &p.PurchaseID, &p.SessionID, &p.IntentID, &p.Amount,
			&p.Method, &p.Status, &p.CreatedAt, &p.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying payment: %w", err)
	}

	return &p, nil
}

// CompleteBySessionID applies a confirmed checkout to the payment holding the
// session id, recording the gateway's intent id. Replays no-op: the payment
// row is locked and only a pending payment transitions.
func (r PaymentRepo) CompleteBySessionID(ctx context.Context, sessionID, intentID string) (entity.Payment, bool, error) {
	return r.complete(ctx, "session_id", sessionID, intentID)
}

// CompleteByIntentID applies a payment_intent_succeeded notification, which
// carries the intent id rather than the session id.
func (r PaymentRepo) CompleteByIntentID(ctx context.Context, intentID string) (entity.Payment, bool, error) {
	return r.complete(ctx, "intent_id", intentID, intentID)
}

func (r PaymentRepo) complete(ctx context.Context, column, id, intentID string) (entity.Payment, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return entity.Payment{}, false, fmt.Errorf("beginning transaction: %w", err)
	}

	payment, applied, err := r.completeInTx(ctx, tx, column, id, intentID)
	if err != nil {
		return entity.Payment{}, false, errors.Join(err, tx.Rollback())
	}

	if err := tx.Commit(); err != nil {
		return entity.Payment{}, false, fmt.Errorf("committing transaction: %w", err)
	}

	if applied {
		monitoring.PaymentTransitions.WithLabelValues(string(entity.PaymentStatusCompleted)).Inc()
	}

	return payment, applied, nil
}

func (r PaymentRepo) completeInTx(ctx context.Context, tx *sqlx.Tx, column, id, intentID string) (entity.Payment, bool, error) {
	payment, purchase, err := lockPayment(ctx, tx, column, id)
	if err != nil {
		return entity.Payment{}, false, err
	}

	if payment.Status != entity.PaymentStatusPending {
		// Already terminal; a replayed or raced notification changes nothing.
		return payment, false, nil
	}

	now := time.Now().UTC()
	payment.Status = entity.PaymentStatusCompleted
	payment.IntentID = intentID
	payment.CompletedAt = &now

	if _, err := tx.ExecContext(ctx, `UPDATE payments
		SET status = $2, intent_id = $3, completed_at = $4
		WHERE payment_id = $1`,
		payment.ID, payment.Status, payment.IntentID, payment.CompletedAt); err != nil {
		return entity.Payment{}, false, fmt.Errorf("completing payment: %w", err)
	}

	purchaseStatus := entity.PurchaseStatusPaid
	if payment.Amount.LessThan(purchase.Total) {
		purchaseStatus = entity.PurchaseStatusPartiallyPaid
	}
	if _, err := tx.ExecContext(ctx, `UPDATE purchases SET status = $2
		WHERE purchase_id = $1 AND status = $3`,
		payment.PurchaseID, purchaseStatus, entity.PurchaseStatusPending); err != nil {
		return entity.Payment{}, false, fmt.Errorf("marking purchase paid: %w", err)
	}

	e := event.NewPaymentCompleted(payment, purchase.UserID, purchase.TenantID)
	if err := message.PublishInTx(ctx, e, tx.Tx, r.logger); err != nil {
		return entity.Payment{}, false, fmt.Errorf("publishing payment completed event: %w", err)
	}

	return payment, true, nil
}

// FailBySessionID applies a checkout_expired notification. Only a pending
// payment fails; a completed payment is never regressed, even if the expiry
// notice arrives after completion. The purchase itself stays pending so the
// buyer can request a fresh payment link; the expiry sweep reclaims its
// tickets if they never do.
func (r PaymentRepo) FailBySessionID(ctx context.Context, sessionID string) (entity.Payment, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return entity.Payment{}, false, fmt.Errorf("beginning transaction: %w", err)
	}

	payment, applied, err := r.failInTx(ctx, tx, sessionID)
	if err != nil {
		return entity.Payment{}, false, errors.Join(err, tx.Rollback())
	}

	if err := tx.Commit(); err != nil {
		return entity.Payment{}, false, fmt.Errorf("committing transaction: %w", err)
	}

	if applied {
		monitoring.PaymentTransitions.WithLabelValues(string(entity.PaymentStatusFailed)).Inc()
	}

	return payment, applied, nil
}

func (r PaymentRepo) failInTx(ctx context.Context, tx *sqlx.Tx, sessionID string) (entity.Payment, bool, error) {
	payment, purchase, err := lockPayment(ctx, tx, "session_id", sessionID)
	if err != nil {
		return entity.Payment{}, false, err
	}

	if payment.Status != entity.PaymentStatusPending {
		return payment, false, nil
	}

	payment.Status = entity.PaymentStatusFailed
	if _, err := tx.ExecContext(ctx, `UPDATE payments SET status = $2 WHERE payment_id = $1`,
		payment.ID, payment.Status); err != nil {
		return entity.Payment{}, false, fmt.Errorf("failing payment: %w", err)
	}

	e := event.NewPaymentFailed(payment, purchase.TenantID)
	if err := message.PublishInTx(ctx, e, tx.Tx, r.logger); err != nil {
		return entity.Payment{}, false, fmt.Errorf("publishing payment failed event: %w", err)
	}

	return payment, true, nil
}

// Refund compensates a paid purchase: the purchase moves to refunded and its
// unredeemed tickets return to the pool. The payment row keeps its completed
// status; the money movement happens at the gateway.
func (r PaymentRepo) Refund(ctx context.Context, purchaseID, tenantID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := r.refundInTx(ctx, tx, purchaseID, tenantID); err != nil {
		return errors.Join(err, tx.Rollback())
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (r PaymentRepo) refundInTx(ctx context.Context, tx *sqlx.Tx, purchaseID, tenantID string) error {
	var status entity.PurchaseStatus
	var total string
	err := tx.QueryRowxContext(ctx, `SELECT status, total FROM purchases
		WHERE purchase_id = $1 AND tenant_id = $2
		FOR UPDATE`,
		purchaseID, tenantID).Scan(&status, &total)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.ErrPurchaseNotFound
	}
	if err != nil {
		return fmt.Errorf("locking purchase: %w", err)
	}

	if status != entity.PurchaseStatusPaid && status != entity.PurchaseStatusPartiallyPaid {
		return entity.ErrNotPaid
	}

	if _, err := tx.ExecContext(ctx, `UPDATE tickets SET available = TRUE
		WHERE ticket_id IN (SELECT ticket_id FROM ticket_allocations WHERE purchase_id = $1 AND unused)`,
		purchaseID); err != nil {
		return fmt.Errorf("releasing tickets: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE purchases SET status = $2 WHERE purchase_id = $1`,
		purchaseID, entity.PurchaseStatusRefunded); err != nil {
		return fmt.Errorf("marking purchase refunded: %w", err)
	}

	e := event.NewPurchaseRefunded(purchaseID, tenantID, total)
	if err := message.PublishInTx(ctx, e, tx.Tx, r.logger); err != nil {
		return fmt.Errorf("publishing purchase refunded event: %w", err)
	}

	return nil
}

// lockPayment locks the payment row matched by column=id so the webhook and
// poll channels serialize, and returns it with the owning purchase's
// identity fields.
func lockPayment(ctx context.Context, tx *sqlx.Tx, column, id string) (entity.Payment, entity.Purchase, error) {
	query := fmt.Sprintf(`SELECT p.payment_id, p.purchase_id, p.session_id, p.intent_id, p.amount, p.method, p.status, p.created_at, p.completed_at,
			pu.user_id, pu.tenant_id, pu.total
		FROM payments p
		JOIN purchases pu ON pu.purchase_id = p.purchase_id
		WHERE p.%s = $1
		FOR UPDATE OF p`, column)

	var payment entity.Payment
	var purchase entity.Purchase
	err := tx.QueryRowxContext(ctx, query, id).
		Scan(&payment.ID, &payment.PurchaseID, &payment.SessionID, &payment.IntentID,
			&payment.Amount, &payment.Method, &payment.Status, &payment.CreatedAt, &payment.CompletedAt,
			&purchase.UserID, &purchase.TenantID, &purchase.Total)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Payment{}, entity.Purchase{}, entity.ErrPaymentNotFound
	}
	if err != nil {
		return entity.Payment{}, entity.Purchase{}, fmt.Errorf("locking payment: %w", err)
	}

	purchase.ID = payment.PurchaseID
	return payment, purchase, nil
}
