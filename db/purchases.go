package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"boxoffice/entity"
	"boxoffice/event"
	"boxoffice/fee"
	"boxoffice/message"
	"boxoffice/monitoring"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
)

type PurchaseItem struct {
	SectionID string `json:"section_id"`
	Quantity  int    `json:"quantity"`
}

type CreatePurchaseInput struct {
	UserID   string
	TenantID string
	Items    []PurchaseItem
	Note     string
}

type PurchaseRepo struct {
	db       *sqlx.DB
	fees     fee.Calculator
	maxQuota int
	logger   watermill.LoggerAdapter
}

func NewPurchaseRepo(db *sqlx.DB, fees fee.Calculator, maxQuota int, logger watermill.LoggerAdapter) PurchaseRepo {
	return PurchaseRepo{
		db:       db,
		fees:     fees,
		maxQuota: maxQuota,
		logger:   logger,
	}
}

// Create runs the whole purchase in one transaction: resolve sections, claim
// tickets under row locks, enforce the per-event quota, price the
// allocations, persist the purchase and publish the audit event through the
// outbox. Any failure rolls the whole cart back; tickets are claimed
// all-or-nothing.
func (r PurchaseRepo) Create(ctx context.Context, in CreatePurchaseInput) (entity.Purchase, error) {
	if len(in.Items) == 0 {
		return entity.Purchase{}, entity.ErrEmptyItems
	}
	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return entity.Purchase{}, entity.ErrInvalidQuantity
		}
	}

	timer := prometheus.NewTimer(monitoring.PurchaseDuration)
	defer timer.ObserveDuration()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return entity.Purchase{}, fmt.Errorf("beginning transaction: %w", err)
	}

	purchase, err := r.create(ctx, tx, in)
	if err != nil {
		monitoring.PurchasesRejected.WithLabelValues(rejectionReason(err)).Inc()
		return entity.Purchase{}, errors.Join(err, tx.Rollback())
	}

	if err := tx.Commit(); err != nil {
		return entity.Purchase{}, fmt.Errorf("committing transaction: %w", err)
	}

	for _, item := range in.Items {
		monitoring.TicketsAllocated.WithLabelValues(item.SectionID).Add(float64(item.Quantity))
	}

	return purchase, nil
}

func rejectionReason(err error) string {
	var insufficient entity.InsufficientInventoryError
	var quota entity.QuotaExceededError
	switch {
	case errors.As(err, &insufficient):
		return "insufficient_inventory"
	case errors.As(err, &quota):
		return "quota_exceeded"
	case errors.Is(err, entity.ErrSectionNotFound):
		return "section_not_found"
	default:
		return "error"
	}
}

func (r PurchaseRepo) create(ctx context.Context, tx *sqlx.Tx, in CreatePurchaseInput) (entity.Purchase, error) {
	purchase := entity.Purchase{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		TenantID:  in.TenantID,
		Status:    entity.PurchaseStatusPending,
		Note:      in.Note,
		CreatedAt: time.Now().UTC(),
	}

	requestedPerEvent := map[string]int{}

	for _, item := range in.Items {
		var section entity.Section
		err := tx.QueryRowxContext(ctx, `SELECT section_id, event_id, tenant_id, name, unit_price, active
			FROM sections WHERE section_id = $1 AND tenant_id = $2`,
			item.SectionID, in.TenantID).
			Scan(&section.ID, &section.EventID, &section.TenantID, &section.Name, &section.UnitPrice, &section.Active)
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Purchase{}, entity.ErrSectionNotFound
		}
		if err != nil {
			return entity.Purchase{}, fmt.Errorf("resolving section: %w", err)
		}
		if !section.Active {
			return entity.Purchase{}, entity.ErrSectionNotFound
		}

		tickets, err := allocateTickets(ctx, tx, section, item.Quantity)
		if err != nil {
			return entity.Purchase{}, err
		}

		for _, t := range tickets {
			systemFee := r.fees.Fee(t.Price)
			purchase.Allocations = append(purchase.Allocations, entity.TicketAllocation{
				ID:         uuid.NewString(),
				PurchaseID: purchase.ID,
				TicketID:   t.ID,
				TenantID:   in.TenantID,
				Quantity:   1,
				Subtotal:   t.Price,
				SystemFee:  systemFee,
				Unused:     true,
			})
			purchase.Total = purchase.Total.Add(t.Price).Add(systemFee)
		}

		requestedPerEvent[section.EventID] += item.Quantity
	}

	// Quota is checked while the ticket rows are locked, so two concurrent
	// purchases by the same user serialize here and cannot jointly exceed
	// the limit.
	for eventID, requested := range requestedPerEvent {
		current, err := countUserAllocations(ctx, tx, in.UserID, eventID)
		if err != nil {
			return entity.Purchase{}, err
		}
		if current+requested > r.maxQuota {
			return entity.Purchase{}, entity.QuotaExceededError{
				EventID:   eventID,
				Current:   current,
				Requested: requested,
				Max:       r.maxQuota,
			}
		}
	}

	_, err := tx.ExecContext(ctx, `INSERT INTO purchases
		(purchase_id, user_id, tenant_id, status, total, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);`,
		purchase.ID, purchase.UserID, purchase.TenantID, purchase.Status,
		purchase.Total, purchase.Note, purchase.CreatedAt)
	if err != nil {
		return entity.Purchase{}, fmt.Errorf("inserting purchase: %w", err)
	}

	for _, a := range purchase.Allocations {
		_, err := tx.ExecContext(ctx, `INSERT INTO ticket_allocations
			(allocation_id, purchase_id, ticket_id, tenant_id, quantity, subtotal, system_fee, unused)
			VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE);`,
			a.ID, a.PurchaseID, a.TicketID, a.TenantID, a.Quantity, a.Subtotal, a.SystemFee)
		if err != nil {
			return entity.Purchase{}, fmt.Errorf("inserting allocation: %w", err)
		}
	}

	e := event.NewPurchaseCreated(purchase)
	if err := message.PublishInTx(ctx, e, tx.Tx, r.logger); err != nil {
		return entity.Purchase{}, fmt.Errorf("publishing purchase created event: %w", err)
	}

	return purchase, nil
}

// allocateTickets claims up to quantity available tickets under FOR UPDATE
// row locks, in ticket-id order so overlapping purchases acquire locks in a
// stable order. A shortfall claims nothing.
func allocateTickets(ctx context.Context, tx *sqlx.Tx, section entity.Section, quantity int) ([]entity.Ticket, error) {
	rows, err := tx.QueryxContext(ctx, `SELECT ticket_id, price FROM tickets
		WHERE section_id = $1 AND tenant_id = $2 AND available
		ORDER BY ticket_id
		LIMIT $3
		FOR UPDATE`,
		section.ID, section.TenantID, quantity)
	if err != nil {
		return nil, fmt.Errorf("selecting tickets for update: %w", err)
	}
	defer rows.Close()

	var tickets []entity.Ticket
	for rows.Next() {
		t := entity.Ticket{SectionID: section.ID, TenantID: section.TenantID, Available: true}
		if err := rows.Scan(&t.ID, &t.Price); err != nil {
			return nil, fmt.Errorf("scanning ticket row: %w", err)
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ticket rows: %w", err)
	}

	if len(tickets) < quantity {
		return nil, entity.InsufficientInventoryError{
			SectionID: section.ID,
			Requested: quantity,
			Available: len(tickets),
		}
	}

	ids := make([]string, len(tickets))
	for i, t := range tickets {
		ids[i] = t.ID
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE tickets SET available = FALSE WHERE ticket_id = ANY($1)`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("claiming tickets: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("getting rows affected: %w", err)
	}
	if int(n) != len(ids) {
		return nil, fmt.Errorf("unexpected claim result: %d of %d tickets updated", n, len(ids))
	}

	return tickets, nil
}

func countUserAllocations(ctx context.Context, q sqlx.QueryerContext, userID, eventID string) (int, error) {
	var count int
	err := q.QueryRowxContext(ctx, `SELECT COALESCE(SUM(ta.quantity), 0)
		FROM ticket_allocations ta
		JOIN purchases p ON p.purchase_id = ta.purchase_id
		JOIN tickets t ON t.ticket_id = ta.ticket_id
		JOIN sections s ON s.section_id = t.section_id
		WHERE p.user_id = $1 AND s.event_id = $2 AND p.status <> $3`,
		userID, eventID, entity.PurchaseStatusCancelled).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting user allocations: %w", err)
	}

	return count, nil
}

// CountUserAllocations backs the advisory quota endpoint.
func (r PurchaseRepo) CountUserAllocations(ctx context.Context, userID, eventID string) (int, error) {
	return countUserAllocations(ctx, r.db, userID, eventID)
}

func (r PurchaseRepo) MaxQuota() int {
	return r.maxQuota
}

func (r PurchaseRepo) Get(ctx context.Context, purchaseID, tenantID string) (entity.Purchase, error) {
	var p entity.Purchase
	err := r.db.QueryRowxContext(ctx, `SELECT purchase_id, user_id, tenant_id, status, total, note, created_at
		FROM purchases WHERE purchase_id = $1 AND tenant_id = $2`,
		purchaseID, tenantID).
		Scan(&p.ID, &p.UserID, &p.TenantID, &p.Status, &p.Total, &p.Note, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Purchase{}, entity.ErrPurchaseNotFound
	}
	if err != nil {
		return entity.Purchase{}, fmt.Errorf("querying purchase: %w", err)
	}

	rows, err := r.db.QueryxContext(ctx, `SELECT allocation_id, purchase_id, ticket_id, tenant_id, quantity, subtotal, system_fee, unused, validated_at
		FROM ticket_allocations WHERE purchase_id = $1 ORDER BY allocation_id`,
		purchaseID)
	if err != nil {
		return entity.Purchase{}, fmt.Errorf("querying allocations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a entity.TicketAllocation
		if err := rows.Scan(&a.ID, &a.PurchaseID, &a.TicketID, &a.TenantID, &a.Quantity,
			&a.Subtotal, &a.SystemFee, &a.Unused, &a.ValidatedAt); err != nil {
			return entity.Purchase{}, fmt.Errorf("scanning allocation row: %w", err)
		}
		p.Allocations = append(p.Allocations, a)
	}
	if err := rows.Err(); err != nil {
		return entity.Purchase{}, fmt.Errorf("iterating allocation rows: %w", err)
	}

	return p, nil
}

// ReleaseExpired cancels pending purchases created before the cutoff,
// returning their tickets to the pool and failing any pending payment. It
// returns the number of purchases released.
func (r PurchaseRepo) ReleaseExpired(ctx context.Context, cutoff time.Time) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}

	released, err := r.releaseExpired(ctx, tx, cutoff)
	if err != nil {
		return 0, errors.Join(err, tx.Rollback())
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	monitoring.PurchasesExpired.Add(float64(released))

	return released, nil
}

func (r PurchaseRepo) releaseExpired(ctx context.Context, tx *sqlx.Tx, cutoff time.Time) (int, error) {
	rows, err := tx.QueryxContext(ctx, `SELECT purchase_id, tenant_id FROM purchases
		WHERE status = $1 AND created_at < $2
		FOR UPDATE`,
		entity.PurchaseStatusPending, cutoff)
	if err != nil {
		return 0, fmt.Errorf("selecting expired purchases: %w", err)
	}
	defer rows.Close()

	type expired struct {
		purchaseID string
		tenantID   string
	}
	var stale []expired
	for rows.Next() {
		var e expired
		if err := rows.Scan(&e.purchaseID, &e.tenantID); err != nil {
			return 0, fmt.Errorf("scanning expired purchase: %w", err)
		}
		stale = append(stale, e)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterating expired purchases: %w", err)
	}

	for _, p := range stale {
		res, err := tx.ExecContext(ctx, `UPDATE tickets SET available = TRUE
			WHERE ticket_id IN (SELECT ticket_id FROM ticket_allocations WHERE purchase_id = $1)`,
			p.purchaseID)
		if err != nil {
			return 0, fmt.Errorf("releasing tickets: %w", err)
		}
		ticketsReleased, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("getting rows affected: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE purchases SET status = $2 WHERE purchase_id = $1`,
			p.purchaseID, entity.PurchaseStatusCancelled); err != nil {
			return 0, fmt.Errorf("cancelling purchase: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE payments SET status = $2
			WHERE purchase_id = $1 AND status = $3`,
			p.purchaseID, entity.PaymentStatusFailed, entity.PaymentStatusPending); err != nil {
			return 0, fmt.Errorf("failing pending payment: %w", err)
		}

		e := event.NewPurchaseExpired(p.purchaseID, p.tenantID, int(ticketsReleased))
		if err := message.PublishInTx(ctx, e, tx.Tx, r.logger); err != nil {
			return 0, fmt.Errorf("publishing purchase expired event: %w", err)
		}
	}

	return len(stale), nil
}
