package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// CreateSchema creates the engine's tables. Sections and tickets are owned
// by event management; the engine keeps their source of truth here because
// allocation needs row locks on the ticket rows.
func CreateSchema(ctx context.Context, db *sqlx.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sections (
			section_id UUID PRIMARY KEY,
			event_id UUID NOT NULL,
			tenant_id UUID NOT NULL,
			name VARCHAR(255) NOT NULL,
			unit_price NUMERIC(10, 2) NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE
		);`,
		`CREATE TABLE IF NOT EXISTS tickets (
			ticket_id UUID PRIMARY KEY,
			section_id UUID NOT NULL REFERENCES sections (section_id),
			tenant_id UUID NOT NULL,
			price NUMERIC(10, 2) NOT NULL,
			available BOOLEAN NOT NULL DEFAULT TRUE
		);`,
		`CREATE INDEX IF NOT EXISTS tickets_available_idx
			ON tickets (section_id, tenant_id) WHERE available;`,
		`CREATE TABLE IF NOT EXISTS purchases (
			purchase_id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			tenant_id UUID NOT NULL,
			status VARCHAR(32) NOT NULL,
			total NUMERIC(12, 2) NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS ticket_allocations (
			allocation_id UUID PRIMARY KEY,
			purchase_id UUID NOT NULL REFERENCES purchases (purchase_id),
			ticket_id UUID NOT NULL REFERENCES tickets (ticket_id),
			tenant_id UUID NOT NULL,
			quantity INTEGER NOT NULL DEFAULT 1,
			subtotal NUMERIC(10, 2) NOT NULL,
			system_fee NUMERIC(10, 2) NOT NULL,
			unused BOOLEAN NOT NULL DEFAULT TRUE,
			validated_at TIMESTAMPTZ
		);`,
		`CREATE INDEX IF NOT EXISTS ticket_allocations_purchase_idx
			ON ticket_allocations (purchase_id);`,
		`CREATE TABLE IF NOT EXISTS payments (
			payment_id UUID PRIMARY KEY,
			purchase_id UUID NOT NULL UNIQUE REFERENCES purchases (purchase_id),
			session_id VARCHAR(255) NOT NULL,
			intent_id VARCHAR(255) NOT NULL DEFAULT '',
			amount NUMERIC(12, 2) NOT NULL,
			method VARCHAR(64) NOT NULL,
			status VARCHAR(32) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ
		);`,
		`CREATE INDEX IF NOT EXISTS payments_session_idx ON payments (session_id);`,
		`CREATE INDEX IF NOT EXISTS payments_intent_idx ON payments (intent_id);`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	return nil
}
