package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"boxoffice/entity"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type SectionRepo struct {
	db *sqlx.DB
}

func NewSectionRepo(db *sqlx.DB) SectionRepo {
	return SectionRepo{
		db: db,
	}
}

func (r SectionRepo) Get(ctx context.Context, sectionID, tenantID string) (entity.Section, error) {
	var s entity.Section
	err := r.db.QueryRowxContext(ctx, `SELECT section_id, event_id, tenant_id, name, unit_price, active
		FROM sections WHERE section_id = $1 AND tenant_id = $2`,
		sectionID, tenantID).
		Scan(&s.ID, &s.EventID, &s.TenantID, &s.Name, &s.UnitPrice, &s.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Section{}, entity.ErrSectionNotFound
	}
	if err != nil {
		return entity.Section{}, fmt.Errorf("querying section: %w", err)
	}

	return s, nil
}

// Add registers a section. Section management owns this data; the engine
// exposes it for bootstrap and tests.
func (r SectionRepo) Add(ctx context.Context, section entity.Section) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO sections
		(section_id, event_id, tenant_id, name, unit_price, active)
		VALUES ($1, $2, $3, $4, $5, $6);`,
		section.ID, section.EventID, section.TenantID, section.Name, section.UnitPrice, section.Active)
	if err != nil {
		return fmt.Errorf("inserting section: %w", err)
	}

	return nil
}

type TicketRepo struct {
	db *sqlx.DB
}

func NewTicketRepo(db *sqlx.DB) TicketRepo {
	return TicketRepo{
		db: db,
	}
}

// AddBatch bulk-creates tickets for a section, the way section management
// provisions inventory.
func (r TicketRepo) AddBatch(ctx context.Context, section entity.Section, count int) ([]string, error) {
	ids := make([]string, 0, count)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	for i := 0; i < count; i++ {
		id := uuid.NewString()
		_, err := tx.ExecContext(ctx, `INSERT INTO tickets
			(ticket_id, section_id, tenant_id, price, available)
			VALUES ($1, $2, $3, $4, TRUE);`,
			id, section.ID, section.TenantID, section.UnitPrice)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("inserting ticket: %w", err), tx.Rollback())
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return ids, nil
}

func (r TicketRepo) CountAvailable(ctx context.Context, sectionID, tenantID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets
		WHERE section_id = $1 AND tenant_id = $2 AND available`,
		sectionID, tenantID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting available tickets: %w", err)
	}

	return n, nil
}
