package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/d3i-infra/port-google-home/internal/core/domain"
	"github.com/d3i-infra/port-google-home/internal/infrastructure/resilience"
)

type DonationRepository struct {
	db    *sql.DB
	guard *resilience.Guard
}

func NewDonationRepository(db *sql.DB, guard *resilience.Guard) *DonationRepository {
	return &DonationRepository{db: db, guard: guard}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DonationRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2024061101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS donations (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL DEFAULT '',
	donation_key TEXT NOT NULL,
	payload TEXT NOT NULL,
	received_at TIMESTAMPTZ NOT NULL
);

ALTER TABLE donations ADD COLUMN IF NOT EXISTS session_id TEXT NOT NULL DEFAULT '';

CREATE INDEX IF NOT EXISTS idx_donations_session ON donations(session_id, received_at);
CREATE INDEX IF NOT EXISTS idx_donations_received_at ON donations(received_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Save inserts a donation. Redelivered events with a known id are ignored.
func (r *DonationRepository) Save(ctx context.Context, donation *domain.Donation) error {
	call := func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `
INSERT INTO donations (id, session_id, donation_key, payload, received_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING
`, donation.ID, donation.SessionID, donation.Key, donation.Payload, donation.ReceivedAt)
		if err != nil {
			return classifyDBError("insert donation", err)
		}
		return nil
	}

	if r.guard == nil {
		return call(ctx)
	}
	return r.guard.Deliver(ctx, "postgres.save_donation", call, resilience.ClassifyDomain)
}

// ListBySession returns every donation of one session, oldest first.
func (r *DonationRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.Donation, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, session_id, donation_key, payload, received_at
FROM donations
WHERE session_id = $1
ORDER BY received_at ASC, id ASC
`, sessionID)
	if err != nil {
		return nil, classifyDBError("list donations", err)
	}
	defer rows.Close()

	var out []domain.Donation
	for rows.Next() {
		var d domain.Donation
		if err := rows.Scan(&d.ID, &d.SessionID, &d.Key, &d.Payload, &d.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate donations: %w", err)
	}
	return out, nil
}

func classifyDBError(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) {
		return domain.WrapError(domain.ErrTemporary, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
