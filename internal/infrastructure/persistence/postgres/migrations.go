package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration is one schema change.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies the embedded migrations in version order.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a migrator over the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: Migrations(),
		tableName:  "schema_migrations",
	}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.conn.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName))
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx, fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var (
			version   int
			appliedAt time.Time
		)
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

// Migrate applies every pending migration, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName), mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}
	return nil
}

// Status reports which migrations are applied.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Migration, len(m.migrations))
	copy(result, m.migrations)
	for i := range result {
		if at, ok := applied[result[i].Version]; ok {
			result[i].IsApplied = true
			result[i].AppliedAt = at
		}
	}
	return result, nil
}

// Migrations returns the embedded migrations in version order.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_token_ledger", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_course_progress", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_reward_audit_log", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: TOKEN LEDGER
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Amounts are 256-bit unsigned integers stored as NUMERIC(78, 0)
CREATE TABLE IF NOT EXISTS token_supply (
    id SMALLINT PRIMARY KEY DEFAULT 1,
    supply NUMERIC(78, 0) NOT NULL DEFAULT 0,
    supply_cap NUMERIC(78, 0),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT single_row CHECK (id = 1),
    CONSTRAINT valid_supply CHECK (supply >= 0),
    CONSTRAINT within_cap CHECK (supply_cap IS NULL OR supply <= supply_cap)
);

INSERT INTO token_supply (id) VALUES (1) ON CONFLICT (id) DO NOTHING;

CREATE TABLE IF NOT EXISTS token_balances (
    account VARCHAR(128) PRIMARY KEY,
    balance NUMERIC(78, 0) NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_balance CHECK (balance >= 0)
);

CREATE TABLE IF NOT EXISTS token_mints (
    id BIGSERIAL PRIMARY KEY,
    account VARCHAR(128) NOT NULL,
    amount NUMERIC(78, 0) NOT NULL,
    minted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_token_mints_account ON token_mints(account);
`

const migration001Down = `
DROP TABLE IF EXISTS token_mints;
DROP TABLE IF EXISTS token_balances;
DROP TABLE IF EXISTS token_supply;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: COURSE PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS course_progress (
    account VARCHAR(128) NOT NULL,
    course_id NUMERIC(20, 0) NOT NULL,
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (account, course_id)
);

CREATE INDEX IF NOT EXISTS idx_course_progress_course ON course_progress(course_id);
`

const migration002Down = `
DROP TABLE IF EXISTS course_progress;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: REWARD AUDIT LOG
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS reward_audit_log (
    id UUID PRIMARY KEY,
    event_type VARCHAR(64) NOT NULL,
    aggregate_id VARCHAR(256) NOT NULL,
    height NUMERIC(20, 0) NOT NULL,
    payload JSONB NOT NULL,
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
    recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_reward_audit_type ON reward_audit_log(event_type);
CREATE INDEX IF NOT EXISTS idx_reward_audit_aggregate ON reward_audit_log(aggregate_id);
`

const migration003Down = `
DROP TABLE IF EXISTS reward_audit_log;
`
