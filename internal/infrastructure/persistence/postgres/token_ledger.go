package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/course-rewards/internal/domain/shared"
)

// ErrSupplyCapExceeded is returned when a mint would exceed the supply cap.
var ErrSupplyCapExceeded = errors.New("postgres: token supply cap exceeded")

// ══════════════════════════════════════════════════════════════════════════════
// TOKEN LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// TokenLedger mints reward tokens into token_balances. The supply row is
// locked by the capped UPDATE so concurrent mints serialize on it.
type TokenLedger struct {
	conn *Connection
}

// NewTokenLedger creates a token ledger.
func NewTokenLedger(conn *Connection) *TokenLedger {
	return &TokenLedger{conn: conn}
}

// SetSupplyCap sets the supply cap. A nil or zero cap removes it.
func (l *TokenLedger) SetSupplyCap(ctx context.Context, supplyCap *uint256.Int) error {
	var capArg interface{}
	if supplyCap != nil && !supplyCap.IsZero() {
		capArg = supplyCap.Dec()
	}

	_, err := l.conn.Exec(ctx, `
		UPDATE token_supply SET supply_cap = $1::text::numeric, updated_at = NOW() WHERE id = 1
	`, capArg)
	if err != nil {
		if IsCheckViolation(err) {
			return fmt.Errorf("%w: cap below current supply", ErrSupplyCapExceeded)
		}
		return fmt.Errorf("failed to set supply cap: %w", err)
	}
	return nil
}

// Mint implements distributor.TokenMinter.
func (l *TokenLedger) Mint(ctx context.Context, recipient shared.Identity, amount *uint256.Int) error {
	value := amount.Dec()

	return l.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		var supply string
		err := tx.QueryRow(ctx, `
			UPDATE token_supply
			SET supply = supply + $1::text::numeric, updated_at = NOW()
			WHERE id = 1 AND (supply_cap IS NULL OR supply + $1::text::numeric <= supply_cap)
			RETURNING supply::text
		`, value).Scan(&supply)
		if IsNoRows(err) {
			return ErrSupplyCapExceeded
		}
		if err != nil {
			return fmt.Errorf("failed to update supply: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO token_balances (account, balance) VALUES ($1, $2::text::numeric)
			ON CONFLICT (account) DO UPDATE
			SET balance = token_balances.balance + EXCLUDED.balance, updated_at = NOW()
		`, recipient.String(), value)
		if err != nil {
			return fmt.Errorf("failed to credit balance: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO token_mints (account, amount) VALUES ($1, $2::text::numeric)
		`, recipient.String(), value)
		if err != nil {
			return fmt.Errorf("failed to record mint: %w", err)
		}
		return nil
	})
}

// BalanceOf returns the balance of an account, zero when unknown.
func (l *TokenLedger) BalanceOf(ctx context.Context, account shared.Identity) (*uint256.Int, error) {
	var balance string
	err := l.conn.QueryRow(ctx, `
		SELECT balance::text FROM token_balances WHERE account = $1
	`, account.String()).Scan(&balance)
	if IsNoRows(err) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return parseAmount(balance)
}

// Supply returns the total minted supply.
func (l *TokenLedger) Supply(ctx context.Context) (*uint256.Int, error) {
	var supply string
	if err := l.conn.QueryRow(ctx, `SELECT supply::text FROM token_supply WHERE id = 1`).Scan(&supply); err != nil {
		return nil, fmt.Errorf("failed to get supply: %w", err)
	}
	return parseAmount(supply)
}

func parseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository records finished courses in course_progress.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a progress repository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// CompleteCourse implements distributor.ProgressTracker. Recording the same
// course twice is a no-op.
func (r *ProgressRepository) CompleteCourse(ctx context.Context, user shared.Identity, course shared.CourseID) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO course_progress (account, course_id) VALUES ($1, $2::text::numeric)
		ON CONFLICT (account, course_id) DO NOTHING
	`, user.String(), course.String())
	if err != nil {
		return fmt.Errorf("failed to record progress: %w", err)
	}
	return nil
}

// CompletedCourses lists the courses recorded for user.
func (r *ProgressRepository) CompletedCourses(ctx context.Context, user shared.Identity) ([]shared.CourseID, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT course_id::text FROM course_progress WHERE account = $1 ORDER BY course_id
	`, user.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var courses []shared.CourseID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		id, err := shared.ParseCourseID(raw)
		if err != nil {
			return nil, err
		}
		courses = append(courses, id)
	}
	return courses, rows.Err()
}
