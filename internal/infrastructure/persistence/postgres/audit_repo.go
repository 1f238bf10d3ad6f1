package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/course-rewards/internal/domain/shared"
	"github.com/alem-hub/course-rewards/pkg/retry"
)

// AuditRecord is one row of the reward audit log.
type AuditRecord struct {
	ID          uuid.UUID
	EventType   shared.EventType
	AggregateID string
	Height      uint64
	Payload     map[string]interface{}
	OccurredAt  time.Time
}

// AuditRepository appends domain events to reward_audit_log.
type AuditRepository struct {
	conn *Connection
}

// NewAuditRepository creates an audit repository.
func NewAuditRepository(conn *Connection) *AuditRepository {
	return &AuditRepository{conn: conn}
}

// Append stores an event under a fresh id.
func (r *AuditRepository) Append(ctx context.Context, event shared.Event) error {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to marshal payload: %w", err))
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO reward_audit_log (id, event_type, aggregate_id, height, payload, occurred_at)
		VALUES ($1::text::uuid, $2, $3, $4::text::numeric, $5, $6)
	`,
		uuid.NewString(),
		string(event.EventType()),
		event.AggregateID(),
		strconv.FormatUint(event.BlockHeight(), 10),
		payload,
		event.OccurredAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

// Handler adapts Append to a bus subscription.
func (r *AuditRepository) Handler(timeout time.Duration) shared.EventHandler {
	return func(event shared.Event) error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return r.Append(ctx, event)
	}
}

// ByAggregate returns the audit trail of one aggregate, oldest first.
func (r *AuditRepository) ByAggregate(ctx context.Context, aggregateID string, limit int) ([]AuditRecord, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id::text, event_type, aggregate_id, height::text, payload, occurred_at
		FROM reward_audit_log
		WHERE aggregate_id = $1
		ORDER BY occurred_at, height
		LIMIT $2
	`, aggregateID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var records []AuditRecord
	for rows.Next() {
		var (
			rec       AuditRecord
			id        string
			eventType string
			height    string
			payload   []byte
		)
		if err := rows.Scan(&id, &eventType, &rec.AggregateID, &height, &payload, &rec.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid audit id %q: %w", id, err)
		}
		rec.EventType = shared.EventType(eventType)
		if rec.Height, err = strconv.ParseUint(height, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid audit height %q: %w", height, err)
		}
		if err := json.Unmarshal(payload, &rec.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
