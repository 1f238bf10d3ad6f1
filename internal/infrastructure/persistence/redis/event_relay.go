package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alem-hub/course-rewards/internal/domain/shared"
	"github.com/alem-hub/course-rewards/pkg/retry"
)

// RelayMessage is the wire form of a relayed event.
type RelayMessage struct {
	Type        shared.EventType       `json:"type"`
	AggregateID string                 `json:"aggregate_id"`
	Height      uint64                 `json:"height"`
	OccurredAt  time.Time              `json:"occurred_at"`
	Payload     map[string]interface{} `json:"payload"`
}

// NewRelayMessage converts an event to its wire form.
func NewRelayMessage(event shared.Event) RelayMessage {
	return RelayMessage{
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Height:      event.BlockHeight(),
		OccurredAt:  event.OccurredAt(),
		Payload:     event.Payload(),
	}
}

// EventRelay publishes reward events to Redis so other processes can follow
// completions and configuration changes.
type EventRelay struct {
	cache   *Cache
	timeout time.Duration
	logger  *slog.Logger
}

// NewEventRelay creates a relay. timeout bounds each publish.
func NewEventRelay(cache *Cache, timeout time.Duration, logger *slog.Logger) *EventRelay {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventRelay{cache: cache, timeout: timeout, logger: logger}
}

// Publish implements shared.EventPublisher.
func (r *EventRelay) Publish(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.cache.Publish(ctx, EventChannel(event.EventType()), NewRelayMessage(event)); err != nil {
		err = fmt.Errorf("relay %s: %w", event.EventType(), err)
		if errors.Is(err, ErrCacheSerialization) {
			return retry.Permanent(err)
		}
		return err
	}
	return nil
}

// Handler adapts Publish to a bus subscription.
func (r *EventRelay) Handler() shared.EventHandler {
	return r.Publish
}

// Listen delivers relayed messages to fn until ctx is done.
func (r *EventRelay) Listen(ctx context.Context, fn func(RelayMessage)) error {
	sub := r.cache.PSubscribe(ctx, PrefixEvents+"*")
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var m RelayMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				r.logger.Warn("dropping malformed relay message",
					"channel", msg.Channel,
					"error", err,
				)
				continue
			}
			fn(m)
		}
	}
}
