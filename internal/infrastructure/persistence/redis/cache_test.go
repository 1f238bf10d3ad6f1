package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/course-rewards/internal/domain/shared"
	"github.com/alem-hub/course-rewards/pkg/retry"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "rewards:answer_key:42", AnswerKeyKey(42))
	assert.Equal(t, "rewards:events:rewards.course_completed", EventChannel(shared.EventCourseCompleted))
	assert.Equal(t, "localhost:6379", DefaultConfig().Addr())
}

func TestCache_ValidatesBeforeNetwork(t *testing.T) {
	c := NewCacheFromClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}))
	defer c.Close()
	ctx := context.Background()

	assert.ErrorIs(t, c.Set(ctx, "", 1, 0), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.Set(ctx, "k", make(chan int), 0), ErrCacheSerialization)
	assert.ErrorIs(t, c.Get(ctx, "", nil), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.Publish(ctx, "", "x"), ErrCacheKeyEmpty)
	assert.NoError(t, c.Delete(ctx))
}

func TestNewCache_Unreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 1
	cfg.DialTimeout = 100 * time.Millisecond
	cfg.MaxRetries = -1
	cfg.ConnectAttempts = 1

	_, err := NewCache(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrCacheConnection)
}

func TestNewRelayMessage(t *testing.T) {
	key := shared.NewEnrollmentKey("ST1ALICE", 1)
	event := shared.NewCourseCompletedEvent(key, 80, "10000", "CERT-ABCDEFGHI", 12)

	msg := NewRelayMessage(event)
	require.Equal(t, shared.EventCourseCompleted, msg.Type)
	assert.Equal(t, uint64(12), msg.Height)
	assert.Equal(t, key.String(), msg.AggregateID)
	assert.Equal(t, "10000", msg.Payload["tokens_awarded"])
	assert.Equal(t, "CERT-ABCDEFGHI", msg.Payload["cert_id"])
}

type unencodableEvent struct {
	shared.Event
}

func (unencodableEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"ch": make(chan int)}
}

func TestEventRelay_SerializationFailureIsPermanent(t *testing.T) {
	c := NewCacheFromClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}))
	defer c.Close()
	relay := NewEventRelay(c, 100*time.Millisecond, nil)

	err := relay.Publish(unencodableEvent{Event: shared.NewMultiplierSetEvent(150, 1)})
	require.Error(t, err)
	assert.True(t, retry.IsPermanent(err))
	assert.ErrorIs(t, err, ErrCacheSerialization)
}
