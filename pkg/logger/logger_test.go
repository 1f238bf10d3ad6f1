package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()

	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		entries = append(entries, e)
	}
	return entries
}

func TestLogger_WritesJSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelDebug}).With(Component("distributor"))

	log.Info("claim settled",
		User("ST1ALICE"),
		CourseID(7),
		Amount("10000"),
		Latency(1500*time.Millisecond),
		Err(errors.New("boom")),
	)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "INFO", e.Level)
	assert.Equal(t, "claim settled", e.Message)
	assert.Equal(t, "distributor", e.Fields["component"])
	assert.Equal(t, "ST1ALICE", e.Fields["user"])
	assert.Equal(t, float64(7), e.Fields["course_id"])
	assert.Equal(t, "10000", e.Fields["amount"])
	assert.Equal(t, "1.5s", e.Fields["latency"])
	assert.Equal(t, "boom", e.Fields["error"])
	assert.Empty(t, e.Caller)
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelWarn})

	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")
	log.With(Component("child")).Info("hidden in child")
	log.Error("shown too")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0].Level)
	assert.Equal(t, "ERROR", entries[1].Level)
}

func TestLogger_WithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := New(Options{Output: &buf})
	_ = parent.With(String("child", "yes"))

	parent.Info("from parent")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Fields, "child")
}

func TestLogger_CallerIsRecorded(t *testing.T) {
	var buf bytes.Buffer
	New(Options{Output: &buf, AddCaller: true}).Info("where")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Caller, "logger_test.go:"), entries[0].Caller)
}

func TestLogger_DerivedLoggersDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	root := New(Options{Output: &buf})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			child := root.With(Int("worker", i))
			for j := 0; j < 20; j++ {
				child.Info("tick")
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, decodeLines(t, &buf), 160)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}

func TestContext(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf}).WithRequestID("req-1")

	ctx := WithContext(context.Background(), log)
	assert.Same(t, log, FromContext(ctx, nil))

	FromContext(ctx, nil).Info("hello")
	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-1", entries[0].Fields[RequestIDKey])
}

func TestFromContext_Fallback(t *testing.T) {
	fallback := New(Options{Output: &bytes.Buffer{}})

	assert.Same(t, fallback, FromContext(context.Background(), fallback))
	assert.Same(t, fallback, FromContext(WithContext(context.Background(), nil), fallback))
	assert.Nil(t, FromContext(context.Background(), nil))
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}
