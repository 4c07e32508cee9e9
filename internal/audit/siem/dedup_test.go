package siem

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritas/internal/audit/models"
)

func TestDedupFailsOpenWhenRedisUnreachable(t *testing.T) {
	// Nothing listens here; every Redis call fails immediately.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })

	next := NewMemorySink()
	sink := NewDedup(next, client, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := sink.Deliver(context.Background(), models.Event{EventID: "evt-1"})
	require.NoError(t, err, "a down dedup guard must not block delivery")
	assert.Len(t, next.Delivered(), 1)
}
