//go:build integration

package siem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritas/internal/audit/models"
	"veritas/pkg/testutil/containers"
)

func TestDedupSuppressesDuplicateDelivery(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	next := NewMemorySink()
	sink := NewDedup(next, rc.Client, time.Hour, nil)

	event := models.Event{EventID: "evt-1", EventType: models.EventDataAccess}
	require.NoError(t, sink.Deliver(ctx, event))
	require.NoError(t, sink.Deliver(ctx, event))

	assert.Len(t, next.Delivered(), 1, "the second delivery hits the marker and is suppressed")
}

func TestDedupMarkerOnlySetAfterSuccess(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	next := NewMemorySink()
	next.FailNext(1, context.DeadlineExceeded)
	sink := NewDedup(next, rc.Client, time.Hour, nil)

	event := models.Event{EventID: "evt-1", EventType: models.EventDataAccess}
	require.Error(t, sink.Deliver(ctx, event), "the primed failure surfaces")

	require.NoError(t, sink.Deliver(ctx, event), "a failed attempt stays retryable")
	assert.Len(t, next.Delivered(), 1)
}
