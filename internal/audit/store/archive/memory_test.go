package archive

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritas/internal/audit/models"
)

func archivedEvent() models.Event {
	return models.Event{
		EventID:   "9d2f8c15-7a44-4b0e-8a2d-01c3f9b1e6aa",
		Timestamp: time.Date(2026, 7, 9, 16, 4, 0, 0, time.UTC),
		EventType: models.EventDataDeletion,
		Context: models.CorrelationContext{
			TenantID:      "acme",
			CorrelationID: "corr-1",
			SpanID:        "span-1",
		},
		Actor:          models.Actor{ID: "admin-3", Role: "dpo"},
		Classification: models.ClassificationRestricted,
		PreviousHash:   "aa",
		CurrentHash:    "bb",
	}
}

func TestObjectKey_PartitionedByTenantAndDate(t *testing.T) {
	key := ObjectKey(archivedEvent())
	assert.Equal(t, "acme/2026/07/09/9d2f8c15-7a44-4b0e-8a2d-01c3f9b1e6aa.json", key)
}

func TestInMemoryStore_ArchiveAndReadBack(t *testing.T) {
	store := NewInMemoryStore(0)
	event := archivedEvent()

	require.NoError(t, store.Archive(context.Background(), event))
	require.True(t, store.Contains(event.EventID))

	body, retainUntil, ok := store.Object(event.EventID)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(DefaultRetention), retainUntil, time.Minute)

	var got models.Event
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, event.EventID, got.EventID)
	assert.Equal(t, event.CurrentHash, got.CurrentHash)

	key, ok := store.Key(event.EventID)
	require.True(t, ok)
	assert.Equal(t, ObjectKey(event), key)
}

func TestInMemoryStore_ReArchiveIsNoOp(t *testing.T) {
	store := NewInMemoryStore(time.Hour)
	event := archivedEvent()
	ctx := context.Background()

	require.NoError(t, store.Archive(ctx, event))
	firstBody, firstRetain, _ := store.Object(event.EventID)

	// A second archive attempt, even with different content, must not touch
	// the stored object.
	mutated := event
	mutated.Actor.ID = "someone-else"
	require.NoError(t, store.Archive(ctx, mutated))

	body, retain, ok := store.Object(event.EventID)
	require.True(t, ok)
	assert.Equal(t, firstBody, body)
	assert.Equal(t, firstRetain, retain)
	assert.Equal(t, 1, store.Len())
}
