package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritas/internal/audit/chain"
	"veritas/internal/audit/models"
	"veritas/internal/audit/siem"
	"veritas/internal/audit/store/archive"
)

func fanoutEvent(id string) models.Event {
	return models.Event{
		EventID:      id,
		Timestamp:    time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC),
		EventType:    models.EventDataAccess,
		Context:      models.CorrelationContext{TenantID: "acme", CorrelationID: "corr-1", SpanID: "span-1"},
		Actor:        models.Actor{ID: "user-7", Role: "analyst", Unit: "risk"},
		PreviousHash: chain.GenesisHash,
		CurrentHash:  "deadbeef",
	}
}

func TestFanout_DrainsOnClose(t *testing.T) {
	archiveStore := archive.NewInMemoryStore(0)
	sink := siem.NewMemorySink()
	f := NewFanout(archiveStore, sink)

	for i := range 50 {
		f.Enqueue(fanoutEvent(fmt.Sprintf("evt-%d", i)))
	}
	require.NoError(t, f.Close())

	assert.Equal(t, 50, archiveStore.Len())
	assert.Len(t, sink.Delivered(), 50)
}

func TestFanout_ArchiveFailureDoesNotBlockSIEM(t *testing.T) {
	sink := siem.NewMemorySink()
	f := NewFanout(failingArchive{}, sink)

	f.Enqueue(fanoutEvent("evt-1"))
	require.NoError(t, f.Close())

	require.Len(t, sink.Delivered(), 1, "a broken archive must not starve the SIEM mirror")
}

func TestFanout_ReArchiveIsIdempotent(t *testing.T) {
	archiveStore := archive.NewInMemoryStore(0)
	f := NewFanout(archiveStore, nil)

	event := fanoutEvent("evt-1")
	f.Enqueue(event)
	f.Enqueue(event)
	require.NoError(t, f.Close())

	assert.Equal(t, 1, archiveStore.Len(), "the write-once archive absorbs duplicates")
}

func TestFanout_BreakerSuppressesDeliveryWhileOpen(t *testing.T) {
	sink := siem.NewMemorySink()
	sink.FailNext(2, errors.New("connection refused"))
	f := NewFanout(nil, sink, WithFanoutBreaker(siem.NewCircuitBreaker(2, time.Hour)))

	// Two failures trip the breaker; the third event is dropped without an
	// attempt and nothing reaches the sink.
	f.Enqueue(fanoutEvent("evt-1"))
	f.Enqueue(fanoutEvent("evt-2"))
	f.Enqueue(fanoutEvent("evt-3"))
	require.NoError(t, f.Close())

	assert.Empty(t, sink.Delivered())
	assert.True(t, f.breaker.IsOpen())
}

func TestFanout_NilDestinationsAreSkipped(t *testing.T) {
	f := NewFanout(nil, nil)
	f.Enqueue(fanoutEvent("evt-1"))
	require.NoError(t, f.Close())
}

func TestRingBuffer_FIFOOrder(t *testing.T) {
	b := newRingBuffer(8)
	for _, id := range []string{"a", "b", "c"} {
		assert.False(t, b.enqueue(fanoutEvent(id)))
	}

	batch := b.dequeueBatch(2)
	require.Len(t, batch, 2)
	assert.Equal(t, "a", batch[0].EventID)
	assert.Equal(t, "b", batch[1].EventID)
	assert.Equal(t, 1, b.len())
}

func TestRingBuffer_DropsOldestWhenFull(t *testing.T) {
	b := newRingBuffer(2)
	assert.False(t, b.enqueue(fanoutEvent("a")))
	assert.False(t, b.enqueue(fanoutEvent("b")))
	assert.True(t, b.enqueue(fanoutEvent("c")), "a full buffer evicts its oldest entry")

	batch := b.dequeueBatch(10)
	require.Len(t, batch, 2)
	assert.Equal(t, "b", batch[0].EventID)
	assert.Equal(t, "c", batch[1].EventID)
	assert.Equal(t, int64(1), b.droppedCount())
}

func TestRingBuffer_WrapsAround(t *testing.T) {
	b := newRingBuffer(3)
	b.enqueue(fanoutEvent("a"))
	b.enqueue(fanoutEvent("b"))
	require.Len(t, b.dequeueBatch(2), 2)

	b.enqueue(fanoutEvent("c"))
	b.enqueue(fanoutEvent("d"))
	b.enqueue(fanoutEvent("e"))

	batch := b.dequeueBatch(3)
	require.Len(t, batch, 3)
	assert.Equal(t, "c", batch[0].EventID)
	assert.Equal(t, "e", batch[2].EventID)
}
