package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritas/internal/audit/chain"
	"veritas/internal/audit/models"
	"veritas/internal/audit/siem"
	"veritas/internal/audit/store/archive"
	"veritas/internal/audit/store/primary"
)

func testSubmission(tenantID string) Submission {
	return Submission{
		EventType: models.EventDataAccess,
		Context:   models.NewCorrelationContext(tenantID, "corr-1"),
		Actor:     models.Actor{ID: "user-7", Role: "analyst", Unit: "risk"},
		Payload: models.Payload{
			"resource": models.String("patient/123"),
			"count":    models.Int(3),
		},
		Classification:  models.ClassificationConfidential,
		ComplianceFlags: []models.ComplianceFlag{models.FlagGDPR, models.FlagHIPAA},
	}
}

func TestLogger_SubmitChainsEvents(t *testing.T) {
	store := primary.NewInMemoryStore()
	logger, err := New(store)
	require.NoError(t, err)

	previous := chain.GenesisHash
	for i := range 5 {
		event, err := logger.Submit(context.Background(), testSubmission("acme"))
		require.NoError(t, err)

		assert.Equal(t, int64(i), event.Sequence)
		assert.Equal(t, previous, event.PreviousHash)
		assert.NotEmpty(t, event.EventID)

		ok, err := chain.VerifyEvent(event)
		require.NoError(t, err)
		assert.True(t, ok, "committed event must re-verify against its own hash")

		previous = event.CurrentHash
	}

	events, err := logger.ListEvents(context.Background(), "acme", primary.Filter{}, primary.Page{})
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func TestLogger_SubmitDefaultsClassification(t *testing.T) {
	logger, err := New(primary.NewInMemoryStore())
	require.NoError(t, err)

	sub := testSubmission("acme")
	sub.Classification = ""
	event, err := logger.Submit(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, models.ClassificationInternal, event.Classification)
}

func TestLogger_SubmitValidation(t *testing.T) {
	store := primary.NewInMemoryStore()
	logger, err := New(store)
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(*Submission)
	}{
		{"missing tenant", func(s *Submission) { s.Context.TenantID = "" }},
		{"missing event type", func(s *Submission) { s.EventType = "" }},
		{"unknown event type", func(s *Submission) { s.EventType = "login_attempt" }},
		{"missing actor", func(s *Submission) { s.Actor.ID = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub := testSubmission("acme")
			tc.mutate(&sub)

			_, err := logger.Submit(context.Background(), sub)
			require.Error(t, err)
			assert.True(t, models.IsValidation(err))
		})
	}

	// Rejections leave no trace in the chain.
	tip, err := store.GetTip(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, chain.GenesisHash, tip)
}

func TestLogger_SubmitRejectsFloatPayload(t *testing.T) {
	logger, err := New(primary.NewInMemoryStore())
	require.NoError(t, err)

	sub := testSubmission("acme")
	sub.Payload = models.Payload{"score": models.String("0.5")}
	_, err = logger.Submit(context.Background(), sub)
	require.NoError(t, err, "stringified numbers are fine")

	sub.Payload = models.Payload{"score": nil}
	_, err = logger.Submit(context.Background(), sub)
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
}

func TestLogger_ConcurrentSubmitsNeverFork(t *testing.T) {
	store := primary.NewInMemoryStore()
	logger, err := New(store)
	require.NoError(t, err)

	const writers = 16
	const perWriter = 10

	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWriter {
				if _, err := logger.Submit(context.Background(), testSubmission("acme")); err != nil {
					t.Errorf("submit: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	events, err := store.ListEvents(context.Background(), "acme", primary.Filter{}, primary.Page{Limit: writers * perWriter})
	require.NoError(t, err)
	require.Len(t, events, writers*perWriter)

	previous := chain.GenesisHash
	for i, event := range events {
		assert.Equal(t, int64(i), event.Sequence)
		require.Equal(t, previous, event.PreviousHash, "event %d must link to its predecessor", i)
		ok, err := chain.VerifyEvent(event)
		require.NoError(t, err)
		require.True(t, ok)
		previous = event.CurrentHash
	}
}

func TestLogger_TenantChainsAreIndependent(t *testing.T) {
	store := primary.NewInMemoryStore()
	logger, err := New(store)
	require.NoError(t, err)

	a, err := logger.Submit(context.Background(), testSubmission("acme"))
	require.NoError(t, err)
	b, err := logger.Submit(context.Background(), testSubmission("globex"))
	require.NoError(t, err)

	assert.Equal(t, chain.GenesisHash, a.PreviousHash)
	assert.Equal(t, chain.GenesisHash, b.PreviousHash, "each tenant starts from its own genesis")
	assert.Equal(t, int64(0), b.Sequence)
}

func TestLogger_RetriesOnContinuityConflict(t *testing.T) {
	store := &conflictingStore{Store: primary.NewInMemoryStore(), conflicts: 2}
	logger, err := New(store)
	require.NoError(t, err)

	event, err := logger.Submit(context.Background(), testSubmission("acme"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), event.Sequence)
	assert.Equal(t, 3, store.appends, "two conflicts plus the committed attempt")
}

func TestLogger_GivesUpAfterMaxAttempts(t *testing.T) {
	store := &conflictingStore{Store: primary.NewInMemoryStore(), conflicts: 100}
	logger, err := New(store, WithMaxAttempts(3))
	require.NoError(t, err)

	_, err = logger.Submit(context.Background(), testSubmission("acme"))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrChainContinuity)
	assert.Equal(t, 3, store.appends)
}

func TestLogger_SubmitSucceedsWhenMirrorsFail(t *testing.T) {
	store := primary.NewInMemoryStore()
	sink := siem.NewMemorySink()
	sink.FailNext(100, errors.New("siem endpoint down"))

	fanout := NewFanout(failingArchive{}, sink)
	logger, err := New(store, WithFanout(fanout))
	require.NoError(t, err)

	event, err := logger.Submit(context.Background(), testSubmission("acme"))
	require.NoError(t, err, "mirror failures never reach the submitter")
	require.NoError(t, fanout.Close())

	tip, err := store.GetTip(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, event.CurrentHash, tip, "the durable commit stands regardless of fan-out")
}

func TestLogger_SubmitFanoutDeliversToMirrors(t *testing.T) {
	store := primary.NewInMemoryStore()
	archiveStore := archive.NewInMemoryStore(0)
	sink := siem.NewMemorySink()
	fanout := NewFanout(archiveStore, sink)

	logger, err := New(store, WithFanout(fanout))
	require.NoError(t, err)

	event, err := logger.Submit(context.Background(), testSubmission("acme"))
	require.NoError(t, err)
	require.NoError(t, fanout.Close())

	assert.True(t, archiveStore.Contains(event.EventID))
	require.Len(t, sink.Delivered(), 1)
	assert.Equal(t, event.EventID, sink.Delivered()[0].EventID)
}

// conflictingStore forces the first n appends to fail with a continuity
// conflict, as if another process won the race.
type conflictingStore struct {
	primary.Store
	conflicts int
	appends   int
}

func (s *conflictingStore) AppendIfTipMatches(ctx context.Context, event models.Event, expectedPreviousTip string) (models.Event, error) {
	s.appends++
	if s.conflicts > 0 {
		s.conflicts--
		return models.Event{}, models.ErrChainContinuity
	}
	return s.Store.AppendIfTipMatches(ctx, event, expectedPreviousTip)
}

// failingArchive rejects every write.
type failingArchive struct{}

func (failingArchive) Archive(context.Context, models.Event) error {
	return errors.New("bucket unavailable")
}
