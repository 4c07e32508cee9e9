package primary

import (
	"context"
	"fmt"
	"sync"

	"veritas/internal/audit/chain"
	"veritas/internal/audit/models"
)

// InMemoryStore keeps each tenant's chain as an append-only slice indexed by
// sequence. Suitable for tests and single-process deployments; the
// compare-and-append check runs under the tenant's lock so racing writers
// serialize exactly like they would against the Postgres store.
type InMemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]*tenantChain
}

type tenantChain struct {
	mu     sync.Mutex
	events []models.Event
}

// NewInMemoryStore creates an empty in-memory primary store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{tenants: make(map[string]*tenantChain)}
}

func (s *InMemoryStore) tenant(tenantID string) *tenantChain {
	s.mu.Lock()
	defer s.mu.Unlock()
	tc, ok := s.tenants[tenantID]
	if !ok {
		tc = &tenantChain{}
		s.tenants[tenantID] = tc
	}
	return tc
}

// AppendIfTipMatches commits the event if the tenant tip is unchanged.
func (s *InMemoryStore) AppendIfTipMatches(_ context.Context, event models.Event, expectedPreviousTip string) (models.Event, error) {
	tc := s.tenant(event.Context.TenantID)
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tip := chain.GenesisHash
	if n := len(tc.events); n > 0 {
		tip = tc.events[n-1].CurrentHash
	}
	if tip != expectedPreviousTip {
		return models.Event{}, fmt.Errorf("tip moved for tenant %s: %w", event.Context.TenantID, models.ErrChainContinuity)
	}

	event.Sequence = int64(len(tc.events))
	tc.events = append(tc.events, event)
	return event, nil
}

// GetTip returns the tenant's current tip, or the genesis sentinel.
func (s *InMemoryStore) GetTip(_ context.Context, tenantID string) (string, error) {
	tc := s.tenant(tenantID)
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if n := len(tc.events); n > 0 {
		return tc.events[n-1].CurrentHash, nil
	}
	return chain.GenesisHash, nil
}

// ListEvents returns committed events in chain order.
func (s *InMemoryStore) ListEvents(_ context.Context, tenantID string, filter Filter, page Page) ([]models.Event, error) {
	tc := s.tenant(tenantID)
	tc.mu.Lock()
	defer tc.mu.Unlock()

	limit := page.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}

	var out []models.Event
	skipped := 0
	for _, e := range tc.events {
		if !matches(e, filter) {
			continue
		}
		if skipped < page.Offset {
			skipped++
			continue
		}
		out = append(out, e)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Tamper overwrites a committed event in place. Test hook only: it exists so
// verifier tests can simulate storage-level modification of history, which
// the public Store contract forbids.
func (s *InMemoryStore) Tamper(tenantID string, sequence int64, mutate func(*models.Event)) error {
	tc := s.tenant(tenantID)
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if sequence < 0 || sequence >= int64(len(tc.events)) {
		return fmt.Errorf("sequence %d out of range", sequence)
	}
	mutate(&tc.events[sequence])
	return nil
}

// Truncate drops every event at or after sequence. Test hook for simulating
// record deletion.
func (s *InMemoryStore) Truncate(tenantID string, sequence int64) error {
	tc := s.tenant(tenantID)
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if sequence < 0 || sequence > int64(len(tc.events)) {
		return fmt.Errorf("sequence %d out of range", sequence)
	}
	tc.events = tc.events[:sequence]
	return nil
}

// Remove deletes a single committed event and reindexes the remainder. Test
// hook for simulating a dropped record mid-chain.
func (s *InMemoryStore) Remove(tenantID string, sequence int64) error {
	tc := s.tenant(tenantID)
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if sequence < 0 || sequence >= int64(len(tc.events)) {
		return fmt.Errorf("sequence %d out of range", sequence)
	}
	tc.events = append(tc.events[:sequence], tc.events[sequence+1:]...)
	for i := range tc.events {
		tc.events[i].Sequence = int64(i)
	}
	return nil
}
