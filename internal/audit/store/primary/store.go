// Package primary defines the durable, insert-only store that owns each
// tenant's chain tip. The append operation is atomic with respect to the tip
// check, which is what prevents forks under concurrent writers.
package primary

import (
	"context"
	"time"

	"veritas/internal/audit/models"
)

// Filter narrows ListEvents results. Zero values mean "no constraint".
type Filter struct {
	CorrelationID string
	ActorID       string
	EventType     models.EventType
	From          time.Time
	To            time.Time
}

// Page bounds a ListEvents result. A zero Limit falls back to DefaultPageLimit.
type Page struct {
	Limit  int
	Offset int
}

// DefaultPageLimit applies when the caller does not bound the page.
const DefaultPageLimit = 100

// Store is the single source of truth for "what is the current chain tip".
// Committed events are never updated or deleted within the retention window.
type Store interface {
	// AppendIfTipMatches commits the event as the tenant's new tip, but only
	// if the tenant's current tip still equals expectedPreviousTip (the
	// genesis sentinel for a fresh tenant). On success it returns the
	// committed event with its chain sequence assigned. Returns
	// models.ErrChainContinuity when another writer got there first; the
	// caller re-reads the tip and retries.
	AppendIfTipMatches(ctx context.Context, event models.Event, expectedPreviousTip string) (models.Event, error)

	// GetTip returns the tenant's current tip hash, or the genesis sentinel
	// when the tenant has no events yet.
	GetTip(ctx context.Context, tenantID string) (string, error)

	// ListEvents returns the tenant's committed events in chain order,
	// filtered and paginated.
	ListEvents(ctx context.Context, tenantID string, filter Filter, page Page) ([]models.Event, error)
}

func matches(event models.Event, filter Filter) bool {
	if filter.CorrelationID != "" && event.Context.CorrelationID != filter.CorrelationID {
		return false
	}
	if filter.ActorID != "" && event.Actor.ID != filter.ActorID {
		return false
	}
	if filter.EventType != "" && event.EventType != filter.EventType {
		return false
	}
	if !filter.From.IsZero() && event.Timestamp.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && event.Timestamp.After(filter.To) {
		return false
	}
	return true
}
