// Package service orchestrates the audit trail write path: validate the
// submission, serialize against the tenant's chain tip, commit to the
// primary store, then mirror to the archive and SIEM off the critical path.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"veritas/internal/audit/chain"
	"veritas/internal/audit/metrics"
	"veritas/internal/audit/models"
	"veritas/internal/audit/store/primary"
)

// defaultMaxAttempts bounds retries on chain continuity conflicts. With the
// in-process tenant lock held across read-tip-and-append, conflicts only
// happen against writers in other processes, so a handful of retries is
// plenty.
const defaultMaxAttempts = 5

// Submission is one action a collaborator asks the trail to record.
type Submission struct {
	EventType       models.EventType
	Context         models.CorrelationContext
	Actor           models.Actor
	Payload         models.Payload
	Classification  models.Classification
	ComplianceFlags []models.ComplianceFlag
}

// Logger is the audit trail's single write entry point.
type Logger struct {
	store  primary.Store
	fanout *Fanout

	mu          sync.Mutex
	tenantLocks map[string]*sync.Mutex

	maxAttempts int
	logger      *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// Option configures the Logger.
type Option func(*Logger)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Logger) { l.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Logger) { l.metrics = m }
}

// WithFanout attaches the archive/SIEM dispatcher.
func WithFanout(f *Fanout) Option {
	return func(l *Logger) { l.fanout = f }
}

// WithMaxAttempts overrides the continuity-conflict retry bound.
func WithMaxAttempts(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// New creates an audit logger over the primary store.
func New(store primary.Store, opts ...Option) (*Logger, error) {
	if store == nil {
		return nil, fmt.Errorf("primary store is required")
	}
	l := &Logger{
		store:       store,
		tenantLocks: make(map[string]*sync.Mutex),
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Submit validates, chains, and durably commits one audit event, then
// mirrors it in the background. The returned event carries its assigned
// hashes and chain sequence. A caller only ever sees success once the
// chain-linked primary write has committed.
func (l *Logger) Submit(ctx context.Context, sub Submission) (models.Event, error) {
	if err := validate(sub); err != nil {
		if l.metrics != nil {
			l.metrics.ValidationRejected.Inc()
		}
		return models.Event{}, err
	}
	if sub.Classification == "" {
		sub.Classification = models.ClassificationInternal
	}

	start := l.now()

	// Serialize read-tip-then-append per tenant. Cross-process writers are
	// still caught by the store's compare-and-append; this lock just keeps
	// local contention from burning retries.
	lock := l.tenantLock(sub.Context.TenantID)
	lock.Lock()
	defer lock.Unlock()

	var committed models.Event
	for attempt := 1; ; attempt++ {
		tip, err := l.store.GetTip(ctx, sub.Context.TenantID)
		if err != nil {
			if l.metrics != nil {
				l.metrics.CommitFailures.Inc()
			}
			return models.Event{}, &models.PersistenceError{TenantID: sub.Context.TenantID, Err: err}
		}

		event, err := l.buildEvent(sub, tip)
		if err != nil {
			return models.Event{}, err
		}

		committed, err = l.store.AppendIfTipMatches(ctx, event, tip)
		if err == nil {
			break
		}
		if errors.Is(err, models.ErrChainContinuity) {
			if l.metrics != nil {
				l.metrics.ContinuityConflicts.Inc()
			}
			if attempt < l.maxAttempts {
				continue
			}
			return models.Event{}, fmt.Errorf("submit for tenant %s exhausted %d attempts: %w",
				sub.Context.TenantID, l.maxAttempts, models.ErrChainContinuity)
		}
		if l.metrics != nil {
			l.metrics.CommitFailures.Inc()
		}
		return models.Event{}, &models.PersistenceError{TenantID: sub.Context.TenantID, Err: err}
	}

	if l.metrics != nil {
		l.metrics.Submitted.Inc()
		l.metrics.SubmitDuration.Observe(l.now().Sub(start).Seconds())
	}
	if l.logger != nil {
		l.logger.InfoContext(ctx, "audit event committed",
			"tenant_id", committed.Context.TenantID,
			"event_id", committed.EventID,
			"event_type", committed.EventType,
			"sequence", committed.Sequence,
		)
	}
	if l.fanout != nil {
		l.fanout.Enqueue(committed)
	}
	return committed, nil
}

// ListEvents returns a tenant's committed events in chain order.
func (l *Logger) ListEvents(ctx context.Context, tenantID string, filter primary.Filter, page primary.Page) ([]models.Event, error) {
	if tenantID == "" {
		return nil, models.NewValidationError("tenant_id", "must not be empty")
	}
	return l.store.ListEvents(ctx, tenantID, filter, page)
}

func (l *Logger) buildEvent(sub Submission, tip string) (models.Event, error) {
	event := models.Event{
		EventID: uuid.NewString(),
		// Truncated to microseconds so the timestamp survives a
		// timestamptz round trip byte-identically; otherwise re-hashing
		// stored events would flag every record as tampered.
		Timestamp:       l.now().UTC().Truncate(time.Microsecond),
		EventType:       sub.EventType,
		Context:         sub.Context,
		Actor:           sub.Actor,
		Payload:         sub.Payload,
		Classification:  sub.Classification,
		ComplianceFlags: sub.ComplianceFlags,
		PreviousHash:    tip,
	}
	digest, err := chain.ComputeHash(event, tip)
	if err != nil {
		return models.Event{}, models.NewValidationError("payload", err.Error())
	}
	event.CurrentHash = digest
	return event, nil
}

func (l *Logger) tenantLock(tenantID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.tenantLocks[tenantID]
	if !ok {
		lock = &sync.Mutex{}
		l.tenantLocks[tenantID] = lock
	}
	return lock
}

func validate(sub Submission) error {
	if sub.Context.TenantID == "" {
		return models.NewValidationError("tenant_id", "must not be empty")
	}
	if sub.EventType == "" {
		return models.NewValidationError("event_type", "must not be empty")
	}
	if !sub.EventType.Known() {
		return models.NewValidationError("event_type", fmt.Sprintf("unknown event type %q", sub.EventType))
	}
	if sub.Actor.ID == "" {
		return models.NewValidationError("actor.id", "must not be empty")
	}
	if err := sub.Payload.Validate(); err != nil {
		return models.NewValidationError("payload", err.Error())
	}
	return nil
}
