// Package siem fans committed audit events out to external security
// platforms. Delivery is strictly best-effort: failures are recorded and
// retried but never affect chain validity or the caller of submit.
package siem

import (
	"context"
	"sync"

	"veritas/internal/audit/models"
)

// Sink delivers one committed event to a security platform. Concrete wire
// formats are adapter-specific; the core only sees ack or error.
type Sink interface {
	Deliver(ctx context.Context, event models.Event) error
	Close() error
}

// MemorySink collects delivered events for tests. It can be primed to fail
// a number of deliveries to exercise retry and breaker paths.
type MemorySink struct {
	mu        sync.Mutex
	delivered []models.Event
	failures  int
	failErr   error
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// FailNext makes the next n deliveries return err.
func (s *MemorySink) FailNext(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
	s.failErr = err
}

// Deliver records the event, or fails if primed to.
func (s *MemorySink) Deliver(_ context.Context, event models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return s.failErr
	}
	s.delivered = append(s.delivered, event)
	return nil
}

// Delivered returns a copy of everything delivered so far.
func (s *MemorySink) Delivered() []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Event(nil), s.delivered...)
}

// Close is a no-op.
func (s *MemorySink) Close() error { return nil }
