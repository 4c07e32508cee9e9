package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"veritas/internal/audit/models"
)

// InMemoryStore enforces the archive's write-once contract in memory.
// Used by tests and local runs; it keeps the serialized object plus its
// retention date so tests can assert the lock semantics the S3 store
// delegates to object lock.
type InMemoryStore struct {
	mu        sync.RWMutex
	objects   map[string]storedObject
	retention time.Duration
	now       func() time.Time
}

type storedObject struct {
	key         string
	body        []byte
	retainUntil time.Time
}

// NewInMemoryStore creates an empty archive with the given retention window.
// A zero retention falls back to DefaultRetention.
func NewInMemoryStore(retention time.Duration) *InMemoryStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &InMemoryStore{
		objects:   make(map[string]storedObject),
		retention: retention,
		now:       time.Now,
	}
}

// Archive stores a write-once copy keyed by the event ID. Re-archiving the
// same event is a no-op.
func (s *InMemoryStore) Archive(_ context.Context, event models.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal archive object: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[event.EventID]; exists {
		return nil
	}
	s.objects[event.EventID] = storedObject{
		key:         ObjectKey(event),
		body:        body,
		retainUntil: s.now().Add(s.retention),
	}
	return nil
}

// Contains reports whether an event has been archived.
func (s *InMemoryStore) Contains(eventID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[eventID]
	return ok
}

// Object returns the stored body and retention date for an event ID.
func (s *InMemoryStore) Object(eventID string) (body []byte, retainUntil time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[eventID]
	if !ok {
		return nil, time.Time{}, false
	}
	return append([]byte(nil), obj.body...), obj.retainUntil, true
}

// Key returns the partitioned object key for an archived event ID.
func (s *InMemoryStore) Key(eventID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[eventID]
	return obj.key, ok
}

// Len returns the number of archived objects.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
