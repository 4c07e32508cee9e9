package siem

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"veritas/internal/audit/models"
)

// DedupSink suppresses duplicate deliveries of the same event ID across
// retries and process restarts. The guard is advisory: if Redis is down the
// event is delivered anyway, since a duplicate in the SIEM is preferable to
// a gap.
type DedupSink struct {
	next   Sink
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// DefaultDedupTTL bounds how long delivery markers are kept. Retries land
// well inside this window.
const DefaultDedupTTL = 24 * time.Hour

// NewDedup wraps a sink with a Redis SETNX guard.
func NewDedup(next Sink, client *redis.Client, ttl time.Duration, logger *slog.Logger) *DedupSink {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &DedupSink{next: next, client: client, ttl: ttl, logger: logger}
}

func (s *DedupSink) markerKey(eventID string) string {
	return fmt.Sprintf("siem:delivered:%s", eventID)
}

// Deliver forwards the event unless a delivery marker already exists.
// The marker is set only after a successful delivery, so failed attempts
// stay retryable.
func (s *DedupSink) Deliver(ctx context.Context, event models.Event) error {
	key := s.markerKey(event.EventID)

	seen, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "siem dedup check unavailable, delivering anyway",
				"event_id", event.EventID, "error", err)
		}
	} else if seen > 0 {
		return nil
	}

	if err := s.next.Deliver(ctx, event); err != nil {
		return err
	}

	if err := s.client.Set(ctx, key, 1, s.ttl).Err(); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "siem dedup marker write failed",
			"event_id", event.EventID, "error", err)
	}
	return nil
}

// Close closes the wrapped sink; the Redis client is shared and owned by the
// caller.
func (s *DedupSink) Close() error {
	return s.next.Close()
}
