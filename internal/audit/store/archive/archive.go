// Package archive provides the write-once, retention-locked mirror of the
// audit trail. Archival writes sit outside the chain's consistency boundary:
// they may lag or be retried, but a committed object can never be modified
// or deleted before its retention date elapses.
package archive

import (
	"context"
	"fmt"
	"time"

	"veritas/internal/audit/models"
)

// DefaultRetention aligns with the longest regulatory retention window the
// trail serves (HIPAA/SOX class requirements).
const DefaultRetention = 7 * 365 * 24 * time.Hour

// Store mirrors committed events into long-horizon storage. Archive is
// idempotent: re-archiving an already stored event ID is a no-op, never a
// silent overwrite.
type Store interface {
	Archive(ctx context.Context, event models.Event) error
}

// ObjectKey is the canonical archive layout: tenant/year/month/day/eventID,
// partitioned by tenant and commit date so multi-year buckets stay listable.
func ObjectKey(event models.Event) string {
	ts := event.Timestamp.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s.json",
		event.Context.TenantID, ts.Year(), ts.Month(), ts.Day(), event.EventID)
}
