// Package chain implements the hash engine for the audit trail.
//
// Every event's digest is computed over a canonical byte encoding of its
// content plus the previous event's digest, so any retroactive modification
// breaks the chain from that point forward.
//
// The canonical form is pinned exactly, because an ambiguous form breaks
// cross-run hash reproducibility without being detected until an audit:
//
//   - fields joined with '|' in fixed order: event_id, timestamp, event_type,
//     tenant_id, correlation_id, span_id, actor id/role/unit, classification,
//     compliance_flags, payload, previous_hash
//   - timestamp rendered as RFC3339Nano in UTC
//   - compliance flags sorted bytewise and comma-joined
//   - payload rendered as {k=v;k=v} with keys sorted bytewise, nested maps
//     recursing with the same rules; strings as raw UTF-8, integers base-10,
//     booleans "true"/"false"; empty or absent payload renders as {}
//   - digest is SHA-256, lowercase hex
package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"veritas/internal/audit/models"
)

// GenesisHash is the previous-hash sentinel for the first event in a
// tenant's chain: 64 zero hex characters, the width of a SHA-256 digest.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// ComputeHash canonicalizes the event's content, appends previousHash, and
// returns the SHA-256 digest as lowercase hex. It is a pure function:
// identical inputs always yield identical output, independent of map
// iteration order.
func ComputeHash(event models.Event, previousHash string) (string, error) {
	canonical, err := Canonicalize(event, previousHash)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyEvent recomputes the event's digest against its recorded
// PreviousHash and reports whether it matches the stored CurrentHash.
func VerifyEvent(event models.Event) (bool, error) {
	expected, err := ComputeHash(event, event.PreviousHash)
	if err != nil {
		return false, err
	}
	return expected == event.CurrentHash, nil
}

// Canonicalize renders the deterministic byte sequence the digest is
// computed over. Rejects payload values outside the closed domain.
func Canonicalize(event models.Event, previousHash string) ([]byte, error) {
	payload, err := canonicalPayload(event.Payload)
	if err != nil {
		return nil, err
	}

	flags := make([]string, len(event.ComplianceFlags))
	for i, f := range event.ComplianceFlags {
		flags[i] = string(f)
	}
	sort.Strings(flags)

	var b strings.Builder
	b.WriteString(event.EventID)
	b.WriteByte('|')
	b.WriteString(event.Timestamp.UTC().Format(time.RFC3339Nano))
	b.WriteByte('|')
	b.WriteString(string(event.EventType))
	b.WriteByte('|')
	b.WriteString(event.Context.TenantID)
	b.WriteByte('|')
	b.WriteString(event.Context.CorrelationID)
	b.WriteByte('|')
	b.WriteString(event.Context.SpanID)
	b.WriteByte('|')
	b.WriteString(event.Actor.ID)
	b.WriteByte('|')
	b.WriteString(event.Actor.Role)
	b.WriteByte('|')
	b.WriteString(event.Actor.Unit)
	b.WriteByte('|')
	b.WriteString(string(event.Classification))
	b.WriteByte('|')
	b.WriteString(strings.Join(flags, ","))
	b.WriteByte('|')
	b.WriteString(payload)
	b.WriteByte('|')
	b.WriteString(previousHash)

	return []byte(b.String()), nil
}

func canonicalPayload(p models.Payload) (string, error) {
	return canonicalMap(models.Map(p))
}

func canonicalMap(m models.Map) (string, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		v, err := canonicalValue(m[k])
		if err != nil {
			return "", fmt.Errorf("key %q: %w", k, err)
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
	}
	b.WriteByte('}')
	return b.String(), nil
}

func canonicalValue(v models.Value) (string, error) {
	switch t := v.(type) {
	case models.String:
		return string(t), nil
	case models.Int:
		return strconv.FormatInt(int64(t), 10), nil
	case models.Bool:
		return strconv.FormatBool(bool(t)), nil
	case models.Map:
		return canonicalMap(t)
	default:
		return "", fmt.Errorf("%w: %T", models.ErrUnsupportedPayloadType, v)
	}
}
