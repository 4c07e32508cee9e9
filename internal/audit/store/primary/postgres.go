package primary

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver

	"veritas/internal/audit/chain"
	"veritas/internal/audit/models"
)

// PostgresStore persists tenant chains in a sequence-indexed table. The
// compare-and-append runs as a single guarded INSERT so the tip check and
// the append cannot be split by a concurrent writer. Two unique constraints
// back the no-fork invariant at the storage level:
//
//	PRIMARY KEY (tenant_id, seq)
//	UNIQUE (tenant_id, previous_hash)
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema is the DDL for the audit_events table. Applied by migrations in
// deployment; exported so integration tests can bootstrap a fresh database.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	tenant_id        TEXT        NOT NULL,
	seq              BIGINT      NOT NULL,
	event_id         UUID        NOT NULL UNIQUE,
	ts               TIMESTAMPTZ NOT NULL,
	event_type       TEXT        NOT NULL,
	correlation_id   TEXT        NOT NULL,
	span_id          TEXT        NOT NULL,
	actor_id         TEXT        NOT NULL,
	actor_role       TEXT        NOT NULL DEFAULT '',
	actor_unit       TEXT        NOT NULL DEFAULT '',
	payload          JSONB,
	classification   TEXT        NOT NULL,
	compliance_flags JSONB,
	previous_hash    TEXT        NOT NULL,
	current_hash     TEXT        NOT NULL,
	PRIMARY KEY (tenant_id, seq),
	UNIQUE (tenant_id, previous_hash)
);
CREATE INDEX IF NOT EXISTS idx_audit_events_correlation
	ON audit_events (tenant_id, correlation_id);
CREATE INDEX IF NOT EXISTS idx_audit_events_ts
	ON audit_events (tenant_id, ts);
`

// EnsureSchema applies the table DDL. Intended for tests and local runs;
// production deployments run migrations out of band.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply audit schema: %w", err)
	}
	return nil
}

// AppendIfTipMatches commits the event if the tenant's stored tip still
// equals expectedPreviousTip. Zero rows affected means another writer moved
// the tip first.
func (s *PostgresStore) AppendIfTipMatches(ctx context.Context, event models.Event, expectedPreviousTip string) (models.Event, error) {
	payload, err := marshalPayload(event.Payload)
	if err != nil {
		return models.Event{}, fmt.Errorf("marshal payload: %w", err)
	}
	flags, err := json.Marshal(event.ComplianceFlags)
	if err != nil {
		return models.Event{}, fmt.Errorf("marshal compliance flags: %w", err)
	}

	const query = `
		INSERT INTO audit_events (
			tenant_id, seq, event_id, ts, event_type,
			correlation_id, span_id, actor_id, actor_role, actor_unit,
			payload, classification, compliance_flags, previous_hash, current_hash
		)
		SELECT
			$1,
			COALESCE((SELECT MAX(seq) + 1 FROM audit_events WHERE tenant_id = $1), 0),
			$2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		WHERE COALESCE(
			(SELECT current_hash FROM audit_events WHERE tenant_id = $1 ORDER BY seq DESC LIMIT 1),
			$15
		) = $16
		RETURNING seq
	`

	var seq int64
	err = s.db.QueryRowContext(ctx, query,
		event.Context.TenantID,
		event.EventID,
		event.Timestamp,
		string(event.EventType),
		event.Context.CorrelationID,
		event.Context.SpanID,
		event.Actor.ID,
		event.Actor.Role,
		event.Actor.Unit,
		payload,
		string(event.Classification),
		flags,
		event.PreviousHash,
		event.CurrentHash,
		chain.GenesisHash,
		expectedPreviousTip,
	).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Event{}, fmt.Errorf("tip moved for tenant %s: %w", event.Context.TenantID, models.ErrChainContinuity)
	}
	if isUniqueViolation(err) {
		// A racing writer slipped in between the guard subquery and the
		// insert; the unique constraints keep the chain fork-free and we
		// surface it as an ordinary continuity conflict.
		return models.Event{}, fmt.Errorf("concurrent append for tenant %s: %w", event.Context.TenantID, models.ErrChainContinuity)
	}
	if err != nil {
		return models.Event{}, fmt.Errorf("append audit event: %w", err)
	}

	event.Sequence = seq
	return event, nil
}

// GetTip returns the tenant's current tip hash, or the genesis sentinel.
func (s *PostgresStore) GetTip(ctx context.Context, tenantID string) (string, error) {
	const query = `
		SELECT current_hash FROM audit_events
		WHERE tenant_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`
	var tip string
	err := s.db.QueryRowContext(ctx, query, tenantID).Scan(&tip)
	if errors.Is(err, sql.ErrNoRows) {
		return chain.GenesisHash, nil
	}
	if err != nil {
		return "", fmt.Errorf("read chain tip: %w", err)
	}
	return tip, nil
}

// ListEvents returns the tenant's committed events in chain order.
func (s *PostgresStore) ListEvents(ctx context.Context, tenantID string, filter Filter, page Page) ([]models.Event, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}

	var (
		conds = []string{"tenant_id = $1"}
		args  = []any{tenantID}
	)
	addCond := func(expr string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}
	if filter.CorrelationID != "" {
		addCond("correlation_id = $%d", filter.CorrelationID)
	}
	if filter.ActorID != "" {
		addCond("actor_id = $%d", filter.ActorID)
	}
	if filter.EventType != "" {
		addCond("event_type = $%d", string(filter.EventType))
	}
	if !filter.From.IsZero() {
		addCond("ts >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		addCond("ts <= $%d", filter.To)
	}
	args = append(args, limit, page.Offset)

	query := fmt.Sprintf(`
		SELECT seq, event_id, ts, event_type,
		       correlation_id, span_id, actor_id, actor_role, actor_unit,
		       payload, classification, compliance_flags, previous_hash, current_hash
		FROM audit_events
		WHERE %s
		ORDER BY seq ASC
		LIMIT $%d OFFSET $%d
	`, strings.Join(conds, " AND "), len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var (
			e         models.Event
			eventType string
			class     string
			payload   []byte
			flags     []byte
		)
		e.Context.TenantID = tenantID
		err := rows.Scan(
			&e.Sequence,
			&e.EventID,
			&e.Timestamp,
			&eventType,
			&e.Context.CorrelationID,
			&e.Context.SpanID,
			&e.Actor.ID,
			&e.Actor.Role,
			&e.Actor.Unit,
			&payload,
			&class,
			&flags,
			&e.PreviousHash,
			&e.CurrentHash,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.EventType = models.EventType(eventType)
		e.Classification = models.Classification(class)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
				return nil, fmt.Errorf("decode payload for event %s: %w", e.EventID, err)
			}
		}
		if len(flags) > 0 {
			if err := json.Unmarshal(flags, &e.ComplianceFlags); err != nil {
				return nil, fmt.Errorf("decode compliance flags for event %s: %w", e.EventID, err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func marshalPayload(p models.Payload) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
