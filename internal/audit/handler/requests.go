package handler

import (
	"net/url"
	"strconv"
	"time"

	"veritas/internal/audit/models"
	"veritas/internal/audit/store/primary"
)

// SubmitRequest is the wire form of one audit event submission. The tenant
// comes from the X-Tenant-ID header, never from the body, so a caller cannot
// write into another tenant's chain by editing a field.
type SubmitRequest struct {
	EventType       string         `json:"event_type"`
	CorrelationID   string         `json:"correlation_id,omitempty"`
	Actor           ActorRequest   `json:"actor"`
	Payload         models.Payload `json:"payload,omitempty"`
	Classification  string         `json:"classification,omitempty"`
	ComplianceFlags []string       `json:"compliance_flags,omitempty"`
}

// ActorRequest identifies who performed the action.
type ActorRequest struct {
	ID   string `json:"id"`
	Role string `json:"role,omitempty"`
	Unit string `json:"unit,omitempty"`
}

func (r SubmitRequest) flags() []models.ComplianceFlag {
	if len(r.ComplianceFlags) == 0 {
		return nil
	}
	flags := make([]models.ComplianceFlag, 0, len(r.ComplianceFlags))
	for _, f := range r.ComplianceFlags {
		flags = append(flags, models.ComplianceFlag(f))
	}
	return flags
}

// listQuery parses the filter and pagination parameters of a list request.
func listQuery(values url.Values) (primary.Filter, primary.Page, error) {
	filter := primary.Filter{
		CorrelationID: values.Get("correlation_id"),
		ActorID:       values.Get("actor_id"),
		EventType:     models.EventType(values.Get("event_type")),
	}

	if raw := values.Get("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return primary.Filter{}, primary.Page{}, models.NewValidationError("from", "must be RFC 3339")
		}
		filter.From = ts
	}
	if raw := values.Get("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return primary.Filter{}, primary.Page{}, models.NewValidationError("to", "must be RFC 3339")
		}
		filter.To = ts
	}

	var page primary.Page
	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return primary.Filter{}, primary.Page{}, models.NewValidationError("limit", "must be a non-negative integer")
		}
		page.Limit = n
	}
	if raw := values.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return primary.Filter{}, primary.Page{}, models.NewValidationError("offset", "must be a non-negative integer")
		}
		page.Offset = n
	}
	return filter, page, nil
}

// verifyQuery parses the optional sequence range of a verify request.
// Defaults to the full chain.
func verifyQuery(values url.Values) (fromSeq, toSeq int64, err error) {
	fromSeq, toSeq = 0, -1
	if raw := values.Get("from_seq"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			return 0, 0, models.NewValidationError("from_seq", "must be a non-negative integer")
		}
		fromSeq = n
	}
	if raw := values.Get("to_seq"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < fromSeq {
			return 0, 0, models.NewValidationError("to_seq", "must be an integer at or after from_seq")
		}
		toSeq = n
	}
	return fromSeq, toSeq, nil
}
