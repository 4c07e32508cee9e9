package models

import "github.com/google/uuid"

// CorrelationContext identifies the tenant partition, the external request,
// and the operation span an audit event belongs to. Contexts are immutable
// value types: deriving a child copies tenant and correlation identity and
// assigns a fresh span.
type CorrelationContext struct {
	TenantID      string `json:"tenant_id"`
	CorrelationID string `json:"correlation_id"`
	SpanID        string `json:"span_id"`
}

// NewCorrelationContext builds a context for a tenant. When correlationID is
// empty a new one is generated, so every submission is traceable even if the
// caller did not propagate one.
func NewCorrelationContext(tenantID, correlationID string) CorrelationContext {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return CorrelationContext{
		TenantID:      tenantID,
		CorrelationID: correlationID,
		SpanID:        uuid.NewString(),
	}
}

// Child derives a context for a sub-operation: same tenant and correlation
// identity, fresh span.
func (c CorrelationContext) Child() CorrelationContext {
	return CorrelationContext{
		TenantID:      c.TenantID,
		CorrelationID: c.CorrelationID,
		SpanID:        uuid.NewString(),
	}
}
