package handler

import (
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"veritas/pkg/requestcontext"
)

// Request headers the middleware adopts.
const (
	HeaderTenantID      = "X-Tenant-ID"
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderRequestID     = "X-Request-ID"
	HeaderActorID       = "X-Actor-ID"
)

// RequestMetadata adopts tenant, correlation, and actor identifiers from
// request headers into the context, assigning a fresh request ID when the
// caller did not send one. When no correlation header is present but the
// request carries an active trace, the trace ID is adopted so audit events
// line up with distributed traces. Apply early in the chain.
func RequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = requestcontext.WithRequestID(ctx, requestID)

		if tenantID := r.Header.Get(HeaderTenantID); tenantID != "" {
			ctx = requestcontext.WithTenantID(ctx, tenantID)
		}

		correlationID := r.Header.Get(HeaderCorrelationID)
		if correlationID == "" {
			if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
				correlationID = sc.TraceID().String()
			}
		}
		if correlationID != "" {
			ctx = requestcontext.WithCorrelationID(ctx, correlationID)
		}

		if actorID := r.Header.Get(HeaderActorID); actorID != "" {
			ctx = requestcontext.WithActorID(ctx, actorID)
		}

		w.Header().Set(HeaderRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
