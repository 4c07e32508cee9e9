// Package handler exposes the audit trail over HTTP: event submission, chain
// reads, and on-demand verification.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"veritas/internal/audit/models"
	"veritas/internal/audit/service"
	"veritas/internal/audit/store/primary"
	"veritas/internal/audit/verifier"
	"veritas/pkg/platform/httputil"
	"veritas/pkg/requestcontext"
)

// Service defines the write and read operations the handler needs.
type Service interface {
	Submit(ctx context.Context, sub service.Submission) (models.Event, error)
	ListEvents(ctx context.Context, tenantID string, filter primary.Filter, page primary.Page) ([]models.Event, error)
}

// Verifier runs a chain verification for one tenant.
type Verifier interface {
	VerifyRange(ctx context.Context, tenantID string, fromSeq, toSeq int64) (verifier.Report, error)
}

// Handler wires audit endpoints to the audit service.
type Handler struct {
	service  Service
	verifier Verifier
	logger   *slog.Logger
}

// New constructs an audit handler with its dependencies.
func New(service Service, verifier Verifier, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		verifier: verifier,
		logger:   logger,
	}
}

// Register mounts audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/audit/events", h.HandleSubmit)
	r.Get("/v1/audit/events", h.HandleList)
	r.Get("/v1/audit/verify", h.HandleVerify)
}

// HandleSubmit handles POST /v1/audit/events requests.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	tenantID := requestcontext.TenantID(ctx)
	if tenantID == "" {
		httputil.WriteError(w, models.NewValidationError("tenant_id", "X-Tenant-ID header is required"))
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "submit body rejected",
			"request_id", requestID,
			"tenant_id", tenantID,
			"error", err,
		)
		httputil.WriteError(w, models.NewValidationError("body", err.Error()))
		return
	}

	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = requestcontext.CorrelationID(ctx)
	}

	event, err := h.service.Submit(ctx, service.Submission{
		EventType:       models.EventType(req.EventType),
		Context:         models.NewCorrelationContext(tenantID, correlationID),
		Actor:           models.Actor{ID: req.Actor.ID, Role: req.Actor.Role, Unit: req.Actor.Unit},
		Payload:         req.Payload,
		Classification:  models.Classification(req.Classification),
		ComplianceFlags: req.flags(),
	})
	if err != nil {
		if !models.IsValidation(err) {
			h.logger.ErrorContext(ctx, "audit submission failed",
				"request_id", requestID,
				"tenant_id", tenantID,
				"event_type", req.EventType,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "audit event accepted",
		"request_id", requestID,
		"tenant_id", tenantID,
		"event_id", event.EventID,
		"sequence", event.Sequence,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, event)
}

// HandleList handles GET /v1/audit/events requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID := requestcontext.TenantID(ctx)
	if tenantID == "" {
		httputil.WriteError(w, models.NewValidationError("tenant_id", "X-Tenant-ID header is required"))
		return
	}

	filter, page, err := listQuery(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.service.ListEvents(ctx, tenantID, filter, page)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit list failed",
			"request_id", requestcontext.RequestID(ctx),
			"tenant_id", tenantID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

// HandleVerify handles GET /v1/audit/verify requests.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID := requestcontext.TenantID(ctx)
	if tenantID == "" {
		httputil.WriteError(w, models.NewValidationError("tenant_id", "X-Tenant-ID header is required"))
		return
	}

	fromSeq, toSeq, err := verifyQuery(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	report, err := h.verifier.VerifyRange(ctx, tenantID, fromSeq, toSeq)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit verification failed to run",
			"request_id", requestcontext.RequestID(ctx),
			"tenant_id", tenantID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}
