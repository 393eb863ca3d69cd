package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"resights/internal/audit"
	"resights/internal/registry"
	"resights/pkg/requestcontext"
)

const (
	maxCallBodyBytes  = 1 << 20
	defaultAuditLimit = 50
	maxAuditLimit     = 1000
)

// RegistryService is the facade the handlers delegate to.
type RegistryService interface {
	Table(ctx context.Context, bfe registry.BFE, projection registry.Projection) (*registry.Table, error)
	Valuations(ctx context.Context, bfe registry.BFE) (json.RawMessage, error)
	Call(ctx context.Context, req registry.CallRequest) (json.RawMessage, error)
	Health(ctx context.Context) error
	RecentAudit(ctx context.Context, limit int) ([]audit.Event, error)
}

// RegistryHandler is the thin HTTP layer over RegistryService.
type RegistryHandler struct {
	service RegistryService
	logger  *slog.Logger
}

func NewRegistryHandler(service RegistryService, logger *slog.Logger) *RegistryHandler {
	return &RegistryHandler{service: service, logger: logger}
}

// Register mounts the authenticated registry routes.
func (h *RegistryHandler) Register(r chi.Router) {
	r.Get("/properties/{bfe}/table", h.handleTable)
	r.Get("/properties/{bfe}/valuations", h.handleValuations)
	r.Post("/registry/call", h.handleCall)
	r.Get("/health/registry", h.handleRegistryHealth)
	r.Get("/audit", h.handleAudit)
}

type tableResponse struct {
	PropertyID string          `json:"property_id"`
	BFENumber  registry.BFE    `json:"bfe_number"`
	Columns    []string        `json:"columns"`
	Rows       *registry.Table `json:"rows"`
	Message    string          `json:"message,omitempty"`
	Warnings   []string        `json:"warnings,omitempty"`
}

func (h *RegistryHandler) handleTable(w http.ResponseWriter, r *http.Request) {
	bfe, err := registry.ParseBFE(chi.URLParam(r, "bfe"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	projection, err := registry.ParseProjection(fieldsParam(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	table, err := h.service.Table(r.Context(), bfe, projection)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := tableResponse{
		PropertyID: table.PropertyID,
		BFENumber:  table.BFENumber,
		Columns:    table.Columns.Names(),
		Rows:       table,
		Warnings:   table.Warnings,
	}
	if !table.HasDetail {
		resp.Message = "No BBR units or buildings data found for BFE " + table.RequestedBFE.String()
	}
	writeJSON(w, r, h.logger, http.StatusOK, resp)
}

// fieldsParam accepts fields=a,b as well as repeated fields parameters.
func fieldsParam(r *http.Request) []string {
	var names []string
	for _, raw := range r.URL.Query()["fields"] {
		names = append(names, strings.Split(raw, ",")...)
	}
	return names
}

func (h *RegistryHandler) handleValuations(w http.ResponseWriter, r *http.Request) {
	bfe, err := registry.ParseBFE(chi.URLParam(r, "bfe"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	payload, err := h.service.Valuations(r.Context(), bfe)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeRaw(w, r, h.logger, payload)
}

type callRequest struct {
	Method string         `json:"method"`
	Path   string         `json:"path"`
	Query  map[string]any `json:"query"`
	Body   any            `json:"body"`
}

func (h *RegistryHandler) handleCall(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCallBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, r, h.logger, http.StatusBadRequest, errorBody{
			Error:            string(registry.KindInvalidRequest),
			ErrorDescription: "invalid request body",
		})
		return
	}
	query, err := registry.QueryFromMap(req.Query)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	payload, err := h.service.Call(r.Context(), registry.CallRequest{
		Method: req.Method,
		Path:   req.Path,
		Query:  query,
		Body:   req.Body,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeRaw(w, r, h.logger, payload)
}

func (h *RegistryHandler) handleRegistryHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Health(r.Context()); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, h.logger, http.StatusOK, map[string]string{"status": "ok"})
}

type auditEventResponse struct {
	ID         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	RequestID  string `json:"request_id,omitempty"`
	Operation  string `json:"operation"`
	BFENumber  int64  `json:"bfe_number,omitempty"`
	Target     string `json:"target,omitempty"`
	Outcome    string `json:"outcome"`
	Status     int    `json:"upstream_status,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

func (h *RegistryHandler) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxAuditLimit {
			writeJSON(w, r, h.logger, http.StatusBadRequest, errorBody{
				Error:            string(registry.KindInvalidRequest),
				ErrorDescription: "limit must be an integer between 1 and " + strconv.Itoa(maxAuditLimit),
			})
			return
		}
		limit = n
	}

	events, err := h.service.RecentAudit(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list audit events",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
		writeJSON(w, r, h.logger, http.StatusInternalServerError, errorBody{
			Error:            string(registry.KindInternal),
			ErrorDescription: "failed to list audit events",
		})
		return
	}

	out := make([]auditEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, auditEventResponse{
			ID:         e.ID,
			Timestamp:  e.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			RequestID:  e.RequestID,
			Operation:  string(e.Operation),
			BFENumber:  e.BFENumber,
			Target:     e.Target,
			Outcome:    e.Outcome,
			Status:     e.Status,
			DurationMS: e.Duration.Milliseconds(),
		})
	}
	writeJSON(w, r, h.logger, http.StatusOK, map[string]any{"events": out})
}
