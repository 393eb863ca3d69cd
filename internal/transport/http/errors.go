package httptransport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"resights/internal/registry"
	"resights/pkg/requestcontext"
)

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	UpstreamStatus   int    `json:"upstream_status,omitempty"`
}

// statusFor maps a registry failure kind to the API response status. Registry
// credential failures are a gateway problem, not the caller's, so they are 502.
func statusFor(kind registry.Kind) (int, string) {
	switch kind {
	case registry.KindInvalidRequest:
		return http.StatusBadRequest, string(kind)
	case registry.KindNotFound:
		return http.StatusNotFound, string(kind)
	case registry.KindUnauthorized:
		return http.StatusBadGateway, "registry_unauthorized"
	case registry.KindUpstream, registry.KindTransform:
		return http.StatusBadGateway, string(kind)
	case registry.KindConfiguration:
		return http.StatusInternalServerError, string(kind)
	default:
		return http.StatusInternalServerError, string(registry.KindInternal)
	}
}

// writeError centralizes registry error translation to HTTP responses so every
// handler shares the same JSON error envelope.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code := statusFor(registry.KindOf(err))
	body := errorBody{
		Error:            code,
		ErrorDescription: describe(err),
		UpstreamStatus:   registry.StatusOf(err),
	}
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		logger.ErrorContext(r.Context(), "request failed",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
	}
	writeJSON(w, r, logger, status, body)
}

// describe returns the caller-facing message. Internal errors are not echoed.
func describe(err error) string {
	var re *registry.Error
	if !errors.As(err, &re) {
		return "internal error"
	}
	if re.Message != "" {
		return re.Message
	}
	return string(re.Kind)
}

func writeJSON(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.ErrorContext(r.Context(), "failed to write response",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
	}
}

func writeRaw(w http.ResponseWriter, r *http.Request, logger *slog.Logger, payload json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		logger.ErrorContext(r.Context(), "failed to write response",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
	}
}
