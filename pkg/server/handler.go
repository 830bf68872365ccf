package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/publicqi/pda-directory/pkg/ratelimit"
)

const QueryPath = "/api/v1/pdas"

type Handler struct {
	log *slog.Logger
	cfg Config
}

func NewHandler(log *slog.Logger, cfg Config) (*Handler, error) {
	if log == nil {
		return nil, errors.New("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("handler config validation failed: %w", err)
	}
	return &Handler{log: log, cfg: cfg}, nil
}

func (h *Handler) Register(r chi.Router) {
	r.Get(QueryPath, h.queryHandler)
	r.Get("/healthz", h.healthzHandler)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeJSONError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, ErrorResponse{Error: msg})
}

// queryHandler serves lookups and paginated lists over the registry:
// validate -> rate-limit gate -> resolve active database -> execute plan ->
// decode and shape. Validation failures return before any database work.
func (h *Handler) queryHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := parseQueryRequest(r.URL.Query(), h.cfg.DefaultLimit, h.cfg.MaxLimit)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			h.writeJSONError(w, http.StatusBadRequest, ve.Error())
			QueryRequestErrorsTotal.WithLabelValues("validation").Inc()
			return
		}
		h.log.Error("unexpected parse error", "error", err)
		h.writeJSONError(w, http.StatusInternalServerError, "internal error")
		QueryRequestErrorsTotal.WithLabelValues("unexpected").Inc()
		return
	}

	if err := h.cfg.Limiter.Allow(ctx, clientKey(r)); err != nil {
		// Fail fast on any limiter outcome; the database is never touched.
		if !errors.Is(err, ratelimit.ErrRateLimited) {
			h.log.Warn("rate limiter unavailable", "error", err)
		}
		h.writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
		QueryRequestErrorsTotal.WithLabelValues("rate_limited").Inc()
		return
	}

	store, err := h.cfg.Resolver.Resolve(ctx)
	if err != nil {
		h.log.Error("failed to resolve active database", "error", err)
		h.writeJSONError(w, http.StatusInternalServerError, "internal error")
		QueryRequestErrorsTotal.WithLabelValues("configuration").Inc()
		return
	}

	result, err := resolveQuery(ctx, store, req)
	if err != nil {
		h.log.Error("query execution failed", "error", err, "intent", string(req.intent()))
		h.writeJSONError(w, http.StatusInternalServerError, "internal error")
		QueryRequestErrorsTotal.WithLabelValues("store").Inc()
		return
	}

	results, err := buildResults(result.Rows)
	if err != nil {
		// Detail stays server-side: a corrupt row reflects a data defect the
		// client cannot fix.
		h.log.Error("malformed row in registry", "error", err)
		h.writeJSONError(w, http.StatusInternalServerError, "internal error")
		QueryRequestErrorsTotal.WithLabelValues("format").Inc()
		return
	}

	QueryRequestsTotal.WithLabelValues(string(result.Intent), string(result.Mode)).Inc()

	if result.Intent == intentExactLookup {
		h.writeJSON(w, http.StatusOK, buildLookupResponse(req, results))
		return
	}
	h.writeJSON(w, http.StatusOK, buildListResponse(result, results))
}

func (h *Handler) healthzHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
