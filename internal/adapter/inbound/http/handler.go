package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aegis-authz/aegis/internal/domain/audit"
	"github.com/aegis-authz/aegis/internal/domain/auth"
	"github.com/aegis-authz/aegis/internal/domain/policy"
	"github.com/aegis-authz/aegis/internal/service"
	"github.com/aegis-authz/aegis/pkg/rules"
)

// Handler is the HTTP API: rule evaluation, rule management, health and
// metrics.
type Handler struct {
	svc     *service.EvaluationService
	keyring *auth.Keyring
	logger  *slog.Logger
	metrics *Metrics
	audit   audit.Store
	mux     *http.ServeMux
}

// HandlerOption configures the Handler.
type HandlerOption func(*Handler)

// WithAuditStore records every evaluation to the given audit store.
func WithAuditStore(store audit.Store) HandlerOption {
	return func(h *Handler) { h.audit = store }
}

// NewHandler builds the API handler. The registry receives the server's
// prometheus metrics; a nil keyring (or an empty one) disables
// authentication for local development.
func NewHandler(svc *service.EvaluationService, keyring *auth.Keyring, logger *slog.Logger, reg prometheus.Registerer, opts ...HandlerOption) *Handler {
	h := &Handler{
		svc:     svc,
		keyring: keyring,
		logger:  logger,
		metrics: NewMetrics(reg),
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(h)
	}

	gatherer, _ := reg.(prometheus.Gatherer)
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	h.mux.HandleFunc("GET /healthz", h.handleHealth)
	h.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	h.mux.Handle("POST /v1/evaluate", h.authenticated(h.handleEvaluate))
	h.mux.Handle("GET /v1/rules", h.authenticated(h.handleListRules))
	h.mux.Handle("GET /v1/rules/{name}", h.authenticated(h.handleGetRule))
	h.mux.Handle("PUT /v1/rules/{name}", h.authenticated(h.handlePutRule))
	h.mux.Handle("DELETE /v1/rules/{name}", h.authenticated(h.handleDeleteRule))
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"cache_size": h.svc.CacheSize(),
	})
}

// EvaluateRequest is the body of POST /v1/evaluate.
type EvaluateRequest struct {
	// Rule is the name of the rule to evaluate.
	Rule string `json:"rule"`
	// Variables are the bindings made available to the rule.
	Variables map[string]any `json:"variables"`
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Rule == "" {
		h.respondError(w, http.StatusBadRequest, "rule is required")
		return
	}

	d, err := h.svc.Evaluate(r.Context(), req.Rule, req.Variables)
	result := "deny"
	switch {
	case err != nil:
		result = "error"
	case d.Allowed:
		result = "allow"
	}
	h.metrics.EvaluationsTotal.WithLabelValues(result).Inc()
	h.metrics.EvaluationDuration.Observe(d.Duration.Seconds())
	if d.Cached {
		h.metrics.CacheHitsTotal.Inc()
	}

	if h.audit != nil {
		record := audit.Record{
			Timestamp:     time.Now().UTC(),
			DecisionID:    d.ID,
			Rule:          d.Rule,
			Decision:      result,
			Attrs:         d.Attrs,
			Cached:        d.Cached,
			LatencyMicros: d.Duration.Microseconds(),
		}
		if id := auth.IdentityFromContext(r.Context()); id != nil {
			record.Identity = id.Name
		}
		if err != nil {
			record.Error = err.Error()
		}
		h.audit.Record(record)
	}

	if err != nil {
		// The decision itself is a deny; surface the failure in the body
		// but keep HTTP 200 so callers distinguish transport problems
		// from policy outcomes.
		h.logger.Warn("evaluation failed", "rule", req.Rule, "error", err)
		h.respondJSON(w, http.StatusOK, map[string]any{
			"decision": d,
			"error":    err.Error(),
		})
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"decision": d})
}

func (h *Handler) handleListRules(w http.ResponseWriter, r *http.Request) {
	defs, err := h.svc.ListRules(r.Context())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "listing rules failed")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"rules": defs})
}

func (h *Handler) handleGetRule(w http.ResponseWriter, r *http.Request) {
	def, err := h.svc.GetRule(r.Context(), r.PathValue("name"))
	if errors.Is(err, policy.ErrRuleNotFound) {
		h.respondError(w, http.StatusNotFound, "rule not found")
		return
	}
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "loading rule failed")
		return
	}
	h.respondJSON(w, http.StatusOK, def)
}

func (h *Handler) handlePutRule(w http.ResponseWriter, r *http.Request) {
	var def policy.RuleDefinition
	if err := h.readJSON(r, &def); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	name := r.PathValue("name")
	if def.Name == "" {
		def.Name = name
	}
	if def.Name != name {
		h.respondError(w, http.StatusBadRequest, "rule name does not match URL")
		return
	}

	if err := h.svc.SaveRule(r.Context(), &def); err != nil {
		var perr *rules.ParseError
		if errors.As(err, &perr) {
			h.respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  "rule text does not parse",
				"line":   perr.Line,
				"column": perr.Col,
				"detail": perr.Msg,
			})
			return
		}
		h.respondError(w, http.StatusInternalServerError, "saving rule failed")
		return
	}
	h.metrics.RuleUpdatesTotal.Inc()
	if id := auth.IdentityFromContext(r.Context()); id != nil {
		h.logger.Info("rule saved", "rule", def.Name, "by", id.Name)
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"saved": def.Name})
}

func (h *Handler) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	err := h.svc.DeleteRule(r.Context(), name)
	if errors.Is(err, policy.ErrRuleNotFound) {
		h.respondError(w, http.StatusNotFound, "rule not found")
		return
	}
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "deleting rule failed")
		return
	}
	h.metrics.RuleUpdatesTotal.Inc()
	h.respondJSON(w, http.StatusOK, map[string]any{"deleted": name})
}

func (h *Handler) readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encoding response failed", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, msg string) {
	h.respondJSON(w, status, map[string]string{"error": msg})
}

// authenticated wraps a handler with API-key authentication. With no keys
// configured the API is open; intended only for local development.
func (h *Handler) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.keyring == nil || h.keyring.Empty() {
			next(w, r)
			return
		}
		rawKey := bearerToken(r)
		if rawKey == "" {
			h.metrics.AuthFailuresTotal.Inc()
			h.respondError(w, http.StatusUnauthorized, "missing API key")
			return
		}
		id, err := h.keyring.Validate(rawKey)
		if err != nil {
			h.metrics.AuthFailuresTotal.Inc()
			h.respondError(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		next(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

// bearerToken extracts the API key from "Authorization: Bearer <key>" or
// the X-API-Key header.
func bearerToken(r *http.Request) string {
	if v := r.Header.Get("Authorization"); strings.HasPrefix(v, "Bearer ") {
		return strings.TrimPrefix(v, "Bearer ")
	}
	return r.Header.Get("X-API-Key")
}
