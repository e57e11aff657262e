// Package api exposes the ledger over HTTP. It only translates requests
// into engine calls and engine errors into status codes.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/punchamoorthee/finledger/internal/auth"
	"github.com/punchamoorthee/finledger/internal/domain"
	"github.com/punchamoorthee/finledger/internal/logging"
	"github.com/punchamoorthee/finledger/internal/service"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

type Handler struct {
	ledger        *service.Ledger
	revocations   auth.Revocations
	revocationTTL time.Duration
	logger        *logging.Logger
}

// DefaultRevocationTTL covers the lifetime of the longest-lived token.
const DefaultRevocationTTL = 24 * time.Hour

type Option func(*Handler)

// WithRevocations makes bearer tokens on the list fail with 401.
func WithRevocations(r auth.Revocations) Option {
	return func(h *Handler) { h.revocations = r }
}

// WithRevocationTTL sets how long a token revoked through the API stays
// on the list.
func WithRevocationTTL(ttl time.Duration) Option {
	return func(h *Handler) { h.revocationTTL = ttl }
}

func WithLogger(l *logging.Logger) Option {
	return func(h *Handler) { h.logger = l.Named("api") }
}

func NewHandler(l *service.Ledger, opts ...Option) *Handler {
	h := &Handler{ledger: l, revocationTTL: DefaultRevocationTTL, logger: logging.NewNoOpLogger()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps an engine error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientBalance), errors.Is(err, domain.ErrIdempotencyMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondWithErr writes err with its mapped status. Internal failures are
// logged and hidden from the client.
func (h *Handler) respondWithErr(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg = "internal server error"
	}
	respondWithJSON(w, code, errorBody{Error: msg, Code: domain.ClassifyError(err)})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, errorBody{Error: message, Code: http.StatusText(code)})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.Errorf(domain.ErrValidation, "malformed JSON body: %v", err)
	}
	return nil
}
