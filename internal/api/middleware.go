package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type ctxKey int

const ownerKey ctxKey = iota

func ownerFrom(r *http.Request) string {
	owner, _ := r.Context().Value(ownerKey).(string)
	return owner
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument records request counts and latency per route template.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(r.Method, endpoint))
		defer timer.ObserveDuration()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	})
}

// authenticate takes the principal from X-User-ID. A bearer token, when
// present, must not be revoked.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if owner == "" {
			respondWithError(w, http.StatusUnauthorized, "Missing X-User-ID header")
			return
		}

		if token, ok := bearerToken(r); ok && h.revocations != nil {
			revoked, err := h.revocations.IsRevoked(r.Context(), token)
			if err != nil {
				respondWithError(w, http.StatusServiceUnavailable, "Revocation list unavailable")
				return
			}
			if revoked {
				respondWithError(w, http.StatusUnauthorized, "Token revoked")
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey, owner)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

// RevokeTokenHandler puts the caller's own bearer token on the revocation
// list, ending its session on every instance sharing the list.
func (h *Handler) RevokeTokenHandler(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Missing bearer token")
		return
	}
	if h.revocations == nil {
		respondWithError(w, http.StatusServiceUnavailable, "Revocation list unavailable")
		return
	}
	if err := h.revocations.Revoke(r.Context(), token, h.revocationTTL); err != nil {
		h.logger.Error("token revocation failed", zap.Error(err))
		respondWithError(w, http.StatusServiceUnavailable, "Revocation list unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
