package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// HeaderNormalization strips headers clients should not be able to set
// directly and stamps HiveBoard's own standard response headers, so the
// API surface stays consistent regardless of which reverse proxy sits in
// front of it.
type HeaderNormalization struct {
	logger zerolog.Logger
}

// NewHeaderNormalization creates a new header normalization middleware.
func NewHeaderNormalization(logger zerolog.Logger) *HeaderNormalization {
	return &HeaderNormalization{logger: logger}
}

// headersToStripFromRequest are headers only HiveBoard's own middleware
// should set — a client setting them directly is either confused or
// probing for a privilege-escalation bug.
var headersToStripFromRequest = []string{
	"x-tenant-id",
	"x-key-type",
	"x-key-id",
}

var hiveboardResponseHeaders = map[string]string{
	"X-Powered-By": "HiveBoard",
}

// Handler returns the HTTP middleware handler.
func (h *HeaderNormalization) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, header := range headersToStripFromRequest {
			if r.Header.Get(header) != "" {
				h.logger.Debug().
					Str("header", header).
					Str("path", r.URL.Path).
					Msg("stripped reserved header from request")
				r.Header.Del(header)
			}
		}

		ct := r.Header.Get("Content-Type")
		if ct != "" && strings.Contains(ct, "json") && ct != "application/json" {
			r.Header.Set("Content-Type", "application/json")
		}
		if r.Header.Get("Accept") == "" {
			r.Header.Set("Accept", "application/json")
		}

		wrapped := &headerNormWriter{ResponseWriter: w}
		next.ServeHTTP(wrapped, r)
	})
}

// headerNormWriter wraps http.ResponseWriter to stamp standard response
// headers exactly once, before the first byte of the body goes out.
type headerNormWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (hw *headerNormWriter) WriteHeader(code int) {
	if hw.wroteHeader {
		return
	}
	hw.wroteHeader = true
	for k, v := range hiveboardResponseHeaders {
		hw.ResponseWriter.Header().Set(k, v)
	}
	hw.ResponseWriter.WriteHeader(code)
}

func (hw *headerNormWriter) Write(b []byte) (int, error) {
	if !hw.wroteHeader {
		hw.WriteHeader(http.StatusOK)
	}
	return hw.ResponseWriter.Write(b)
}

// Flush supports streaming (the WebSocket upgrade path bypasses this
// writer entirely, but SSE-style long-poll responses do not).
func (hw *headerNormWriter) Flush() {
	if f, ok := hw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
