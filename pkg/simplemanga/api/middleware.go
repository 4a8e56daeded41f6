package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds client supplied request IDs.
const maxRequestIDLen = 128

// Middleware wraps an http.Handler
type Middleware func(http.Handler) http.Handler

// Chain is an ordered list of middleware. The first entry is outermost.
type Chain []Middleware

// NewMiddlewareChain creates a chain from middlewares
func NewMiddlewareChain(middlewares ...Middleware) Chain {
	return Chain(middlewares)
}

// Then returns a new chain with m appended
func (c Chain) Then(m ...Middleware) Chain {
	out := make(Chain, 0, len(c)+len(m))
	return append(append(out, c...), m...)
}

// Wrap applies the chain to handler
func (c Chain) Wrap(handler http.Handler) http.Handler {
	for i := len(c) - 1; i >= 0; i-- {
		handler = c[i](handler)
	}
	return handler
}

// statusRecorder captures the status and size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func newResponseWriter(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.bytes += int64(n)
	return n, err
}

// Flush forwards to the underlying writer so /events keeps streaming.
func (rec *statusRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

type contextKey string

const (
	RequestIDKey   contextKey = "request_id"
	RequestTimeKey contextKey = "request_time"
)

// RequestID returns the request ID stored by RequestIDMiddleware
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// RequestIDMiddleware tags each request with the client's X-Request-ID, or a
// fresh UUID when the header is missing or oversized.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), RequestIDKey, id)))
	})
}

// LoggingMiddleware logs one line per completed request. Server errors log
// at error level and client errors at warn. When routed by chi the route
// pattern and manga ID are included.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newResponseWriter(w)
			ctx := context.WithValue(r.Context(), RequestTimeKey, start)

			next.ServeHTTP(rec, r.WithContext(ctx))

			attrs := []any{
				"request_id", RequestID(ctx),
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
				"bytes", rec.bytes,
			}
			if rctx := chi.RouteContext(ctx); rctx != nil {
				attrs = append(attrs, "route", rctx.RoutePattern())
				if id := rctx.URLParam("manga_id"); id != "" {
					attrs = append(attrs, "manga_id", id)
				}
			}

			level := slog.LevelInfo
			switch {
			case rec.status >= http.StatusInternalServerError:
				level = slog.LevelError
			case rec.status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "HTTP request", attrs...)
		})
	}
}

// RecoveryMiddleware turns handler panics into a 500 ErrorResponse.
func RecoveryMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}
				id := RequestID(r.Context())
				logger.Error("Panic recovered", "request_id", id, "path", r.URL.Path, "panic", p)

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, ErrorResponse{Error: "An internal server error occurred", RequestID: id})
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// CORSMiddleware lets browser readers on allowedOrigins call the API. An
// empty list allows any origin. Preflight requests are answered directly.
func CORSMiddleware(allowedOrigins []string) Middleware {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	methods := "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	headers := "Content-Type, " + RequestIDHeader
	maxAge := strconv.Itoa(int((10 * time.Minute).Seconds()))

	allowed := func(origin string) (string, bool) {
		for _, o := range allowedOrigins {
			switch {
			case o == "*" && origin == "":
				return "*", true
			case o == "*" || o == origin:
				return origin, true
			}
		}
		return "", false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin, ok := allowed(r.Header.Get("Origin")); ok {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				h.Set("Access-Control-Expose-Headers", RequestIDHeader)
				h.Set("Access-Control-Max-Age", maxAge)
				h.Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestSizeLimitMiddleware caps request bodies at maxBytes. Handlers see
// an *http.MaxBytesError once the cap is crossed.
func RequestSizeLimitMiddleware(maxBytes int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
