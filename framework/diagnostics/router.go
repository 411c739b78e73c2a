package diagnostics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/km-arc/go-managers/framework/logging"
)

// Router wraps chi.Router with the small surface the diagnostics endpoints use.
type Router struct {
	mux chi.Router
}

// NewRouter creates a Router with RequestID, RealIP, request logging and
// Recoverer.
func NewRouter(logger *slog.Logger) *Router {
	logger = logging.OrDiscard(logger)
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	return &Router{mux: r}
}

// ── HTTP verbs ───────────────────────────────────────────────────────────────

func (r *Router) Get(pattern string, h http.HandlerFunc) { r.mux.Get(pattern, h) }

// ── Groups & Prefixes ────────────────────────────────────────────────────────

// Prefix creates a sub-router mounted under pattern.
func (r *Router) Prefix(pattern string, fn func(r *Router)) {
	r.mux.Route(pattern, func(mx chi.Router) {
		fn(&Router{mux: mx})
	})
}

// Middleware adds one or more middleware to the router.
func (r *Router) Middleware(mw ...func(http.Handler) http.Handler) {
	r.mux.Use(mw...)
}

// ── Params ───────────────────────────────────────────────────────────────────

// Param extracts a URL param.
func Param(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

// ── Serve ────────────────────────────────────────────────────────────────────

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("Diagnostics request.",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
