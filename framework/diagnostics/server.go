package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/km-arc/go-managers/framework/lifecycle"
	"github.com/km-arc/go-managers/framework/logging"
	"github.com/km-arc/go-managers/framework/world"
)

// Supervisor is the read-only view of a lifecycle.Supervisor.
type Supervisor interface {
	State() lifecycle.State
	IsInitialized() bool
	Managers() []lifecycle.Manager
}

// SceneSource reports the active scene. world.World implements it.
type SceneSource interface {
	ActiveScene() world.Scene
}

// ManagerStatus is one entry of GET /managers.
type ManagerStatus struct {
	Name        string `json:"name"`
	Order       int    `json:"order"`
	Initialized bool   `json:"initialized"`
}

// Handler serves the diagnostics endpoints. scenes may be nil.
//
//	GET /health    → 200 {"data":{"status":"ok"}}
//	GET /ready     → 200 once ready, 503 before
//	GET /managers  → registered managers in order
//	GET /scene     → active scene
func Handler(sup Supervisor, scenes SceneSource, logger *slog.Logger) *Router {
	r := NewRouter(logger)
	r.Middleware(middleware.NoCache)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		NewResponse(w).Success(map[string]string{"status": "ok"})
	})

	r.Get("/ready", func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]any{"state": sup.State().String(), "ready": sup.IsInitialized()}
		if !sup.IsInitialized() {
			NewResponse(w).Unavailable(body, "Managers are still initializing.")
			return
		}
		NewResponse(w).Success(body)
	})

	r.Prefix("/managers", func(r *Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			managers := sup.Managers()
			out := make([]ManagerStatus, 0, len(managers))
			for i, m := range managers {
				out = append(out, ManagerStatus{Name: lifecycle.NameOf(m), Order: i, Initialized: m.IsInitialized()})
			}
			NewResponse(w).Success(out)
		})

		r.Get("/{name}", func(w http.ResponseWriter, req *http.Request) {
			name := Param(req, "name")
			for i, m := range sup.Managers() {
				if lifecycle.NameOf(m) == name {
					NewResponse(w).Success(ManagerStatus{Name: name, Order: i, Initialized: m.IsInitialized()})
					return
				}
			}
			NewResponse(w).NotFound(fmt.Sprintf("Manager %q is not registered.", name))
		})
	})

	r.Get("/scene", func(w http.ResponseWriter, _ *http.Request) {
		if scenes == nil {
			NewResponse(w).NotFound("No world attached.")
			return
		}
		s := scenes.ActiveScene()
		NewResponse(w).Success(map[string]string{"name": s.Name, "mode": s.Mode.String()})
	})

	return r
}

// Server runs the diagnostics handler until its context is canceled.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer creates a server listening on addr, e.g. ":9090".
func NewServer(addr string, h http.Handler, logger *slog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logging.OrDiscard(logger),
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.srv.Addr }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Diagnostics server listening.", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("diagnostics: listen %s: %w", s.srv.Addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("diagnostics: shutdown: %w", err)
		}
		s.logger.Info("Diagnostics server stopped.")
		return nil
	}
}
