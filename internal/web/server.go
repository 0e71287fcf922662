package web

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pocketomega/pocket-planner/internal/artifact"
	"github.com/pocketomega/pocket-planner/internal/metrics"
	"github.com/pocketomega/pocket-planner/internal/planner"
	"github.com/pocketomega/pocket-planner/internal/session"
	"golang.org/x/net/netutil"
)

const (
	maxRequestBody  = 1 << 20          // 1MB max request body
	planTimeout     = 10 * time.Minute // upper bound for one run
	shutdownTimeout = 10 * time.Second
)

// RunLister reads the run index.
type RunLister interface {
	Get(ctx context.Context, runID string) (*artifact.Run, error)
	List(ctx context.Context, limit int) ([]*artifact.Run, error)
}

// Options wires the server. Runner is required; the rest is optional.
type Options struct {
	Addr     string
	MaxConns int

	Runner   *planner.Runner // linear planning
	Sessions *session.Store  // interactive planning
	Runs     RunLister
	Metrics  *metrics.Recorder
	Health   HealthInfo
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	opts   Options
	router chi.Router
}

// NewServer creates the server and registers its routes.
func NewServer(opts Options) *Server {
	s := &Server{opts: opts, router: chi.NewRouter()}
	s.registerRoutes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	health := NewHealthHandler(s.opts.Health)
	r.Method(http.MethodGet, "/api/health", health)
	r.Post("/api/plan", s.handlePlan)

	if s.opts.Sessions != nil {
		r.Route("/api/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Post("/{id}/messages", s.handleSessionMessage)
			r.Delete("/{id}", s.handleDeleteSession)
		})
	}
	if s.opts.Runs != nil {
		r.Get("/api/runs", s.handleListRuns)
		r.Get("/api/runs/{id}", s.handleGetRun)
	}
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics.Handler())
	}
}

// requestLogger logs one line per request in the server's log format.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Printf("[Web] %s %s %d %v", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond))
	})
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully, waiting up to 10s for in-flight requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.opts.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.opts.MaxConns)
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("[Web] Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Web] Graceful shutdown error: %v", err)
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Printf("[Web] Server stopped")
	return nil
}

// ListenAndServe listens on opts.Addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := s.opts.Addr
	if addr == "" {
		addr = ":8080"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Printf("[Web] Planner server running at http://%s", ln.Addr())
	return s.Serve(ctx, ln)
}
