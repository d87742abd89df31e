package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/faucetdb/schemagraph/internal/connector"
	"github.com/faucetdb/schemagraph/internal/graph"
	"github.com/faucetdb/schemagraph/internal/inspect"
	"github.com/faucetdb/schemagraph/internal/model"
	"github.com/faucetdb/schemagraph/internal/openapi"
	"github.com/faucetdb/schemagraph/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host              string
	Port              int
	ShutdownTimeout   time.Duration
	CORSOrigins       []string
	RequestsPerMinute int // per client IP, 0 disables limiting
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:              "127.0.0.1",
		Port:              8080,
		ShutdownTimeout:   30 * time.Second,
		CORSOrigins:       []string{"*"},
		RequestsPerMinute: 120,
	}
}

// Server exposes the schema graphs of the connected sources read-only over
// HTTP. Graphs are created on first use and populated lazily as requests
// reach into them.
type Server struct {
	cfg        Config
	router     chi.Router
	registry   *connector.Registry
	graphs     *inspect.Graphs
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server for the sources connected in registry. When env has
// no dispatcher a Foreground one is started and stopped by Close.
func New(cfg Config, registry *connector.Registry, env graph.Env, logger *slog.Logger) *Server {
	if env.Logger == nil {
		env.Logger = logger
	}
	s := &Server{
		cfg:      cfg,
		registry: registry,
		graphs:   inspect.NewGraphs(registry, env),
		logger:   logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.RateLimit(s.cfg.RequestsPerMinute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(chimw.Compress(5))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	r.Route("/api/v1/sources", func(r chi.Router) {
		r.Get("/", s.handleListSources)
		r.Route("/{source}", func(r chi.Router) {
			r.Get("/tree", s.handleTree)
			r.Get("/openapi.json", s.handleOpenAPI)
			r.Get("/tables/{catalog}/{schema}/{table}", s.handleTable)
			r.Post("/reload", s.handleReload)
		})
	})

	s.router = r
}

// handleHealthz reports liveness. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz pings every connected source and returns 503 if any of them
// is unreachable.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	for _, name := range s.registry.ListSources() {
		conn, err := s.registry.Get(name)
		if err == nil {
			err = conn.Ping(r.Context())
		}
		if err != nil {
			checks[name] = "error: " + err.Error()
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}

	if status != "ok" {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, map[string]any{
		"status": status,
		"checks": checks,
	})
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sources := []model.SourceSummary{}
	for _, name := range s.registry.ListSources() {
		conn, err := s.registry.Get(name)
		if err != nil {
			continue
		}
		sources = append(sources, model.SourceSummary{Name: name, Driver: conn.DriverName()})
	}
	writeJSON(w, http.StatusOK, model.ListResponse[model.SourceSummary]{
		Resource: sources,
		Meta: model.ResponseMeta{
			Count:  len(sources),
			TookMs: float64(time.Since(start).Microseconds()) / 1000.0,
		},
	})
}

// handleTree returns the containers and table summaries of a source. With
// ?tables=true every table is populated as well.
func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	withTables := false
	if v := r.URL.Query().Get("tables"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid tables parameter: "+v)
			return
		}
		withTables = b
	}

	view, err := s.graphs.Tree(r.Context(), chi.URLParam(r, "source"), withTables, middleware.LoggerFrom(r.Context()))
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleTable populates and returns one table. A "-" qualifier stands for a
// level the database does not use.
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	view, err := s.graphs.Table(r.Context(),
		chi.URLParam(r, "source"),
		qualifier(chi.URLParam(r, "catalog")),
		qualifier(chi.URLParam(r, "schema")),
		chi.URLParam(r, "table"),
		middleware.LoggerFrom(r.Context()),
	)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleOpenAPI loads every table of a source and returns an OpenAPI
// document with one component schema per table.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "source")
	tables, err := s.graphs.Tables(r.Context(), name, middleware.LoggerFrom(r.Context()))
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	conn, err := s.registry.Get(name)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, openapi.Generate(name, conn.DriverName(), tables))
}

// handleReload drops the cached graph of a source so the next request reads
// fresh metadata.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "source")
	if err := s.graphs.Drop(name); err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded", "source": name})
}

// errorStatus maps a graph access error to an HTTP status.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, connector.ErrSourceNotFound), errors.Is(err, graph.ErrTableNotFound):
		return http.StatusNotFound
	case errors.Is(err, graph.ErrDispatcherClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		// The source failed to answer a metadata query.
		return http.StatusBadGateway
	}
}

func qualifier(param string) string {
	if param == "-" {
		return ""
	}
	return param
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{Code: code, Message: message},
	})
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then drains in-flight requests, stops the dispatcher and
// closes every source.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.Close()
	s.registry.CloseAll()
	s.logger.Info("server stopped")
	return nil
}

// Close stops the dispatcher started by New, if any.
func (s *Server) Close() {
	s.graphs.Close()
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
