// Package server provides the HTTP server and handlers.
package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/bryan-buckman/sftu/internal/catalog"
	"github.com/bryan-buckman/sftu/internal/database"
	"github.com/bryan-buckman/sftu/internal/ingest"
	"github.com/bryan-buckman/sftu/internal/listing"
	"github.com/bryan-buckman/sftu/internal/logging"
	"github.com/bryan-buckman/sftu/internal/metrics"
	"github.com/bryan-buckman/sftu/internal/session"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Poller is the ingestion scheduler the admin routes drive.
type Poller interface {
	Start(ctx context.Context) error
	Stop()
	RunOnce(ctx context.Context) (ingest.Summary, error)
	Reschedule(minutes int) error
}

// Deps wires the server to the rest of the application. Poller and Auth
// may be nil.
type Deps struct {
	Catalog     catalog.Source
	Viewers     session.Provider
	Store       database.Store
	Auth        http.Handler
	Poller      Poller
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	PageSize    int
	AdminSecret string
}

// Server is the main HTTP server.
type Server struct {
	catalog     catalog.Source
	viewers     session.Provider
	store       database.Store
	auth        http.Handler
	poller      Poller
	metrics     *metrics.Metrics
	logger      *zap.Logger
	pageSize    int
	adminSecret string

	router     chi.Router
	templates  *template.Template
	httpServer *http.Server
}

// New creates a new server.
func New(d Deps) (*Server, error) {
	if d.Catalog == nil || d.Viewers == nil || d.Store == nil {
		return nil, errors.New("server: catalog, viewers and store are required")
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.PageSize <= 0 {
		d.PageSize = listing.DefaultPageSize
	}

	tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		catalog:     d.Catalog,
		viewers:     d.Viewers,
		store:       d.Store,
		auth:        d.Auth,
		poller:      d.Poller,
		metrics:     d.Metrics,
		logger:      d.Logger.Named("server"),
		pageSize:    d.PageSize,
		adminSecret: d.AdminSecret,
		templates:   tmpl,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.AccessLog(s.logger))
	r.Use(s.metrics.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	staticSub, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Pages.
	r.Get("/", s.handleHome)
	r.Get("/listings", s.handleListings)
	r.Get("/login", s.handleLogin)
	r.Get("/profile", s.handleProfile)
	r.Post("/listings/{id}/save", s.handleSaveForm)
	r.Post("/listings/{id}/unsave", s.handleUnsaveForm)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	// API.
	r.Route("/api", func(r chi.Router) {
		r.Get("/listings", s.handleAPIListings)
		r.Get("/neighborhoods", s.handleAPINeighborhoods)
		r.Post("/listings/{id}/save", s.handleSave)
		r.Delete("/listings/{id}/save", s.handleUnsave)

		if s.auth != nil {
			r.Mount("/auth", s.auth)
		}

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdminSecret)
			r.Post("/migrate", s.handleMigrate)
			r.Post("/seed", s.handleSeed)
			r.Post("/refresh", s.handleRefresh)
			r.Get("/settings", s.handleGetSettings)
			r.Post("/settings", s.handleSaveSettings)
			r.Post("/sources/import", s.handleImportSources)
			r.Get("/sources/export", s.handleExportSources)
		})
	})

	s.router = r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start starts the poller and then serves HTTP on addr until Shutdown.
func (s *Server) Start(addr string) error {
	if s.poller != nil {
		if err := s.poller.Start(context.Background()); err != nil {
			return fmt.Errorf("start poller: %w", err)
		}
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.logger.Info("server starting", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, drains in-flight ones and stops the poller.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if s.poller != nil {
		s.poller.Stop()
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"database": s.store.DatabaseType(),
	})
}

// --- Helpers ---

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("template error", zap.String("template", name), zap.Error(err))
		http.Error(w, "Render error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
}
