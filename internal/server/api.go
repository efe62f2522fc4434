package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bryan-buckman/sftu/internal/catalog"
	"github.com/bryan-buckman/sftu/internal/database"
	"github.com/bryan-buckman/sftu/internal/listing"
	"github.com/bryan-buckman/sftu/internal/model"
	"github.com/bryan-buckman/sftu/internal/opml"
)

// MigrateSecretHeader carries the admin secret.
const MigrateSecretHeader = "x-migrate-secret"

// --- API Handlers ---

// handleAPIListings returns the raw catalog, or a filtered and gated page
// when any filter parameter is present.
func (s *Server) handleAPIListings(w http.ResponseWriter, r *http.Request) {
	listings, err := s.catalog.FetchListings(r.Context())
	if err != nil {
		s.logger.Error("load catalog", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load listings")
		return
	}

	q := r.URL.Query()
	if !hasFilterParams(q.Has) {
		writeJSON(w, http.StatusOK, listings)
		return
	}

	viewer := s.viewers.CurrentViewer(r)
	result := listing.Query(listings, listing.FilterStateFromQuery(q), viewer, s.pageSize)
	s.metrics.ObserveQuery(viewer.IsAuthenticated, result.HiddenCount)
	writeJSON(w, http.StatusOK, map[string]any{
		"listings":    result.Visible,
		"total":       result.Total,
		"hiddenCount": result.HiddenCount,
	})
}

func hasFilterParams(has func(string) bool) bool {
	return has("q") || has("neighborhood") || has("price") || has("beds")
}

func (s *Server) handleAPINeighborhoods(w http.ResponseWriter, r *http.Request) {
	neighborhoods, err := s.catalog.Neighborhoods(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load neighborhoods")
		return
	}
	writeJSON(w, http.StatusOK, neighborhoods)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	s.changeSave(w, r, true)
}

func (s *Server) handleUnsave(w http.ResponseWriter, r *http.Request) {
	s.changeSave(w, r, false)
}

func (s *Server) changeSave(w http.ResponseWriter, r *http.Request, save bool) {
	viewer := s.viewers.CurrentViewer(r)
	if !viewer.IsAuthenticated {
		writeError(w, http.StatusUnauthorized, "Sign in to save listings")
		return
	}
	id := chi.URLParam(r, "id")

	err := s.setSaved(r.Context(), viewer.ID, id, save)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Listing not found")
		return
	}
	if err != nil {
		s.logger.Error("update saved listing", zap.String("listing", id), zap.Bool("save", save), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to update saved listings")
		return
	}

	count, err := s.store.CountSaved(r.Context(), viewer.ID)
	if err != nil {
		s.logger.Warn("count saved listings", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"saved":      save,
		"savedCount": count,
	})
}

func (s *Server) setSaved(ctx context.Context, userID, listingID string, save bool) error {
	if save {
		return s.store.SaveListing(ctx, userID, listingID)
	}
	return s.store.UnsaveListing(ctx, userID, listingID)
}

// --- Admin Handlers ---

// requireAdminSecret rejects requests whose secret header does not match.
// An unset secret rejects everything.
func (s *Server) requireAdminSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(MigrateSecretHeader)
		if s.adminSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.adminSecret)) != 1 {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleMigrate(w http.ResponseWriter, r *http.Request) {
	tables, err := s.store.Migrate(r.Context())
	if err != nil {
		s.logger.Error("migrate", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Migration failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authTablesCreated": tables,
		"authFieldsAdded":   []string{},
		"appSchema":         "applied",
	})
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	created, err := catalog.Seed(r.Context(), s.store)
	if err != nil {
		s.logger.Error("seed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Seed failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "created": created})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.poller == nil {
		writeError(w, http.StatusServiceUnavailable, "Ingestion is disabled")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	sum, err := s.poller.RunOnce(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Fetch error: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"sources": sum.Sources,
		"failed":  sum.Failed,
		"new":     sum.New,
		"updated": sum.Updated,
		"skipped": sum.Skipped,
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	interval, err := s.store.GetPollingInterval(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"polling_interval": interval})
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PollingInterval int `json:"polling_interval"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	// Enforce minimum.
	if req.PollingInterval < model.MinPollingIntervalMinutes {
		req.PollingInterval = model.MinPollingIntervalMinutes
	}
	if err := s.store.SetSetting(r.Context(), model.SettingPollingInterval, strconv.Itoa(req.PollingInterval)); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save")
		return
	}
	if s.poller != nil {
		if err := s.poller.Reschedule(req.PollingInterval); err != nil {
			s.logger.Error("reschedule poller", zap.Int("minutes", req.PollingInterval), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "polling_interval": req.PollingInterval})
}

func (s *Server) handleImportSources(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("opml")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	entries, err := opml.Parse(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse OPML: %v", err))
		return
	}

	imported := 0
	for _, entry := range entries {
		_, isNew, err := s.store.GetOrCreateSource(r.Context(), entry.Title, entry.URL, entry.Neighborhood)
		if err != nil {
			s.logger.Error("create source", zap.String("url", entry.URL), zap.Error(err))
			continue
		}
		if isNew {
			imported++
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"imported": imported,
		"total":    len(entries),
	})
}

func (s *Server) handleExportSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.store.GetSources(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get sources")
		return
	}
	data, err := opml.Export("SFTU Sources", opml.FromSources(sources))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to export")
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Disposition", "attachment; filename=sftu-sources.opml")
	w.Write(data)
}
