package server

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bryan-buckman/sftu/internal/catalog"
	"github.com/bryan-buckman/sftu/internal/database"
	"github.com/bryan-buckman/sftu/internal/listing"
	"github.com/bryan-buckman/sftu/internal/model"
)

const (
	featuredCount     = 3
	profilePreviewLen = 3
	visibleTags       = 3
)

// signInURL starts Google sign-in and returns to the profile page.
const signInURL = "/api/auth/sign-in/social?provider=google&callbackURL=/profile"

// --- Page Handlers ---

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	viewer := s.viewers.CurrentViewer(r)
	if viewer.IsAuthenticated {
		http.Redirect(w, r, "/listings", http.StatusFound)
		return
	}

	featured, err := catalog.Featured(r.Context(), s.catalog, featuredCount)
	if err != nil {
		s.logger.Error("load featured listings", zap.Error(err))
	}
	neighborhoods, err := s.catalog.Neighborhoods(r.Context())
	if err != nil {
		s.logger.Error("load neighborhoods", zap.Error(err))
	}

	s.render(w, "home.html", map[string]any{
		"Viewer":        viewer,
		"Nav":           "home",
		"Featured":      s.cards(r, viewer, featured),
		"Neighborhoods": withoutAll(neighborhoods),
	})
}

func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	viewer := s.viewers.CurrentViewer(r)
	listings, err := s.catalog.FetchListings(r.Context())
	if err != nil {
		s.logger.Error("load catalog", zap.Error(err))
		http.Error(w, "Failed to load listings", http.StatusInternalServerError)
		return
	}
	neighborhoods, err := s.catalog.Neighborhoods(r.Context())
	if err != nil {
		s.logger.Error("load neighborhoods", zap.Error(err))
	}

	filter := listing.FilterStateFromQuery(r.URL.Query())
	result := listing.Query(listings, filter, viewer, s.pageSize)
	s.metrics.ObserveQuery(viewer.IsAuthenticated, result.HiddenCount)

	s.render(w, "listings.html", map[string]any{
		"Viewer":        viewer,
		"Nav":           "listings",
		"Filter":        filter,
		"PriceBucket":   listing.LookupPriceBucket(filter.PriceBucket).Label,
		"BedBucket":     listing.LookupBedBucket(filter.BedBucket).Value,
		"Neighborhoods": neighborhoods,
		"PriceBuckets":  listing.PriceBuckets,
		"BedBuckets":    listing.BedBuckets,
		"Result":        result,
		"Cards":         s.cards(r, viewer, result.Visible),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	viewer := s.viewers.CurrentViewer(r)
	if viewer.IsAuthenticated {
		http.Redirect(w, r, "/profile", http.StatusFound)
		return
	}
	s.render(w, "login.html", map[string]any{
		"Viewer":    viewer,
		"Nav":       "login",
		"SignInURL": signInURL,
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	viewer := s.viewers.CurrentViewer(r)

	var saved []model.Listing
	if viewer.IsAuthenticated {
		var err error
		saved, err = s.store.SavedListings(r.Context(), viewer.ID)
		if err != nil {
			s.logger.Error("load saved listings", zap.String("user", viewer.ID), zap.Error(err))
		}
	} else {
		var err error
		saved, err = catalog.Featured(r.Context(), s.catalog, profilePreviewLen)
		if err != nil {
			s.logger.Error("load preview listings", zap.Error(err))
		}
	}

	s.render(w, "profile.html", map[string]any{
		"Viewer": viewer,
		"Nav":    "profile",
		"Saved":  s.cards(r, viewer, saved),
	})
}

func (s *Server) handleSaveForm(w http.ResponseWriter, r *http.Request) {
	s.submitSave(w, r, true)
}

func (s *Server) handleUnsaveForm(w http.ResponseWriter, r *http.Request) {
	s.submitSave(w, r, false)
}

// submitSave backs the save button on listing cards and redirects back to
// the page the form was posted from.
func (s *Server) submitSave(w http.ResponseWriter, r *http.Request, save bool) {
	viewer := s.viewers.CurrentViewer(r)
	if !viewer.IsAuthenticated {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	id := chi.URLParam(r, "id")
	err := s.setSaved(r.Context(), viewer.ID, id, save)
	if errors.Is(err, database.ErrNotFound) {
		http.Error(w, "Listing not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("update saved listing", zap.String("listing", id), zap.Bool("save", save), zap.Error(err))
		http.Error(w, "Failed to update saved listings", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, localPath(r.PostFormValue("return_to")), http.StatusSeeOther)
}

// localPath keeps redirects on this site.
func localPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return "/listings"
	}
	return p
}

// cardView is a listing as one card renders it.
type cardView struct {
	model.Listing
	CanSave  bool
	Saved    bool
	ReturnTo string
}

func (s *Server) cards(r *http.Request, viewer model.Viewer, listings []model.Listing) []cardView {
	saved := map[string]bool{}
	if viewer.IsAuthenticated {
		mine, err := s.store.SavedListings(r.Context(), viewer.ID)
		if err != nil {
			s.logger.Warn("load saved listings", zap.String("user", viewer.ID), zap.Error(err))
		}
		for _, l := range mine {
			saved[l.ID] = true
		}
	}
	out := make([]cardView, len(listings))
	for i, l := range listings {
		out[i] = cardView{
			Listing:  l,
			CanSave:  viewer.IsAuthenticated,
			Saved:    saved[l.ID],
			ReturnTo: r.URL.RequestURI(),
		}
	}
	return out
}

func withoutAll(neighborhoods []string) []string {
	out := make([]string, 0, len(neighborhoods))
	for _, n := range neighborhoods {
		if n != listing.AllNeighborhoods {
			out = append(out, n)
		}
	}
	return out
}

// --- Template Functions ---

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"number":      func(n int) string { return humanize.Comma(int64(n)) },
		"bedsLabel":   bedsLabel,
		"bathsLabel":  bathsLabel,
		"recordClass": recordClass,
		"recordLabel": recordLabel,
		"firstTags":   func(tags []string) []string { return headTags(tags, visibleTags) },
		"extraTags":   func(tags []string) int { return max(len(tags)-visibleTags, 0) },
		"firstPhoto":  firstPhoto,
		"plural":      plural,
	}
}

func bedsLabel(beds int) string {
	if beds == 0 {
		return "Studio"
	}
	return fmt.Sprintf("%d bd", beds)
}

func bathsLabel(baths float64) string {
	return fmt.Sprintf("%s ba", humanize.Ftoa(baths))
}

// recordClass is the CSS modifier for a listing's record indicator.
func recordClass(openViolations int) string {
	status, err := listing.ClassifyRecordStatus(openViolations)
	if err != nil {
		return "unknown"
	}
	return string(status)
}

func recordLabel(openViolations int) string {
	status, err := listing.ClassifyRecordStatus(openViolations)
	if err != nil {
		return "Record unavailable"
	}
	return status.Label(openViolations)
}

func headTags(tags []string, n int) []string {
	if len(tags) > n {
		return tags[:n]
	}
	return tags
}

func firstPhoto(photos []string) string {
	if len(photos) == 0 {
		return ""
	}
	return photos[0]
}

// plural picks the singular or plural word for n.
func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
