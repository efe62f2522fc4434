// Package session resolves the viewer of a request.
package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/bryan-buckman/sftu/internal/database"
	"github.com/bryan-buckman/sftu/internal/model"
)

// CookieName holds the session token.
const CookieName = "sftu_session"

// Provider tells who is looking at the site.
type Provider interface {
	CurrentViewer(r *http.Request) model.Viewer
}

// AnonymousViewer is the profile shown to visitors who have not signed in.
func AnonymousViewer() model.Viewer {
	return model.Viewer{
		ID:          "viewer-1",
		Name:        "Maya Chen",
		Email:       "maya@sftu.app",
		Plan:        "Explorer",
		SavedCount:  14,
		HomeBase:    "Potrero Hill",
		MemberSince: "2024-11-01",
		Avatar:      "https://images.unsplash.com/photo-1544723795-3fb6469f5b39?auto=format&fit=crop&w=400&q=80",
	}
}

// Static always returns the anonymous viewer.
type Static struct{}

// CurrentViewer implements Provider.
func (Static) CurrentViewer(*http.Request) model.Viewer {
	return AnonymousViewer()
}

// Lookup resolves a session token. Unknown tokens return database.ErrNotFound.
type Lookup interface {
	GetSession(ctx context.Context, token string) (*model.Session, *model.User, error)
}

// SavedCounter counts a user's saved listings.
type SavedCounter interface {
	CountSaved(ctx context.Context, userID string) (int, error)
}

// CookieProvider reads the session cookie and resolves it through a Lookup.
type CookieProvider struct {
	lookup Lookup
	saved  SavedCounter
	logger *zap.Logger
	now    func() time.Time
}

// NewCookieProvider creates a CookieProvider. saved may be nil.
func NewCookieProvider(lookup Lookup, saved SavedCounter, logger *zap.Logger) *CookieProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CookieProvider{lookup: lookup, saved: saved, logger: logger.Named("session"), now: time.Now}
}

// CurrentViewer returns the signed-in viewer, or the anonymous viewer when
// there is no valid session.
func (p *CookieProvider) CurrentViewer(r *http.Request) model.Viewer {
	s, u, ok := p.Current(r)
	if !ok {
		return AnonymousViewer()
	}

	v := AnonymousViewer()
	v.ID = u.ID
	v.Name = u.Name
	v.Email = u.Email
	if u.Image != "" {
		v.Avatar = u.Image
	}
	if !u.CreatedAt.IsZero() {
		v.MemberSince = u.CreatedAt.Format("2006-01-02")
	}
	v.SavedCount = 0
	if p.saved != nil {
		n, err := p.saved.CountSaved(r.Context(), s.UserID)
		if err != nil {
			p.logger.Warn("count saved listings", zap.String("user_id", s.UserID), zap.Error(err))
		} else {
			v.SavedCount = n
		}
	}
	v.IsAuthenticated = true
	return v
}

// Current returns the live session and user behind the request cookie.
func (p *CookieProvider) Current(r *http.Request) (*model.Session, *model.User, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil, nil, false
	}
	s, u, err := p.lookup.GetSession(r.Context(), c.Value)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			p.logger.Warn("session lookup failed", zap.Error(err))
		}
		return nil, nil, false
	}
	if s.Expired(p.now()) {
		return nil, nil, false
	}
	return s, u, true
}
