// Package auth serves /api/auth: Google sign-in, session lookup and sign-out.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/bryan-buckman/sftu/internal/config"
	"github.com/bryan-buckman/sftu/internal/database"
	"github.com/bryan-buckman/sftu/internal/model"
	"github.com/bryan-buckman/sftu/internal/session"
)

const (
	providerGoogle    = "google"
	stateCookie       = "sftu_oauth_state"
	callbackCookie    = "sftu_oauth_callback"
	stateCookieMaxAge = 10 * 60
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

// Store is the persistence the auth routes need.
type Store interface {
	session.Lookup
	UpsertUser(ctx context.Context, u *model.User) error
	LinkAccount(ctx context.Context, a *model.Account) error
	CreateSession(ctx context.Context, s *model.Session) error
	DeleteSession(ctx context.Context, token string) error
}

// Invalidator drops cached state for a session token.
type Invalidator interface {
	Invalidate(ctx context.Context, token string) error
}

// Handler implements the /api/auth routes.
type Handler struct {
	store       Store
	lookup      session.Lookup
	invalidator Invalidator
	oauth       *oauth2.Config
	userInfoURL string
	sessionTTL  time.Duration
	secure      bool
	logger      *zap.Logger
	now         func() time.Time
}

// Option customizes a Handler.
type Option func(*Handler)

// WithLookup resolves sessions through l (e.g. a cache) instead of the store.
func WithLookup(l session.Lookup) Option {
	return func(h *Handler) { h.lookup = l }
}

// WithInvalidator is notified when a session ends.
func WithInvalidator(i Invalidator) Option {
	return func(h *Handler) { h.invalidator = i }
}

// WithEndpoints points the OAuth exchange and userinfo fetch at other URLs.
func WithEndpoints(ep oauth2.Endpoint, userInfoURL string) Option {
	return func(h *Handler) {
		h.oauth.Endpoint = ep
		h.userInfoURL = userInfoURL
	}
}

// New creates a Handler from the auth configuration.
func New(cfg config.AuthConfig, store Store, logger *zap.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	days := cfg.SessionDays
	if days <= 0 {
		days = 7
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	h := &Handler{
		store:  store,
		lookup: store,
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Endpoint:     endpoints.Google,
			RedirectURL:  base + "/api/auth/callback/google",
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: googleUserInfoURL,
		sessionTTL:  time.Duration(days) * 24 * time.Hour,
		secure:      strings.HasPrefix(base, "https://"),
		logger:      logger.Named("auth"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router to mount at /api/auth.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/sign-in/social", h.handleSignIn)
	r.Get("/callback/{provider}", h.handleCallback)
	r.Get("/get-session", h.handleGetSession)
	r.Post("/sign-out", h.handleSignOut)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
	})
	return r
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	provider := r.URL.Query().Get("provider")
	if provider == "" {
		provider = providerGoogle
	}
	if provider != providerGoogle {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Unsupported provider"})
		return
	}
	if h.oauth.ClientID == "" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Google sign-in is not configured"})
		return
	}

	state, err := randomState()
	if err != nil {
		h.logger.Error("generate oauth state", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.setTempCookie(w, stateCookie, state)
	h.setTempCookie(w, callbackCookie, safeCallback(r.URL.Query().Get("callbackURL")))
	http.Redirect(w, r, h.oauth.AuthCodeURL(state), http.StatusFound)
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "provider") != providerGoogle {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
		return
	}
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		h.logger.Info("sign-in declined", zap.String("error", e))
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || c.Value != q.Get("state") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid state"})
		return
	}
	callback := "/profile"
	if cb, err := r.Cookie(callbackCookie); err == nil {
		callback = safeCallback(cb.Value)
	}
	h.clearCookie(w, stateCookie)
	h.clearCookie(w, callbackCookie)

	s, err := h.completeSignIn(r, q.Get("code"))
	if err != nil {
		h.logger.Error("complete sign-in", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Sign-in failed"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, callback, http.StatusFound)
}

type userInfo struct {
	Sub           string `json:"sub"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Picture       string `json:"picture"`
}

func (h *Handler) completeSignIn(r *http.Request, code string) (*model.Session, error) {
	ctx := r.Context()
	tok, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	info, err := h.fetchUserInfo(ctx, tok)
	if err != nil {
		return nil, err
	}
	if info.Email == "" || info.Sub == "" {
		return nil, errors.New("userinfo missing email or subject")
	}
	name := info.Name
	if name == "" {
		name, _, _ = strings.Cut(info.Email, "@")
	}

	u := &model.User{Name: name, Email: info.Email, EmailVerified: info.EmailVerified, Image: info.Picture}
	if err := h.store.UpsertUser(ctx, u); err != nil {
		return nil, err
	}
	acct := &model.Account{
		AccountID:    info.Sub,
		ProviderID:   providerGoogle,
		UserID:       u.ID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Scope:        strings.Join(h.oauth.Scopes, " "),
	}
	if err := h.store.LinkAccount(ctx, acct); err != nil {
		return nil, err
	}
	s := &model.Session{
		UserID:    u.ID,
		ExpiresAt: h.now().Add(h.sessionTTL),
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
	if err := h.store.CreateSession(ctx, s); err != nil {
		return nil, err
	}
	h.logger.Info("user signed in", zap.String("user_id", u.ID))
	return s, nil
}

func (h *Handler) fetchUserInfo(ctx context.Context, tok *oauth2.Token) (*userInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch userinfo: status %d", resp.StatusCode)
	}
	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	return &info, nil
}

type sessionResponse struct {
	Session *model.Session `json:"session"`
	User    *model.User    `json:"user"`
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(session.CookieName)
	if err != nil || c.Value == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	s, u, err := h.lookup.GetSession(r.Context(), c.Value)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			h.logger.Warn("session lookup failed", zap.Error(err))
		}
		writeJSON(w, http.StatusOK, nil)
		return
	}
	if s.Expired(h.now()) {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: s, User: u})
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(session.CookieName); err == nil && c.Value != "" {
		if err := h.store.DeleteSession(r.Context(), c.Value); err != nil {
			h.logger.Error("delete session", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Sign-out failed"})
			return
		}
		if h.invalidator != nil {
			if err := h.invalidator.Invalidate(r.Context(), c.Value); err != nil {
				h.logger.Warn("invalidate cached session", zap.Error(err))
			}
		}
	}
	h.clearCookie(w, session.CookieName)

	// Plain HTML forms get sent home; API clients get JSON.
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) setTempCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/api/auth",
		MaxAge:   stateCookieMaxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearCookie(w http.ResponseWriter, name string) {
	path := "/api/auth"
	if name == session.CookieName {
		path = "/"
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// safeCallback only allows same-site absolute paths.
func safeCallback(cb string) string {
	if !strings.HasPrefix(cb, "/") || strings.HasPrefix(cb, "//") || strings.Contains(cb, `\`) {
		return "/profile"
	}
	return cb
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(ip)
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i > 0 {
		host = host[:i]
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
