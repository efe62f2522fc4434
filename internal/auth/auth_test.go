package auth

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"

	"github.com/bryan-buckman/sftu/internal/config"
	"github.com/bryan-buckman/sftu/internal/database"
	"github.com/bryan-buckman/sftu/internal/session"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// fakeGoogle serves the token and userinfo endpoints.
func fakeGoogle(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"sub":"g-42","name":"Jordan Park","email":"jordan@example.com","email_verified":true,"picture":"https://example.com/j.png"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Mount("/api/auth", h.Routes())
	return r
}

func cookieFrom(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSignInWithoutClientID(t *testing.T) {
	h := New(config.AuthConfig{BaseURL: "http://localhost:8080"}, newTestDB(t), nil)
	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/sign-in/social?provider=google", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestUnknownRoutesAndProviders(t *testing.T) {
	h := New(config.AuthConfig{GoogleClientID: "id", GoogleClientSecret: "secret"}, newTestDB(t), nil)
	router := newRouter(h)

	tests := []struct {
		path string
		want int
	}{
		{"/api/auth/unknown", http.StatusNotFound},
		{"/api/auth/sign-in/social?provider=github", http.StatusBadRequest},
		{"/api/auth/callback/github?code=x", http.StatusNotFound},
		{"/api/auth/callback/google?code=x&state=forged", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}
}

func TestGoogleSignInFlow(t *testing.T) {
	google := fakeGoogle(t)
	db := newTestDB(t)
	h := New(config.AuthConfig{
		BaseURL:            "http://localhost:8080",
		GoogleClientID:     "client-id",
		GoogleClientSecret: "client-secret",
	}, db, nil, WithEndpoints(oauth2.Endpoint{
		AuthURL:  google.URL + "/auth",
		TokenURL: google.URL + "/token",
	}, google.URL+"/userinfo"))
	router := newRouter(h)

	// Step 1: start sign-in.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/sign-in/social?provider=google&callbackURL=/listings", nil))
	if rec.Code != http.StatusFound {
		t.Fatalf("sign-in status = %d, want 302", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil || !strings.HasPrefix(loc.String(), google.URL+"/auth") {
		t.Fatalf("unexpected redirect %q", rec.Header().Get("Location"))
	}
	if loc.Query().Get("redirect_uri") != "http://localhost:8080/api/auth/callback/google" {
		t.Errorf("redirect_uri = %q", loc.Query().Get("redirect_uri"))
	}
	state := loc.Query().Get("state")
	stateC := cookieFrom(rec.Result(), stateCookie)
	cbC := cookieFrom(rec.Result(), callbackCookie)
	if stateC == nil || stateC.Value != state || cbC == nil {
		t.Fatalf("missing state cookies: %v", rec.Result().Cookies())
	}

	// Step 2: provider redirects back.
	req := httptest.NewRequest(http.MethodGet, "/api/auth/callback/google?code=good-code&state="+state, nil)
	req.AddCookie(stateC)
	req.AddCookie(cbC)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusFound {
		t.Fatalf("callback status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != "/listings" {
		t.Errorf("callback redirect = %q, want /listings", got)
	}
	sessC := cookieFrom(rec.Result(), session.CookieName)
	if sessC == nil || sessC.Value == "" || !sessC.HttpOnly {
		t.Fatalf("session cookie not set: %v", rec.Result().Cookies())
	}

	// Step 3: the session resolves.
	req = httptest.NewRequest(http.MethodGet, "/api/auth/get-session", nil)
	req.AddCookie(sessC)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var body struct {
		Session struct {
			Token string `json:"token"`
		} `json:"session"`
		User struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode get-session: %v (%s)", err, rec.Body.String())
	}
	if body.User.Email != "jordan@example.com" || body.Session.Token != sessC.Value {
		t.Errorf("unexpected session body %s", rec.Body.String())
	}

	// Step 4: sign out.
	req = httptest.NewRequest(http.MethodPost, "/api/auth/sign-out", nil)
	req.AddCookie(sessC)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("sign-out status = %d", rec.Code)
	}
	if c := cookieFrom(rec.Result(), session.CookieName); c == nil || c.MaxAge >= 0 {
		t.Errorf("session cookie not cleared: %v", c)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/auth/get-session", nil)
	req.AddCookie(sessC)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if strings.TrimSpace(rec.Body.String()) != "null" {
		t.Errorf("get-session after sign-out = %s, want null", rec.Body.String())
	}
}

func TestCallbackRejectsBadCode(t *testing.T) {
	google := fakeGoogle(t)
	h := New(config.AuthConfig{GoogleClientID: "id", GoogleClientSecret: "secret"}, newTestDB(t), nil,
		WithEndpoints(oauth2.Endpoint{AuthURL: google.URL + "/auth", TokenURL: google.URL + "/token"}, google.URL+"/userinfo"))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/callback/google?code=bad&state=s1", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "s1"})
	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if cookieFrom(rec.Result(), session.CookieName) != nil {
		t.Error("no session cookie expected")
	}
}

func TestSignOutFormRedirects(t *testing.T) {
	h := New(config.AuthConfig{}, newTestDB(t), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/sign-out", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Errorf("status=%d location=%q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestSafeCallback(t *testing.T) {
	tests := map[string]string{
		"":                     "/profile",
		"/listings":            "/listings",
		"//evil.example":       "/profile",
		"https://evil.example": "/profile",
		`/\evil`:               "/profile",
	}
	for in, want := range tests {
		if got := safeCallback(in); got != want {
			t.Errorf("safeCallback(%q) = %q, want %q", in, got, want)
		}
	}
}
