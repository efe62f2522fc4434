// Package model defines shared data structures.
package model

import "time"

// Listing is a single rental listing as shown in the listings grid.
type Listing struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Address       string        `json:"address"`
	Neighborhood  string        `json:"neighborhood"`
	Price         int           `json:"price"` // monthly rent in dollars
	Beds          int           `json:"beds"`  // 0 = studio
	Baths         float64       `json:"baths"`
	Sqft          int           `json:"sqft"`
	Photos        []string      `json:"photos"`
	Tags          []string      `json:"tags"`
	Management    string        `json:"management"`
	SavesCount    int           `json:"savesCount"`
	RecordSummary RecordSummary `json:"recordSummary"`
	Map           MapPoint      `json:"map"`

	// Ingestion bookkeeping; empty for fixture listings.
	Source   string `json:"source,omitempty"`
	SourceID string `json:"sourceId,omitempty"`
	URL      string `json:"url,omitempty"`
}

// RecordSummary condenses a building's public inspection history.
type RecordSummary struct {
	OpenViolations int    `json:"openViolations"`
	LastInspection string `json:"lastInspection"`
	Note           string `json:"note"`
}

// MapPoint is a relative position on the neighborhood map, e.g. "38%".
type MapPoint struct {
	X string `json:"x"`
	Y string `json:"y"`
}

// Viewer is the person looking at the site, signed in or not.
type Viewer struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Plan            string `json:"plan"`
	SavedCount      int    `json:"savedCount"`
	HomeBase        string `json:"homeBase"`
	MemberSince     string `json:"memberSince"`
	Avatar          string `json:"avatar"`
	IsAuthenticated bool   `json:"isAuthenticated"`
}

// FirstName returns the first word of the viewer's name.
func (v Viewer) FirstName() string {
	for i, r := range v.Name {
		if r == ' ' {
			return v.Name[:i]
		}
	}
	return v.Name
}

// User is an account holder created through social sign-in.
type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"emailVerified"`
	Image         string    `json:"image,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Account links a user to an identity provider.
type Account struct {
	ID           string
	AccountID    string // provider's subject id
	ProviderID   string // e.g. "google"
	UserID       string
	AccessToken  string
	RefreshToken string
	Scope        string
}

// Session is a signed-in browser session.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Expired reports whether the session is past its expiry at t.
func (s Session) Expired(t time.Time) bool {
	return !s.ExpiresAt.After(t)
}

// Source is a listing feed that ingestion polls.
type Source struct {
	ID           int64
	Title        string
	URL          string
	Neighborhood string // default neighborhood for items without a hint
	LastFetched  time.Time
	LastError    string
}

// Settings key constants.
const (
	SettingPollingInterval = "polling_interval_minutes"
)

// MinPollingIntervalMinutes is the floor for the ingestion schedule.
const MinPollingIntervalMinutes = 15
