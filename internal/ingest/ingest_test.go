package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bryan-buckman/sftu/internal/catalog"
	"github.com/bryan-buckman/sftu/internal/metrics"
	"github.com/bryan-buckman/sftu/internal/model"
)

func TestParseTitle(t *testing.T) {
	tests := []struct {
		in   string
		want TitleInfo
	}{
		{
			in:   "$3890 / 2br - 890ft2 - Warm Mission Flat with Patio (mission district)",
			want: TitleInfo{Price: 3890, Beds: 2, Sqft: 890, Hint: "mission district", Title: "Warm Mission Flat with Patio", Priced: true},
		},
		{
			in:   "$2,950 / studio - Cozy Clement nook (inner richmond)",
			want: TitleInfo{Price: 2950, Hint: "inner richmond", Title: "Cozy Clement nook", Priced: true},
		},
		{
			in:   "$4,650 2bd 2ba 1,100 sq ft - Sunny Noe Terrace",
			want: TitleInfo{Price: 4650, Beds: 2, Baths: 2, Sqft: 1100, Title: "Sunny Noe Terrace", Priced: true},
		},
		{
			in:   "Room for rent - no price listed (soma / south beach)",
			want: TitleInfo{Hint: "soma / south beach", Title: "Room for rent - no price listed"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseTitle(tt.in); got != tt.want {
				t.Errorf("ParseTitle = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalizeNeighborhood(t *testing.T) {
	tests := map[string]string{
		"mission district":             "Mission",
		"inner richmond":               "Inner Richmond",
		"lower haight":                 "Haight",
		"soma / south beach":           "SoMa",
		"SOMA":                         "SoMa",
		"sunset / parkside":            "Outer Sunset",
		"  dogpatch ":                  "dogpatch",
		"":                             "",
		"mission bay":                  "Mission Bay",
		"Mission Dolores":              "Mission Dolores",
		"south beach":                  "SoMa",
		"inner mission":                "Mission",
		"upper haight":                 "Haight",
		"outer richmond":               "outer richmond",
		"noe valley":                   "Noe Valley",
		"missionary ridge":             "missionary ridge",
		"north beach / telegraph hill": "North Beach",
	}
	for in, want := range tests {
		if got := NormalizeNeighborhood(in, catalog.Neighborhoods); got != want {
			t.Errorf("NormalizeNeighborhood(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractPhotos(t *testing.T) {
	item := &gofeed.Item{
		Enclosures:  []*gofeed.Enclosure{{URL: "https://img.example.com/a.jpg", Type: "image/jpeg"}, {URL: "https://example.com/x.mp3", Type: "audio/mpeg"}},
		Image:       &gofeed.Image{URL: "https://img.example.com/b.jpg"},
		Description: `<p>Nice place</p><img src="https://img.example.com/a.jpg"><img src="/relative.jpg"><img src="https://img.example.com/c.jpg">`,
	}
	got := extractPhotos(item)
	want := []string{"https://img.example.com/a.jpg", "https://img.example.com/b.jpg", "https://img.example.com/c.jpg"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("extractPhotos = %v, want %v", got, want)
	}
}

type memStore struct {
	mu       sync.Mutex
	sources  []model.Source
	listings map[string]model.Listing
	fetched  map[int64]bool
	errors   map[int64]string
}

func newMemStore(sources ...model.Source) *memStore {
	return &memStore{
		sources:  sources,
		listings: map[string]model.Listing{},
		fetched:  map[int64]bool{},
		errors:   map[int64]string{},
	}
}

func (m *memStore) SupportsHighConcurrency() bool { return false }

func (m *memStore) GetSources(context.Context) ([]model.Source, error) {
	return m.sources, nil
}

func (m *memStore) UpsertListing(_ context.Context, l *model.Listing) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := l.Source + ":" + l.SourceID
	_, exists := m.listings[key]
	m.listings[key] = *l
	return !exists, nil
}

func (m *memStore) UpdateSourceFetched(_ context.Context, id int64, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetched[id] = true
	return nil
}

func (m *memStore) UpdateSourceError(_ context.Context, id int64, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[id] = msg
	return nil
}

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>sf apartments</title>
  <item>
    <title>$3890 / 2br - 890ft2 - Warm Mission Flat (mission district)</title>
    <link>https://sf.example.com/apa/1.html</link>
    <guid>post-1</guid>
    <category>pet friendly</category>
    <description><![CDATA[<address>2595 Harrison St, Apt 3</address><img src="https://img.example.com/1.jpg">]]></description>
  </item>
  <item>
    <title>$2950 / studio - Clement nook</title>
    <link>https://sf.example.com/apa/2.html</link>
    <guid>post-2</guid>
  </item>
  <item>
    <title>Looking for a roommate</title>
    <link>https://sf.example.com/apa/3.html</link>
    <guid>post-3</guid>
  </item>
</channel>
</rss>`

func TestFetchSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, feedXML)
	}))
	defer srv.Close()

	src := model.Source{ID: 1, Title: "sf apartments", URL: srv.URL + "/feed.rss", Neighborhood: "Inner Richmond"}
	store := newMemStore(src)
	m := metrics.New()
	f := NewFetcher(store, 5*time.Second, m, nil)

	res, err := f.FetchSource(context.Background(), src)
	if err != nil {
		t.Fatalf("FetchSource: %v", err)
	}
	if res != (Result{New: 2, Skipped: 1}) {
		t.Errorf("result = %+v", res)
	}
	if !store.fetched[1] {
		t.Error("source not marked fetched")
	}

	host := feedHost(src.URL)
	flat := store.listings[host+":post-1"]
	if flat.Price != 3890 || flat.Beds != 2 || flat.Neighborhood != "Mission" || flat.Address != "2595 Harrison St, Apt 3" {
		t.Errorf("unexpected flat %+v", flat)
	}
	if !reflect.DeepEqual(flat.Photos, []string{"https://img.example.com/1.jpg"}) || !reflect.DeepEqual(flat.Tags, []string{"pet friendly"}) {
		t.Errorf("photos=%v tags=%v", flat.Photos, flat.Tags)
	}
	studio := store.listings[host+":post-2"]
	if studio.Beds != 0 || studio.Neighborhood != "Inner Richmond" || studio.Title != "Clement nook" {
		t.Errorf("unexpected studio %+v", studio)
	}

	// A second pass updates instead of creating.
	res, err = f.FetchSource(context.Background(), src)
	if err != nil {
		t.Fatalf("FetchSource: %v", err)
	}
	if res.New != 0 || res.Updated != 2 {
		t.Errorf("second result = %+v", res)
	}
	n, err := testutil.GatherAndCount(m.Registry(), "sftu_ingest_items_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 3 {
		t.Errorf("ingest series = %d, want 3", n)
	}
}

func TestFetchAllRecordsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	store := newMemStore(model.Source{ID: 7, URL: srv.URL + "/missing.rss"})
	f := NewFetcher(store, time.Second, nil, nil)
	sum, err := f.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if sum.Sources != 1 || sum.Failed != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if store.errors[7] == "" {
		t.Error("expected the fetch error to be recorded")
	}
}

type fixedInterval int

func (f fixedInterval) GetPollingInterval(context.Context) (int, error) { return int(f), nil }

func (fixedInterval) DeleteExpiredSessions(context.Context, time.Time) (int64, error) { return 0, nil }

func TestPollerReschedule(t *testing.T) {
	p := NewPoller(NewFetcher(newMemStore(), time.Second, nil, nil), fixedInterval(30), nil)
	if err := p.Reschedule(5); err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if p.Interval() != model.MinPollingIntervalMinutes {
		t.Errorf("Interval = %d, want %d", p.Interval(), model.MinPollingIntervalMinutes)
	}
	if err := p.Reschedule(60); err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if p.Interval() != 60 {
		t.Errorf("Interval = %d, want 60", p.Interval())
	}
	if n := len(p.cron.Entries()); n != 1 {
		t.Errorf("cron has %d entries, want 1", n)
	}

	sum, err := p.RunOnce(context.Background())
	if err != nil || sum.Sources != 0 {
		t.Errorf("RunOnce = %+v, %v", sum, err)
	}
}

func TestHostPacerSpacesRequestsPerHost(t *testing.T) {
	p := newHostPacer(1, 40*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		done, err := p.wait(ctx, "a.example.com")
		if err != nil {
			t.Fatalf("wait #%d: %v", i+1, err)
		}
		done()
	}
	if elapsed := time.Since(start); elapsed < 75*time.Millisecond {
		t.Errorf("three requests took %v, want at least two gaps", elapsed)
	}

	// Another host has its own budget.
	start = time.Now()
	done, err := p.wait(ctx, "b.example.com")
	if err != nil {
		t.Fatalf("wait other host: %v", err)
	}
	done()
	if elapsed := time.Since(start); elapsed > 30*time.Millisecond {
		t.Errorf("first request to a new host waited %v", elapsed)
	}
}

func TestHostPacerBoundsInFlight(t *testing.T) {
	p := newHostPacer(1, 0)
	held, err := p.wait(context.Background(), "feeds.example.com")
	if err != nil {
		t.Fatalf("wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := p.wait(ctx, "feeds.example.com"); err == nil {
		t.Fatal("second request should block while the first is in flight")
	}

	held()
	done, err := p.wait(context.Background(), "feeds.example.com")
	if err != nil {
		t.Fatalf("wait after release: %v", err)
	}
	done()
}

func TestFeedHost(t *testing.T) {
	tests := map[string]string{
		"https://sfbay.craigslist.org/search/apa?format=rss": "sfbay.craigslist.org",
		"http://127.0.0.1:8080/feed.rss":                     "127.0.0.1:8080",
		"not a url":                                          "not a url",
	}
	for in, want := range tests {
		if got := feedHost(in); got != want {
			t.Errorf("feedHost(%q) = %q, want %q", in, got, want)
		}
	}
}
