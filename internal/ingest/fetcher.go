// Package ingest turns housing-post feeds into stored listings.
package ingest

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/bryan-buckman/sftu/internal/catalog"
	"github.com/bryan-buckman/sftu/internal/metrics"
	"github.com/bryan-buckman/sftu/internal/model"
)

// Concurrency settings
const (
	// MaxConcurrencyPostgres is the number of parallel fetches for PostgreSQL
	MaxConcurrencyPostgres = 10
	// MaxConcurrencySQLite is the number of parallel fetches for SQLite (limited due to locking)
	MaxConcurrencySQLite = 1
	// MaxInFlightPerHost limits parallel requests to any single feed host
	MaxInFlightPerHost = 2
	// HostRequestGap is the minimum time between request starts to one host
	HostRequestGap = 500 * time.Millisecond
)

// Store is the persistence ingestion needs.
type Store interface {
	SupportsHighConcurrency() bool
	GetSources(ctx context.Context) ([]model.Source, error)
	UpsertListing(ctx context.Context, l *model.Listing) (bool, error)
	UpdateSourceFetched(ctx context.Context, sourceID int64, t time.Time) error
	UpdateSourceError(ctx context.Context, sourceID int64, errMsg string) error
}

// Result counts what one fetch did with its items.
type Result struct {
	New     int `json:"new"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

func (r *Result) add(o Result) {
	r.New += o.New
	r.Updated += o.Updated
	r.Skipped += o.Skipped
}

// Summary aggregates a FetchAll run.
type Summary struct {
	Sources int `json:"sources"`
	Failed  int `json:"failed"`
	Result
}

// Fetcher handles listing feed fetching.
type Fetcher struct {
	store         Store
	parser        *gofeed.Parser
	concurrency   int
	pacer         *hostPacer
	neighborhoods []string
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// NewFetcher creates a fetcher with concurrency based on database type.
// m may be nil.
func NewFetcher(store Store, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := MaxConcurrencySQLite
	if store.SupportsHighConcurrency() {
		concurrency = MaxConcurrencyPostgres
	}
	parser := gofeed.NewParser()
	parser.UserAgent = "sftu-ingest/1.0"
	if timeout > 0 {
		parser.Client = &http.Client{Timeout: timeout}
	}
	return &Fetcher{
		store:         store,
		parser:        parser,
		concurrency:   concurrency,
		pacer:         newHostPacer(MaxInFlightPerHost, HostRequestGap),
		neighborhoods: catalog.Neighborhoods,
		metrics:       m,
		logger:        logger.Named("ingest"),
	}
}

// FetchSource fetches and parses a single source, storing its listings.
func (f *Fetcher) FetchSource(ctx context.Context, src model.Source) (Result, error) {
	done, err := f.pacer.wait(ctx, feedHost(src.URL))
	if err != nil {
		return Result{}, fmt.Errorf("waiting to fetch %s: %w", src.URL, err)
	}
	defer done()

	parsed, err := f.parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		// Record the error for the admin view.
		errMsg := err.Error()
		if len(errMsg) > 200 {
			errMsg = errMsg[:200]
		}
		if uerr := f.store.UpdateSourceError(ctx, src.ID, errMsg); uerr != nil {
			f.logger.Warn("record source error", zap.Int64("source_id", src.ID), zap.Error(uerr))
		}
		return Result{}, fmt.Errorf("parse feed %s: %w", src.URL, err)
	}

	var res Result
	for _, item := range parsed.Items {
		l, ok := itemToListing(item, src, f.neighborhoods)
		if !ok {
			res.Skipped++
			continue
		}
		isNew, err := f.store.UpsertListing(ctx, &l)
		if err != nil {
			f.logger.Warn("store listing", zap.String("source_id", l.SourceID), zap.Error(err))
			res.Skipped++
			continue
		}
		if isNew {
			res.New++
		} else {
			res.Updated++
		}
	}

	if err := f.store.UpdateSourceFetched(ctx, src.ID, time.Now()); err != nil {
		f.logger.Warn("update last_fetched", zap.Int64("source_id", src.ID), zap.Error(err))
	}

	f.metrics.IngestResult("new", res.New)
	f.metrics.IngestResult("updated", res.Updated)
	f.metrics.IngestResult("skipped", res.Skipped)
	return res, nil
}

// fetchResult holds the result of fetching a single source.
type fetchResult struct {
	sourceID int64
	result   Result
	err      error
}

// FetchAll fetches all sources. Uses parallel workers for PostgreSQL,
// sequential for SQLite.
func (f *Fetcher) FetchAll(ctx context.Context) (Summary, error) {
	sources, err := f.store.GetSources(ctx)
	if err != nil {
		return Summary{}, err
	}
	if len(sources) == 0 {
		return Summary{}, nil
	}

	f.logger.Info("fetching sources", zap.Int("sources", len(sources)), zap.Int("concurrency", f.concurrency))

	if f.concurrency <= 1 {
		return f.fetchSequential(ctx, sources)
	}
	return f.fetchParallel(ctx, sources)
}

// fetchSequential fetches sources one at a time (for SQLite).
func (f *Fetcher) fetchSequential(ctx context.Context, sources []model.Source) (Summary, error) {
	var sum Summary
	for i, src := range sources {
		select {
		case <-ctx.Done():
			f.logger.Warn("fetch cancelled", zap.Int("done", i), zap.Int("sources", len(sources)))
			return sum, ctx.Err()
		default:
		}

		res, err := f.FetchSource(ctx, src)
		sum.Sources++
		if err != nil {
			f.logger.Warn("fetch failed", zap.String("url", src.URL), zap.Error(err))
			sum.Failed++
			continue
		}
		sum.add(res)
	}
	return sum, nil
}

// fetchParallel fetches sources using a worker pool (for PostgreSQL).
func (f *Fetcher) fetchParallel(ctx context.Context, sources []model.Source) (Summary, error) {
	var wg sync.WaitGroup

	srcChan := make(chan model.Source, len(sources))
	resultChan := make(chan fetchResult, len(sources))

	for i := 0; i < f.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for src := range srcChan {
				if ctx.Err() != nil {
					return
				}
				res, err := f.FetchSource(ctx, src)
				resultChan <- fetchResult{sourceID: src.ID, result: res, err: err}
			}
		}()
	}

	for _, src := range sources {
		srcChan <- src
	}
	close(srcChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var sum Summary
	for r := range resultChan {
		sum.Sources++
		if r.err != nil {
			f.logger.Warn("fetch failed", zap.Int64("source_id", r.sourceID), zap.Error(r.err))
			sum.Failed++
			continue
		}
		sum.add(r.result)
	}
	return sum, ctx.Err()
}
