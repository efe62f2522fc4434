// Package catalog supplies the listing snapshot the query engine filters.
package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bryan-buckman/sftu/internal/database"
	"github.com/bryan-buckman/sftu/internal/model"
)

// Source provides the current listing catalog and neighborhood set.
type Source interface {
	FetchListings(ctx context.Context) ([]model.Listing, error)
	Neighborhoods(ctx context.Context) ([]string, error)
}

// Static serves the built-in reference listings.
type Static struct{}

// FetchListings returns a fresh copy of the reference listings.
func (Static) FetchListings(context.Context) ([]model.Listing, error) {
	return ReferenceListings(), nil
}

// Neighborhoods returns the known neighborhood set.
func (Static) Neighborhoods(context.Context) ([]string, error) {
	return append([]string(nil), Neighborhoods...), nil
}

// StoreSource reads the catalog from a database store, falling back to the
// reference listings when the store fails or holds nothing.
type StoreSource struct {
	store  database.Store
	logger *zap.Logger
}

// NewStoreSource creates a StoreSource.
func NewStoreSource(store database.Store, logger *zap.Logger) *StoreSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSource{store: store, logger: logger.Named("catalog")}
}

// FetchListings returns the stored catalog, or the reference listings.
func (s *StoreSource) FetchListings(ctx context.Context) ([]model.Listing, error) {
	listings, err := s.store.ListListings(ctx)
	if err != nil {
		s.logger.Warn("listing store unavailable, serving reference listings", zap.Error(err))
		return ReferenceListings(), nil
	}
	if len(listings) == 0 {
		s.logger.Debug("listing store empty, serving reference listings")
		return ReferenceListings(), nil
	}
	return listings, nil
}

// Neighborhoods returns the known set followed by any other neighborhood
// present in the catalog, "All SF" first and without duplicates.
func (s *StoreSource) Neighborhoods(ctx context.Context) ([]string, error) {
	listings, err := s.FetchListings(ctx)
	if err != nil {
		return nil, err
	}
	return mergeNeighborhoods(listings), nil
}

func mergeNeighborhoods(listings []model.Listing) []string {
	out := append([]string(nil), Neighborhoods...)
	seen := make(map[string]bool, len(out))
	for _, n := range out {
		seen[n] = true
	}
	for _, l := range listings {
		if l.Neighborhood == "" || seen[l.Neighborhood] {
			continue
		}
		seen[l.Neighborhood] = true
		out = append(out, l.Neighborhood)
	}
	return out
}

// Featured returns at most n listings from the head of the catalog.
func Featured(ctx context.Context, src Source, n int) ([]model.Listing, error) {
	listings, err := src.FetchListings(ctx)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		n = 0
	}
	if len(listings) > n {
		listings = listings[:n:n]
	}
	return listings, nil
}

// SeedSource is the source name reference listings are stored under.
const SeedSource = "seed"

// Seed writes the reference listings and their record summaries into store.
// It returns how many listings were newly created.
func Seed(ctx context.Context, store database.Store) (int, error) {
	created := 0
	for _, l := range ReferenceListings() {
		l.Source = SeedSource
		l.SourceID = l.ID
		isNew, err := store.UpsertListing(ctx, &l)
		if err != nil {
			return created, fmt.Errorf("seed %s: %w", l.ID, err)
		}
		if err := store.SetRecordSummary(ctx, l.ID, l.RecordSummary); err != nil {
			return created, fmt.Errorf("seed records for %s: %w", l.ID, err)
		}
		if isNew {
			created++
		}
	}
	return created, nil
}
