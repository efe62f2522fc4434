// Package listing filters a listing catalog and gates how much of the result
// an anonymous viewer may see.
//
// Every function here is pure: no I/O, no shared state. Callers may invoke
// them concurrently on the same catalog snapshot.
package listing

import (
	"net/url"
	"strings"

	"github.com/bryan-buckman/sftu/internal/model"
)

// DefaultPageSize is the number of results shown to anonymous viewers.
const DefaultPageSize = 6

// FilterState is the filter bar's current selection.
type FilterState struct {
	SearchText   string `json:"q"`
	Neighborhood string `json:"neighborhood"`
	PriceBucket  string `json:"price"`
	BedBucket    string `json:"beds"`
}

// DefaultFilterState matches every listing.
func DefaultFilterState() FilterState {
	return FilterState{
		Neighborhood: AllNeighborhoods,
		PriceBucket:  PriceAny,
		BedBucket:    BedsAny,
	}
}

// FilterStateFromQuery reads q, neighborhood, price and beds from query
// parameters. Absent parameters keep their defaults.
func FilterStateFromQuery(v url.Values) FilterState {
	f := DefaultFilterState()
	f.SearchText = v.Get("q")
	if n := v.Get("neighborhood"); n != "" {
		f.Neighborhood = n
	}
	if p := v.Get("price"); p != "" {
		f.PriceBucket = p
	}
	if b := v.Get("beds"); b != "" {
		f.BedBucket = b
	}
	return f
}

// Values encodes the state back into query parameters, omitting defaults.
func (f FilterState) Values() url.Values {
	v := url.Values{}
	if f.SearchText != "" {
		v.Set("q", f.SearchText)
	}
	if f.Neighborhood != "" && f.Neighborhood != AllNeighborhoods {
		v.Set("neighborhood", f.Neighborhood)
	}
	if p := LookupPriceBucket(f.PriceBucket); p.Label != PriceAny {
		v.Set("price", p.Label)
	}
	if b := LookupBedBucket(f.BedBucket); b.Value != BedsAny {
		v.Set("beds", b.Value)
	}
	return v
}

// Filter returns the listings that satisfy every predicate of f, in catalog
// order. Unknown bucket labels match everything for that predicate. An empty
// neighborhood is treated like "All SF".
func Filter(catalog []model.Listing, f FilterState) []model.Listing {
	query := strings.ToLower(f.SearchText)
	price := LookupPriceBucket(f.PriceBucket)
	beds := LookupBedBucket(f.BedBucket)

	out := make([]model.Listing, 0, len(catalog))
	for _, l := range catalog {
		if !matchesText(l, query) {
			continue
		}
		if f.Neighborhood != "" && f.Neighborhood != AllNeighborhoods && l.Neighborhood != f.Neighborhood {
			continue
		}
		if !price.Contains(l.Price) || !beds.Matches(l.Beds) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func matchesText(l model.Listing, lowerQuery string) bool {
	if lowerQuery == "" {
		return true
	}
	return strings.Contains(strings.ToLower(l.Address), lowerQuery) ||
		strings.Contains(strings.ToLower(l.Neighborhood), lowerQuery) ||
		strings.Contains(strings.ToLower(l.Title), lowerQuery)
}

// Page is the part of a filtered result a viewer is allowed to see.
type Page struct {
	Visible     []model.Listing `json:"listings"`
	HiddenCount int             `json:"hiddenCount"`
}

// ApplyVisibility truncates filtered to pageSize entries for anonymous
// viewers. HiddenCount is always len(filtered) - len(Visible).
func ApplyVisibility(filtered []model.Listing, isAuthenticated bool, pageSize int) Page {
	if isAuthenticated {
		return Page{Visible: filtered}
	}
	if pageSize < 0 {
		pageSize = 0
	}
	n := len(filtered)
	if n > pageSize {
		n = pageSize
	}
	return Page{
		Visible:     filtered[:n:n],
		HiddenCount: len(filtered) - n,
	}
}

// Result is a filtered, visibility-gated view of a catalog.
type Result struct {
	Page
	Total  int         `json:"total"`
	Filter FilterState `json:"filter"`
}

// Query filters catalog with f and gates the result for viewer.
func Query(catalog []model.Listing, f FilterState, viewer model.Viewer, pageSize int) Result {
	filtered := Filter(catalog, f)
	return Result{
		Page:   ApplyVisibility(filtered, viewer.IsAuthenticated, pageSize),
		Total:  len(filtered),
		Filter: f,
	}
}
