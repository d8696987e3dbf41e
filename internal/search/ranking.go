// Package search filters listings by medicine name and ranks them by price or
// by distance from a caller-supplied origin.
package search

import (
	"sort"
	"strings"

	"medlocator/m/domain"
	"medlocator/m/internal/geo"
)

// Mode selects the ranking strategy.
type Mode string

const (
	ModeNone     Mode = ""
	ModePrice    Mode = "price"
	ModeDistance Mode = "distance"
)

// ParseMode maps a sort_by value to a Mode. Unknown values rank nothing.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModePrice:
		return ModePrice
	case ModeDistance:
		return ModeDistance
	}
	return ModeNone
}

// Result is one ranked listing. Distance is set only when the listing was
// ranked by distance and its pharmacy has both coordinates.
type Result struct {
	Listing  domain.ListingView
	Distance *float64
}

// Rank orders items according to mode and returns a new slice; items is not
// modified. Distance mode without an origin leaves the order unchanged.
func Rank(items []domain.ListingView, mode Mode, origin *geo.Point) []Result {
	results := make([]Result, len(items))
	for i, it := range items {
		results[i] = Result{Listing: it}
	}

	switch mode {
	case ModePrice:
		sort.SliceStable(results, func(i, j int) bool {
			a, b := results[i].Listing, results[j].Listing
			if c := a.Price.Cmp(b.Price); c != 0 {
				return c < 0
			}
			return a.ID < b.ID
		})
	case ModeDistance:
		if origin == nil {
			return results
		}
		for i := range results {
			results[i].Distance = distanceTo(*origin, results[i].Listing)
		}
		sort.SliceStable(results, func(i, j int) bool {
			a, b := results[i].Distance, results[j].Distance
			switch {
			case a == nil:
				return false
			case b == nil:
				return true
			default:
				return *a < *b
			}
		})
	}
	return results
}

func distanceTo(origin geo.Point, l domain.ListingView) *float64 {
	if l.PharmacyLatitude == nil || l.PharmacyLongitude == nil {
		return nil
	}
	d := geo.Distance(origin, geo.Point{Lat: *l.PharmacyLatitude, Lng: *l.PharmacyLongitude})
	return &d
}
