package search

import (
	"context"

	"go.uber.org/zap"

	"medlocator/m/domain"
	"medlocator/m/internal/apperr"
	"medlocator/m/internal/geo"
	"medlocator/m/internal/store"
)

// ListingReader is the store read used by the engine.
type ListingReader interface {
	SearchListings(ctx context.Context, f store.ListingFilter) ([]domain.ListingView, error)
}

// Request carries raw search parameters as received from the caller.
type Request struct {
	Query  string
	SortBy string
	Lat    string
	Lng    string
}

// Response is the ranked output of a search.
type Response struct {
	Results []Result
	// Mode is the ranking actually applied. Distance mode with an unusable
	// origin reports ModeNone.
	Mode Mode
}

type Engine struct {
	listings ListingReader
	logger   *zap.Logger
}

func NewEngine(listings ListingReader, logger *zap.Logger) *Engine {
	return &Engine{listings: listings, logger: logger}
}

// Search filters listings by req.Query and ranks them by req.SortBy.
// Malformed coordinates are not an error: the filtered listings are returned
// in their natural order.
func (e *Engine) Search(ctx context.Context, req Request) (Response, error) {
	mode := ParseMode(req.SortBy)

	var origin *geo.Point
	if mode == ModeDistance {
		if p, ok := geo.ParseOrigin(req.Lat, req.Lng); ok {
			origin = &p
		} else {
			e.logger.Debug("distance sort without usable origin",
				zap.String("lat", req.Lat), zap.String("lng", req.Lng))
			mode = ModeNone
		}
	}

	rows, err := e.listings.SearchListings(ctx, store.ListingFilter{
		Query:        req.Query,
		OrderByPrice: mode == ModePrice,
	})
	if err != nil {
		return Response{}, apperr.Internal("unable to search listings", err)
	}
	return Response{Results: Rank(rows, mode, origin), Mode: mode}, nil
}
