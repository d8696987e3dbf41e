package api

import (
	"math"
	"net/http"
	"strings"

	"medlocator/m/domain"
	"medlocator/m/internal/apperr"
	"medlocator/m/internal/search"
)

const medicineLookupLimit = 25

// unknownDistance is reported for listings whose pharmacy has no coordinates.
const unknownDistance = "unknown"

type searchItem struct {
	ListingID       int64   `json:"listing_id"`
	MedicineName    string  `json:"medicine_name"`
	GenericName     *string `json:"generic_name"`
	PharmacyName    string  `json:"pharmacy_name"`
	PharmacyAddress string  `json:"pharmacy_address"`
	Price           string  `json:"price"`
	Quantity        int64   `json:"quantity"`
	ExpiryDate      *string `json:"expiry_date"`
	InStock         bool    `json:"in_stock"`
	DistanceKm      any     `json:"distance_km,omitempty"`
}

type searchResponse struct {
	Query   string       `json:"query"`
	SortBy  string       `json:"sort_by,omitempty"`
	Results []searchItem `json:"results"`
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := h.svc.Search.Search(r.Context(), search.Request{
		Query:  strings.TrimSpace(q.Get("query")),
		SortBy: q.Get("sort_by"),
		Lat:    q.Get("lat"),
		Lng:    q.Get("lng"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	today := h.now()
	items := make([]searchItem, 0, len(resp.Results))
	for _, res := range resp.Results {
		l := res.Listing
		item := searchItem{
			ListingID:       l.ID,
			MedicineName:    l.MedicineName,
			GenericName:     l.GenericName,
			PharmacyName:    l.PharmacyName,
			PharmacyAddress: l.PharmacyAddress,
			Price:           l.Price.StringFixed(2),
			Quantity:        l.Quantity,
			ExpiryDate:      formatDate(l.ExpiryDate),
			InStock:         l.InStock(today),
		}
		if resp.Mode == search.ModeDistance {
			if res.Distance != nil {
				item.DistanceKm = math.Round(*res.Distance*100) / 100
			} else {
				item.DistanceKm = unknownDistance
			}
		}
		items = append(items, item)
	}
	respondJSON(w, http.StatusOK, searchResponse{
		Query:   strings.TrimSpace(q.Get("query")),
		SortBy:  string(resp.Mode),
		Results: items,
	})
}

func (h *Handler) searchMedicines(w http.ResponseWriter, r *http.Request) {
	medicines, err := h.svc.Catalog.SearchMedicines(r.Context(), r.URL.Query().Get("query"), medicineLookupLimit)
	if err != nil {
		h.fail(w, r, apperr.Internal("unable to search medicines", err))
		return
	}
	respondJSON(w, http.StatusOK, medicines)
}

func (h *Handler) pharmacyLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.svc.Feed.Locations(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if locations == nil {
		locations = []domain.PharmacyLocation{}
	}
	respondJSON(w, http.StatusOK, locations)
}
