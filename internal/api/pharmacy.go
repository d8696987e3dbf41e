package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"medlocator/m/domain"
	"medlocator/m/internal/auth"
	"medlocator/m/internal/inventory"
)

const dateLayout = "2006-01-02"

type profileRequest struct {
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Phone     string   `json:"phone"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Inventory.Profile(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) saveProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !validCoordinates(req.Latitude, req.Longitude) {
		respondError(w, http.StatusBadRequest, "latitude must be within [-90, 90] and longitude within [-180, 180]")
		return
	}
	p, err := h.svc.Inventory.SaveProfile(r.Context(), auth.FromContext(r.Context()), inventory.ProfileInput{
		Name:      req.Name,
		Address:   req.Address,
		Phone:     req.Phone,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) updateLocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		respondError(w, http.StatusBadRequest, "latitude and longitude are required")
		return
	}
	if !validCoordinates(req.Latitude, req.Longitude) {
		respondError(w, http.StatusBadRequest, "latitude must be within [-90, 90] and longitude within [-180, 180]")
		return
	}
	if err := h.svc.Inventory.UpdateLocation(r.Context(), auth.FromContext(r.Context()), *req.Latitude, *req.Longitude); err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]float64{"latitude": *req.Latitude, "longitude": *req.Longitude})
}

type listingRequest struct {
	MedicineName string           `json:"medicine_name"`
	GenericName  string           `json:"generic_name"`
	Price        *decimal.Decimal `json:"price"`
	Quantity     *int64           `json:"quantity"`
	ExpiryDate   string           `json:"expiry_date"`
}

// input checks presence and formats; value rules are applied by the
// inventory service.
func (req listingRequest) input() (inventory.ListingInput, string) {
	if nullIfEmpty(req.MedicineName) == nil {
		return inventory.ListingInput{}, "medicine_name is required"
	}
	if req.Price == nil {
		return inventory.ListingInput{}, "price is required"
	}
	if req.Quantity == nil {
		return inventory.ListingInput{}, "quantity is required"
	}
	in := inventory.ListingInput{
		MedicineName: strings.TrimSpace(req.MedicineName),
		GenericName:  strings.TrimSpace(req.GenericName),
		Price:        *req.Price,
		Quantity:     *req.Quantity,
	}
	if expiry := nullIfEmpty(req.ExpiryDate); expiry != nil {
		t, err := time.ParseInLocation(dateLayout, *expiry, time.UTC)
		if err != nil {
			return inventory.ListingInput{}, "expiry_date must be YYYY-MM-DD"
		}
		in.ExpiryDate = &t
	}
	return in, ""
}

type listingResponse struct {
	ID           int64     `json:"id"`
	MedicineID   int64     `json:"medicine_id"`
	MedicineName string    `json:"medicine_name,omitempty"`
	GenericName  *string   `json:"generic_name,omitempty"`
	Price        string    `json:"price"`
	Quantity     int64     `json:"quantity"`
	ExpiryDate   *string   `json:"expiry_date"`
	InStock      bool      `json:"in_stock"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (h *Handler) listingJSON(l domain.Listing) listingResponse {
	return listingResponse{
		ID:         l.ID,
		MedicineID: l.MedicineID,
		Price:      l.Price.StringFixed(2),
		Quantity:   l.Quantity,
		ExpiryDate: formatDate(l.ExpiryDate),
		InStock:    l.InStock(h.now()),
		UpdatedAt:  l.UpdatedAt,
	}
}

func ownListingsJSON(rows []inventory.OwnListing) []listingResponse {
	out := make([]listingResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, listingResponse{
			ID:           row.ID,
			MedicineID:   row.MedicineID,
			MedicineName: row.MedicineName,
			GenericName:  row.GenericName,
			Price:        row.Price.StringFixed(2),
			Quantity:     row.Quantity,
			ExpiryDate:   formatDate(row.ExpiryDate),
			InStock:      row.InStock,
			UpdatedAt:    row.UpdatedAt,
		})
	}
	return out
}

func (h *Handler) listListings(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Inventory.ListOwn(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ownListingsJSON(rows))
}

func (h *Handler) addListing(w http.ResponseWriter, r *http.Request) {
	var req listingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	in, problem := req.input()
	if problem != "" {
		respondError(w, http.StatusBadRequest, problem)
		return
	}

	listing, err := h.svc.Inventory.AddListing(r.Context(), auth.FromContext(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := h.listingJSON(listing)
	resp.MedicineName = in.MedicineName
	respondJSON(w, http.StatusCreated, resp)
}

func (h *Handler) updateListing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid listing id")
		return
	}
	var req listingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	in, problem := req.input()
	if problem != "" {
		respondError(w, http.StatusBadRequest, problem)
		return
	}

	listing, err := h.svc.Inventory.UpdateListing(r.Context(), auth.FromContext(r.Context()), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := h.listingJSON(listing)
	resp.MedicineName = in.MedicineName
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) deleteListing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid listing id")
		return
	}
	if err := h.svc.Inventory.DeleteListing(r.Context(), auth.FromContext(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) expiryAlerts(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}
	rows, err := h.svc.Inventory.ExpiringSoon(r.Context(), auth.FromContext(r.Context()), days)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ownListingsJSON(rows))
}

func validCoordinates(lat, lng *float64) bool {
	if lat != nil && (*lat < -90 || *lat > 90) {
		return false
	}
	if lng != nil && (*lng < -180 || *lng > 180) {
		return false
	}
	return true
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}
