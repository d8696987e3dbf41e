package api

import (
	"net/http"

	"medlocator/m/internal/auth"
)

func (h *Handler) pendingPharmacies(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Auth.Pending(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handler) approveAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	if err := h.svc.Auth.Approve(r.Context(), auth.FromContext(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	// The newly approved pharmacy may now appear on the map.
	h.svc.Feed.Invalidate(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{"account_id": id, "status": "approved"})
}
