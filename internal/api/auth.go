package api

import (
	"net/http"
	"strings"

	"medlocator/m/domain"
	"medlocator/m/internal/auth"
)

type registerRequest struct {
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	Password     string   `json:"password"`
	Role         string   `json:"role"`
	PharmacyName string   `json:"pharmacy_name"`
	Address      string   `json:"address"`
	Phone        string   `json:"phone"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
}

func (req registerRequest) profile() *auth.ProfileInput {
	if req.PharmacyName == "" && req.Address == "" && req.Phone == "" && req.Latitude == nil && req.Longitude == nil {
		return nil
	}
	return &auth.ProfileInput{
		Name:      req.PharmacyName,
		Address:   strings.TrimSpace(req.Address),
		Phone:     strings.TrimSpace(req.Phone),
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	}
}

type authResponse struct {
	Token    string           `json:"token,omitempty"`
	Status   string           `json:"status"`
	User     domain.Account   `json:"user"`
	Pharmacy *domain.Pharmacy `json:"pharmacy,omitempty"`
}

func sessionResponse(s auth.Session) authResponse {
	return authResponse{Token: s.Token, Status: string(s.Account.State()), User: s.Account, Pharmacy: s.Pharmacy}
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		respondError(w, http.StatusBadRequest, "latitude and longitude must be set together")
		return
	}
	if !validCoordinates(req.Latitude, req.Longitude) {
		respondError(w, http.StatusBadRequest, "latitude must be within [-90, 90] and longitude within [-180, 180]")
		return
	}

	session, err := h.svc.Auth.Register(r.Context(), auth.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     domain.Role(strings.ToLower(strings.TrimSpace(req.Role))),
		Pharmacy: req.profile(),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, sessionResponse(session))
}

type loginRequest struct {
	Login    string `json:"login"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	login := req.Login
	for _, v := range []string{req.Username, req.Email} {
		if login == "" {
			login = v
		}
	}
	if login == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username or email and password are required")
		return
	}

	session, err := h.svc.Auth.Login(r.Context(), login, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse(session))
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.Auth.ResetPassword(r.Context(), *auth.FromContext(r.Context()), payload.NewPassword); err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	account, err := h.svc.Auth.Account(r.Context(), *id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := authResponse{Status: string(account.State()), User: account}
	if account.Role == domain.RolePharmacy {
		// A pharmacy without a profile yet is not an error here.
		if p, err := h.svc.Inventory.Profile(r.Context(), id); err == nil {
			resp.Pharmacy = &p
		}
	}
	respondJSON(w, http.StatusOK, resp)
}
