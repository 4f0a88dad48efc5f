package server

import (
	"log/slog"
	"net/http"

	"github.com/ikimina/momoledger/internal/auth"
	"github.com/ikimina/momoledger/internal/models"
)

// AuthHandlers serves the unauthenticated registration and login routes.
type AuthHandlers struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
}

// NewAuthHandlers creates the auth route handlers.
func NewAuthHandlers(authenticator auth.Authenticator, jwtManager *auth.JWTManager) *AuthHandlers {
	return &AuthHandlers{
		authenticator: authenticator,
		jwtManager:    jwtManager,
	}
}

type registerRequest struct {
	Email         string `json:"email"`
	DisplayName   string `json:"display_name"`
	Password      string `json:"password"`
	InstitutionID string `json:"institution_id,omitempty"`
	Role          string `json:"role,omitempty"`
}

type staffUserJSON struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	DisplayName   string `json:"display_name"`
	InstitutionID string `json:"institution_id,omitempty"`
	Role          string `json:"role"`
}

func toStaffUserJSON(u *models.StaffUser) *staffUserJSON {
	return &staffUserJSON{
		ID:            u.ID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		InstitutionID: u.InstitutionID,
		Role:          u.Role,
	}
}

func (h *AuthHandlers) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Role == "" {
		req.Role = models.RoleStaff
	}

	user, err := h.authenticator.Register(r.Context(), req.Email, req.DisplayName, req.Password, req.InstitutionID, req.Role)
	if err != nil {
		slog.Warn("registration failed", "email", req.Email, "error", err)
		respondError(w, err)
		return
	}

	token, err := h.jwtManager.Generate(user)
	if err != nil {
		slog.Error("token generation failed", "user_id", user.ID, "error", err)
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"user":  toStaffUserJSON(user),
		"token": token,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.authenticator.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		slog.Warn("login failed", "email", req.Email, "error", err)
		respondError(w, err)
		return
	}

	token, err := h.jwtManager.Generate(user)
	if err != nil {
		slog.Error("token generation failed", "user_id", user.ID, "error", err)
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user":  toStaffUserJSON(user),
		"token": token,
	})
}
