package api

import (
	"errors"
	"net/http"

	"github.com/stempel-app/stempel/internal/auth"
	"github.com/stempel-app/stempel/internal/metrics"
	"github.com/stempel-app/stempel/internal/storage"
	"github.com/stempel-app/stempel/internal/tracking"
)

// writeServiceError maps service-layer errors to HTTP status codes.
// Unexpected errors are logged and surface as an opaque 500.
func (s *Server) writeServiceError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, auth.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "Email already registered")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, auth.ErrAlreadyOnBreak):
		writeError(w, http.StatusBadRequest, "A break is already running")
	case errors.Is(err, auth.ErrNotOnBreak):
		writeError(w, http.StatusBadRequest, "No break is currently running")
	case errors.Is(err, auth.ErrOnBreak):
		writeError(w, http.StatusBadRequest, "End the current break first")
	case errors.Is(err, tracking.ErrBreakOpen):
		writeError(w, http.StatusBadRequest, "A break is already running")
	case errors.Is(err, tracking.ErrNoOpenBreak):
		writeError(w, http.StatusBadRequest, "No break is currently running")
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	default:
		s.logger.Error().Err(err).Str("action", action).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if errs := validate(
		nameRule(req.Name),
		emailRule(req.Email),
		passwordRule("password", req.Password),
	); len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}

	account, err := s.auth.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, err, "register")
		return
	}

	metrics.RegistrationsTotal.Inc()

	writeSuccess(w, http.StatusCreated, "Account registered", map[string]interface{}{
		"user": account.Profile(),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if errs := validate(
		emailRule(req.Email),
		passwordRule("password", req.Password),
	); len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}

	account, token, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, err, "login")
		return
	}

	metrics.LoginsTotal.Inc()

	writeSuccess(w, http.StatusOK, "Logged in", map[string]interface{}{
		"token": token,
		"user":  account.Profile(),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	account, err := s.auth.Logout(r.Context(), accountID)
	if err != nil {
		s.writeServiceError(w, err, "logout")
		return
	}

	// Drop the cached claims so the token stops short-circuiting the
	// middleware after logout.
	if token, ok := TokenFromContext(r.Context()); ok {
		s.tokenCache.Remove(token)
	}

	writeSuccess(w, http.StatusOK, "Logged out", map[string]interface{}{
		"user": account.Profile(),
	})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	account, err := s.auth.Account(r.Context(), accountID)
	if err != nil {
		s.writeServiceError(w, err, "get profile")
		return
	}

	writeSuccess(w, http.StatusOK, "Profile", map[string]interface{}{
		"user": account.Profile(),
	})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req updateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if errs := validate(
		optional(req.Name, nameRule(req.Name)),
		optional(req.Email, emailRule(req.Email)),
	); len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}

	account, err := s.auth.UpdateProfile(r.Context(), accountID, auth.ProfileUpdate{
		Name:   req.Name,
		Email:  req.Email,
		Avatar: req.Avatar,
	})
	if err != nil {
		s.writeServiceError(w, err, "update profile")
		return
	}

	writeSuccess(w, http.StatusOK, "Profile updated", map[string]interface{}{
		"user": account.Profile(),
	})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req changePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if errs := validate(
		passwordRule("currentPassword", req.CurrentPassword),
		passwordRule("newPassword", req.NewPassword),
	); len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}

	if err := s.auth.ChangePassword(r.Context(), accountID, req.CurrentPassword, req.NewPassword); err != nil {
		s.writeServiceError(w, err, "change password")
		return
	}

	writeSuccess(w, http.StatusOK, "Password changed", nil)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.auth.ListAccounts(r.Context())
	if err != nil {
		s.writeServiceError(w, err, "list users")
		return
	}

	profiles := make([]storage.Profile, 0, len(accounts))
	for i := range accounts {
		profiles = append(profiles, accounts[i].Profile())
	}

	writeSuccess(w, http.StatusOK, "Users", map[string]interface{}{
		"users": profiles,
		"count": len(profiles),
	})
}
