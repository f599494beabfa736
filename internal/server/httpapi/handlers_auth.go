package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"contactbook/internal/common"
)

const maxAvatarMemory = 10 << 20

// handleSignup registers a new account and dispatches the confirmation
// email in the background.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.users.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			respondError(w, http.StatusConflict, "Account already exists")
			return
		}
		s.logger.Error(r.Context(), "signup failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusCreated, SignupResponse{
		User:   newUserResponse(user),
		Detail: "User successfully created",
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pair, err := s.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorEmailNotConfirmed):
			respondError(w, http.StatusUnauthorized, "Email not confirmed")
		case errors.Is(err, common.ErrorUnauthorized):
			respondError(w, http.StatusUnauthorized, "Invalid credentials")
		default:
			s.logger.Error(r.Context(), "login failed", "error", err)
			respondError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	respondJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
	})
}

// handleRefreshToken exchanges a bearer refresh token for a new pair.
func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		respondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	pair, err := s.users.Refresh(r.Context(), token)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			respondError(w, http.StatusUnauthorized, "Invalid refresh token")
			return
		}
		s.logger.Error(r.Context(), "token refresh failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
	})
}

// handleConfirmEmail is the link target from the confirmation email.
// Confirming an already confirmed account is not an error.
func (s *Server) handleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	already, err := s.users.ConfirmEmail(r.Context(), token)
	if err != nil {
		if errors.Is(err, common.ErrInvalidToken) {
			respondError(w, http.StatusBadRequest, "Verification error")
			return
		}
		s.logger.Error(r.Context(), "email confirmation failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if already {
		respondJSON(w, http.StatusOK, MessageResponse{Message: "Your email is already confirmed"})
		return
	}
	respondJSON(w, http.StatusOK, MessageResponse{Message: "Email confirmed"})
}

// handleRequestEmail re-sends the confirmation email. The response does not
// reveal whether the account exists.
func (s *Server) handleRequestEmail(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	already, err := s.users.RequestConfirmation(r.Context(), req.Email)
	if err != nil {
		s.logger.Error(r.Context(), "confirmation request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if already {
		respondJSON(w, http.StatusOK, MessageResponse{Message: "Your email is already confirmed"})
		return
	}
	respondJSON(w, http.StatusOK, MessageResponse{Message: "Check your email for confirmation."})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	respondJSON(w, http.StatusOK, newUserResponse(user))
}

// handleUpdateAvatar accepts a multipart upload under the "file" field,
// stores it in the object store and persists the new URL.
func (s *Server) handleUpdateAvatar(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	if err := r.ParseMultipartForm(maxAvatarMemory); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	updated, err := s.users.UpdateAvatar(r.Context(), user.ID, header.Header.Get("Content-Type"), file)
	if err != nil {
		if errors.Is(err, common.ErrorUnavailable) {
			respondError(w, http.StatusBadGateway, "Upload service unavailable")
			return
		}
		s.logger.Error(r.Context(), "avatar update failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, newUserResponse(updated))
}
