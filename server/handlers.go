package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-auth-session/authapi"
	"github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 16

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

func (s *Server) SignupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authapi.SignupRequest
		if !decodeBody(w, r, &req) {
			return
		}
		user, err := s.accounts.Signup(req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		loggerFromRequest(r).Info().Str("user_id", user.ID).Msg("user signed up")
		writeJSON(w, http.StatusCreated, user.Record())
	}
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authapi.LoginRequest
		if !decodeBody(w, r, &req) {
			return
		}
		loginToken, err := s.accounts.Login(req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, loginToken)
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, rawToken, ok := userFromContext(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if err := s.accounts.Logout(rawToken); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := userFromContext(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeJSON(w, http.StatusOK, user.Profile())
	}
}

func (s *Server) ChangeNicknameHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := userFromContext(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		var req authapi.ChangeNicknameRequest
		if !decodeBody(w, r, &req) {
			return
		}
		updated, err := s.accounts.ChangeNickname(user, req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated.Profile())
	}
}

func (s *Server) ChangePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, rawToken, ok := userFromContext(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		var req authapi.ChangePasswordRequest
		if !decodeBody(w, r, &req) {
			return
		}
		err := s.accounts.ChangePassword(user, rawToken, req)
		if errors.Is(err, errors.ErrInvalidCredentials) {
			// The caller is authenticated, the old password is what was wrong
			writeJSONError(w, http.StatusForbidden, "current password does not match")
			return
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// writeError maps service errors onto HTTP statuses
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, errors.ErrInvalidRequest), errors.Is(err, errors.ErrWeakPassword):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, errors.ErrInvalidCredentials):
		status, message = http.StatusUnauthorized, errors.ErrInvalidCredentials.Error()
	case errors.Is(err, errors.ErrTokenExpired):
		status, message = http.StatusUnauthorized, errors.ErrTokenExpired.Error()
	case errors.Is(err, errors.ErrTokenRevoked):
		status, message = http.StatusUnauthorized, errors.ErrTokenRevoked.Error()
	case errors.Is(err, errors.ErrInvalidToken):
		status, message = http.StatusUnauthorized, errors.ErrInvalidToken.Error()
	case errors.Is(err, errors.ErrUserExists):
		status, message = http.StatusConflict, errors.ErrUserExists.Error()
	}

	event := loggerFromRequest(r).Warn()
	if status == http.StatusInternalServerError {
		event = loggerFromRequest(r).Error()
	}
	event.Err(err).Int("status", status).Msg("request failed")
	writeJSONError(w, status, message)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, authapi.ErrorResponse{Error: message})
}

func loggerFromRequest(r *http.Request) *zerolog.Logger {
	return zerolog.Ctx(r.Context())
}
