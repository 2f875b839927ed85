// File: internal/infra/web/access.go
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"purchase-entitlement-service/internal/domain"
	"purchase-entitlement-service/internal/infra/logging"
	"purchase-entitlement-service/internal/infra/redis"
)

type verifyRequest struct {
	Email string `json:"email"`
}

type verifyResponse struct {
	HasValidPayment bool   `json:"hasValidPayment"`
	AccessToken     string `json:"access_token,omitempty"`
	RefreshToken    string `json:"refresh_token,omitempty"`
	UserID          string `json:"user_id,omitempty"`
	Email           string `json:"email"`
	Message         string `json:"message"`
}

func (s *Server) handleVerifyAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	log := logging.With(ctx, s.log)
	log.Info().Str("step", "verify_request").Str("email", logging.Redact(req.Email, s.dev)).Msg("access verification requested")

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, redis.VerifyKey(req.Email), verifyRateLimit, verifyRateWindow)
		if err != nil {
			// Limiter is advisory only; verification itself has no side effects
			// worth protecting harder than this.
			log.Warn().Err(err).Str("step", "verify_ratelimit").Msg("rate limiter unavailable, allowing request")
		} else if !allowed {
			writeError(w, http.StatusTooManyRequests, domain.ErrRateLimited.Error())
			return
		}
	}

	grant, err := s.verifier.Verify(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("step", "verify_access").Msg("access verification failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{
		HasValidPayment: grant.HasValidPayment,
		AccessToken:     grant.AccessToken,
		RefreshToken:    grant.RefreshToken,
		UserID:          grant.AccountID,
		Email:           grant.Email,
		Message:         grant.Message,
	})
}

// handleSubscriptionView serves the normalized entitlement read model for the
// authenticated account.
func (s *Server) handleSubscriptionView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" || !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	claims, err := s.tokens.Parse(strings.TrimSpace(authHeader[7:]))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	view, err := s.profiles.AccessView(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no entitlement profile")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}
