package web

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"purchase-entitlement-service/internal/domain/ports/adapter"
)

// ===== Session/JWT primitives =====

var _ adapter.SessionIssuer = (*TokenManager)(nil)

type TokenConfig struct {
	HMACSecret []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenManager mints the session credential pair returned by access
// verification. HS256 with a shared secret; the app validates with the same
// secret.
type TokenManager struct{ cfg TokenConfig }

func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{cfg: TokenConfig{
		HMACSecret: []byte(secret),
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
	}}
}

type SessionClaims struct {
	Email     string `json:"email"`
	TokenKind string `json:"kind"` // "access" | "refresh"
	jwt.RegisteredClaims
}

func (m *TokenManager) IssueSession(ctx context.Context, accountID, email string) (string, string, error) {
	access, err := m.mint(accountID, email, "access", m.cfg.AccessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err := m.mint(accountID, email, "refresh", m.cfg.RefreshTTL)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (m *TokenManager) mint(accountID, email, kind string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Email:     email,
		TokenKind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   accountID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.cfg.HMACSecret)
}

// Parse validates a token and returns its claims. Used by the profile
// endpoint to resolve the calling account.
func (m *TokenManager) Parse(tok string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.cfg.HMACSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
