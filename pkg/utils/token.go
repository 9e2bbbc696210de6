package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var ErrInvalidToken = errors.New("invalid token")

// SessionClaims is carried by both access and refresh tokens.
type SessionClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
	TokenType string `json:"typ"`
}

// TokenIssuer signs and parses HS256 session tokens.
type TokenIssuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenIssuer(cfg JWTConfig) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  time.Duration(cfg.AccessTTLMinutes) * time.Minute,
		refreshTTL: time.Duration(cfg.RefreshTTLHours) * time.Hour,
	}
}

func (i *TokenIssuer) RefreshTTL() time.Duration {
	return i.refreshTTL
}

// IssuePair returns an access and a refresh token bound to one session.
// The refresh token's jti is refreshID so the session row can be matched on rotation.
func (i *TokenIssuer) IssuePair(userID, sessionID, refreshID string, now time.Time) (access, refresh string, err error) {
	access, err = i.sign(SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        GenerateUUID().String(),
			Subject:   userID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
		SessionID: sessionID,
		TokenType: TokenTypeAccess,
	})
	if err != nil {
		return "", "", err
	}

	refresh, err = i.sign(SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        refreshID,
			Subject:   userID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.refreshTTL)),
		},
		SessionID: sessionID,
		TokenType: TokenTypeRefresh,
	})
	if err != nil {
		return "", "", err
	}

	return access, refresh, nil
}

func (i *TokenIssuer) sign(claims SessionClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// ParseAccess validates signature, expiry, issuer and token type.
func (i *TokenIssuer) ParseAccess(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	}, jwt.WithIssuer(i.issuer))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != TokenTypeAccess || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
