// Package auth issues and verifies the bearer tokens used by the API.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/yukikurage/taskflow-api/internal/constants"
)

var (
	// ErrInvalidToken is returned for malformed, tampered or wrongly signed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned once a token is past its expiry.
	ErrExpiredToken = errors.New("token expired")
)

const issuer = "taskflow-api"

// claims is the token payload; the subject carries the user id.
type claims struct {
	jwt.RegisteredClaims
	UserID uint64 `json:"user_id"`
}

// TokenManager signs and verifies HS256 tokens carrying a user id.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a TokenManager. A non-positive ttl falls back to 24h.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = constants.DefaultTokenTTL
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the clock used for issuing and validating tokens.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	m.now = now
	return m
}

// Issue signs a token for userID and returns it with its expiry.
func (m *TokenManager) Issue(userID uint64) (string, time.Time, error) {
	issuedAt := m.now()
	expiresAt := issuedAt.Add(m.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: userID,
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies raw and returns the user id it carries.
func (m *TokenManager) Parse(raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrInvalidToken
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrExpiredToken
		}
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if parsed.UserID == 0 {
		return 0, ErrInvalidToken
	}
	return parsed.UserID, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	if len(header) <= len(constants.BearerPrefix) || !strings.EqualFold(header[:len(constants.BearerPrefix)], constants.BearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(constants.BearerPrefix):])
	return token, token != ""
}
