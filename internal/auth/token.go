package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rollcall/rollcall/internal/model"
)

// ErrInvalidToken covers expired, malformed and badly signed tokens.
var ErrInvalidToken = errors.New("invalid token")

// Supported HMAC algorithms.
var supportedAlgorithms = map[string]jwt.SigningMethod{
	jwt.SigningMethodHS256.Alg(): jwt.SigningMethodHS256,
	jwt.SigningMethodHS384.Alg(): jwt.SigningMethodHS384,
	jwt.SigningMethodHS512.Alg(): jwt.SigningMethodHS512,
}

// Claims is the signed payload of every token issued by TokenManager.
type Claims struct {
	UserID  int64              `json:"user_id"`
	Purpose model.TokenPurpose `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenManager issues and parses HMAC-signed JWTs.
type TokenManager struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

// NewTokenManager creates a TokenManager for the given secret and algorithm.
func NewTokenManager(secret, algorithm string) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("token secret is empty")
	}
	method, ok := supportedAlgorithms[algorithm]
	if !ok {
		return nil, fmt.Errorf("unsupported token algorithm %q", algorithm)
	}
	return &TokenManager{
		secret: []byte(secret),
		method: method,
		now:    time.Now,
	}, nil
}

// Issue signs data into a token string. ExpiresAt must be set.
func (m *TokenManager) Issue(data model.JWTData) (string, error) {
	if data.ExpiresAt.IsZero() {
		return "", errors.New("token expiry is required")
	}
	if !data.Purpose.IsValid() {
		return "", fmt.Errorf("unknown token purpose %q", data.Purpose)
	}

	claims := Claims{
		UserID:  data.UserID,
		Purpose: data.Purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(data.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(m.now()),
		},
	}

	signed, err := jwt.NewWithClaims(m.method, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// IssueFor is a convenience wrapper that sets the expiry from ttl.
func (m *TokenManager) IssueFor(userID int64, purpose model.TokenPurpose, ttl time.Duration) (string, error) {
	return m.Issue(model.JWTData{
		UserID:    userID,
		Purpose:   purpose,
		ExpiresAt: m.now().Add(ttl),
	})
}

// Parse verifies the signature and expiry and returns the claim payload.
func (m *TokenManager) Parse(token string) (model.JWTData, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) {
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return model.JWTData{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.UserID <= 0 || !claims.Purpose.IsValid() {
		return model.JWTData{}, ErrInvalidToken
	}

	return model.JWTData{
		UserID:    claims.UserID,
		Purpose:   claims.Purpose,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// ParseFor parses the token and requires the given purpose.
func (m *TokenManager) ParseFor(token string, purpose model.TokenPurpose) (model.JWTData, error) {
	data, err := m.Parse(token)
	if err != nil {
		return model.JWTData{}, err
	}
	if data.Purpose != purpose {
		return model.JWTData{}, fmt.Errorf("%w: purpose %q, want %q", ErrInvalidToken, data.Purpose, purpose)
	}
	return data, nil
}
