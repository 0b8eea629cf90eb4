// Package auth signs and verifies the short-lived state parameter of the OAuth login flow.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Config holds signer parameters.
type Config struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// ErrMissingState is returned when the callback carries no state.
var ErrMissingState = errors.New("missing oauth state")

// ErrInvalidState wraps parsing/validation errors.
var ErrInvalidState = errors.New("invalid oauth state")

const stateAudience = "oauth-callback"

// StateSigner issues HMAC-signed state tokens that the callback can verify without server storage.
type StateSigner struct {
	cfg Config
	now func() time.Time
}

// NewStateSigner constructs a StateSigner.
func NewStateSigner(cfg Config) *StateSigner {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	return &StateSigner{cfg: cfg, now: time.Now}
}

// Issue returns a new signed state token with a random nonce.
func (s *StateSigner) Issue() (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    s.cfg.Issuer,
		Audience:  jwt.ClaimStrings{stateAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.Secret))
}

// Verify validates signature, issuer, audience and expiry of a state token.
func (s *StateSigner) Verify(state string) error {
	state = strings.TrimSpace(state)
	if state == "" {
		return ErrMissingState
	}

	parsed, err := jwt.ParseWithClaims(state, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	},
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(stateAudience),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if !parsed.Valid {
		return ErrInvalidState
	}
	return nil
}
