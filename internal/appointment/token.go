package appointment

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for every verification token failure. Callers
// never learn whether the signature, payload or expiry was at fault.
var ErrInvalidToken = errors.New("invalid or expired verification token")

// DefaultTokenTTL is how long a verification token stays valid.
const DefaultTokenTTL = 24 * time.Hour

type verificationClaims struct {
	AppointmentID string `json:"appointmentId"`
	jwt.RegisteredClaims
}

// TokenCodec issues and validates appointment verification tokens.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec creates a codec signing with secret. A non-positive ttl falls back
// to DefaultTokenTTL.
func NewTokenCodec(secret string, ttl time.Duration) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("appointment: token secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenCodec{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token bound to appointmentID.
func (c *TokenCodec) Issue(appointmentID string) (string, error) {
	if appointmentID == "" {
		return "", errors.New("appointment: cannot issue token without appointment id")
	}
	issuedAt := c.now()
	claims := &verificationClaims{
		AppointmentID: appointmentID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(c.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign verification token: %w", err)
	}
	return signed, nil
}

// Validate checks signature and expiry and returns the bound appointment id.
func (c *TokenCodec) Validate(tokenString string) (string, error) {
	claims := &verificationClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !token.Valid || claims.AppointmentID == "" {
		return "", ErrInvalidToken
	}
	return claims.AppointmentID, nil
}
