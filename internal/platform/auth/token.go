package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer signs access tokens for authenticated clients.
type Issuer struct {
	name       string
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

func NewIssuer(name string, signingKey []byte, ttl time.Duration) *Issuer {
	return &Issuer{name: name, signingKey: signingKey, ttl: ttl, now: time.Now}
}

// Config returns the verification settings matching tokens from this issuer.
func (i *Issuer) Config() JWTConfig {
	return JWTConfig{Issuer: i.name, SigningKey: i.signingKey}
}

// Issue returns a signed HS256 token and its expiry.
func (i *Issuer) Issue(subject, tenantID, email string, roles []string) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.name,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		TenantID: tenantID,
		Email:    email,
		Roles:    roles,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}
