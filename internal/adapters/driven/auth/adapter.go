// Package auth validates the bearer tokens of API callers. The core
// has no user accounts; tokens are service credentials minted at
// deploy time.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the validated fields of a service token.
type TokenClaims struct {
	Subject   string
	IssuedAt  int64
	ExpiresAt int64
}

// jwtClaims wraps TokenClaims for JWT compatibility
type jwtClaims struct {
	jwt.RegisteredClaims
}

// Adapter signs and validates service tokens with HS256.
type Adapter struct {
	jwtSecret []byte
}

// NewAdapter creates a new auth adapter with the given JWT secret
func NewAdapter(jwtSecret string) *Adapter {
	return &Adapter{jwtSecret: []byte(jwtSecret)}
}

// GenerateToken creates a signed JWT for a subject with the given
// lifetime
func (a *Adapter) GenerateToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

// ParseToken validates a JWT and extracts its claims
func (a *Adapter) ParseToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwtClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*jwtClaims); ok && token.Valid {
		out := &TokenClaims{Subject: claims.Subject}
		if claims.IssuedAt != nil {
			out.IssuedAt = claims.IssuedAt.Unix()
		}
		if claims.ExpiresAt != nil {
			out.ExpiresAt = claims.ExpiresAt.Unix()
		}
		return out, nil
	}
	return nil, fmt.Errorf("invalid token claims")
}
