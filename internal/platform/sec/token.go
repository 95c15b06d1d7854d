// Copyright (c) 2026 Keygate. All rights reserved.
// Author: td.vu.dev@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing) from
// the domain logic. It acts as an Infrastructure service injected into the
// Application layer via small interfaces.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// # Token Failure Classification

var (
	// ErrTokenExpired marks a structurally valid token whose expiry instant
	// has passed.
	ErrTokenExpired = errors.New("sec: token expired")

	// ErrTokenMalformed marks a token that failed signature verification,
	// used an unexpected algorithm, or lacks required claims.
	ErrTokenMalformed = errors.New("sec: token malformed or unsigned")
)

// # Claims

// Claims represents the payload embedded inside a bearer access token.
//
// The token is fully self-contained: no server-side session state exists,
// so validity is entirely a function of the signature and the embedded
// expiry instant.
type Claims struct {
	jwt.RegisteredClaims

	// Role is duplicated into the token so that a gate decision can be
	// logged without a store read. The authoritative role is still
	// re-resolved from the live credential document at validation time.
	Role string `json:"rol,omitempty"`
}

// # Token Service

// TokenService issues and verifies HS256-signed bearer tokens using a single
// application-wide signing key.
type TokenService struct {
	signingKey []byte
	issuer     string
}

// NewTokenService creates a new [TokenService].
func NewTokenService(signingKey, issuer string) *TokenService {
	return &TokenService{signingKey: []byte(signingKey), issuer: issuer}
}

// Issue creates a signed bearer token for the given username.
//
// # Parameters
//   - username: The subject embedded into the token.
//   - role: The role claim (empty when the deployment is not role-aware).
//   - timeToLive: The duration before the token expires.
//
// # Returns
//   - A signed JWT string, or an err if signing fails.
func (service *TokenService) Issue(username string, role Role, timeToLive time.Duration) (string, error) {
	currentTime := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		Role: string(role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(service.signingKey)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// Verify checks the signature and validity window of a bearer token string.
//
// # Failure Modes
//   - [ErrTokenExpired] when the embedded expiry instant is at or before now.
//   - [ErrTokenMalformed] for every other defect (bad signature, wrong
//     algorithm, missing subject, garbage input).
func (service *TokenService) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return service.signingKey, nil
	}, jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}
