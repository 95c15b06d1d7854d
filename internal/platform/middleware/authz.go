// Copyright (c) 2026 Keygate. All rights reserved.
// Author: td.vu.dev@gmail.com

package middleware

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/tdvu/keygate/internal/platform/apperr"
	"github.com/tdvu/keygate/internal/platform/constants"
	"github.com/tdvu/keygate/internal/platform/ctxutil"
	"github.com/tdvu/keygate/internal/platform/respond"
	"github.com/tdvu/keygate/internal/platform/sec"
)

// CredentialVerifier defines the interface needed to check username+password
// pairs in middleware.
//
// # Why an interface?
//
// Defining the contract here decouples the middleware from the auth service
// implementation, allowing us to easily inject mocks during unit testing.
type CredentialVerifier interface {
	VerifyPassword(ctx context.Context, username, password string) (*sec.Identity, error)
}

// TokenValidator defines the interface needed to validate bearer tokens
// in middleware.
type TokenValidator interface {
	ValidateToken(ctx context.Context, tokenString string) (*sec.Identity, error)
}

// Authorizer decides whether an identity may act with the required role. The
// auth service is the single implementation; routing this through the same
// gate the service exposes keeps the middleware from growing its own
// divergent copy of the rules.
type Authorizer interface {
	Authorize(ctx context.Context, identity *sec.Identity, required sec.Role) error
}

// Authenticator resolves the Authorization header into a request identity
// according to the deployment's configured scheme.
type Authenticator struct {
	scheme    string // constants.SchemeBasic or constants.SchemeBearer
	passwords CredentialVerifier
	tokens    TokenValidator // nil in basic deployments
	gate      Authorizer
}

// NewAuthenticator constructs an [Authenticator] for the given scheme.
func NewAuthenticator(scheme string, passwords CredentialVerifier, tokens TokenValidator, gate Authorizer) *Authenticator {
	return &Authenticator{
		scheme:    scheme,
		passwords: passwords,
		tokens:    tokens,
		gate:      gate,
	}
}

// Authenticate extracts and verifies credentials from the Authorization header.
//
// # Flow
//  1. Check for an 'Authorization' header.
//  2. If absent, the request proceeds as anonymous.
//  3. If present, decode per the configured scheme (Basic or Bearer) and
//     verify against the credential store.
//  4. Inject the verified [*sec.Identity] into the request context.
//
// Every rejection carries the scheme's WWW-Authenticate challenge.
func (authenticator *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		authHeader := request.Header.Get(constants.HeaderAuthorization)

		// ── 1. Anonymous Access ───────────────────────────────────────────
		if authHeader == "" {
			next.ServeHTTP(writer, request)
			return
		}

		// ── 2. Scheme Dispatch & Verification ─────────────────────────────
		var (
			identity *sec.Identity
			err      error
		)
		if authenticator.scheme == constants.SchemeBearer {
			identity, err = authenticator.fromBearer(request, authHeader)
		} else {
			identity, err = authenticator.fromBasic(request, authHeader)
		}
		if err != nil {
			authenticator.reject(writer, request, err)
			return
		}

		// ── 3. Context Injection ──────────────────────────────────────────
		ctx := ctxutil.WithIdentity(request.Context(), identity)
		next.ServeHTTP(writer, request.WithContext(ctx))
	})
}

// fromBasic decodes 'Authorization: Basic <base64>' and verifies the pair.
func (authenticator *Authenticator) fromBasic(request *http.Request, authHeader string) (*sec.Identity, error) {
	encoded, ok := stripScheme(authHeader, "basic")
	if !ok {
		return nil, apperr.Unauthorized("Invalid authorization format")
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid authorization format")
	}

	username, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return nil, apperr.Unauthorized("Invalid authorization format")
	}

	return authenticator.passwords.VerifyPassword(request.Context(), username, password)
}

// fromBearer strips 'Authorization: Bearer <token>' and validates the token.
func (authenticator *Authenticator) fromBearer(request *http.Request, authHeader string) (*sec.Identity, error) {
	tokenString, ok := stripScheme(authHeader, "bearer")
	if !ok {
		return nil, apperr.Unauthorized("Invalid authorization format")
	}
	return authenticator.tokens.ValidateToken(request.Context(), tokenString)
}

// RequireAuth blocks requests that are not authenticated.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticator.Authenticate].
func (authenticator *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return authenticator.RequireRole("")(next)
}

// RequireRole blocks requests whose identity does not pass the authorization
// gate for the required role. An empty role only requires authentication.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticator.Authenticate]. It
// automatically implies [Authenticator.RequireAuth] so you don't need to
// mount both.
//
// # Flow
//  1. Extract the [*sec.Identity] from context (nil for anonymous callers).
//  2. Delegate the decision to the [Authorizer] gate.
//  3. 401 denials (anonymous) carry the scheme's challenge; 403 denials do
//     not (the caller is authenticated, just not allowed).
func (authenticator *Authenticator) RequireRole(role sec.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			identity := ctxutil.GetIdentity(request.Context())

			if err := authenticator.gate.Authorize(request.Context(), identity, role); err != nil {
				if appError := apperr.As(err); appError != nil && appError.HTTPStatus == http.StatusUnauthorized {
					authenticator.reject(writer, request, err)
					return
				}
				respond.Error(writer, request, err)
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// # Helpers

// reject writes the error with the scheme's WWW-Authenticate challenge.
func (authenticator *Authenticator) reject(writer http.ResponseWriter, request *http.Request, err error) {
	writer.Header().Set(constants.HeaderWWWAuthenticate, authenticator.Challenge())
	respond.Error(writer, request, err)
}

// Challenge returns the WWW-Authenticate value for this scheme.
func (authenticator *Authenticator) Challenge() string {
	if authenticator.scheme == constants.SchemeBearer {
		return "Bearer"
	}
	return `Basic realm="` + constants.AuthRealm + `"`
}

// stripScheme splits an Authorization header into scheme and payload,
// matching the scheme name case-insensitively.
func stripScheme(authHeader, scheme string) (string, bool) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], scheme) {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
