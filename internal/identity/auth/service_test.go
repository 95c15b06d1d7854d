// Copyright (c) 2026 Keygate. All rights reserved.
// Author: td.vu.dev@gmail.com

package auth_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdvu/keygate/internal/identity/auth"
	"github.com/tdvu/keygate/internal/platform/apperr"
	"github.com/tdvu/keygate/internal/platform/sec"
)

func newTestService(t *testing.T, tokenProvider auth.TokenProvider) (*auth.Service, auth.Store) {
	t.Helper()
	store := newTestFileStore(t)
	hasher := sec.NewSaltedHasher("test_salt")
	service := auth.NewService(store, hasher, tokenProvider, auth.Policy{
		MinUsernameLength: 3,
		MinPasswordLength: 6,
		RoleAware:         true,
		TokenTTL:          30 * time.Minute,
	})
	return service, store
}

// # Registration

/*
TestService_Register_Success covers the happy path: the record is persisted
with a hashed password and the default customer role.
*/
func TestService_Register_Success(t *testing.T) {
	service, store := newTestService(t, nil)
	ctx := context.Background()

	identity, err := service.Register(ctx, auth.RegisterInput{
		Username: "alice",
		Password: "secret123",
		Profile:  map[string]any{"email": "alice@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.Username)
	assert.Equal(t, sec.RoleCustomer, identity.Role)

	document, err := store.Load(ctx)
	require.NoError(t, err)
	record, exists := document["alice"]
	require.True(t, exists)
	assert.NotEmpty(t, record.PasswordHash)
	assert.NotEqual(t, "secret123", record.PasswordHash)
	assert.Equal(t, "alice@example.com", record.Profile["email"])
}

/*
TestService_Register_RuleOrder pins the evaluation order of the three
rejection rules: duplicate first, then username length, then password length.
*/
func TestService_Register_RuleOrder(t *testing.T) {
	service, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := service.Register(ctx, auth.RegisterInput{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	tests := []struct {
		name        string
		username    string
		password    string
		wantMessage string
	}{
		{"duplicate_username", "alice", "secret123", "Username already exists"},
		{"duplicate_wins_over_short_password", "alice", "x", "Username already exists"},
		{"short_username", "ab", "secret123", "Username must be at least 3 characters long"},
		{"short_username_wins_over_short_password", "ab", "x", "Username must be at least 3 characters long"},
		{"short_password", "brandnew", "x", "Password must be at least 6 characters long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Register(ctx, auth.RegisterInput{
				Username: tt.username,
				Password: tt.password,
			})
			require.Error(t, err)

			appError := apperr.As(err)
			require.NotNil(t, appError)
			assert.Equal(t, http.StatusBadRequest, appError.HTTPStatus)
			assert.Equal(t, tt.wantMessage, appError.Message)
		})
	}
}

/*
TestService_Register_RejectedAttemptNotPersisted verifies that no partial
record survives a failed registration.
*/
func TestService_Register_RejectedAttemptNotPersisted(t *testing.T) {
	service, store := newTestService(t, nil)
	ctx := context.Background()

	_, err := service.Register(ctx, auth.RegisterInput{Username: "ab", Password: "secret123"})
	require.Error(t, err)

	document, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, document)
}

/*
TestService_Register_TrimsAndNormalizes verifies username normalization at
the enrollment boundary.
*/
func TestService_Register_TrimsAndNormalizes(t *testing.T) {
	service, store := newTestService(t, nil)
	ctx := context.Background()

	identity, err := service.Register(ctx, auth.RegisterInput{
		Username: "  alice  ",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.Username)

	document, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, document, "alice")
	assert.NotContains(t, document, "  alice  ")
}

/*
TestService_Register_UnknownRoleRejected verifies the closed role set at
registration in role-aware deployments.
*/
func TestService_Register_UnknownRoleRejected(t *testing.T) {
	service, _ := newTestService(t, nil)

	_, err := service.Register(context.Background(), auth.RegisterInput{
		Username: "alice",
		Password: "secret123",
		Role:     "superuser",
	})
	require.Error(t, err)

	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, http.StatusBadRequest, appError.HTTPStatus)
}

/*
TestService_Register_ProfileCannotGrantRole verifies that reserved credential
keys smuggled through the opaque profile are stripped: a self-registered user
in a role-unaware deployment must not come back holding the admin role after
a document round-trip.
*/
func TestService_Register_ProfileCannotGrantRole(t *testing.T) {
	store := newTestFileStore(t)
	hasher := sec.NewSaltedHasher("test_salt")
	service := auth.NewService(store, hasher, nil, auth.Policy{
		MinUsernameLength: 3,
		MinPasswordLength: 6,
		RoleAware:         false,
		TokenTTL:          30 * time.Minute,
	})
	ctx := context.Background()

	_, err := service.Register(ctx, auth.RegisterInput{
		Username: "mallory",
		Password: "secret123",
		Profile: map[string]any{
			"role":          "admin",
			"password_hash": "attacker-digest",
			"note":          "kept",
		},
	})
	require.NoError(t, err)

	// The stored record carries neither the smuggled role nor the digest.
	document, err := store.Load(ctx)
	require.NoError(t, err)
	record := document["mallory"]
	assert.Empty(t, record.Role)
	assert.NotEqual(t, "attacker-digest", record.PasswordHash)
	assert.NotContains(t, record.Profile, "role")
	assert.NotContains(t, record.Profile, "password_hash")
	assert.Equal(t, "kept", record.Profile["note"])

	// The verified identity passes no role gate.
	identity, err := service.VerifyPassword(ctx, "mallory", "secret123")
	require.NoError(t, err)
	assert.Empty(t, identity.Role)
	assert.False(t, identity.Role.Satisfies(sec.RoleAdmin))
}

// # Password Verification

/*
TestService_VerifyPassword_UniformFailure verifies that an unknown username
and a wrong password are indistinguishable to the caller.
*/
func TestService_VerifyPassword_UniformFailure(t *testing.T) {
	service, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := service.Register(ctx, auth.RegisterInput{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	unknownErr := func() *apperr.AppError {
		_, err := service.VerifyPassword(ctx, "nobody", "secret123")
		require.Error(t, err)
		return apperr.As(err)
	}()

	wrongErr := func() *apperr.AppError {
		_, err := service.VerifyPassword(ctx, "alice", "wrong-password")
		require.Error(t, err)
		return apperr.As(err)
	}()

	require.NotNil(t, unknownErr)
	require.NotNil(t, wrongErr)
	assert.Equal(t, unknownErr.Message, wrongErr.Message)
	assert.Equal(t, unknownErr.HTTPStatus, wrongErr.HTTPStatus)
	assert.Equal(t, http.StatusUnauthorized, unknownErr.HTTPStatus)
	assert.Equal(t, "Invalid credentials", unknownErr.Message)
}

/*
TestService_VerifyPassword_Success verifies the identity projection after a
correct login, digest excluded.
*/
func TestService_VerifyPassword_Success(t *testing.T) {
	service, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := service.Register(ctx, auth.RegisterInput{
		Username: "alice",
		Password: "secret123",
		Role:     "admin",
	})
	require.NoError(t, err)

	identity, err := service.VerifyPassword(ctx, "alice", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.Username)
	assert.Equal(t, sec.RoleAdmin, identity.Role)
}

/*
TestService_VerifyPassword_RegistrationImmediatelyVisible verifies there is
no cache between enrollment and verification.
*/
func TestService_VerifyPassword_RegistrationImmediatelyVisible(t *testing.T) {
	service, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := service.Register(ctx, auth.RegisterInput{Username: "fresh", Password: "secret123"})
	require.NoError(t, err)

	_, err = service.VerifyPassword(ctx, "fresh", "secret123")
	assert.NoError(t, err)
}

// # Token Lifecycle

/*
TestService_Login_IssuesToken verifies the bearer flow: login returns a token
that validates back to the same identity.
*/
func TestService_Login_IssuesToken(t *testing.T) {
	tokens := sec.NewTokenService("test-signing-key", "keygate")
	service, _ := newTestService(t, tokens)
	ctx := context.Background()

	_, err := service.Register(ctx, auth.RegisterInput{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	result, err := service.Login(ctx, auth.LoginInput{Username: "alice", Password: "secret123"})
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessToken)
	assert.Equal(t, int64(1800), result.ExpiresIn)

	identity, err := service.ValidateToken(ctx, result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.Username)
	assert.Equal(t, sec.RoleCustomer, identity.Role)
}

/*
TestService_ValidateToken_UniformFailure verifies that expired tokens,
garbage tokens, and tokens for deleted users all fail with the same message.
*/
func TestService_ValidateToken_UniformFailure(t *testing.T) {
	tokens := sec.NewTokenService("test-signing-key", "keygate")
	store := newTestFileStore(t)
	hasher := sec.NewSaltedHasher("test_salt")
	service := auth.NewService(store, hasher, tokens, auth.Policy{
		MinUsernameLength: 3,
		MinPasswordLength: 6,
		RoleAware:         true,
		TokenTTL:          30 * time.Minute,
	})
	ctx := context.Background()

	expiredToken, err := tokens.Issue("alice", "", -1*time.Minute)
	require.NoError(t, err)

	// Valid signature, but the subject was never (or is no longer) enrolled.
	ghostToken, err := tokens.Issue("ghost", "", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expiredToken},
		{"garbage", "not-a-token"},
		{"deleted_user", ghostToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.ValidateToken(ctx, tt.token)
			require.Error(t, err)

			appError := apperr.As(err)
			require.NotNil(t, appError)
			assert.Equal(t, http.StatusUnauthorized, appError.HTTPStatus)
			assert.Equal(t, "Could not validate credentials", appError.Message)
		})
	}
}

// # Authorization

/*
TestService_Authorize covers the equality gate and the anonymous case.
*/
func TestService_Authorize(t *testing.T) {
	service, _ := newTestService(t, nil)
	ctx := context.Background()

	admin := &sec.Identity{Username: "root", Role: sec.RoleAdmin}
	customer := &sec.Identity{Username: "alice", Role: sec.RoleCustomer}

	t.Run("admin_allowed", func(t *testing.T) {
		assert.NoError(t, service.Authorize(ctx, admin, sec.RoleAdmin))
	})

	t.Run("customer_denied_admin", func(t *testing.T) {
		err := service.Authorize(ctx, customer, sec.RoleAdmin)
		require.Error(t, err)

		appError := apperr.As(err)
		require.NotNil(t, appError)
		assert.Equal(t, http.StatusForbidden, appError.HTTPStatus)
		assert.Equal(t, "Insufficient permissions", appError.Message)
	})

	t.Run("anonymous_unauthorized", func(t *testing.T) {
		err := service.Authorize(ctx, nil, sec.RoleAdmin)
		require.Error(t, err)

		appError := apperr.As(err)
		require.NotNil(t, appError)
		assert.Equal(t, http.StatusUnauthorized, appError.HTTPStatus)
	})

	t.Run("empty_requirement_admits_any_identity", func(t *testing.T) {
		assert.NoError(t, service.Authorize(ctx, customer, ""))
	})
}

// # Bootstrap

/*
TestService_EnsureAdmin verifies the idempotent startup bootstrap: the record
is created once and never overwritten afterwards.
*/
func TestService_EnsureAdmin(t *testing.T) {
	service, store := newTestService(t, nil)
	ctx := context.Background()

	require.NoError(t, service.EnsureAdmin(ctx, "root", "rootpass"))

	document, err := store.Load(ctx)
	require.NoError(t, err)
	first, exists := document["root"]
	require.True(t, exists)
	assert.Equal(t, sec.RoleAdmin, first.Role)

	// Second run with a different password must not change the record.
	require.NoError(t, service.EnsureAdmin(ctx, "root", "different-pass"))

	document, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.PasswordHash, document["root"].PasswordHash)

	// The original password still works.
	_, err = service.VerifyPassword(ctx, "root", "rootpass")
	assert.NoError(t, err)
}
