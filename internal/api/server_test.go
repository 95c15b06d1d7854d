// Copyright (c) 2026 Keygate. All rights reserved.
// Author: td.vu.dev@gmail.com

package api_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdvu/keygate/internal/api"
	"github.com/tdvu/keygate/internal/identity/account"
	"github.com/tdvu/keygate/internal/identity/auth"
	"github.com/tdvu/keygate/internal/platform/config"
	"github.com/tdvu/keygate/internal/platform/constants"
	"github.com/tdvu/keygate/internal/platform/middleware"
	"github.com/tdvu/keygate/internal/platform/sec"
)

// newTestServer assembles the full router against a throwaway file store.
func newTestServer(t *testing.T, scheme string) http.Handler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	store := auth.NewFileStore(filepath.Join(t.TempDir(), "users.json"), logger)
	hasher := sec.NewSaltedHasher("test_salt")

	var tokenProvider auth.TokenProvider
	if scheme == constants.SchemeBearer {
		tokenProvider = sec.NewTokenService("test-signing-key", constants.AuthIssuer)
	}

	authService := auth.NewService(store, hasher, tokenProvider, auth.Policy{
		MinUsernameLength: 3,
		MinPasswordLength: 6,
		RoleAware:         true,
		TokenTTL:          30 * time.Minute,
	})

	ctx := context.Background()
	require.NoError(t, authService.EnsureAdmin(ctx, "root", "rootpass"))

	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		StoreName:  config.BackendFile,
		CheckStore: func() error { return store.Ping(context.Background()) },
	}, logger)

	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(authService, scheme, true),
		Account:   account.NewHandler(account.NewService(store)),
	}

	authenticator := middleware.NewAuthenticator(scheme, authService, authService, authService)

	cfg := &config.Config{
		ServerPort:  "0",
		Environment: "development",
		AuthScheme:  scheme,
	}

	serverCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return api.NewServer(serverCtx, cfg, logger, authenticator, handlers).Router()
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	for key, values := range header {
		for _, value := range values {
			request.Header.Add(key, value)
		}
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func basicAuth(username, password string) http.Header {
	header := http.Header{}
	header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(username+":"+password)))
	return header
}

func bearerAuth(token string) http.Header {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	return header
}

type envelope struct {
	Data  map[string]any `json:"data"`
	Error string         `json:"error"`
	Code  string         `json:"code"`
}

func decodeEnvelope(t *testing.T, recorder *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &env))
	return env
}

// # Health Probes

/*
TestServer_HealthProbes checks the unauthenticated liveness and readiness
endpoints.
*/
func TestServer_HealthProbes(t *testing.T) {
	router := newTestServer(t, constants.SchemeBasic)

	health := doJSON(t, router, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, health.Code)

	ready := doJSON(t, router, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, ready.Code)
}

// # Basic Scheme

/*
TestServer_BasicScheme_FullFlow walks the whole lifecycle against a
basic-auth deployment: register, duplicate rejection, failed login, login,
self view, and the admin gate.
*/
func TestServer_BasicScheme_FullFlow(t *testing.T) {
	router := newTestServer(t, constants.SchemeBasic)

	// Register a new user.
	created := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", map[string]any{
		"username": "alice",
		"password": "secret123",
		"email":    "alice@example.com",
	}, nil)
	require.Equal(t, http.StatusCreated, created.Code)
	env := decodeEnvelope(t, created)
	assert.Equal(t, "User registered successfully", env.Data["message"])
	assert.Equal(t, "alice", env.Data["username"])

	// Duplicate registration is a distinct 400.
	duplicate := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", map[string]any{
		"username": "alice",
		"password": "secret123",
	}, nil)
	require.Equal(t, http.StatusBadRequest, duplicate.Code)
	assert.Equal(t, "Username already exists", decodeEnvelope(t, duplicate).Error)

	// Wrong password on login: uniform 401 plus the Basic challenge.
	badLogin := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", map[string]any{
		"username": "alice",
		"password": "wrong-password",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, badLogin.Code)
	assert.Equal(t, "Invalid credentials", decodeEnvelope(t, badLogin).Error)
	assert.Equal(t, `Basic realm="keygate"`, badLogin.Header().Get("WWW-Authenticate"))

	// Unknown user fails with the identical message.
	ghostLogin := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", map[string]any{
		"username": "nobody",
		"password": "secret123",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, ghostLogin.Code)
	assert.Equal(t, "Invalid credentials", decodeEnvelope(t, ghostLogin).Error)

	// Correct login.
	login := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", map[string]any{
		"username": "alice",
		"password": "secret123",
	}, nil)
	require.Equal(t, http.StatusOK, login.Code)
	env = decodeEnvelope(t, login)
	assert.Equal(t, "Login successful", env.Data["message"])
	assert.Equal(t, "alice", env.Data["username"])
	assert.Equal(t, "customer", env.Data["role"])

	// Self view with Basic credentials on the request.
	me := doJSON(t, router, http.MethodGet, "/api/v1/me", nil, basicAuth("alice", "secret123"))
	require.Equal(t, http.StatusOK, me.Code)
	env = decodeEnvelope(t, me)
	assert.Equal(t, "alice", env.Data["username"])

	// Anonymous self view: 401 with challenge.
	anonymous := doJSON(t, router, http.MethodGet, "/api/v1/me", nil, nil)
	require.Equal(t, http.StatusUnauthorized, anonymous.Code)
	assert.Equal(t, `Basic realm="keygate"`, anonymous.Header().Get("WWW-Authenticate"))

	// Customer hitting the admin listing: authenticated but forbidden.
	forbidden := doJSON(t, router, http.MethodGet, "/api/v1/admin/users", nil, basicAuth("alice", "secret123"))
	require.Equal(t, http.StatusForbidden, forbidden.Code)
	assert.Equal(t, "Insufficient permissions", decodeEnvelope(t, forbidden).Error)
	assert.Empty(t, forbidden.Header().Get("WWW-Authenticate"))

	// The bootstrapped admin can list users.
	listing := doJSON(t, router, http.MethodGet, "/api/v1/admin/users", nil, basicAuth("root", "rootpass"))
	require.Equal(t, http.StatusOK, listing.Code)

	var listEnv struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(listing.Body.Bytes(), &listEnv))
	require.Len(t, listEnv.Data, 2)
	assert.Equal(t, "alice", listEnv.Data[0]["username"])
	assert.Equal(t, "root", listEnv.Data[1]["username"])
}

/*
TestServer_BasicScheme_BadAuthorizationHeader verifies rejection of
unparseable Authorization headers.
*/
func TestServer_BasicScheme_BadAuthorizationHeader(t *testing.T) {
	router := newTestServer(t, constants.SchemeBasic)

	header := http.Header{}
	header.Set("Authorization", "Basic not-valid-base64!!!")

	response := doJSON(t, router, http.MethodGet, "/api/v1/me", nil, header)
	require.Equal(t, http.StatusUnauthorized, response.Code)
	assert.Equal(t, `Basic realm="keygate"`, response.Header().Get("WWW-Authenticate"))
}

// # Bearer Scheme

/*
TestServer_BearerScheme_FullFlow walks the token lifecycle: login for a
token, use it, and watch defective tokens bounce with the Bearer challenge.
*/
func TestServer_BearerScheme_FullFlow(t *testing.T) {
	router := newTestServer(t, constants.SchemeBearer)

	created := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", map[string]any{
		"username": "alice",
		"password": "secret123",
	}, nil)
	require.Equal(t, http.StatusCreated, created.Code)

	// Login returns the token envelope.
	login := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", map[string]any{
		"username": "alice",
		"password": "secret123",
	}, nil)
	require.Equal(t, http.StatusOK, login.Code)
	env := decodeEnvelope(t, login)

	token, ok := env.Data["access_token"].(string)
	require.True(t, ok)
	require.NotEmpty(t, token)
	assert.Equal(t, "bearer", env.Data["token_type"])
	assert.Equal(t, "alice", env.Data["username"])
	assert.InDelta(t, 1800, env.Data["expires_in"], 1)

	// The token authenticates the self view.
	me := doJSON(t, router, http.MethodGet, "/api/v1/me", nil, bearerAuth(token))
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, "alice", decodeEnvelope(t, me).Data["username"])

	// A garbage token gets the uniform message and the Bearer challenge.
	garbage := doJSON(t, router, http.MethodGet, "/api/v1/me", nil, bearerAuth("not-a-token"))
	require.Equal(t, http.StatusUnauthorized, garbage.Code)
	assert.Equal(t, "Could not validate credentials", decodeEnvelope(t, garbage).Error)
	assert.Equal(t, "Bearer", garbage.Header().Get("WWW-Authenticate"))

	// The admin gate works with tokens too.
	forbidden := doJSON(t, router, http.MethodGet, "/api/v1/admin/users", nil, bearerAuth(token))
	require.Equal(t, http.StatusForbidden, forbidden.Code)
}

/*
TestServer_BearerScheme_ExpiredToken verifies that a token past its expiry
instant is rejected at the transport boundary.
*/
func TestServer_BearerScheme_ExpiredToken(t *testing.T) {
	router := newTestServer(t, constants.SchemeBearer)

	// Sign with the server's key, but already expired.
	tokens := sec.NewTokenService("test-signing-key", constants.AuthIssuer)
	expired, err := tokens.Issue("root", sec.RoleAdmin, -1*time.Minute)
	require.NoError(t, err)

	response := doJSON(t, router, http.MethodGet, "/api/v1/me", nil, bearerAuth(expired))
	require.Equal(t, http.StatusUnauthorized, response.Code)
	assert.Equal(t, "Could not validate credentials", decodeEnvelope(t, response).Error)
}

/*
TestServer_ProfileRoleSmuggleDenied verifies that a registration carrying a
"role" entry inside the opaque profile does not open the admin listing to
that user.
*/
func TestServer_ProfileRoleSmuggleDenied(t *testing.T) {
	router := newTestServer(t, constants.SchemeBasic)

	created := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", map[string]any{
		"username": "mallory",
		"password": "secret123",
		"profile":  map[string]any{"role": "admin"},
	}, nil)
	require.Equal(t, http.StatusCreated, created.Code)

	denied := doJSON(t, router, http.MethodGet, "/api/v1/admin/users", nil, basicAuth("mallory", "secret123"))
	require.Equal(t, http.StatusForbidden, denied.Code)
	assert.Equal(t, "Insufficient permissions", decodeEnvelope(t, denied).Error)
}

// # Validation Surface

/*
TestServer_Register_ShapeValidation verifies transport-level payload checks.
*/
func TestServer_Register_ShapeValidation(t *testing.T) {
	router := newTestServer(t, constants.SchemeBasic)

	tests := []struct {
		name    string
		payload map[string]any
	}{
		{"missing_username", map[string]any{"password": "secret123"}},
		{"missing_password", map[string]any{"username": "alice"}},
		{"empty_payload", map[string]any{}},
		{"role_outside_closed_set", map[string]any{"username": "alice", "password": "secret123", "role": "superuser"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", tt.payload, nil)
			assert.Equal(t, http.StatusBadRequest, response.Code)
		})
	}
}
