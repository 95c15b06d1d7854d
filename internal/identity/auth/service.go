// Copyright (c) 2026 Keygate. All rights reserved.
// Author: td.vu.dev@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/tdvu/keygate/internal/platform/apperr"
	"github.com/tdvu/keygate/internal/platform/ctxutil"
	"github.com/tdvu/keygate/internal/platform/sec"
	"github.com/tdvu/keygate/pkg/normalize"
)

// # Contracts & Types

// TokenProvider defines the contract for issuing and verifying bearer tokens.
type TokenProvider interface {
	// Issue creates a signed token embedding the username and an absolute
	// expiry instant (now + timeToLive).
	Issue(username string, role sec.Role, timeToLive time.Duration) (string, error)

	// Verify checks the signature and validity window, classifying failures
	// as [sec.ErrTokenExpired] or [sec.ErrTokenMalformed].
	Verify(tokenString string) (*sec.Claims, error)
}

// Policy carries the credential rules the deployed applications used to
// disagree on. Every knob is injected from configuration; nothing is
// hardcoded per variant anymore.
type Policy struct {
	// MinUsernameLength is the minimum trimmed username length at registration.
	MinUsernameLength int

	// MinPasswordLength is the minimum password length at registration.
	MinPasswordLength int

	// RoleAware enables the role attribute on records and the admin gate.
	RoleAware bool

	// TokenTTL is the lifetime of issued bearer tokens.
	TokenTTL time.Duration
}

// Service implements the authentication use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, registration,
// or verification logic must be reviewed before merging.
type Service struct {
	store         Store
	hasher        sec.Hasher
	tokenProvider TokenProvider // nil for basic-scheme deployments
	policy        Policy
}

// NewService constructs a new [Service] with its dependencies.
//
// tokenProvider may be nil when the deployment authenticates with the basic
// scheme only; [Service.Login] then returns no token.
func NewService(store Store, hasher sec.Hasher, tokenProvider TokenProvider, policy Policy) *Service {
	return &Service{
		store:         store,
		hasher:        hasher,
		tokenProvider: tokenProvider,
		policy:        policy,
	}
}

// # Uniform External Failures

// Externally visible authentication failures. Two different internal causes
// (unknown user vs wrong password; expired vs malformed token) intentionally
// share one message each, so responses never leak which rule fired.
var (
	errInvalidCredentials = apperr.Unauthorized("Invalid credentials")
	errTokenNotValid      = apperr.Unauthorized("Could not validate credentials")
	errInsufficientRole   = apperr.Forbidden("Insufficient permissions")
	errAuthRequired       = apperr.Unauthorized("Authentication required")
	errDuplicateUsername  = apperr.BadRequest("Username already exists")
	errRoleNotRecognized  = apperr.BadRequest("Unknown role")
	errRolesNotSupported  = apperr.BadRequest("This deployment does not support roles")
)

// # Registration Flow

// RegisterInput holds the data required to enroll a new user.
type RegisterInput struct {
	Username string
	Password string
	// Role is the requested role string; only honored in role-aware
	// deployments, defaulting to the lowest-privilege role when empty.
	Role string
	// Profile is opaque application data stored alongside the credentials.
	Profile map[string]any
}

/*
Register validates, hashes, and persists a brand new credential record.

Description: The three rejection rules run in a fixed order inside one
writer-locked document mutation — duplicate username first, then username
length, then password length — and each short-circuits with its own distinct
client-facing message. A successful registration is visible to the very next
verification; there is no cache in between.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *sec.Identity: The newly registered identity (no digest)
  - err: Validation rejections (400) or persistence failures (500)
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*sec.Identity, error) {
	username := normalize.Username(input.Username)

	role, err := service.resolveRole(input.Role)
	if err != nil {
		return nil, err
	}

	record := Record{Role: role, Profile: scrubProfile(input.Profile)}

	err = service.store.Mutate(context, func(document Document) error {
		if _, exists := document[username]; exists {
			return errDuplicateUsername
		}

		if utf8.RuneCountInString(username) < service.policy.MinUsernameLength {
			return apperr.BadRequest(fmt.Sprintf(
				"Username must be at least %d characters long", service.policy.MinUsernameLength))
		}

		if utf8.RuneCountInString(input.Password) < service.policy.MinPasswordLength {
			return apperr.BadRequest(fmt.Sprintf(
				"Password must be at least %d characters long", service.policy.MinPasswordLength))
		}

		digest, hashErr := service.hasher.Hash(input.Password)
		if hashErr != nil {
			return fmt.Errorf("auth_service_hash_failed: %w", hashErr)
		}
		record.PasswordHash = digest

		document[username] = record
		return nil
	})

	if err != nil {
		if appError := apperr.As(err); appError != nil {
			return nil, appError
		}
		// A failed save is fatal for this request. Never retried.
		return nil, apperr.Internal(err)
	}

	ctxutil.GetLogger(context).InfoContext(context, "user_registered",
		slog.String("username", username),
		slog.String("role", string(role)),
	)

	return record.Identity(username), nil
}

// scrubProfile copies the client-supplied profile minus the reserved
// credential keys. Role and digest are set only through their typed fields;
// a profile entry under a reserved name would otherwise resurface as the
// record's role on the next document load.
func scrubProfile(profile map[string]any) map[string]any {
	if len(profile) == 0 {
		return nil
	}
	clean := make(map[string]any, len(profile))
	for key, value := range profile {
		if key == keyPasswordHash || key == keyRole {
			continue
		}
		clean[key] = value
	}
	if len(clean) == 0 {
		return nil
	}
	return clean
}

// resolveRole maps the requested role string onto the closed role set.
func (service *Service) resolveRole(requested string) (sec.Role, error) {
	if !service.policy.RoleAware {
		if requested != "" {
			return "", errRolesNotSupported
		}
		return "", nil
	}

	role, err := sec.ParseRole(requested)
	if err != nil {
		return "", errRoleNotRecognized
	}
	if role == "" {
		// Lowest-privilege default, matching the sampled registration flow.
		role = sec.RoleCustomer
	}
	return role, nil
}

// # Credential Verification

/*
VerifyPassword checks a presented username+password pair against the stored
credential document.

Description: An unknown username and a wrong password both come back as the
same uniform 401 "Invalid credentials"; only the server-side log records
which rule fired. On success the stored record is projected into a
[sec.Identity] that never contains the digest.

Parameters:
  - context: context.Context
  - username: string
  - password: string

Returns:
  - *sec.Identity: The verified caller
  - err: The uniform unauthorized failure
*/
func (service *Service) VerifyPassword(context context.Context, username, password string) (*sec.Identity, error) {
	username = normalize.Username(username)
	logger := ctxutil.GetLogger(context)

	document, err := service.store.Load(context)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	record, exists := document[username]
	if !exists {
		logger.WarnContext(context, "login_failed",
			slog.String("username", username),
			slog.String("reason", "unknown_user"),
		)
		return nil, errInvalidCredentials.WithCause(ErrUnknownUser)
	}

	if !service.hasher.Verify(password, record.PasswordHash) {
		logger.WarnContext(context, "login_failed",
			slog.String("username", username),
			slog.String("reason", "bad_secret"),
		)
		return nil, errInvalidCredentials.WithCause(ErrBadSecret)
	}

	return record.Identity(username), nil
}

// # Login & Session Issuing

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Username string
	Password string
}

// LoginResult represents a successful authentication. AccessToken and
// ExpiresIn are only populated in bearer-scheme deployments.
type LoginResult struct {
	Identity    *sec.Identity
	AccessToken string
	ExpiresIn   int64
}

/*
Login validates user credentials and, in bearer deployments, issues a signed
time-limited token.

Description: The token is fully self-contained — username and absolute expiry
embedded, no server-side session row — so the only way a session ends early
is the expiry instant passing.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *LoginResult: Verified identity plus optional bearer token
  - err: Unauthorized or signing failures
*/
func (service *Service) Login(context context.Context, input LoginInput) (*LoginResult, error) {
	identity, err := service.VerifyPassword(context, input.Username, input.Password)
	if err != nil {
		return nil, err
	}

	result := &LoginResult{Identity: identity}

	if service.tokenProvider != nil {
		token, err := service.tokenProvider.Issue(identity.Username, identity.Role, service.policy.TokenTTL)
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("auth_service_token_issue_failed: %w", err))
		}
		result.AccessToken = token
		result.ExpiresIn = int64(service.policy.TokenTTL / time.Second)
	}

	ctxutil.GetLogger(context).InfoContext(context, "login_succeeded",
		slog.String("username", identity.Username),
	)

	return result, nil
}

// # Token Validation

/*
ValidateToken checks a presented bearer token and re-resolves its subject
against the live credential document.

Description: Signature defects, wrong algorithms, and missing claims are
"malformed"; a correct signature past its expiry instant is "expired"; a
valid token whose subject no longer exists is "unknown user". All three
collapse externally into one uniform 401 "Could not validate credentials" —
the distinctions live only in server-side logs.

Parameters:
  - context: context.Context
  - tokenString: string

Returns:
  - *sec.Identity: The verified caller, rebuilt from the live store
  - err: The uniform token-validation failure
*/
func (service *Service) ValidateToken(context context.Context, tokenString string) (*sec.Identity, error) {
	if service.tokenProvider == nil {
		return nil, errTokenNotValid
	}

	logger := ctxutil.GetLogger(context)

	claims, err := service.tokenProvider.Verify(tokenString)
	if err != nil {
		reason := "malformed_or_unsigned"
		if errors.Is(err, sec.ErrTokenExpired) {
			reason = "expired"
		}
		logger.WarnContext(context, "token_rejected", slog.String("reason", reason))
		return nil, errTokenNotValid.WithCause(err)
	}

	// A user removed after issuance must not keep a working session.
	document, err := service.store.Load(context)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	record, exists := document[claims.Subject]
	if !exists {
		logger.WarnContext(context, "token_rejected",
			slog.String("username", claims.Subject),
			slog.String("reason", "unknown_user"),
		)
		return nil, errTokenNotValid.WithCause(ErrUnknownUser)
	}

	return record.Identity(claims.Subject), nil
}

// # Authorization Gate

/*
Authorize decides whether an authenticated identity may perform an action
requiring the given role.

Description: An empty required role admits any authenticated identity.
Otherwise the identity's role must equal the requirement; the denial is a
403, deliberately distinct from every authentication failure.

Parameters:
  - context: context.Context
  - identity: *sec.Identity (nil for anonymous callers)
  - required: sec.Role

Returns:
  - err: nil when allowed; Unauthorized (anonymous) or Forbidden (wrong role)
*/
func (service *Service) Authorize(context context.Context, identity *sec.Identity, required sec.Role) error {
	if identity == nil {
		return errAuthRequired
	}
	if !identity.Role.Satisfies(required) {
		ctxutil.GetLogger(context).WarnContext(context, "authorization_denied",
			slog.String("username", identity.Username),
			slog.String("role", string(identity.Role)),
			slog.String("required_role", string(required)),
		)
		return errInsufficientRole
	}
	return nil
}

// # Startup Bootstrap

/*
EnsureAdmin guarantees that an administrator record exists, for role-aware
deployments bootstrapped from configuration.

Description: Idempotent — an existing record (whatever its role or password)
is never overwritten.

Parameters:
  - context: context.Context
  - username: string
  - password: string

Returns:
  - err: Persistence failures
*/
func (service *Service) EnsureAdmin(context context.Context, username, password string) error {
	username = normalize.Username(username)

	created := false
	err := service.store.Mutate(context, func(document Document) error {
		if _, exists := document[username]; exists {
			return nil
		}

		digest, err := service.hasher.Hash(password)
		if err != nil {
			return fmt.Errorf("auth_service_hash_failed: %w", err)
		}

		document[username] = Record{PasswordHash: digest, Role: sec.RoleAdmin}
		created = true
		return nil
	})
	if err != nil {
		return err
	}

	if created {
		ctxutil.GetLogger(context).InfoContext(context, "default_admin_created",
			slog.String("username", username),
		)
	}
	return nil
}
