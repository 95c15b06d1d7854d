// Copyright (c) 2026 Keygate. All rights reserved.
// Author: td.vu.dev@gmail.com

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tdvu/keygate/internal/platform/apperr"
	"github.com/tdvu/keygate/internal/platform/constants"
	requestutil "github.com/tdvu/keygate/internal/platform/request"
	"github.com/tdvu/keygate/internal/platform/respond"
	"github.com/tdvu/keygate/internal/platform/sec"
	"github.com/tdvu/keygate/internal/platform/validate"
)

// # Handler

// Handler handles HTTP requests for registration and login.
type Handler struct {
	service   *Service
	scheme    string // constants.SchemeBasic or constants.SchemeBearer
	roleAware bool
}

// NewHandler constructs a new [Handler].
func NewHandler(service *Service, scheme string, roleAware bool) *Handler {
	return &Handler{
		service:   service,
		scheme:    scheme,
		roleAware: roleAware,
	}
}

// Routes returns a router with all authentication endpoints registered.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/register", handler.Register)
	router.Post("/login", handler.Login)

	return router
}

// # Request / Response Shapes

type registerRequest struct {
	Username string         `json:"username"`
	Password string         `json:"password"`
	Role     string         `json:"role,omitempty"`
	Email    string         `json:"email,omitempty"`
	FullName string         `json:"full_name,omitempty"`
	Profile  map[string]any `json:"profile,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// # Endpoints

/*
Register handles POST /api/v1/auth/register requests.

Description: Decodes and validates the payload, then delegates to the
service, which enforces duplicate/length rules in its fixed order. Distinct
400 messages per rejected rule; 201 with a confirmation message on success.

Parameters:
  - writer: http.ResponseWriter
  - request: *http.Request

Returns: None (writes HTTP response)
*/
func (handler *Handler) Register(writer http.ResponseWriter, request *http.Request) {
	var payload registerRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.
		Required(FieldUsername, payload.Username).
		MaxLen(FieldUsername, payload.Username, 50).
		Required(FieldPassword, payload.Password)
	if handler.roleAware && payload.Role != "" {
		validator.OneOf(FieldRole, payload.Role, string(sec.RoleAdmin), string(sec.RoleCustomer))
	}
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	profile := payload.Profile
	if payload.Email != "" || payload.FullName != "" {
		if profile == nil {
			profile = make(map[string]any, 2)
		}
		if payload.Email != "" {
			profile["email"] = payload.Email
		}
		if payload.FullName != "" {
			profile["full_name"] = payload.FullName
		}
	}

	identity, err := handler.service.Register(request.Context(), RegisterInput{
		Username: payload.Username,
		Password: payload.Password,
		Role:     payload.Role,
		Profile:  profile,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, map[string]any{
		FieldMessage:  "User registered successfully",
		FieldUsername: identity.Username,
	})
}

/*
Login handles POST /api/v1/auth/login requests.

Description: Verifies credentials and shapes the response per deployment
scheme. Basic deployments answer with a confirmation message; bearer
deployments answer with the access token envelope. Failed verification
carries the scheme's challenge header alongside the uniform 401.

Parameters:
  - writer: http.ResponseWriter
  - request: *http.Request

Returns: None (writes HTTP response)
*/
func (handler *Handler) Login(writer http.ResponseWriter, request *http.Request) {
	var payload loginRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.
		Required(FieldUsername, payload.Username).
		Required(FieldPassword, payload.Password)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.service.Login(request.Context(), LoginInput{
		Username: payload.Username,
		Password: payload.Password,
	})
	if err != nil {
		if appError := apperr.As(err); appError != nil && appError.HTTPStatus == http.StatusUnauthorized {
			writer.Header().Set(constants.HeaderWWWAuthenticate, handler.challenge())
		}
		respond.Error(writer, request, err)
		return
	}

	if handler.scheme == constants.SchemeBearer {
		respond.OK(writer, map[string]any{
			FieldAccessToken: result.AccessToken,
			FieldTokenType:   "bearer",
			FieldUsername:    result.Identity.Username,
			FieldExpiresIn:   result.ExpiresIn,
		})
		return
	}

	body := map[string]any{
		FieldMessage:  "Login successful",
		FieldUsername: result.Identity.Username,
	}
	if handler.roleAware {
		body[FieldRole] = string(result.Identity.Role)
	}
	respond.OK(writer, body)
}

// challenge builds the WWW-Authenticate value for this deployment's scheme.
func (handler *Handler) challenge() string {
	if handler.scheme == constants.SchemeBearer {
		return "Bearer"
	}
	return `Basic realm="` + constants.AuthRealm + `"`
}
