// Copyright (c) 2026 Keygate. All rights reserved.
// Author: td.vu.dev@gmail.com

package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/tdvu/keygate/internal/platform/request"
	"github.com/tdvu/keygate/internal/platform/respond"
)

// # Handler

// Handler handles HTTP requests for account views.
type Handler struct {
	service *Service
}

// NewHandler constructs a new [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// # Endpoints

/*
Me handles GET /api/v1/me requests.

Description: Echoes the authenticated caller's identity from the request
context. The authentication middleware has already verified the credentials;
this endpoint only shapes the projection.

Parameters:
  - writer: http.ResponseWriter
  - request: *http.Request

Returns: None (writes HTTP response)
*/
func (handler *Handler) Me(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, identity)
}

/*
ListUsers handles GET /api/v1/admin/users requests.

Description: Returns the full enrolled-user listing. Mounted behind the
admin role gate, so an authenticated non-admin never reaches this handler.

Parameters:
  - writer: http.ResponseWriter
  - request: *http.Request

Returns: None (writes HTTP response)
*/
func (handler *Handler) ListUsers(writer http.ResponseWriter, request *http.Request) {
	summaries, err := handler.service.Overview(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, summaries)
}

// Routes returns a router with the self-service endpoint registered. The
// admin listing is mounted separately so the role gate can wrap it.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", handler.Me)
	return router
}
