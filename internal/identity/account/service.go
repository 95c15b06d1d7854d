// Copyright (c) 2026 Keygate. All rights reserved.
// Author: td.vu.dev@gmail.com

// Package account exposes read-only views over enrolled identities: the
// caller's own profile and the administrative user listing.
package account

import (
	"context"
	"sort"

	"github.com/tdvu/keygate/internal/identity/auth"
	"github.com/tdvu/keygate/internal/platform/apperr"
	"github.com/tdvu/keygate/internal/platform/sec"
)

// Summary is one row of the administrative user listing. Password digests
// never appear here.
type Summary struct {
	Username string   `json:"username"`
	Role     sec.Role `json:"role,omitempty"`
}

// Service implements read-only account use cases.
type Service struct {
	store auth.Store
}

// NewService constructs a new [Service].
func NewService(store auth.Store) *Service {
	return &Service{store: store}
}

/*
Overview lists every enrolled user, sorted by username.

Description: Loads the credential document and projects each record into a
digest-free [Summary]. Intended for administrator consumption only; the
caller's role is enforced at the routing layer.

Parameters:
  - context: context.Context

Returns:
  - []Summary: All enrolled users
  - err: Store read failures
*/
func (service *Service) Overview(context context.Context) ([]Summary, error) {
	document, err := service.store.Load(context)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	summaries := make([]Summary, 0, len(document))
	for username, record := range document {
		summaries = append(summaries, Summary{
			Username: username,
			Role:     record.Role,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Username < summaries[j].Username
	})

	return summaries, nil
}
