// Copyright (c) 2026 Keygate. All rights reserved.
// Author: td.vu.dev@gmail.com

package sec

import "fmt"

// # User Roles

// Role represents the authorization level granted to an account.
//
// The set is closed: a credential document only ever carries one of the
// values below (or none at all in deployments that are not role-aware).
type Role string

const (
	// Full administrative access (catalogue management, user listing)
	RoleAdmin Role = "admin"

	// Default role for standard registered users
	RoleCustomer Role = "customer"
)

// ParseRole converts a raw string into a [Role].
//
// An empty string is accepted and returned as-is: records written by
// deployments that are not role-aware carry no role at all.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleAdmin, RoleCustomer, Role(""):
		return Role(raw), nil
	default:
		return "", fmt.Errorf("sec: unknown role %q", raw)
	}
}

// # Authorization

// Satisfies reports whether this role meets the required role.
//
// An empty requirement means "any authenticated identity"; otherwise the
// match is strict equality — there is no role hierarchy in the credential
// documents this core manages.
func (r Role) Satisfies(required Role) bool {
	if required == "" {
		return true
	}
	return r == required
}
