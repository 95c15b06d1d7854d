// Copyright (c) 2026 Keygate. All rights reserved.
// Author: td.vu.dev@gmail.com

package sec

// Identity is the per-request result of a successful credential or token
// verification.
//
// # Trust Boundary
//
// It is the only representation of "who is calling" that handlers and the
// authorization gate may rely on. It is constructed fresh for every request,
// never persisted, and never carries the password digest.
type Identity struct {
	Username string         `json:"username"`
	Role     Role           `json:"role,omitempty"`
	Profile  map[string]any `json:"profile,omitempty"`
}
