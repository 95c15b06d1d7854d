// Copyright (c) 2026 Keygate. All rights reserved.
// Author: td.vu.dev@gmail.com

/*
Package auth implements the credential and authentication core.

It defines the credential document model and the logic for registration,
verification, bearer session issuing/validation, and role authorization.

# Architecture

This layer is the "Truth" of the system: every protected request in a
consuming application resolves its caller through this package before any
business logic runs. The surrounding applications own their own records
(notes, carts, grades); they only ever receive a verified [sec.Identity],
never a raw credential record.
*/
package auth

import (
	"encoding/json"

	"github.com/tdvu/keygate/internal/platform/sec"
)

// # Document Model

// Reserved keys inside a credential record object. Everything else in the
// object is opaque profile data owned by the surrounding application.
const (
	keyPasswordHash = "password_hash"
	keyRole         = "role"
)

// Record is a single credential entry in the whole-document store, keyed by
// username.
//
// # Shape On Disk
//
//	"alice": {
//	    "password_hash": "9f86d0…",
//	    "role": "customer",
//	    "email": "alice@example.com",
//	    "grades": [90, 85]
//	}
//
// Only password_hash (and role, in role-aware deployments) belong to this
// core. The remaining fields are carried byte-for-meaning through every
// load/save cycle so that a registration never clobbers a sibling
// application's data.
type Record struct {
	// PasswordHash is the stored one-way digest. It must never appear in an
	// API response or a log line.
	PasswordHash string

	// Role is the coarse permission label, empty when the deployment is not
	// role-aware. Unknown values found in an existing document are preserved
	// verbatim rather than rejected.
	Role sec.Role

	// Profile holds every non-reserved field of the record object, opaque to
	// this core.
	Profile map[string]any
}

// Document is the entire credential collection: one versionless object keyed
// by username. Every save replaces it wholesale.
type Document map[string]Record

// MarshalJSON flattens the record back into the sampled on-disk object shape.
// The reserved keys always come from the typed fields; a profile entry under
// a reserved name must never reach the document, or it would be lifted back
// into the credential fields on the next load.
func (record Record) MarshalJSON() ([]byte, error) {
	object := make(map[string]any, len(record.Profile)+2)
	for key, value := range record.Profile {
		object[key] = value
	}
	delete(object, keyRole)
	object[keyPasswordHash] = record.PasswordHash
	if record.Role != "" {
		object[keyRole] = string(record.Role)
	}
	return json.Marshal(object)
}

// UnmarshalJSON splits the reserved credential fields from the opaque profile.
func (record *Record) UnmarshalJSON(data []byte) error {
	var object map[string]any
	if err := json.Unmarshal(data, &object); err != nil {
		return err
	}

	if hash, ok := object[keyPasswordHash].(string); ok {
		record.PasswordHash = hash
	}
	delete(object, keyPasswordHash)

	if role, ok := object[keyRole].(string); ok {
		record.Role = sec.Role(role)
	}
	delete(object, keyRole)

	if len(object) > 0 {
		record.Profile = object
	} else {
		record.Profile = nil
	}
	return nil
}

// Identity builds the per-request [sec.Identity] for this record. The digest
// is deliberately not part of the result.
func (record Record) Identity(username string) *sec.Identity {
	return &sec.Identity{
		Username: username,
		Role:     record.Role,
		Profile:  record.Profile,
	}
}

// # Field Identifiers

// Global field names for validation and response shaping in the
// authentication domain.
const (
	FieldUsername    = "username"
	FieldPassword    = "password"
	FieldRole        = "role"
	FieldEmail       = "email"
	FieldFullName    = "full_name"
	FieldMessage     = "message"
	FieldAccessToken = "access_token"
	FieldTokenType   = "token_type"
	FieldExpiresIn   = "expires_in"
)
