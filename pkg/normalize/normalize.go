// Copyright (c) 2026 Keygate. All rights reserved.
// Author: td.vu.dev@gmail.com

// Package normalize canonicalizes user-supplied identifier strings.
//
// # Usage
//
// Usernames are stable, case-sensitive map keys in the credential document.
// Two visually identical inputs with different Unicode compositions (é as a
// single code point vs e + combining acute) must resolve to the same key, so
// every username is NFC-normalized and trimmed before validation and lookup.
package normalize

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Username returns the canonical form of a raw username: leading and trailing
// whitespace removed, Unicode composed to NFC.
//
// Case is deliberately preserved — usernames are case-sensitive keys.
func Username(raw string) string {
	return norm.NFC.String(strings.TrimSpace(raw))
}
