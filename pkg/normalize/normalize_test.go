// Copyright (c) 2026 Keygate. All rights reserved.
// Author: td.vu.dev@gmail.com

package normalize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tdvu/keygate/pkg/normalize"
)

/*
TestUsername covers trimming, Unicode normalization, and case preservation.
*/
func TestUsername(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "alice", "alice"},
		{"surrounding_whitespace", "  alice  ", "alice"},
		{"case_preserved", "Alice", "Alice"},
		{"empty", "", ""},
		{"whitespace_only", "   ", ""},
		// U+0065 U+0301 (e + combining acute) composes to U+00E9
		{"nfc_composition", "café", "café"},
		{"already_composed", "café", "café"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize.Username(tt.raw))
		})
	}
}

/*
TestUsername_Idempotent verifies that normalizing twice changes nothing,
so stored keys can be re-normalized safely.
*/
func TestUsername_Idempotent(t *testing.T) {
	inputs := []string{"alice", "  Bob ", "café", "用户名"}

	for _, input := range inputs {
		once := normalize.Username(input)
		assert.Equal(t, once, normalize.Username(once))
	}
}
