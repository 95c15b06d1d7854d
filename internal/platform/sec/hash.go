// Copyright (c) 2026 Keygate. All rights reserved.
// Author: td.vu.dev@gmail.com

package sec

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher is the one-way transform applied to plaintext passwords before they
// are persisted, and the comparison used at login time.
type Hasher interface {
	// Hash returns the storable digest of a plaintext password.
	Hash(plainTextPassword string) (string, error)

	// Verify reports whether the plaintext password matches the stored digest.
	Verify(plainTextPassword, storedDigest string) bool
}

// # Deterministic Salted Hasher

// SaltedHasher produces hex-encoded SHA-256 digests of password+salt.
//
// # Compatibility
//
// This is the digest format the deployed credential documents already use:
// a single application-wide salt, deterministic output. It is NOT a modern
// password KDF; deployments that do not need to read pre-existing documents
// should select the bcrypt scheme instead.
type SaltedHasher struct {
	salt string
}

// NewSaltedHasher constructs a [SaltedHasher] with the application-wide salt.
func NewSaltedHasher(salt string) *SaltedHasher {
	return &SaltedHasher{salt: salt}
}

// Hash returns hex(sha256(password + salt)).
func (hasher *SaltedHasher) Hash(plainTextPassword string) (string, error) {
	sum := sha256.Sum256([]byte(plainTextPassword + hasher.salt))
	return hex.EncodeToString(sum[:]), nil
}

// Verify re-derives the digest and compares it in constant time.
func (hasher *SaltedHasher) Verify(plainTextPassword, storedDigest string) bool {
	derived, err := hasher.Hash(plainTextPassword)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(derived), []byte(storedDigest)) == 1
}

// # Bcrypt Hasher

// BcryptHasher hashes passwords with bcrypt at the default cost.
//
// Unlike [SaltedHasher] the output is per-record salted and non-deterministic,
// so verification must go through [BcryptHasher.Verify] rather than digest
// equality.
type BcryptHasher struct{}

// NewBcryptHasher constructs a [BcryptHasher].
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{}
}

// Hash hashes a plain-text password using the bcrypt algorithm.
func (hasher *BcryptHasher) Hash(plainTextPassword string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plainTextPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// Verify compares a plain-text password with its bcrypt hash.
func (hasher *BcryptHasher) Verify(plainTextPassword, storedDigest string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(storedDigest), []byte(plainTextPassword))
	return err == nil
}
