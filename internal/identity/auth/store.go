// Copyright (c) 2026 Keygate. All rights reserved.
// Author: td.vu.dev@gmail.com

package auth

import (
	"context"
	"errors"
)

// # Failure Taxonomy

// Sentinel errors carried as server-side causes. The externally visible
// message for the first two is always the same uniform "Invalid credentials"
// so that responses never reveal whether a username exists.
var (
	// ErrUnknownUser marks a lookup of a username absent from the document.
	ErrUnknownUser = errors.New("auth: unknown user")

	// ErrBadSecret marks a presented password whose digest does not match.
	ErrBadSecret = errors.New("auth: password mismatch")

	// ErrWriteFailed marks a failed full-document save. It is fatal for the
	// triggering request and is never retried automatically: re-running a
	// whole-document replace could drop concurrent unrelated writes.
	ErrWriteFailed = errors.New("auth: credential store write failed")
)

// # Credential Document Access

// Store is the persistence contract for the whole-document credential
// collection. The document is the atomicity boundary: there is no per-record
// locking, every write replaces the entire collection.
type Store interface {

	/*
		Load returns a snapshot of the credential document.

		A missing or unreadable backing resource yields an EMPTY document and a
		nil error — availability over strictness, matching the deployed
		behavior. The incident is logged, and callers must never treat a loaded
		empty document as proof that no users exist.

		Parameters:
		  - context: context.Context

		Returns:
		  - Document: Snapshot keyed by username (possibly empty)
		  - error: Reserved for failures other than the degrade-to-empty policy
	*/
	Load(context context.Context) (Document, error)

	/*
		Save atomically replaces the entire credential document.

		Either the new document is fully visible afterwards or the previous one
		remains intact; no partial write is ever observable.

		Parameters:
		  - context: context.Context
		  - document: Document

		Returns:
		  - error: ErrWriteFailed (wrapped) when the backing resource rejects the write
	*/
	Save(context context.Context, document Document) error

	/*
		Mutate runs fn against a freshly loaded document and saves the result,
		holding the store's single writer lock for the whole read-modify-write.

		This is the only safe way to change the document: two concurrent
		registrations going through separate Load/Save calls would race and one
		would silently clobber the other. If fn returns an error the document
		is NOT saved and the error is returned verbatim.

		Parameters:
		  - context: context.Context
		  - fn: func(Document) error (mutates the document in place)

		Returns:
		  - error: fn's error, or ErrWriteFailed (wrapped) from the save
	*/
	Mutate(context context.Context, fn func(Document) error) error

	/*
		Ping reports whether the backing resource is reachable, for readiness
		probes.

		Parameters:
		  - context: context.Context

		Returns:
		  - error: nil when healthy
	*/
	Ping(context context.Context) error
}
