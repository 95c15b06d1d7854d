// Copyright (c) 2026 Keygate. All rights reserved.
// Author: td.vu.dev@gmail.com

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps the whole credential document in a single JSONB row.
//
// The one-row shape is deliberate: it preserves the document-replace
// atomicity model of the file backend while gaining real transactional
// durability. Mutate additionally takes a row lock (SELECT … FOR UPDATE) so
// writer serialization holds across processes, not just goroutines.
type PostgresStore struct {
	pool   *pgxpool.Pool
	mu     sync.Mutex
	logger *slog.Logger
}

// NewPostgresStore creates a postgres-backed credential store. The
// credential_document table must exist (see data/migrations).
func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

/*
Load returns a snapshot of the credential document.

Description: A missing row or an undecodable payload yields an empty document
with a warn log, matching the file backend's degrade-to-empty policy.
*/
func (store *PostgresStore) Load(context context.Context) (Document, error) {
	var raw []byte
	err := store.pool.QueryRow(context,
		`SELECT doc FROM credential_document WHERE id = 1`,
	).Scan(&raw)

	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			store.logger.WarnContext(context, "store_read_failed",
				slog.String("backend", "postgres"),
				slog.String("error", err.Error()),
			)
		}
		return Document{}, nil
	}

	return store.decode(context, raw), nil
}

/*
Save replaces the credential document row.
*/
func (store *PostgresStore) Save(context context.Context, document Document) error {
	raw, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	_, err = store.pool.Exec(context,
		`INSERT INTO credential_document (id, doc, updated_at)
		 VALUES (1, $1, now())
		 ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
		raw,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

/*
Mutate applies fn to the current document and replaces it inside one
transaction, holding both the in-process mutex and a row lock.
*/
func (store *PostgresStore) Mutate(context context.Context, fn func(Document) error) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	transaction, err := store.pool.Begin(context)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	defer func() { _ = transaction.Rollback(context) }()

	var raw []byte
	document := Document{}
	err = transaction.QueryRow(context,
		`SELECT doc FROM credential_document WHERE id = 1 FOR UPDATE`,
	).Scan(&raw)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// First write ever; the empty document stands.
	case err != nil:
		store.logger.WarnContext(context, "store_read_failed",
			slog.String("backend", "postgres"),
			slog.String("error", err.Error()),
		)
	default:
		document = store.decode(context, raw)
	}

	if err := fn(document); err != nil {
		return err
	}

	updated, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	_, err = transaction.Exec(context,
		`INSERT INTO credential_document (id, doc, updated_at)
		 VALUES (1, $1, now())
		 ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
		updated,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	if err := transaction.Commit(context); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

/*
Ping verifies database connectivity.
*/
func (store *PostgresStore) Ping(context context.Context) error {
	return store.pool.Ping(context)
}

// decode unmarshals a raw JSONB payload, degrading to empty on corruption.
func (store *PostgresStore) decode(context context.Context, raw []byte) Document {
	var document Document
	if err := json.Unmarshal(raw, &document); err != nil {
		store.logger.WarnContext(context, "store_document_corrupt",
			slog.String("backend", "postgres"),
			slog.String("error", err.Error()),
		)
		return Document{}
	}
	if document == nil {
		return Document{}
	}
	return document
}
