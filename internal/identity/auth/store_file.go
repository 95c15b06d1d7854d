// Copyright (c) 2026 Keygate. All rights reserved.
// Author: td.vu.dev@gmail.com

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the credential document in a single JSON file — the
// users.json layout the deployed applications already read and write.
//
// # Durability
//
// Saves go through write-to-temp-then-rename in the document's directory, so
// a crash mid-write leaves the previous document intact. The deployed apps
// overwrote in place; the rename upgrade changes nothing observable.
//
// # Concurrency
//
// A single RWMutex arbitrates access: Mutate holds the write lock across the
// whole load→modify→save cycle, Load takes the read lock and serves the last
// durably saved snapshot.
type FileStore struct {
	path   string
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewFileStore creates a file-backed credential store at the given path.
// The file is not created until the first save.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

/*
Load returns a snapshot of the credential document.

Description: A missing file, an unreadable file, and a corrupt file all yield
an empty document with a warn log — the degrade-to-empty availability policy.
*/
func (store *FileStore) Load(context context.Context) (Document, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.read(context), nil
}

/*
Save atomically replaces the credential document on disk.
*/
func (store *FileStore) Save(context context.Context, document Document) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.write(context, document)
}

/*
Mutate applies fn to a freshly read document and persists the result, all
under the writer lock.
*/
func (store *FileStore) Mutate(context context.Context, fn func(Document) error) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	document := store.read(context)
	if err := fn(document); err != nil {
		return err
	}
	return store.write(context, document)
}

/*
Ping verifies that the document's directory is accessible.
*/
func (store *FileStore) Ping(context context.Context) error {
	directory := filepath.Dir(store.path)
	if _, err := os.Stat(directory); err != nil {
		return fmt.Errorf("filestore: directory not accessible: %w", err)
	}
	return nil
}

// read loads and decodes the document without locking. Callers hold the lock.
func (store *FileStore) read(context context.Context) Document {
	data, err := os.ReadFile(store.path)
	if err != nil {
		// A store that has never been written to is a normal first-run state.
		if !errors.Is(err, fs.ErrNotExist) {
			store.logger.WarnContext(context, "store_read_failed",
				slog.String("path", store.path),
				slog.String("error", err.Error()),
			)
		}
		return Document{}
	}

	var document Document
	if err := json.Unmarshal(data, &document); err != nil {
		store.logger.WarnContext(context, "store_document_corrupt",
			slog.String("path", store.path),
			slog.String("error", err.Error()),
		)
		return Document{}
	}
	if document == nil {
		return Document{}
	}
	return document
}

// write encodes and atomically replaces the document without locking.
// Callers hold the write lock.
func (store *FileStore) write(context context.Context, document Document) error {
	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	directory := filepath.Dir(store.path)
	temp, err := os.CreateTemp(directory, filepath.Base(store.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	tempName := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempName)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempName)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	if err := os.Rename(tempName, store.path); err != nil {
		_ = os.Remove(tempName)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	store.logger.DebugContext(context, "store_document_saved",
		slog.String("path", store.path),
		slog.Int("users", len(document)),
	)
	return nil
}
