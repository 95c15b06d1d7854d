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

	"github.com/redis/go-redis/v9"
)

// redisDocumentKey is the single key holding the entire credential document.
const redisDocumentKey = "keygate:credentials"

// RedisStore keeps the whole credential document under one key, replaced per
// write with SET — the same document-atomicity model as the other backends.
//
// Writer serialization is in-process (mutex); a multi-instance deployment
// needs the postgres backend, which locks the document row itself.
type RedisStore struct {
	client *redis.Client
	mu     sync.Mutex
	logger *slog.Logger
}

// NewRedisStore creates a redis-backed credential store.
func NewRedisStore(client *redis.Client, logger *slog.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

/*
Load returns a snapshot of the credential document.

Description: An absent key, an unreachable server, and an undecodable payload
all yield an empty document with a warn log — the degrade-to-empty policy.
*/
func (store *RedisStore) Load(context context.Context) (Document, error) {
	raw, err := store.client.Get(context, redisDocumentKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			store.logger.WarnContext(context, "store_read_failed",
				slog.String("backend", "redis"),
				slog.String("error", err.Error()),
			)
		}
		return Document{}, nil
	}

	var document Document
	if err := json.Unmarshal(raw, &document); err != nil {
		store.logger.WarnContext(context, "store_document_corrupt",
			slog.String("backend", "redis"),
			slog.String("error", err.Error()),
		)
		return Document{}, nil
	}
	if document == nil {
		document = Document{}
	}
	return document, nil
}

/*
Save replaces the credential document key.
*/
func (store *RedisStore) Save(context context.Context, document Document) error {
	raw, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	// No TTL: credentials are durable state, not cache.
	if err := store.client.Set(context, redisDocumentKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

/*
Mutate applies fn to a freshly loaded document and saves the result under the
writer mutex.
*/
func (store *RedisStore) Mutate(context context.Context, fn func(Document) error) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	document, err := store.Load(context)
	if err != nil {
		return err
	}
	if err := fn(document); err != nil {
		return err
	}
	return store.Save(context, document)
}

/*
Ping verifies server connectivity.
*/
func (store *RedisStore) Ping(context context.Context) error {
	return store.client.Ping(context).Err()
}
