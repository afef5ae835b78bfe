package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrSchemaVersion is returned when a stored document cannot be brought to the current schema.
var ErrSchemaVersion = errors.New("unsupported schema version")

// Migration upgrades the raw items of a collection by exactly one schema version.
type Migration func(items json.RawMessage) (json.RawMessage, error)

type envelope struct {
	SchemaVersion int             `json:"schemaVersion"`
	Items         json.RawMessage `json:"items"`
}

// Rewriter is implemented by every Collection; the migrate command uses it to
// bring stored documents to the current schema.
type Rewriter interface {
	Key() string
	Rewrite(ctx context.Context) (int, error)
}

// Collection is an ordered list of T stored as one document under one key.
// A bare JSON array is read as schema version 1.
type Collection[T any] struct {
	store      Store
	key        string
	version    int
	migrations map[int]Migration

	mu sync.Mutex
}

// NewCollection binds a collection to key. migrations[v] upgrades version v to v+1.
func NewCollection[T any](store Store, key string, version int, migrations map[int]Migration) *Collection[T] {
	if version < 1 {
		version = 1
	}
	return &Collection[T]{store: store, key: key, version: version, migrations: migrations}
}

func (c *Collection[T]) Key() string {
	return c.key
}

func (c *Collection[T]) Version() int {
	return c.version
}

// Exists reports whether anything is stored under the collection key.
func (c *Collection[T]) Exists(ctx context.Context) (bool, error) {
	raw, err := c.store.Get(ctx, c.key)
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}

// Load reads and migrates the stored list. An absent key yields an empty list.
func (c *Collection[T]) Load(ctx context.Context) ([]T, error) {
	raw, err := c.store.Get(ctx, c.key)
	if err != nil {
		return nil, err
	}
	return c.decode(raw)
}

// Save writes items at the current schema version, replacing the stored list.
func (c *Collection[T]) Save(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	body, err := json.Marshal(items)
	if err != nil {
		return &OpError{Op: "encode", Key: c.key, Err: err}
	}
	doc, err := json.Marshal(envelope{SchemaVersion: c.version, Items: body})
	if err != nil {
		return &OpError{Op: "encode", Key: c.key, Err: err}
	}
	return c.store.Set(ctx, c.key, doc)
}

// Update runs a read-modify-write of the whole list. Writers are serialized;
// an error from fn aborts the write and is returned unchanged.
func (c *Collection[T]) Update(ctx context.Context, fn func(items []T) ([]T, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.Load(ctx)
	if err != nil {
		return err
	}
	next, err := fn(items)
	if err != nil {
		return err
	}
	return c.Save(ctx, next)
}

// Rewrite loads the list and stores it back at the current schema version.
func (c *Collection[T]) Rewrite(ctx context.Context) (int, error) {
	var n int
	err := c.Update(ctx, func(items []T) ([]T, error) {
		n = len(items)
		return items, nil
	})
	return n, err
}

func (c *Collection[T]) decode(raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	version, items := 1, json.RawMessage(trimmed)
	if trimmed[0] != '[' {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, &OpError{Op: "decode", Key: c.key, Err: err}
		}
		version, items = env.SchemaVersion, env.Items
	}

	if version > c.version {
		return nil, &OpError{Op: "decode", Key: c.key,
			Err: fmt.Errorf("%w: stored %d, newest known %d", ErrSchemaVersion, version, c.version)}
	}
	for v := version; v < c.version; v++ {
		migrate, ok := c.migrations[v]
		if !ok {
			return nil, &OpError{Op: "migrate", Key: c.key,
				Err: fmt.Errorf("%w: no migration from %d", ErrSchemaVersion, v)}
		}
		upgraded, err := migrate(items)
		if err != nil {
			return nil, &OpError{Op: "migrate", Key: c.key, Err: fmt.Errorf("from %d: %w", v, err)}
		}
		items = upgraded
	}

	var out []T
	if len(items) == 0 || bytes.Equal(items, []byte("null")) {
		return out, nil
	}
	if err := json.Unmarshal(items, &out); err != nil {
		return nil, &OpError{Op: "decode", Key: c.key, Err: err}
	}
	return out, nil
}
