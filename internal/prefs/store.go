package prefs

import (
	"context"
	"encoding/json"
	"strings"
)

// Store is a visitor-scoped JSON key/value store. Each key is an
// independent unit; there is no atomicity across keys.
type Store interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
}

// Backend is the raw namespaced storage a Provider scopes per visitor.
type Backend interface {
	Load(ctx context.Context, namespace, key string) ([]byte, bool, error)
	Save(ctx context.Context, namespace, key string, value []byte) error
}

// Provider hands out visitor-scoped stores over a shared backend.
type Provider struct {
	backend Backend
}

// NewProvider wraps a backend.
func NewProvider(backend Backend) *Provider {
	if backend == nil {
		panic("prefs: backend required")
	}
	return &Provider{backend: backend}
}

// Open returns the store for one visitor. Shared setting groups resolve to
// the site scope so an operator's edits reach everybody.
func (p *Provider) Open(visitorID string) Store {
	return &scopedStore{backend: p.backend, visitor: strings.TrimSpace(visitorID)}
}

// Site returns the store holding only the shared setting groups.
func (p *Provider) Site() Store {
	return &scopedStore{backend: p.backend, visitor: SiteScope}
}

type scopedStore struct {
	backend Backend
	visitor string
}

func (s *scopedStore) namespace(key string) string {
	if IsShared(key) || s.visitor == "" {
		return SiteScope
	}
	return "visitor:" + s.visitor
}

func (s *scopedStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	raw, ok, err := s.backend.Load(ctx, s.namespace(key), key)
	if err != nil {
		return nil, false, &StorageError{Op: "get", Key: key, Err: err}
	}
	if !ok {
		return nil, false, nil
	}
	return json.RawMessage(raw), true, nil
}

func (s *scopedStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return &StorageError{Op: "set", Key: key, Err: ErrSerialization}
	}
	if err := s.backend.Save(ctx, s.namespace(key), key, value); err != nil {
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// SetJSON marshals v and writes it under key.
func SetJSON(ctx context.Context, store Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &StorageError{Op: "set", Key: key, Err: ErrSerialization}
	}
	return store.Set(ctx, key, data)
}

// GetJSON reads key into v. Missing keys report found=false; a value that
// does not decode is a StorageError so callers can fall back per key.
func GetJSON(ctx context.Context, store Store, key string, v any) (bool, error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, &StorageError{Op: "decode", Key: key, Err: err}
	}
	return true, nil
}
