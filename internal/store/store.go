// Package store keeps named JSON collections behind a pluggable backend and
// serializes read-modify-write cycles per collection.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

const (
	CollectionUsers                 = "users"
	CollectionCurrentUser           = "currentUser"
	CollectionAuditLogs             = "auditLogs"
	CollectionAccessLogs            = "accessLogs"
	CollectionSecurityEvents        = "securityEvents"
	CollectionNotificationSchedules = "notificationSchedules"
	CollectionFormTemplates         = "formTemplates"
	CollectionInspections           = "inspections"
)

// Collections lists every collection the service owns.
var Collections = []string{
	CollectionUsers,
	CollectionCurrentUser,
	CollectionAuditLogs,
	CollectionAccessLogs,
	CollectionSecurityEvents,
	CollectionNotificationSchedules,
	CollectionFormTemplates,
	CollectionInspections,
}

// ErrCollectionMissing is returned by backends when a collection was never saved.
var ErrCollectionMissing = errors.New("store: collection not found")

// Backend persists opaque collection payloads.
type Backend interface {
	Load(ctx context.Context, collection string) ([]byte, error)
	Save(ctx context.Context, collection string, data []byte) error
	Remove(ctx context.Context, collection string) error
	Ping(ctx context.Context) error
}

type Store struct {
	backend Backend

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(backend Backend) *Store {
	return &Store{
		backend: backend,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (s *Store) lock(collection string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[collection]
	if !ok {
		l = &sync.Mutex{}
		s.locks[collection] = l
	}
	return l
}

func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Remove drops a collection entirely.
func (s *Store) Remove(ctx context.Context, collection string) error {
	l := s.lock(collection)
	l.Lock()
	defer l.Unlock()
	if err := s.backend.Remove(ctx, collection); err != nil && !errors.Is(err, ErrCollectionMissing) {
		return fmt.Errorf("store: remove %s: %w", collection, err)
	}
	return nil
}

func load[T any](ctx context.Context, b Backend, collection string, def T) (T, error) {
	raw, err := b.Load(ctx, collection)
	if errors.Is(err, ErrCollectionMissing) || (err == nil && len(raw) == 0) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("store: load %s: %w", collection, err)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return def, fmt.Errorf("store: decode %s: %w", collection, err)
	}
	return v, nil
}

// Read returns the decoded collection, or def when it has never been saved.
// It waits for any in-flight Update on the same collection.
func Read[T any](ctx context.Context, s *Store, collection string, def T) (T, error) {
	l := s.lock(collection)
	l.Lock()
	defer l.Unlock()
	return load(ctx, s.backend, collection, def)
}

// Update runs fn on the current value and persists its result while holding the
// collection lock. Nothing is written when fn returns an error.
func Update[T any](ctx context.Context, s *Store, collection string, def T, fn func(T) (T, error)) (T, error) {
	l := s.lock(collection)
	l.Lock()
	defer l.Unlock()

	cur, err := load(ctx, s.backend, collection, def)
	if err != nil {
		return cur, err
	}
	next, err := fn(cur)
	if err != nil {
		return cur, err
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return cur, fmt.Errorf("store: encode %s: %w", collection, err)
	}
	if err := s.backend.Save(ctx, collection, raw); err != nil {
		return cur, fmt.Errorf("store: save %s: %w", collection, err)
	}
	return next, nil
}

// Write replaces a collection unconditionally.
func Write[T any](ctx context.Context, s *Store, collection string, v T) error {
	_, err := Update(ctx, s, collection, v, func(T) (T, error) { return v, nil })
	return err
}
