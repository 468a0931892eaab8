package audit

import (
	"context"

	"github.com/frahmantamala/hse-inspection/internal/store"
)

// StoreRepository keeps the logs as capped JSON arrays, oldest first.
type StoreRepository struct {
	store *store.Store
}

func NewStoreRepository(s *store.Store) *StoreRepository {
	return &StoreRepository{store: s}
}

// capped drops the oldest surplus in one slice operation.
func capped[T any](items []T, max int) ([]T, int) {
	if max <= 0 || len(items) <= max {
		return items, 0
	}
	surplus := len(items) - max
	out := make([]T, max)
	copy(out, items[surplus:])
	return out, surplus
}

func appendCapped[T any](ctx context.Context, s *store.Store, collection string, items []T, max int) (int, error) {
	dropped := 0
	_, err := store.Update(ctx, s, collection, []T{}, func(cur []T) ([]T, error) {
		var next []T
		next, dropped = capped(append(cur, items...), max)
		return next, nil
	})
	return dropped, err
}

func trimCollection[T any](ctx context.Context, s *store.Store, collection string, max int) (int, error) {
	dropped := 0
	_, err := store.Update(ctx, s, collection, []T{}, func(cur []T) ([]T, error) {
		var next []T
		next, dropped = capped(cur, max)
		return next, nil
	})
	return dropped, err
}

func (r *StoreRepository) AppendEntries(ctx context.Context, entries []Entry, max int) (int, error) {
	return appendCapped(ctx, r.store, store.CollectionAuditLogs, entries, max)
}

func (r *StoreRepository) Entries(ctx context.Context) ([]Entry, error) {
	return store.Read(ctx, r.store, store.CollectionAuditLogs, []Entry{})
}

func (r *StoreRepository) AppendAccess(ctx context.Context, entry AccessEntry, max int) (int, error) {
	return appendCapped(ctx, r.store, store.CollectionAccessLogs, []AccessEntry{entry}, max)
}

func (r *StoreRepository) AccessEntries(ctx context.Context) ([]AccessEntry, error) {
	return store.Read(ctx, r.store, store.CollectionAccessLogs, []AccessEntry{})
}

func (r *StoreRepository) AppendSecurityEvent(ctx context.Context, event SecurityEvent, max int) (int, error) {
	return appendCapped(ctx, r.store, store.CollectionSecurityEvents, []SecurityEvent{event}, max)
}

func (r *StoreRepository) SecurityEvents(ctx context.Context) ([]SecurityEvent, error) {
	return store.Read(ctx, r.store, store.CollectionSecurityEvents, []SecurityEvent{})
}

func (r *StoreRepository) Trim(ctx context.Context, caps Caps) (TrimResult, error) {
	var (
		res TrimResult
		err error
	)
	if res.Entries, err = trimCollection[Entry](ctx, r.store, store.CollectionAuditLogs, caps.Entries); err != nil {
		return res, err
	}
	if res.AccessEntries, err = trimCollection[AccessEntry](ctx, r.store, store.CollectionAccessLogs, caps.AccessEntries); err != nil {
		return res, err
	}
	if res.SecurityEvents, err = trimCollection[SecurityEvent](ctx, r.store, store.CollectionSecurityEvents, caps.SecurityEvents); err != nil {
		return res, err
	}
	return res, nil
}
