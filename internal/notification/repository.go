package notification

import (
	"context"

	"github.com/frahmantamala/hse-inspection/internal"
	"github.com/frahmantamala/hse-inspection/internal/store"
)

type Repository interface {
	List(ctx context.Context) ([]*Schedule, error)
	Create(ctx context.Context, s *Schedule) error
	Delete(ctx context.Context, id string) (*Schedule, error)
}

// StoreRepository keeps schedules in the notificationSchedules collection.
type StoreRepository struct {
	store *store.Store
}

func NewStoreRepository(s *store.Store) *StoreRepository {
	return &StoreRepository{store: s}
}

func (r *StoreRepository) List(ctx context.Context) ([]*Schedule, error) {
	return store.Read(ctx, r.store, store.CollectionNotificationSchedules, []*Schedule{})
}

func (r *StoreRepository) Create(ctx context.Context, s *Schedule) error {
	_, err := store.Update(ctx, r.store, store.CollectionNotificationSchedules, []*Schedule{}, func(items []*Schedule) ([]*Schedule, error) {
		return append(items, s), nil
	})
	return err
}

func (r *StoreRepository) Delete(ctx context.Context, id string) (*Schedule, error) {
	var removed *Schedule
	_, err := store.Update(ctx, r.store, store.CollectionNotificationSchedules, []*Schedule{}, func(items []*Schedule) ([]*Schedule, error) {
		kept := items[:0]
		for _, it := range items {
			if it.ID == id {
				removed = it
				continue
			}
			kept = append(kept, it)
		}
		if removed == nil {
			return nil, internal.ErrResourceNotFound
		}
		return kept, nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}
