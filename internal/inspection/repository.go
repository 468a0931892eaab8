package inspection

import (
	"context"

	"github.com/frahmantamala/hse-inspection/internal"
	"github.com/frahmantamala/hse-inspection/internal/store"
)

type Repository interface {
	Templates(ctx context.Context) ([]*FormTemplate, error)
	GetTemplate(ctx context.Context, id string) (*FormTemplate, error)
	// SaveTemplate applies fn to the stored template, or to nil when absent,
	// and persists the result.
	SaveTemplate(ctx context.Context, id string, fn func(existing *FormTemplate) (*FormTemplate, error)) (*FormTemplate, error)
	Inspections(ctx context.Context) ([]*Inspection, error)
	CreateInspection(ctx context.Context, in *Inspection) error
}

// StoreRepository keeps templates and inspections in their own collections.
type StoreRepository struct {
	store *store.Store
}

func NewStoreRepository(s *store.Store) *StoreRepository {
	return &StoreRepository{store: s}
}

func (r *StoreRepository) Templates(ctx context.Context) ([]*FormTemplate, error) {
	return store.Read(ctx, r.store, store.CollectionFormTemplates, []*FormTemplate{})
}

func (r *StoreRepository) GetTemplate(ctx context.Context, id string) (*FormTemplate, error) {
	items, err := r.Templates(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range items {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, internal.ErrResourceNotFound
}

func (r *StoreRepository) SaveTemplate(ctx context.Context, id string, fn func(*FormTemplate) (*FormTemplate, error)) (*FormTemplate, error) {
	var saved *FormTemplate
	_, err := store.Update(ctx, r.store, store.CollectionFormTemplates, []*FormTemplate{}, func(items []*FormTemplate) ([]*FormTemplate, error) {
		idx := -1
		for i, t := range items {
			if t.ID == id {
				idx = i
				break
			}
		}
		var existing *FormTemplate
		if idx >= 0 {
			existing = items[idx]
		}
		next, err := fn(existing)
		if err != nil {
			return nil, err
		}
		if idx >= 0 {
			items[idx] = next
		} else {
			items = append(items, next)
		}
		saved = next
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (r *StoreRepository) Inspections(ctx context.Context) ([]*Inspection, error) {
	return store.Read(ctx, r.store, store.CollectionInspections, []*Inspection{})
}

func (r *StoreRepository) CreateInspection(ctx context.Context, in *Inspection) error {
	_, err := store.Update(ctx, r.store, store.CollectionInspections, []*Inspection{}, func(items []*Inspection) ([]*Inspection, error) {
		return append(items, in), nil
	})
	return err
}
