package user

import (
	"context"
	"fmt"

	"github.com/frahmantamala/hse-inspection/internal"
	userDatamodel "github.com/frahmantamala/hse-inspection/internal/core/datamodel/user"
	"github.com/frahmantamala/hse-inspection/internal/store"
)

type Repository interface {
	List(ctx context.Context) ([]*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	// Create persists u after check accepts the current users.
	Create(ctx context.Context, u *User, check func(existing []*User) error) error
	// Update applies fn to the stored user. others holds every other user as
	// stored. Nothing is written when fn fails.
	Update(ctx context.Context, id string, fn func(u *User, others []*User) error) (*User, error)
	// Clear removes every user.
	Clear(ctx context.Context) error
}

// StoreRepository keeps users in the users collection.
type StoreRepository struct {
	store *store.Store
}

func NewStoreRepository(s *store.Store) *StoreRepository {
	return &StoreRepository{store: s}
}

func fromRecords(records []userDatamodel.User) []*User {
	out := make([]*User, len(records))
	for i := range records {
		out[i] = FromDataModel(&records[i])
	}
	return out
}

func (r *StoreRepository) List(ctx context.Context) ([]*User, error) {
	records, err := store.Read(ctx, r.store, store.CollectionUsers, []userDatamodel.User{})
	if err != nil {
		return nil, err
	}
	return fromRecords(records), nil
}

func (r *StoreRepository) GetByID(ctx context.Context, id string) (*User, error) {
	users, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, internal.ErrUserNotFound
}

func (r *StoreRepository) Create(ctx context.Context, u *User, check func([]*User) error) error {
	_, err := store.Update(ctx, r.store, store.CollectionUsers, []userDatamodel.User{}, func(records []userDatamodel.User) ([]userDatamodel.User, error) {
		existing := fromRecords(records)
		for _, e := range existing {
			if e.ID == u.ID {
				return nil, fmt.Errorf("user %s already exists", u.ID)
			}
		}
		if check != nil {
			if err := check(existing); err != nil {
				return nil, err
			}
		}
		return append(records, *ToDataModel(u)), nil
	})
	return err
}

func (r *StoreRepository) Update(ctx context.Context, id string, fn func(*User, []*User) error) (*User, error) {
	var updated *User
	_, err := store.Update(ctx, r.store, store.CollectionUsers, []userDatamodel.User{}, func(records []userDatamodel.User) ([]userDatamodel.User, error) {
		users := fromRecords(records)
		idx := -1
		others := make([]*User, 0, len(users))
		for i, u := range users {
			if u.ID == id {
				idx = i
				continue
			}
			others = append(others, u)
		}
		if idx < 0 {
			return nil, internal.ErrUserNotFound
		}
		target := users[idx]
		if err := fn(target, others); err != nil {
			return nil, err
		}
		records[idx] = *ToDataModel(target)
		updated = target
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *StoreRepository) Clear(ctx context.Context) error {
	return store.Write(ctx, r.store, store.CollectionUsers, []userDatamodel.User{})
}
