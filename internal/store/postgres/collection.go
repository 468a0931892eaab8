package postgres

import (
	"context"
	"errors"
	"fmt"

	collectionDatamodel "github.com/frahmantamala/hse-inspection/internal/core/datamodel/collection"
	"github.com/frahmantamala/hse-inspection/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CollectionRepository stores each collection as one row of the collections table.
type CollectionRepository struct {
	db *gorm.DB
}

func NewCollectionRepository(db *gorm.DB) store.Backend {
	return &CollectionRepository{db: db}
}

func (r *CollectionRepository) Load(ctx context.Context, name string) ([]byte, error) {
	var doc collectionDatamodel.Document
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrCollectionMissing
		}
		return nil, err
	}
	return []byte(doc.Data), nil
}

func (r *CollectionRepository) Save(ctx context.Context, name string, data []byte) error {
	doc := collectionDatamodel.Document{Name: name, Data: string(data)}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&doc).Error
}

func (r *CollectionRepository) Remove(ctx context.Context, name string) error {
	res := r.db.WithContext(ctx).Where("name = ?", name).Delete(&collectionDatamodel.Document{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrCollectionMissing
	}
	return nil
}

func (r *CollectionRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("postgres: underlying db: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
