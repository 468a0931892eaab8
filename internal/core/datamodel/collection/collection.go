package collection

import "time"

// Document is one named collection stored as a single JSON payload.
type Document struct {
	Name      string    `gorm:"column:name;primaryKey"`
	Data      string    `gorm:"column:data;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Document) TableName() string {
	return "collections"
}
