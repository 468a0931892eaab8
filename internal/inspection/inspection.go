// Package inspection stores form templates and the inspections filled from
// them. Form schemas and answers are opaque JSON to this service.
package inspection

import (
	"encoding/json"
	"time"
)

type FormTemplate struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema"`
	Version     int             `json:"version"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	UpdatedBy   string          `json:"updatedBy"`
}

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
)

type Inspection struct {
	ID            string          `json:"id"`
	TemplateID    string          `json:"templateId"`
	Title         string          `json:"title"`
	Location      string          `json:"location,omitempty"`
	Status        Status          `json:"status"`
	Data          json.RawMessage `json:"data,omitempty"`
	InspectorID   string          `json:"inspectorId"`
	InspectorName string          `json:"inspectorName"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}
