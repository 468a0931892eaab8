package inspection

import (
	"encoding/json"

	"github.com/frahmantamala/hse-inspection/internal"
	"github.com/frahmantamala/hse-inspection/internal/core/common/validation"
)

const (
	maxNameLength        = 150
	maxDescriptionLength = 1000
	maxLocationLength    = 200
)

type SaveTemplateRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema"`
}

type CreateInspectionRequest struct {
	TemplateID string          `json:"templateId"`
	Title      string          `json:"title"`
	Location   string          `json:"location,omitempty"`
	Status     string          `json:"status,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

type TemplatesResponse struct {
	Templates []*FormTemplate `json:"templates"`
}

type InspectionsResponse struct {
	Inspections []*Inspection `json:"inspections"`
}

func (r SaveTemplateRequest) Validate() error {
	v := validation.NewValidator()
	v.Field("name", r.Name).Required().MaxLength(maxNameLength)
	v.Field("description", r.Description).MaxLength(maxDescriptionLength)
	if err := v.Validate(); err != nil {
		return err
	}
	if len(r.Schema) == 0 || !json.Valid(r.Schema) {
		return internal.NewValidationFieldError("schema", "schema must be a JSON document", internal.ErrCodeValidationFailed)
	}
	return nil
}

func (r CreateInspectionRequest) Validate() error {
	v := validation.NewValidator()
	v.Field("templateId", r.TemplateID).Required()
	v.Field("title", r.Title).Required().MaxLength(maxNameLength)
	v.Field("location", r.Location).MaxLength(maxLocationLength)
	v.Field("status", r.Status).OneOf([]string{string(StatusDraft), string(StatusSubmitted)}, internal.ErrCodeInvalidType)
	return v.Validate()
}
