package notification

import (
	"strings"

	"github.com/frahmantamala/hse-inspection/internal"
	"github.com/frahmantamala/hse-inspection/internal/core/common/validation"
)

const (
	maxNameLength  = 100
	maxRecipients  = 50
	maxCronLength  = 100
	maxRecipientID = 200
)

type CreateScheduleRequest struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Cron       string   `json:"cron,omitempty"`
	Recipients []string `json:"recipients"`
	// Active defaults to true when omitted.
	Active *bool `json:"active,omitempty"`
}

type SchedulesResponse struct {
	Schedules []*Schedule `json:"schedules"`
}

// Validate also fills the default expression for non-custom types.
func (r *CreateScheduleRequest) Validate() error {
	v := validation.NewValidator()
	v.Field("name", r.Name).Required().MaxLength(maxNameLength)
	v.Field("cron", r.Cron).MaxLength(maxCronLength)
	if err := v.Validate(); err != nil {
		return err
	}

	t := Type(strings.ToLower(strings.TrimSpace(r.Type)))
	if _, ok := defaultCron[t]; !ok && t != TypeCustom {
		return internal.NewValidationError("invalid schedule type", internal.ErrCodeInvalidType).
			WithValidTypes(TypeNames())
	}
	r.Type = string(t)

	r.Cron = strings.TrimSpace(r.Cron)
	if r.Cron == "" {
		if t == TypeCustom {
			return internal.NewValidationFieldError("cron", "cron is required for custom schedules", internal.ErrCodeInvalidCron)
		}
		r.Cron = defaultCron[t]
	}
	if _, err := parser.Parse(r.Cron); err != nil {
		return internal.NewValidationFieldError("cron", "invalid cron expression: "+err.Error(), internal.ErrCodeInvalidCron)
	}

	if len(r.Recipients) > maxRecipients {
		return internal.NewValidationFieldError("recipients", "too many recipients", internal.ErrCodeValidationFailed)
	}
	for _, rc := range r.Recipients {
		if strings.TrimSpace(rc) == "" || len(rc) > maxRecipientID {
			return internal.NewValidationFieldError("recipients", "recipients must be non-empty identifiers", internal.ErrCodeValidationFailed)
		}
	}
	return nil
}
