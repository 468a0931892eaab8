// Package notification manages inspection reminder schedules. It computes when
// a schedule fires next; delivery is handled elsewhere.
package notification

import (
	"time"

	"github.com/robfig/cron/v3"
)

type Type string

const (
	TypeDaily   Type = "daily"
	TypeWeekly  Type = "weekly"
	TypeMonthly Type = "monthly"
	TypeCustom  Type = "custom"
)

var Types = []Type{TypeDaily, TypeWeekly, TypeMonthly, TypeCustom}

// defaultCron is used when a non-custom schedule omits its expression.
var defaultCron = map[Type]string{
	TypeDaily:   "0 8 * * *",
	TypeWeekly:  "0 8 * * 1",
	TypeMonthly: "0 8 1 * *",
}

func TypeNames() []string {
	out := make([]string, len(Types))
	for i, t := range Types {
		out[i] = string(t)
	}
	return out
}

type Schedule struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Type       Type       `json:"type"`
	Cron       string     `json:"cron"`
	Recipients []string   `json:"recipients"`
	Active     bool       `json:"active"`
	NextRun    *time.Time `json:"nextRun,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	CreatedBy  string     `json:"createdBy"`
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NextRun returns the first activation of expr strictly after from.
func NextRun(expr string, from time.Time) (time.Time, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(from), nil
}

// refresh recomputes NextRun. Inactive schedules have none.
func (s *Schedule) refresh(now time.Time) {
	s.NextRun = nil
	if !s.Active {
		return
	}
	if next, err := NextRun(s.Cron, now); err == nil && !next.IsZero() {
		s.NextRun = &next
	}
}
