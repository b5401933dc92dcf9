package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FrequencyType defines how often a reminder fires.
type FrequencyType string

const (
	FrequencyDaily       FrequencyType = "daily"
	FrequencyDaysOfWeek  FrequencyType = "days_of_week"
	FrequencyEveryNHours FrequencyType = "every_n_hours"
)

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time format: %s", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid hour: %s", parts[0])
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid minute: %s", parts[1])
	}
	tod := TimeOfDay{Hour: hour, Minute: minute}
	if !tod.valid() {
		return TimeOfDay{}, fmt.Errorf("time out of range: %s", s)
	}
	return tod, nil
}

func (t TimeOfDay) valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

// ReminderSpec describes the recurrence of a reminder attached to a
// medication, appointment or treatment. Only the fields relevant to the
// frequency type are interpreted; the rest are kept as entered.
type ReminderSpec struct {
	Frequency     FrequencyType  `json:"frequency"`
	TimesOfDay    []TimeOfDay    `json:"times_of_day,omitempty"`
	DaysOfWeek    []time.Weekday `json:"days_of_week,omitempty"` // 0 = Sunday
	IntervalHours int            `json:"interval_hours,omitempty"`
}

// Validate checks that the fields relevant to the frequency type are present
// and in range.
func (s *ReminderSpec) Validate() error {
	switch s.Frequency {
	case FrequencyDaily:
		if len(s.TimesOfDay) == 0 {
			return &ValidationError{Reason: "daily reminder needs at least one time of day"}
		}
	case FrequencyDaysOfWeek:
		if len(s.TimesOfDay) == 0 {
			return &ValidationError{Reason: "weekday reminder needs at least one time of day"}
		}
		if len(s.DaysOfWeek) == 0 {
			return &ValidationError{Reason: "weekday reminder needs at least one weekday"}
		}
		for _, d := range s.DaysOfWeek {
			if d < time.Sunday || d > time.Saturday {
				return &ValidationError{Reason: fmt.Sprintf("weekday out of range: %d", d)}
			}
		}
	case FrequencyEveryNHours:
		if s.IntervalHours < 1 || s.IntervalHours > 24 {
			return &ValidationError{Reason: fmt.Sprintf("interval must be between 1 and 24 hours, got %d", s.IntervalHours)}
		}
	default:
		return &ValidationError{Reason: fmt.Sprintf("unknown frequency type: %s", s.Frequency)}
	}
	for _, t := range s.TimesOfDay {
		if !t.valid() {
			return &ValidationError{Reason: fmt.Sprintf("time out of range: %s", t)}
		}
	}
	return nil
}

// TriggerKind identifies the repetition shape handed to the notification
// scheduler.
type TriggerKind string

const (
	TriggerOnce     TriggerKind = "once"
	TriggerDaily    TriggerKind = "daily"
	TriggerWeekly   TriggerKind = "weekly"
	TriggerInterval TriggerKind = "interval"
)

// Trigger is one resolved reminder slot: a stable key, the first fire instant
// and the repeat rule for steady-state delivery.
type Trigger struct {
	Key     string
	Kind    TriggerKind
	FireAt  time.Time
	Time    TimeOfDay     // daily / weekly
	Weekday time.Weekday  // weekly only
	Every   time.Duration // interval only
}
