// Package recurrence turns reminder specs into concrete future trigger
// instants. It is pure: same spec, same clock, same result.
package recurrence

import (
	"fmt"
	"time"

	"github.com/tazhate/medremind/internal/domain"
)

// MinLead is the shortest allowed distance between now and a trigger.
// Anything closer rolls forward to the next occurrence: scheduler back-ends
// tend to drop or mis-fire jobs planned for a few seconds from now.
const MinLead = 60 * time.Second

// Resolve computes, for every slot of the spec, the next trigger strictly
// after now together with the repeat rule for the notification scheduler.
// The returned order follows the spec's times and weekdays as entered.
func Resolve(spec domain.ReminderSpec, now time.Time, loc *time.Location) ([]domain.Trigger, error) {
	if loc == nil {
		loc = time.Local
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	now = now.In(loc)

	var triggers []domain.Trigger
	switch spec.Frequency {
	case domain.FrequencyDaily:
		for _, tod := range spec.TimesOfDay {
			at := atTime(now, tod, loc)
			if at.Before(now.Add(MinLead)) {
				at = at.AddDate(0, 0, 1)
			}
			triggers = append(triggers, domain.Trigger{
				Key:    fmt.Sprintf("daily@%s", tod),
				Kind:   domain.TriggerDaily,
				FireAt: at,
				Time:   tod,
			})
		}

	case domain.FrequencyDaysOfWeek:
		for _, tod := range spec.TimesOfDay {
			for _, wd := range spec.DaysOfWeek {
				days := (int(wd) - int(now.Weekday()) + 7) % 7
				at := atTime(now.AddDate(0, 0, days), tod, loc)
				if at.Before(now.Add(MinLead)) {
					at = at.AddDate(0, 0, 7)
				}
				triggers = append(triggers, domain.Trigger{
					Key:     fmt.Sprintf("weekly@%d@%s", wd, tod),
					Kind:    domain.TriggerWeekly,
					FireAt:  at,
					Time:    tod,
					Weekday: wd,
				})
			}
		}

	case domain.FrequencyEveryNHours:
		// Anchored at the first configured time of day (midnight when none);
		// a past anchor advances by the interval, not by whole days.
		var anchor domain.TimeOfDay
		if len(spec.TimesOfDay) > 0 {
			anchor = spec.TimesOfDay[0]
		}
		step := time.Duration(spec.IntervalHours) * time.Hour
		at := atTime(now, anchor, loc)
		for at.Before(now.Add(MinLead)) {
			at = at.Add(step)
		}
		triggers = append(triggers, domain.Trigger{
			Key:    fmt.Sprintf("interval@%dh", spec.IntervalHours),
			Kind:   domain.TriggerInterval,
			FireAt: at,
			Time:   anchor,
			Every:  step,
		})
	}

	return triggers, nil
}

func atTime(day time.Time, tod domain.TimeOfDay, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), tod.Hour, tod.Minute, 0, 0, loc)
}
