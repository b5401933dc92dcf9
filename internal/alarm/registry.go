// Package alarm owns the mapping between reminder-bearing entities and live
// notification identifiers.
package alarm

import (
	"log"
	"time"

	"github.com/tazhate/medremind/internal/domain"
	"github.com/tazhate/medremind/internal/notify"
	"github.com/tazhate/medremind/internal/recurrence"
	"github.com/tazhate/medremind/internal/storage"
)

type Registry struct {
	storage   *storage.Storage
	scheduler notify.Scheduler
	timezone  *time.Location
	now       func() time.Time
}

func NewRegistry(s *storage.Storage, scheduler notify.Scheduler, tz *time.Location) *Registry {
	if tz == nil {
		tz = time.Local
	}
	return &Registry{
		storage:   s,
		scheduler: scheduler,
		timezone:  tz,
		now:       time.Now,
	}
}

// ScheduleAll resolves every slot of the target's spec and replaces the live
// notification for each slot: the previous identifier of a slot is always
// cancelled before a new one is created, so calling this twice with an
// unchanged spec never leaves duplicates behind. Slots that disappeared from
// the spec are cancelled and their records removed.
func (r *Registry) ScheduleAll(target domain.ReminderTarget) error {
	triggers, err := recurrence.Resolve(target.Spec, r.now(), r.timezone)
	if err != nil {
		return err
	}

	var firstErr error
	live := make(map[string]bool, len(triggers))
	for _, trig := range triggers {
		live[trig.Key] = true

		existing, err := r.storage.GetScheduledAlarm(target.Kind, target.EntityID, trig.Key)
		if err != nil {
			if firstErr == nil {
				firstErr = &domain.StorageError{Op: "get alarm", Err: err}
			}
			continue
		}
		if existing != nil {
			// A stale notification is a lesser failure than a missed
			// reminder, so a failed cancel does not block the replacement.
			if err := r.scheduler.Cancel(existing.NotificationID); err != nil {
				log.Printf("Failed to cancel notification %d for %s %d: %v",
					existing.NotificationID, target.Kind, target.EntityID, err)
			}
		}

		content := notify.Content{
			Kind:         target.Kind,
			EntityID:     target.EntityID,
			Name:         target.Name,
			Detail:       target.Detail,
			Instructions: target.Instructions,
			Patient:      target.Patient,
			ScheduledAt:  trig.FireAt,
		}
		id, err := r.scheduler.Schedule(content, trig)
		if err != nil {
			log.Printf("Failed to schedule %s for %s %d: %v", trig.Key, target.Kind, target.EntityID, err)
			if firstErr == nil {
				firstErr = &domain.SchedulerError{Op: "schedule", Err: err}
			}
			continue
		}

		rec := &domain.ScheduledAlarm{
			EntityKind:     target.Kind,
			EntityID:       target.EntityID,
			TriggerKey:     trig.Key,
			NotificationID: id,
			NextFireAt:     trig.FireAt,
		}
		if err := r.storage.SaveScheduledAlarm(rec); err != nil {
			// An untracked live notification could never be cancelled later;
			// better no notification than an orphaned one.
			if cErr := r.scheduler.Cancel(id); cErr != nil {
				log.Printf("Failed to cancel orphaned notification %d: %v", id, cErr)
			}
			if firstErr == nil {
				firstErr = &domain.StorageError{Op: "save alarm", Err: err}
			}
		}
	}

	if err := r.dropStaleSlots(target.Kind, target.EntityID, live); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// dropStaleSlots removes alarms whose trigger keys are no longer produced by
// the entity's spec, e.g. after a time of day was removed.
func (r *Registry) dropStaleSlots(kind domain.EntityKind, entityID int64, live map[string]bool) error {
	alarms, err := r.storage.ListScheduledAlarms(kind, entityID)
	if err != nil {
		return &domain.StorageError{Op: "list alarms", Err: err}
	}
	for _, a := range alarms {
		if live[a.TriggerKey] {
			continue
		}
		if err := r.scheduler.Cancel(a.NotificationID); err != nil {
			log.Printf("Failed to cancel notification %d for removed slot %s: %v", a.NotificationID, a.TriggerKey, err)
		}
		if err := r.storage.DeleteScheduledAlarm(a.ID); err != nil {
			return &domain.StorageError{Op: "delete alarm", Err: err}
		}
	}
	return nil
}

// CancelAll cancels every live notification of the entity and removes its
// records; used on entity deletion.
func (r *Registry) CancelAll(kind domain.EntityKind, entityID int64) error {
	alarms, err := r.storage.ListScheduledAlarms(kind, entityID)
	if err != nil {
		return &domain.StorageError{Op: "list alarms", Err: err}
	}
	for _, a := range alarms {
		if err := r.scheduler.Cancel(a.NotificationID); err != nil {
			log.Printf("Failed to cancel notification %d for %s %d: %v", a.NotificationID, kind, entityID, err)
		}
	}
	if err := r.storage.DeleteScheduledAlarms(kind, entityID); err != nil {
		return &domain.StorageError{Op: "delete alarms", Err: err}
	}
	return nil
}
