// Package reconcile re-derives the full alarm set from stored data. Scheduler
// state is lost to restarts without the application noticing; a periodic full
// rebuild is what repairs the drift.
package reconcile

import (
	"context"
	"log"
	"time"

	"github.com/tazhate/medremind/internal/alarm"
	"github.com/tazhate/medremind/internal/domain"
	"github.com/tazhate/medremind/internal/storage"
)

// Outcome reports what a reconciliation pass did.
type Outcome string

const (
	OutcomeNoData      Outcome = "no_data"
	OutcomeRescheduled Outcome = "rescheduled"
	OutcomeFailed      Outcome = "failed"
)

type Task struct {
	storage  *storage.Storage
	registry *alarm.Registry
}

func NewTask(s *storage.Storage, r *alarm.Registry) *Task {
	return &Task{storage: s, registry: r}
}

// Run performs one full reconciliation pass. Everything is reloaded from
// storage; the task assumes nothing survives between invocations. Failed
// indicates a storage read failure only — individual scheduling failures are
// logged and skipped so one bad entity cannot block the rest.
func (t *Task) Run() (Outcome, error) {
	patient, err := t.storage.GetActivePatient()
	if err != nil {
		return OutcomeFailed, &domain.StorageError{Op: "get active patient", Err: err}
	}
	if patient == nil {
		// No profile yet is an expected steady state, not a failure.
		return OutcomeNoData, nil
	}

	targets, err := t.loadTargets(patient)
	if err != nil {
		return OutcomeFailed, err
	}

	for _, target := range targets {
		if err := t.registry.ScheduleAll(target); err != nil {
			log.Printf("Failed to reschedule %s %d: %v", target.Kind, target.EntityID, err)
		}
	}
	return OutcomeRescheduled, nil
}

func (t *Task) loadTargets(patient *domain.Patient) ([]domain.ReminderTarget, error) {
	var targets []domain.ReminderTarget

	meds, err := t.storage.ListMedications(patient.ID)
	if err != nil {
		return nil, &domain.StorageError{Op: "list medications", Err: err}
	}
	for _, m := range meds {
		if m.Reminder != nil {
			targets = append(targets, m.Target(patient.Name))
		}
	}

	appts, err := t.storage.ListAppointments(patient.ID)
	if err != nil {
		return nil, &domain.StorageError{Op: "list appointments", Err: err}
	}
	for _, a := range appts {
		if a.Reminder != nil {
			targets = append(targets, a.Target(patient.Name))
		}
	}

	treatments, err := t.storage.ListTreatments(patient.ID)
	if err != nil {
		return nil, &domain.StorageError{Op: "list treatments", Err: err}
	}
	for _, tr := range treatments {
		if tr.Reminder != nil {
			targets = append(targets, tr.Target(patient.Name))
		}
	}

	return targets, nil
}

// Start runs the task on a fixed interval until the context is cancelled.
func (t *Task) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			outcome, err := t.Run()
			if err != nil {
				log.Printf("Reconciliation failed: %v", err)
				continue
			}
			log.Printf("Reconciliation finished: %s", outcome)
		case <-ctx.Done():
			return
		}
	}
}
