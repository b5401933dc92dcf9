package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/tazhate/medremind/internal/alarm"
	"github.com/tazhate/medremind/internal/domain"
	"github.com/tazhate/medremind/internal/storage"
	"github.com/tazhate/medremind/internal/syncqueue"
)

type TreatmentService struct {
	storage  *storage.Storage
	registry *alarm.Registry
	queue    *syncqueue.Queue
}

func NewTreatmentService(s *storage.Storage, r *alarm.Registry, q *syncqueue.Queue) *TreatmentService {
	return &TreatmentService{storage: s, registry: r, queue: q}
}

func (s *TreatmentService) Create(t *domain.Treatment) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return &domain.ValidationError{Reason: "treatment name cannot be empty"}
	}
	if t.Reminder != nil {
		if err := t.Reminder.Validate(); err != nil {
			return err
		}
	}

	if err := s.storage.CreateTreatment(t); err != nil {
		return fmt.Errorf("create treatment: %w", err)
	}

	schedErr := s.reschedule(t)
	s.enqueue(domain.SyncCreate, t)
	return schedErr
}

func (s *TreatmentService) Update(t *domain.Treatment) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return &domain.ValidationError{Reason: "treatment name cannot be empty"}
	}
	if t.Reminder != nil {
		if err := t.Reminder.Validate(); err != nil {
			return err
		}
	}

	if err := s.storage.UpdateTreatment(t); err != nil {
		return fmt.Errorf("update treatment: %w", err)
	}

	schedErr := s.reschedule(t)
	s.enqueue(domain.SyncUpdate, t)
	return schedErr
}

func (s *TreatmentService) Delete(id int64) error {
	t, err := s.storage.GetTreatment(id)
	if err != nil {
		return fmt.Errorf("get treatment: %w", err)
	}
	if t == nil {
		return fmt.Errorf("treatment not found")
	}

	if err := s.registry.CancelAll(domain.KindTreatment, id); err != nil {
		log.Printf("Failed to cancel alarms for treatment %d: %v", id, err)
	}
	if err := s.storage.DeleteTreatment(id); err != nil {
		return fmt.Errorf("delete treatment: %w", err)
	}

	s.enqueue(domain.SyncDelete, t)
	return nil
}

func (s *TreatmentService) Get(id int64) (*domain.Treatment, error) {
	return s.storage.GetTreatment(id)
}

func (s *TreatmentService) List(patientID int64) ([]*domain.Treatment, error) {
	return s.storage.ListTreatments(patientID)
}

func (s *TreatmentService) reschedule(t *domain.Treatment) error {
	if t.Reminder == nil {
		return s.registry.CancelAll(domain.KindTreatment, t.ID)
	}
	return s.registry.ScheduleAll(t.Target(s.patientName(t.PatientID)))
}

func (s *TreatmentService) patientName(patientID int64) string {
	patient, err := s.storage.GetPatient(patientID)
	if err != nil || patient == nil {
		return ""
	}
	return patient.Name
}

func (s *TreatmentService) enqueue(action domain.SyncAction, t *domain.Treatment) {
	payload, err := json.Marshal(t)
	if err != nil {
		log.Printf("Failed to marshal treatment %d: %v", t.ID, err)
		return
	}
	if err := s.queue.Enqueue(context.Background(), action, "treatments", payload); err != nil {
		log.Printf("Failed to enqueue %s treatments: %v", action, err)
	}
}
