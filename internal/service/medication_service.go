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

type MedicationService struct {
	storage  *storage.Storage
	registry *alarm.Registry
	queue    *syncqueue.Queue
}

func NewMedicationService(s *storage.Storage, r *alarm.Registry, q *syncqueue.Queue) *MedicationService {
	return &MedicationService{storage: s, registry: r, queue: q}
}

// Create persists the medication, schedules its reminders and queues the
// mutation for the remote service. The local write is authoritative: a
// scheduling failure is returned but does not roll it back.
func (s *MedicationService) Create(m *domain.Medication) error {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return &domain.ValidationError{Reason: "medication name cannot be empty"}
	}
	if m.Reminder != nil {
		if err := m.Reminder.Validate(); err != nil {
			return err
		}
	}

	if err := s.storage.CreateMedication(m); err != nil {
		return fmt.Errorf("create medication: %w", err)
	}

	schedErr := s.reschedule(m)
	s.enqueue(domain.SyncCreate, m)
	return schedErr
}

func (s *MedicationService) Update(m *domain.Medication) error {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return &domain.ValidationError{Reason: "medication name cannot be empty"}
	}
	if m.Reminder != nil {
		if err := m.Reminder.Validate(); err != nil {
			return err
		}
	}

	if err := s.storage.UpdateMedication(m); err != nil {
		return fmt.Errorf("update medication: %w", err)
	}

	schedErr := s.reschedule(m)
	s.enqueue(domain.SyncUpdate, m)
	return schedErr
}

func (s *MedicationService) Delete(id int64) error {
	m, err := s.storage.GetMedication(id)
	if err != nil {
		return fmt.Errorf("get medication: %w", err)
	}
	if m == nil {
		return fmt.Errorf("medication not found")
	}

	if err := s.registry.CancelAll(domain.KindMedication, id); err != nil {
		log.Printf("Failed to cancel alarms for medication %d: %v", id, err)
	}
	if err := s.storage.DeleteMedication(id); err != nil {
		return fmt.Errorf("delete medication: %w", err)
	}

	s.enqueue(domain.SyncDelete, m)
	return nil
}

func (s *MedicationService) Get(id int64) (*domain.Medication, error) {
	return s.storage.GetMedication(id)
}

func (s *MedicationService) List(patientID int64) ([]*domain.Medication, error) {
	return s.storage.ListMedications(patientID)
}

func (s *MedicationService) reschedule(m *domain.Medication) error {
	if m.Reminder == nil {
		return s.registry.CancelAll(domain.KindMedication, m.ID)
	}
	return s.registry.ScheduleAll(m.Target(s.patientName(m.PatientID)))
}

func (s *MedicationService) patientName(patientID int64) string {
	patient, err := s.storage.GetPatient(patientID)
	if err != nil || patient == nil {
		return ""
	}
	return patient.Name
}

// enqueue hands the mutation to the sync queue. Remote sync is best effort
// here: a queueing failure never fails the local operation.
func (s *MedicationService) enqueue(action domain.SyncAction, m *domain.Medication) {
	payload, err := json.Marshal(m)
	if err != nil {
		log.Printf("Failed to marshal medication %d: %v", m.ID, err)
		return
	}
	if err := s.queue.Enqueue(context.Background(), action, "medications", payload); err != nil {
		log.Printf("Failed to enqueue %s medications: %v", action, err)
	}
}
