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

type AppointmentService struct {
	storage  *storage.Storage
	registry *alarm.Registry
	queue    *syncqueue.Queue
}

func NewAppointmentService(s *storage.Storage, r *alarm.Registry, q *syncqueue.Queue) *AppointmentService {
	return &AppointmentService{storage: s, registry: r, queue: q}
}

func (s *AppointmentService) Create(a *domain.Appointment) error {
	a.Title = strings.TrimSpace(a.Title)
	if a.Title == "" {
		return &domain.ValidationError{Reason: "appointment title cannot be empty"}
	}
	if a.Reminder != nil {
		if err := a.Reminder.Validate(); err != nil {
			return err
		}
	}

	if err := s.storage.CreateAppointment(a); err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}

	schedErr := s.reschedule(a)
	s.enqueue(domain.SyncCreate, a)
	return schedErr
}

func (s *AppointmentService) Update(a *domain.Appointment) error {
	a.Title = strings.TrimSpace(a.Title)
	if a.Title == "" {
		return &domain.ValidationError{Reason: "appointment title cannot be empty"}
	}
	if a.Reminder != nil {
		if err := a.Reminder.Validate(); err != nil {
			return err
		}
	}

	if err := s.storage.UpdateAppointment(a); err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}

	schedErr := s.reschedule(a)
	s.enqueue(domain.SyncUpdate, a)
	return schedErr
}

func (s *AppointmentService) Delete(id int64) error {
	a, err := s.storage.GetAppointment(id)
	if err != nil {
		return fmt.Errorf("get appointment: %w", err)
	}
	if a == nil {
		return fmt.Errorf("appointment not found")
	}

	if err := s.registry.CancelAll(domain.KindAppointment, id); err != nil {
		log.Printf("Failed to cancel alarms for appointment %d: %v", id, err)
	}
	if err := s.storage.DeleteAppointment(id); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}

	s.enqueue(domain.SyncDelete, a)
	return nil
}

func (s *AppointmentService) Get(id int64) (*domain.Appointment, error) {
	return s.storage.GetAppointment(id)
}

func (s *AppointmentService) List(patientID int64) ([]*domain.Appointment, error) {
	return s.storage.ListAppointments(patientID)
}

func (s *AppointmentService) reschedule(a *domain.Appointment) error {
	if a.Reminder == nil {
		return s.registry.CancelAll(domain.KindAppointment, a.ID)
	}
	return s.registry.ScheduleAll(a.Target(s.patientName(a.PatientID)))
}

func (s *AppointmentService) patientName(patientID int64) string {
	patient, err := s.storage.GetPatient(patientID)
	if err != nil || patient == nil {
		return ""
	}
	return patient.Name
}

func (s *AppointmentService) enqueue(action domain.SyncAction, a *domain.Appointment) {
	payload, err := json.Marshal(a)
	if err != nil {
		log.Printf("Failed to marshal appointment %d: %v", a.ID, err)
		return
	}
	if err := s.queue.Enqueue(context.Background(), action, "appointments", payload); err != nil {
		log.Printf("Failed to enqueue %s appointments: %v", action, err)
	}
}
