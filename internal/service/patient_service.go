package service

import (
	"fmt"
	"strings"

	"github.com/tazhate/medremind/internal/domain"
	"github.com/tazhate/medremind/internal/storage"
)

type PatientService struct {
	storage *storage.Storage
}

func NewPatientService(s *storage.Storage) *PatientService {
	return &PatientService{storage: s}
}

// Register creates a patient profile and makes it the active one.
func (s *PatientService) Register(name string) (*domain.Patient, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &domain.ValidationError{Reason: "patient name cannot be empty"}
	}

	patient := &domain.Patient{Name: name}
	if err := s.storage.CreatePatient(patient); err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	if err := s.storage.SetActivePatient(patient.ID); err != nil {
		return nil, fmt.Errorf("set active patient: %w", err)
	}
	patient.IsActive = true
	return patient, nil
}

// Active returns the active patient, or nil when no profile exists yet.
func (s *PatientService) Active() (*domain.Patient, error) {
	return s.storage.GetActivePatient()
}
