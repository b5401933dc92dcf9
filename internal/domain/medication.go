package domain

import "time"

// Medication is a prescribed drug with an optional reminder schedule.
type Medication struct {
	ID           int64         `json:"id"`
	PatientID    int64         `json:"patient_id"`
	Name         string        `json:"name"`
	Dosage       string        `json:"dosage"`
	DoseUnit     string        `json:"dose_unit"`
	Instructions string        `json:"instructions"`
	Reminder     *ReminderSpec `json:"reminder,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Target builds the scheduling view of the medication. Reminder must be set.
func (m *Medication) Target(patient string) ReminderTarget {
	detail := m.Dosage
	if m.DoseUnit != "" {
		detail = m.Dosage + " " + m.DoseUnit
	}
	return ReminderTarget{
		Kind:         KindMedication,
		EntityID:     m.ID,
		Name:         m.Name,
		Detail:       detail,
		Instructions: m.Instructions,
		Patient:      patient,
		Spec:         *m.Reminder,
	}
}
