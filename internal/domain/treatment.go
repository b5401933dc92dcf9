package domain

import "time"

// Treatment is a recurring procedure (dressing change, physiotherapy, ...)
// with an optional reminder schedule.
type Treatment struct {
	ID           int64         `json:"id"`
	PatientID    int64         `json:"patient_id"`
	Name         string        `json:"name"`
	Instructions string        `json:"instructions"`
	Reminder     *ReminderSpec `json:"reminder,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Target builds the scheduling view of the treatment. Reminder must be set.
func (t *Treatment) Target(patient string) ReminderTarget {
	return ReminderTarget{
		Kind:         KindTreatment,
		EntityID:     t.ID,
		Name:         t.Name,
		Instructions: t.Instructions,
		Patient:      patient,
		Spec:         *t.Reminder,
	}
}
