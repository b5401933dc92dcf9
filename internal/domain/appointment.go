package domain

import "time"

// Appointment is a scheduled visit, either entered locally or synced from a
// CalDAV calendar (CalDAVUID set).
type Appointment struct {
	ID        int64         `json:"id"`
	PatientID int64         `json:"patient_id"`
	Title     string        `json:"title"`
	Location  string        `json:"location"`
	Physician string        `json:"physician"`
	CalDAVUID string        `json:"caldav_uid,omitempty"`
	StartTime time.Time     `json:"start_time"`
	Reminder  *ReminderSpec `json:"reminder,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Target builds the scheduling view of the appointment. Reminder must be set.
func (a *Appointment) Target(patient string) ReminderTarget {
	return ReminderTarget{
		Kind:         KindAppointment,
		EntityID:     a.ID,
		Name:         a.Title,
		Detail:       a.Location,
		Instructions: a.Physician,
		Patient:      patient,
		Spec:         *a.Reminder,
	}
}
