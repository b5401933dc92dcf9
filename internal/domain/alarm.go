package domain

import "time"

// EntityKind identifies which kind of record owns an alarm.
type EntityKind string

const (
	KindMedication  EntityKind = "medication"
	KindAppointment EntityKind = "appointment"
	KindTreatment   EntityKind = "treatment"
)

// ScheduledAlarm binds one reminder slot of an entity to a live notification
// identifier. At most one live identifier exists per (entity, trigger key);
// edits cancel the old identifier before creating a replacement.
type ScheduledAlarm struct {
	ID             int64
	EntityKind     EntityKind
	EntityID       int64
	TriggerKey     string
	NotificationID int64
	NextFireAt     time.Time // diagnostics only, the scheduler owns actual firing
	CreatedAt      time.Time
}

// ReminderTarget is the flattened view of an entity that alarms are scheduled
// from. It carries everything the delivery surface needs, so a fired reminder
// can be rendered without another storage round trip.
type ReminderTarget struct {
	Kind         EntityKind
	EntityID     int64
	Name         string
	Detail       string // dosage for medications, location for appointments
	Instructions string
	Patient      string
	Spec         ReminderSpec
}
