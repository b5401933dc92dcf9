package storage

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/medremind/internal/domain"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestActivePatient(t *testing.T) {
	s := newTestStorage(t)

	p, err := s.GetActivePatient()
	require.NoError(t, err)
	assert.Nil(t, p)

	anna := &domain.Patient{Name: "Анна"}
	require.NoError(t, s.CreatePatient(anna))
	boris := &domain.Patient{Name: "Борис"}
	require.NoError(t, s.CreatePatient(boris))

	require.NoError(t, s.SetActivePatient(anna.ID))
	p, err = s.GetActivePatient()
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Анна", p.Name)

	// Switching deactivates the previous profile.
	require.NoError(t, s.SetActivePatient(boris.ID))
	p, err = s.GetActivePatient()
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Борис", p.Name)
}

func TestMedicationReminderRoundTrip(t *testing.T) {
	s := newTestStorage(t)

	med := &domain.Medication{
		PatientID:    1,
		Name:         "Ибупрофен",
		Dosage:       "200",
		DoseUnit:     "мг",
		Instructions: "после еды",
		Reminder: &domain.ReminderSpec{
			Frequency:  domain.FrequencyDaysOfWeek,
			TimesOfDay: []domain.TimeOfDay{{Hour: 8, Minute: 30}},
			DaysOfWeek: []time.Weekday{time.Monday, time.Thursday},
		},
	}
	require.NoError(t, s.CreateMedication(med))
	require.NotZero(t, med.ID)

	got, err := s.GetMedication(med.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ибупрофен", got.Name)
	require.NotNil(t, got.Reminder)
	assert.Equal(t, domain.FrequencyDaysOfWeek, got.Reminder.Frequency)
	assert.Equal(t, []domain.TimeOfDay{{Hour: 8, Minute: 30}}, got.Reminder.TimesOfDay)
	assert.Equal(t, []time.Weekday{time.Monday, time.Thursday}, got.Reminder.DaysOfWeek)

	// Clearing the reminder persists as an empty slot, not stale JSON.
	got.Reminder = nil
	require.NoError(t, s.UpdateMedication(got))
	got, err = s.GetMedication(med.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Reminder)

	missing, err := s.GetMedication(9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAppointmentCalDAVLookup(t *testing.T) {
	s := newTestStorage(t)

	appt := &domain.Appointment{
		PatientID: 1,
		Title:     "Кардиолог",
		Location:  "Поликлиника №3",
		CalDAVUID: "uid-123@clinic",
		StartTime: time.Date(2025, time.April, 2, 14, 30, 0, 0, time.UTC),
	}
	require.NoError(t, s.CreateAppointment(appt))

	got, err := s.GetAppointmentByCalDAVUID("uid-123@clinic")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, appt.ID, got.ID)

	missing, err := s.GetAppointmentByCalDAVUID("uid-unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestScheduledAlarmUpsertBySlot(t *testing.T) {
	s := newTestStorage(t)

	alarm := &domain.ScheduledAlarm{
		EntityKind:     domain.KindMedication,
		EntityID:       1,
		TriggerKey:     "daily@09:00",
		NotificationID: 10,
		NextFireAt:     time.Date(2025, time.March, 11, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveScheduledAlarm(alarm))

	// Same slot, new notification id: replaced, not duplicated.
	replacement := &domain.ScheduledAlarm{
		EntityKind:     domain.KindMedication,
		EntityID:       1,
		TriggerKey:     "daily@09:00",
		NotificationID: 11,
		NextFireAt:     time.Date(2025, time.March, 12, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveScheduledAlarm(replacement))

	alarms, err := s.ListScheduledAlarms(domain.KindMedication, 1)
	require.NoError(t, err)
	require.Len(t, alarms, 1)
	assert.Equal(t, int64(11), alarms[0].NotificationID)

	// A different slot of the same entity coexists.
	require.NoError(t, s.SaveScheduledAlarm(&domain.ScheduledAlarm{
		EntityKind:     domain.KindMedication,
		EntityID:       1,
		TriggerKey:     "daily@21:00",
		NotificationID: 12,
	}))
	alarms, err = s.ListScheduledAlarms(domain.KindMedication, 1)
	require.NoError(t, err)
	assert.Len(t, alarms, 2)

	require.NoError(t, s.DeleteScheduledAlarms(domain.KindMedication, 1))
	alarms, err = s.ListScheduledAlarms(domain.KindMedication, 1)
	require.NoError(t, err)
	assert.Empty(t, alarms)
}

func TestSyncQueueOrderAndRetry(t *testing.T) {
	s := newTestStorage(t)

	first := &domain.SyncItem{Action: domain.SyncCreate, Entity: "medications", Payload: json.RawMessage(`{"id":1}`)}
	second := &domain.SyncItem{Action: domain.SyncUpdate, Entity: "medications", Payload: json.RawMessage(`{"id":1,"name":"x"}`)}
	require.NoError(t, s.EnqueueSyncItem(first))
	require.NoError(t, s.EnqueueSyncItem(second))

	items, err := s.ListSyncItems()
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, domain.SyncCreate, items[0].Action)
	assert.Equal(t, domain.SyncUpdate, items[1].Action)

	require.NoError(t, s.UpdateSyncItemRetry(first.ID, 2))
	items, err = s.ListSyncItems()
	require.NoError(t, err)
	assert.Equal(t, 2, items[0].RetryCount)

	require.NoError(t, s.DeleteSyncItem(first.ID))
	count, err := s.CountSyncItems()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
