package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/medremind/internal/alarm"
	"github.com/tazhate/medremind/internal/domain"
	"github.com/tazhate/medremind/internal/notify"
	"github.com/tazhate/medremind/internal/storage"
	"github.com/tazhate/medremind/internal/syncqueue"
)

type fakeScheduler struct {
	nextID int64
	live   map[int64]notify.Content
}

func (f *fakeScheduler) Schedule(content notify.Content, trigger domain.Trigger) (int64, error) {
	if f.live == nil {
		f.live = make(map[int64]notify.Content)
	}
	f.nextID++
	f.live[f.nextID] = content
	return f.nextID, nil
}

func (f *fakeScheduler) Cancel(id int64) error {
	delete(f.live, id)
	return nil
}

func (f *fakeScheduler) ListScheduled() []int64 {
	ids := make([]int64, 0, len(f.live))
	for id := range f.live {
		ids = append(ids, id)
	}
	return ids
}

type fakeAPI struct {
	calls []string
}

func (f *fakeAPI) Do(ctx context.Context, action domain.SyncAction, entity string, payload json.RawMessage) error {
	f.calls = append(f.calls, fmt.Sprintf("%s %s", action, entity))
	return nil
}

type fixture struct {
	store     *storage.Storage
	scheduler *fakeScheduler
	api       *fakeAPI
	queue     *syncqueue.Queue
	meds      *MedicationService
	patients  *PatientService
	online    bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		store:     store,
		scheduler: &fakeScheduler{},
		api:       &fakeAPI{},
		online:    true,
	}
	registry := alarm.NewRegistry(store, f.scheduler, time.UTC)
	f.queue = syncqueue.New(store, f.api)
	f.queue.SetOnline(func() bool { return f.online })
	f.meds = NewMedicationService(store, registry, f.queue)
	f.patients = NewPatientService(store)
	return f
}

func (f *fixture) registerPatient(t *testing.T) *domain.Patient {
	t.Helper()
	patient, err := f.patients.Register("Анна")
	require.NoError(t, err)
	return patient
}

func dailyReminder(hours ...int) *domain.ReminderSpec {
	spec := &domain.ReminderSpec{Frequency: domain.FrequencyDaily}
	for _, h := range hours {
		spec.TimesOfDay = append(spec.TimesOfDay, domain.TimeOfDay{Hour: h})
	}
	return spec
}

func TestCreateSchedulesAndSyncs(t *testing.T) {
	f := newFixture(t)
	patient := f.registerPatient(t)

	med := &domain.Medication{
		PatientID: patient.ID,
		Name:      "Ибупрофен",
		Dosage:    "200",
		DoseUnit:  "мг",
		Reminder:  dailyReminder(9, 21),
	}
	require.NoError(t, f.meds.Create(med))
	require.NotZero(t, med.ID)

	assert.Len(t, f.scheduler.ListScheduled(), 2)
	assert.Equal(t, []string{"create medications"}, f.api.calls)
	for _, content := range f.scheduler.live {
		assert.Equal(t, "Ибупрофен", content.Name)
		assert.Equal(t, "200 мг", content.Detail)
		assert.Equal(t, "Анна", content.Patient)
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	patient := f.registerPatient(t)

	var verr *domain.ValidationError
	err := f.meds.Create(&domain.Medication{PatientID: patient.ID, Name: "   "})
	assert.ErrorAs(t, err, &verr)

	err = f.meds.Create(&domain.Medication{
		PatientID: patient.ID,
		Name:      "Ибупрофен",
		Reminder:  &domain.ReminderSpec{Frequency: domain.FrequencyEveryNHours, IntervalHours: 99},
	})
	assert.ErrorAs(t, err, &verr)

	assert.Empty(t, f.scheduler.ListScheduled())
	assert.Empty(t, f.api.calls)
}

func TestUpdateReplacesSchedule(t *testing.T) {
	f := newFixture(t)
	patient := f.registerPatient(t)

	med := &domain.Medication{PatientID: patient.ID, Name: "Ибупрофен", Reminder: dailyReminder(9, 21)}
	require.NoError(t, f.meds.Create(med))
	require.Len(t, f.scheduler.ListScheduled(), 2)

	med.Reminder = dailyReminder(12)
	require.NoError(t, f.meds.Update(med))
	assert.Len(t, f.scheduler.ListScheduled(), 1)

	// Dropping the reminder cancels everything.
	med.Reminder = nil
	require.NoError(t, f.meds.Update(med))
	assert.Empty(t, f.scheduler.ListScheduled())
}

func TestDeleteCancelsAlarmsAndSyncs(t *testing.T) {
	f := newFixture(t)
	patient := f.registerPatient(t)

	med := &domain.Medication{PatientID: patient.ID, Name: "Ибупрофен", Reminder: dailyReminder(9)}
	require.NoError(t, f.meds.Create(med))
	require.NoError(t, f.meds.Delete(med.ID))

	assert.Empty(t, f.scheduler.ListScheduled())
	got, err := f.meds.Get(med.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, []string{"create medications", "delete medications"}, f.api.calls)

	alarms, err := f.store.ListScheduledAlarms(domain.KindMedication, med.ID)
	require.NoError(t, err)
	assert.Empty(t, alarms)
}

func TestOfflineMutationsReplayInOrderAfterReconnect(t *testing.T) {
	f := newFixture(t)
	patient := f.registerPatient(t)
	f.online = false

	med := &domain.Medication{PatientID: patient.ID, Name: "Ибупрофен", Reminder: dailyReminder(9)}
	require.NoError(t, f.meds.Create(med))
	med.Dosage = "400"
	require.NoError(t, f.meds.Update(med))

	// Reminders fire locally even while the backend is unreachable.
	assert.Len(t, f.scheduler.ListScheduled(), 1)
	assert.Empty(t, f.api.calls)

	f.online = true
	require.NoError(t, f.queue.Drain(context.Background()))

	assert.Equal(t, []string{"create medications", "update medications"}, f.api.calls)
	count, err := f.store.CountSyncItems()
	require.NoError(t, err)
	assert.Zero(t, count)
}
