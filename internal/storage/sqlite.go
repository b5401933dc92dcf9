package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tazhate/medremind/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS patients (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			is_active INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS medications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			patient_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			dosage TEXT DEFAULT '',
			dose_unit TEXT DEFAULT '',
			instructions TEXT DEFAULT '',
			reminder TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (patient_id) REFERENCES patients(id)
		)`,
		`CREATE TABLE IF NOT EXISTS appointments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			patient_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			location TEXT DEFAULT '',
			physician TEXT DEFAULT '',
			caldav_uid TEXT DEFAULT '',
			start_time DATETIME,
			reminder TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (patient_id) REFERENCES patients(id)
		)`,
		`CREATE TABLE IF NOT EXISTS treatments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			patient_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			instructions TEXT DEFAULT '',
			reminder TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (patient_id) REFERENCES patients(id)
		)`,
		`CREATE TABLE IF NOT EXISTS scheduled_alarms (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_kind TEXT NOT NULL,
			entity_id INTEGER NOT NULL,
			trigger_key TEXT NOT NULL,
			notification_id INTEGER NOT NULL,
			next_fire_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (entity_kind, entity_id, trigger_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scheduled_alarms_entity ON scheduled_alarms(entity_kind, entity_id)`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL,
			entity TEXT NOT NULL,
			payload TEXT DEFAULT '{}',
			retry_count INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_medications_patient ON medications(patient_id)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_patient ON appointments(patient_id)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_caldav ON appointments(caldav_uid)`,
		`CREATE INDEX IF NOT EXISTS idx_treatments_patient ON treatments(patient_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			if !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf("exec migration: %w", err)
			}
		}
	}
	return nil
}

func marshalReminder(spec *domain.ReminderSpec) string {
	if spec == nil {
		return ""
	}
	data, _ := json.Marshal(spec)
	return string(data)
}

func unmarshalReminder(raw string) *domain.ReminderSpec {
	if raw == "" {
		return nil
	}
	var spec domain.ReminderSpec
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		return nil
	}
	return &spec
}

// === Patients ===

func (s *Storage) CreatePatient(p *domain.Patient) error {
	res, err := s.db.Exec(
		`INSERT INTO patients (name, is_active) VALUES (?, ?)`,
		p.Name, p.IsActive,
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	p.ID = id
	p.CreatedAt = time.Now()
	return nil
}

func (s *Storage) GetPatient(id int64) (*domain.Patient, error) {
	p := &domain.Patient{}
	err := s.db.QueryRow(
		`SELECT id, name, is_active, created_at FROM patients WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.Name, &p.IsActive, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// GetActivePatient returns the active patient profile, or nil when none has
// been stored yet.
func (s *Storage) GetActivePatient() (*domain.Patient, error) {
	p := &domain.Patient{}
	err := s.db.QueryRow(
		`SELECT id, name, is_active, created_at FROM patients WHERE is_active = 1 ORDER BY id LIMIT 1`,
	).Scan(&p.ID, &p.Name, &p.IsActive, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (s *Storage) SetActivePatient(id int64) error {
	if _, err := s.db.Exec(`UPDATE patients SET is_active = 0`); err != nil {
		return err
	}
	_, err := s.db.Exec(`UPDATE patients SET is_active = 1 WHERE id = ?`, id)
	return err
}

// === Medications ===

func (s *Storage) CreateMedication(m *domain.Medication) error {
	res, err := s.db.Exec(
		`INSERT INTO medications (patient_id, name, dosage, dose_unit, instructions, reminder)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.PatientID, m.Name, m.Dosage, m.DoseUnit, m.Instructions, marshalReminder(m.Reminder),
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	m.ID = id
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	return nil
}

func (s *Storage) GetMedication(id int64) (*domain.Medication, error) {
	m := &domain.Medication{}
	var reminder string
	err := s.db.QueryRow(
		`SELECT id, patient_id, name, dosage, dose_unit, instructions, reminder, created_at, updated_at
		 FROM medications WHERE id = ?`,
		id,
	).Scan(&m.ID, &m.PatientID, &m.Name, &m.Dosage, &m.DoseUnit, &m.Instructions, &reminder, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.Reminder = unmarshalReminder(reminder)
	return m, nil
}

func (s *Storage) ListMedications(patientID int64) ([]*domain.Medication, error) {
	rows, err := s.db.Query(
		`SELECT id, patient_id, name, dosage, dose_unit, instructions, reminder, created_at, updated_at
		 FROM medications WHERE patient_id = ? ORDER BY id`,
		patientID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meds []*domain.Medication
	for rows.Next() {
		m := &domain.Medication{}
		var reminder string
		if err := rows.Scan(&m.ID, &m.PatientID, &m.Name, &m.Dosage, &m.DoseUnit, &m.Instructions, &reminder, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.Reminder = unmarshalReminder(reminder)
		meds = append(meds, m)
	}
	return meds, rows.Err()
}

func (s *Storage) UpdateMedication(m *domain.Medication) error {
	_, err := s.db.Exec(
		`UPDATE medications SET name = ?, dosage = ?, dose_unit = ?, instructions = ?, reminder = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		m.Name, m.Dosage, m.DoseUnit, m.Instructions, marshalReminder(m.Reminder), m.ID,
	)
	return err
}

func (s *Storage) DeleteMedication(id int64) error {
	_, err := s.db.Exec(`DELETE FROM medications WHERE id = ?`, id)
	return err
}

// === Appointments ===

func (s *Storage) CreateAppointment(a *domain.Appointment) error {
	res, err := s.db.Exec(
		`INSERT INTO appointments (patient_id, title, location, physician, caldav_uid, start_time, reminder)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.PatientID, a.Title, a.Location, a.Physician, a.CalDAVUID, a.StartTime, marshalReminder(a.Reminder),
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	a.ID = id
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	return nil
}

func (s *Storage) GetAppointment(id int64) (*domain.Appointment, error) {
	return s.scanAppointment(s.db.QueryRow(
		`SELECT id, patient_id, title, location, physician, caldav_uid, start_time, reminder, created_at, updated_at
		 FROM appointments WHERE id = ?`,
		id,
	))
}

func (s *Storage) GetAppointmentByCalDAVUID(uid string) (*domain.Appointment, error) {
	return s.scanAppointment(s.db.QueryRow(
		`SELECT id, patient_id, title, location, physician, caldav_uid, start_time, reminder, created_at, updated_at
		 FROM appointments WHERE caldav_uid = ?`,
		uid,
	))
}

func (s *Storage) scanAppointment(row *sql.Row) (*domain.Appointment, error) {
	a := &domain.Appointment{}
	var reminder string
	err := row.Scan(&a.ID, &a.PatientID, &a.Title, &a.Location, &a.Physician, &a.CalDAVUID, &a.StartTime, &reminder, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Reminder = unmarshalReminder(reminder)
	return a, nil
}

func (s *Storage) ListAppointments(patientID int64) ([]*domain.Appointment, error) {
	rows, err := s.db.Query(
		`SELECT id, patient_id, title, location, physician, caldav_uid, start_time, reminder, created_at, updated_at
		 FROM appointments WHERE patient_id = ? ORDER BY start_time, id`,
		patientID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []*domain.Appointment
	for rows.Next() {
		a := &domain.Appointment{}
		var reminder string
		if err := rows.Scan(&a.ID, &a.PatientID, &a.Title, &a.Location, &a.Physician, &a.CalDAVUID, &a.StartTime, &reminder, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.Reminder = unmarshalReminder(reminder)
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

func (s *Storage) UpdateAppointment(a *domain.Appointment) error {
	_, err := s.db.Exec(
		`UPDATE appointments SET title = ?, location = ?, physician = ?, caldav_uid = ?, start_time = ?, reminder = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		a.Title, a.Location, a.Physician, a.CalDAVUID, a.StartTime, marshalReminder(a.Reminder), a.ID,
	)
	return err
}

func (s *Storage) DeleteAppointment(id int64) error {
	_, err := s.db.Exec(`DELETE FROM appointments WHERE id = ?`, id)
	return err
}

// === Treatments ===

func (s *Storage) CreateTreatment(t *domain.Treatment) error {
	res, err := s.db.Exec(
		`INSERT INTO treatments (patient_id, name, instructions, reminder) VALUES (?, ?, ?, ?)`,
		t.PatientID, t.Name, t.Instructions, marshalReminder(t.Reminder),
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	t.ID = id
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	return nil
}

func (s *Storage) GetTreatment(id int64) (*domain.Treatment, error) {
	t := &domain.Treatment{}
	var reminder string
	err := s.db.QueryRow(
		`SELECT id, patient_id, name, instructions, reminder, created_at, updated_at
		 FROM treatments WHERE id = ?`,
		id,
	).Scan(&t.ID, &t.PatientID, &t.Name, &t.Instructions, &reminder, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.Reminder = unmarshalReminder(reminder)
	return t, nil
}

func (s *Storage) ListTreatments(patientID int64) ([]*domain.Treatment, error) {
	rows, err := s.db.Query(
		`SELECT id, patient_id, name, instructions, reminder, created_at, updated_at
		 FROM treatments WHERE patient_id = ? ORDER BY id`,
		patientID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var treatments []*domain.Treatment
	for rows.Next() {
		t := &domain.Treatment{}
		var reminder string
		if err := rows.Scan(&t.ID, &t.PatientID, &t.Name, &t.Instructions, &reminder, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		t.Reminder = unmarshalReminder(reminder)
		treatments = append(treatments, t)
	}
	return treatments, rows.Err()
}

func (s *Storage) UpdateTreatment(t *domain.Treatment) error {
	_, err := s.db.Exec(
		`UPDATE treatments SET name = ?, instructions = ?, reminder = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		t.Name, t.Instructions, marshalReminder(t.Reminder), t.ID,
	)
	return err
}

func (s *Storage) DeleteTreatment(id int64) error {
	_, err := s.db.Exec(`DELETE FROM treatments WHERE id = ?`, id)
	return err
}

// === Scheduled alarms ===

// SaveScheduledAlarm inserts or replaces the record for the alarm's
// (entity kind, entity id, trigger key) slot.
func (s *Storage) SaveScheduledAlarm(a *domain.ScheduledAlarm) error {
	res, err := s.db.Exec(
		`INSERT INTO scheduled_alarms (entity_kind, entity_id, trigger_key, notification_id, next_fire_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (entity_kind, entity_id, trigger_key)
		 DO UPDATE SET notification_id = excluded.notification_id, next_fire_at = excluded.next_fire_at`,
		a.EntityKind, a.EntityID, a.TriggerKey, a.NotificationID, a.NextFireAt,
	)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil && a.ID == 0 {
		a.ID = id
	}
	return nil
}

func (s *Storage) GetScheduledAlarm(kind domain.EntityKind, entityID int64, triggerKey string) (*domain.ScheduledAlarm, error) {
	a := &domain.ScheduledAlarm{}
	err := s.db.QueryRow(
		`SELECT id, entity_kind, entity_id, trigger_key, notification_id, next_fire_at, created_at
		 FROM scheduled_alarms WHERE entity_kind = ? AND entity_id = ? AND trigger_key = ?`,
		kind, entityID, triggerKey,
	).Scan(&a.ID, &a.EntityKind, &a.EntityID, &a.TriggerKey, &a.NotificationID, &a.NextFireAt, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (s *Storage) ListScheduledAlarms(kind domain.EntityKind, entityID int64) ([]*domain.ScheduledAlarm, error) {
	rows, err := s.db.Query(
		`SELECT id, entity_kind, entity_id, trigger_key, notification_id, next_fire_at, created_at
		 FROM scheduled_alarms WHERE entity_kind = ? AND entity_id = ? ORDER BY id`,
		kind, entityID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAlarms(rows)
}

func (s *Storage) ListAllScheduledAlarms() ([]*domain.ScheduledAlarm, error) {
	rows, err := s.db.Query(
		`SELECT id, entity_kind, entity_id, trigger_key, notification_id, next_fire_at, created_at
		 FROM scheduled_alarms ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAlarms(rows)
}

func scanAlarms(rows *sql.Rows) ([]*domain.ScheduledAlarm, error) {
	var alarms []*domain.ScheduledAlarm
	for rows.Next() {
		a := &domain.ScheduledAlarm{}
		if err := rows.Scan(&a.ID, &a.EntityKind, &a.EntityID, &a.TriggerKey, &a.NotificationID, &a.NextFireAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		alarms = append(alarms, a)
	}
	return alarms, rows.Err()
}

func (s *Storage) DeleteScheduledAlarm(id int64) error {
	_, err := s.db.Exec(`DELETE FROM scheduled_alarms WHERE id = ?`, id)
	return err
}

func (s *Storage) DeleteScheduledAlarms(kind domain.EntityKind, entityID int64) error {
	_, err := s.db.Exec(
		`DELETE FROM scheduled_alarms WHERE entity_kind = ? AND entity_id = ?`,
		kind, entityID,
	)
	return err
}

// === Sync queue ===

func (s *Storage) EnqueueSyncItem(item *domain.SyncItem) error {
	res, err := s.db.Exec(
		`INSERT INTO sync_queue (action, entity, payload) VALUES (?, ?, ?)`,
		item.Action, item.Entity, string(item.Payload),
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	item.ID = id
	item.Timestamp = time.Now()
	return nil
}

// ListSyncItems returns the whole queue in enqueue order.
func (s *Storage) ListSyncItems() ([]*domain.SyncItem, error) {
	rows, err := s.db.Query(
		`SELECT id, action, entity, payload, retry_count, created_at FROM sync_queue ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.SyncItem
	for rows.Next() {
		item := &domain.SyncItem{}
		var payload string
		if err := rows.Scan(&item.ID, &item.Action, &item.Entity, &payload, &item.RetryCount, &item.Timestamp); err != nil {
			return nil, err
		}
		item.Payload = json.RawMessage(payload)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Storage) UpdateSyncItemRetry(id int64, retryCount int) error {
	_, err := s.db.Exec(`UPDATE sync_queue SET retry_count = ? WHERE id = ?`, retryCount, id)
	return err
}

func (s *Storage) DeleteSyncItem(id int64) error {
	_, err := s.db.Exec(`DELETE FROM sync_queue WHERE id = ?`, id)
	return err
}

func (s *Storage) CountSyncItems() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sync_queue`).Scan(&count)
	return count, err
}
