package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/tazhate/medremind/internal/alarm"
	"github.com/tazhate/medremind/internal/clients/caldav"
	"github.com/tazhate/medremind/internal/domain"
	"github.com/tazhate/medremind/internal/storage"
)

// CalendarService pulls upcoming appointments from a CalDAV calendar into
// local storage, so clinic-side schedule changes reach the reminder engine.
type CalendarService struct {
	storage      *storage.Storage
	caldavClient *caldav.Client
	registry     *alarm.Registry
	calendarPath string
	timezone     *time.Location
}

func NewCalendarService(s *storage.Storage, client *caldav.Client, registry *alarm.Registry, tz *time.Location) *CalendarService {
	if tz == nil {
		tz = time.UTC
	}
	return &CalendarService{
		storage:      s,
		caldavClient: client,
		registry:     registry,
		timezone:     tz,
	}
}

func (s *CalendarService) IsConfigured() bool {
	return s.caldavClient != nil && s.caldavClient.IsConfigured()
}

func (s *CalendarService) SetCalendarPath(path string) {
	s.calendarPath = path
	if s.caldavClient != nil {
		s.caldavClient.SetCalendarID(path)
	}
}

// SyncResult contains sync operation results.
type SyncResult struct {
	Added   int
	Updated int
	Deleted int
	Errors  []string
}

// Sync pulls events for the next 90 days and upserts them as appointments of
// the active patient, keyed by CalDAV UID. Recurring events are stored at
// their next occurrence.
func (s *CalendarService) Sync(ctx context.Context) (*SyncResult, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("CalDAV not configured")
	}
	if s.calendarPath == "" {
		return nil, fmt.Errorf("calendar path not set")
	}

	patient, err := s.storage.GetActivePatient()
	if err != nil {
		return nil, fmt.Errorf("get active patient: %w", err)
	}
	if patient == nil {
		return nil, fmt.Errorf("no active patient")
	}

	now := time.Now().In(s.timezone)
	from := now.Truncate(24 * time.Hour)
	to := from.AddDate(0, 3, 0)

	events, err := s.caldavClient.GetEvents(ctx, s.calendarPath, from, to)
	if err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}

	local, err := s.storage.ListAppointments(patient.ID)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	localByUID := make(map[string]*domain.Appointment)
	for _, a := range local {
		if a.CalDAVUID != "" {
			localByUID[a.CalDAVUID] = a
		}
	}

	result := &SyncResult{}
	seen := make(map[string]bool)

	for _, ev := range events {
		seen[ev.UID] = true
		start := s.nextOccurrence(ev, now)

		existing, ok := localByUID[ev.UID]
		if ok {
			if existing.Title == ev.Summary && existing.Location == ev.Location && existing.StartTime.Equal(start) {
				continue
			}
			existing.Title = ev.Summary
			existing.Location = ev.Location
			existing.StartTime = start
			if err := s.storage.UpdateAppointment(existing); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("update %s: %v", ev.UID, err))
				continue
			}
			// A moved visit keeps its reminders in step with the new time.
			if existing.Reminder != nil {
				if err := s.registry.ScheduleAll(existing.Target(patient.Name)); err != nil {
					log.Printf("Failed to reschedule appointment %d: %v", existing.ID, err)
				}
			}
			result.Updated++
			continue
		}

		appt := &domain.Appointment{
			PatientID: patient.ID,
			Title:     ev.Summary,
			Location:  ev.Location,
			CalDAVUID: ev.UID,
			StartTime: start,
		}
		if err := s.storage.CreateAppointment(appt); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("create %s: %v", ev.UID, err))
			continue
		}
		result.Added++
	}

	// Visits cancelled on the calendar disappear locally too.
	for uid, appt := range localByUID {
		if seen[uid] {
			continue
		}
		if err := s.registry.CancelAll(domain.KindAppointment, appt.ID); err != nil {
			log.Printf("Failed to cancel alarms for appointment %d: %v", appt.ID, err)
		}
		if err := s.storage.DeleteAppointment(appt.ID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("delete %s: %v", uid, err))
			continue
		}
		result.Deleted++
	}

	return result, nil
}

// nextOccurrence expands the event's recurrence rule, if any, to the first
// occurrence after now.
func (s *CalendarService) nextOccurrence(ev caldav.Event, now time.Time) time.Time {
	if ev.RRule == "" {
		return ev.StartTime
	}
	r, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		log.Printf("Invalid RRULE on event %s: %v", ev.UID, err)
		return ev.StartTime
	}
	r.DTStart(ev.StartTime)
	next := r.After(now, true)
	if next.IsZero() {
		return ev.StartTime
	}
	return next
}

// Start syncs on a fixed interval until the context is cancelled.
func (s *CalendarService) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			result, err := s.Sync(ctx)
			if err != nil {
				log.Printf("Calendar sync failed: %v", err)
				continue
			}
			log.Printf("Calendar sync: %d added, %d updated, %d deleted", result.Added, result.Updated, result.Deleted)
		case <-ctx.Done():
			return
		}
	}
}
