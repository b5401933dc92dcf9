package notify

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tazhate/medremind/internal/domain"
)

type MessageSender interface {
	SendMessage(chatID int64, text string) error
}

// CronScheduler delivers reminders through a cron runner. Cron entry ids
// double as the notification identifiers handed back to callers.
type CronScheduler struct {
	cron   *cron.Cron
	sender MessageSender
	chatID int64
	mu     sync.Mutex
}

func NewCronScheduler(loc *time.Location, sender MessageSender, chatID int64) *CronScheduler {
	if loc == nil {
		loc = time.Local
	}
	return &CronScheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		sender: sender,
		chatID: chatID,
	}
}

func (s *CronScheduler) Start() {
	s.cron.Start()
	log.Println("Notification scheduler started")
}

func (s *CronScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Notification scheduler stopped")
}

func (s *CronScheduler) Schedule(content Content, trigger domain.Trigger) (int64, error) {
	if err := content.Validate(); err != nil {
		return 0, err
	}
	sched, err := scheduleFor(trigger)
	if err != nil {
		return 0, err
	}

	text := FormatContent(content)
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.cron.Schedule(sched, cron.FuncJob(func() {
		if err := s.sender.SendMessage(s.chatID, text); err != nil {
			log.Printf("Error delivering reminder for %s %d: %v", content.Kind, content.EntityID, err)
		}
	}))
	return int64(id), nil
}

func (s *CronScheduler) Cancel(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cron.Remove(cron.EntryID(id))
	return nil
}

func (s *CronScheduler) ListScheduled() []int64 {
	entries := s.cron.Entries()
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, int64(e.ID))
	}
	return ids
}

func scheduleFor(trigger domain.Trigger) (cron.Schedule, error) {
	switch trigger.Kind {
	case domain.TriggerOnce:
		return &anchoredSchedule{first: trigger.FireAt}, nil
	case domain.TriggerDaily:
		return &anchoredSchedule{first: trigger.FireAt, period: 24 * time.Hour}, nil
	case domain.TriggerWeekly:
		return &anchoredSchedule{first: trigger.FireAt, period: 7 * 24 * time.Hour}, nil
	case domain.TriggerInterval:
		if trigger.Every <= 0 {
			return nil, fmt.Errorf("interval trigger without a period")
		}
		return &anchoredSchedule{first: trigger.FireAt, period: trigger.Every}, nil
	default:
		return nil, fmt.Errorf("unknown trigger kind: %s", trigger.Kind)
	}
}

// anchoredSchedule fires first at a fixed instant and then every period after
// it. A zero period makes it one-shot.
type anchoredSchedule struct {
	first  time.Time
	period time.Duration
}

func (a *anchoredSchedule) Next(t time.Time) time.Time {
	if t.Before(a.first) {
		return a.first
	}
	if a.period <= 0 {
		return time.Time{}
	}
	n := t.Sub(a.first)/a.period + 1
	return a.first.Add(n * a.period)
}

// FormatContent renders the reminder text delivered to the chat.
func FormatContent(c Content) string {
	var sb strings.Builder
	switch c.Kind {
	case domain.KindMedication:
		sb.WriteString("💊 <b>Время принять лекарство</b>\n\n")
	case domain.KindAppointment:
		sb.WriteString("🏥 <b>Приём у врача</b>\n\n")
	case domain.KindTreatment:
		sb.WriteString("🩺 <b>Процедура</b>\n\n")
	}
	sb.WriteString(c.Name)
	if c.Detail != "" {
		sb.WriteString(" — " + c.Detail)
	}
	if c.Instructions != "" {
		sb.WriteString("\n" + c.Instructions)
	}
	if c.Patient != "" {
		sb.WriteString("\n\nПациент: " + c.Patient)
	}
	sb.WriteString(fmt.Sprintf("\n⏰ %s", c.ScheduledAt.Format("15:04")))
	return sb.String()
}
