// Package notify abstracts the notification scheduler: something that can be
// asked to deliver a reminder on a trigger and hands back an identifier for
// later cancellation.
package notify

import (
	"fmt"
	"time"

	"github.com/tazhate/medremind/internal/domain"
)

// Content is the payload carried by a scheduled notification. It is complete
// enough for the delivery surface to render the reminder without touching
// storage again.
type Content struct {
	Kind         domain.EntityKind
	EntityID     int64
	Name         string
	Detail       string
	Instructions string
	Patient      string
	ScheduledAt  time.Time
}

// Validate rejects payloads the delivery surface could not render.
func (c Content) Validate() error {
	switch c.Kind {
	case domain.KindMedication, domain.KindAppointment, domain.KindTreatment:
	default:
		return &domain.ValidationError{Reason: fmt.Sprintf("unknown entity kind: %s", c.Kind)}
	}
	if c.EntityID <= 0 {
		return &domain.ValidationError{Reason: "notification content needs an entity id"}
	}
	if c.Name == "" {
		return &domain.ValidationError{Reason: "notification content needs a name"}
	}
	return nil
}

// Scheduler is the external notification scheduler collaborator. Identifiers
// it returns are owned by the alarm registry.
type Scheduler interface {
	Schedule(content Content, trigger domain.Trigger) (int64, error)
	Cancel(id int64) error
	ListScheduled() []int64
}
