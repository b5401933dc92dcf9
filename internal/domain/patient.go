package domain

import "time"

// Patient is the profile that medications, appointments and treatments belong
// to. Reconciliation runs against the active patient; until one exists the
// task has nothing to do.
type Patient struct {
	ID        int64
	Name      string
	IsActive  bool
	CreatedAt time.Time
}
