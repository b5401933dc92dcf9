package caldav

import "time"

// Calendar is one calendar collection on the server.
type Calendar struct {
	ID          string // Calendar path/URL
	DisplayName string
	URL         string
}

// Event is a VEVENT relevant to appointment sync.
type Event struct {
	UID         string
	Summary     string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	AllDay      bool
	RRule       string // Recurrence rule, e.g. "FREQ=WEEKLY;BYDAY=MO"
}
