package domain

import (
	"encoding/json"
	"time"
)

// SyncAction is the kind of mutation queued for the remote API.
type SyncAction string

const (
	SyncCreate SyncAction = "create"
	SyncUpdate SyncAction = "update"
	SyncDelete SyncAction = "delete"
)

// SyncItem is one pending mutation waiting for connectivity. Items replay in
// id order; RetryCount grows until the item succeeds or hits the ceiling.
type SyncItem struct {
	ID         int64
	Action     SyncAction
	Entity     string
	Payload    json.RawMessage
	Timestamp  time.Time
	RetryCount int
}
