package domain

import "fmt"

// ValidationError reports user-supplied data that cannot be interpreted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// SchedulerError wraps a failure of the notification scheduler.
type SchedulerError struct {
	Op  string
	Err error
}

func (e *SchedulerError) Error() string {
	return fmt.Sprintf("scheduler %s: %v", e.Op, e.Err)
}

func (e *SchedulerError) Unwrap() error {
	return e.Err
}

// StorageError wraps a failure of the local database.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// SyncError wraps a failure to replay a mutation against the remote service.
type SyncError struct {
	Entity string
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s: %v", e.Entity, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}
