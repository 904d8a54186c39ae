// Package hearing defines the hearing (audiencia) domain model: the entity,
// its closed mode and sync-status enums, validation, and the change events
// emitted when the local store mutates.
package hearing

import (
	"fmt"
	"time"
)

// Layouts for the civil date and time-of-day fields.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Mode is how a hearing is held.
type Mode string

const (
	ModeInPerson Mode = "in_person"
	ModeVirtual  Mode = "virtual"
	ModeHybrid   Mode = "hybrid"
)

// Valid reports whether m is one of the three defined modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeInPerson, ModeVirtual, ModeHybrid:
		return true
	}
	return false
}

// ParseMode converts a raw string into a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", &ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", s)}
	}
	return m, nil
}

// SyncStatus is the reconciliation state between a local hearing and its
// mirror in the external calendar.
type SyncStatus string

const (
	StatusUnsynced SyncStatus = "unsynced"
	StatusPending  SyncStatus = "pending"
	StatusSynced   SyncStatus = "synced"
	StatusFailed   SyncStatus = "failed"
	StatusConflict SyncStatus = "conflict"
)

// Valid reports whether s is a defined sync status.
func (s SyncStatus) Valid() bool {
	switch s {
	case StatusUnsynced, StatusPending, StatusSynced, StatusFailed, StatusConflict:
		return true
	}
	return false
}

// Hearing is a scheduled legal proceeding tied to a case. The case itself is
// owned by an external collaborator and referenced by id only.
type Hearing struct {
	ID            string
	CaseID        string
	Date          string // DateLayout
	Time          string // TimeLayout
	Kind          string
	Mode          Mode
	Location      string
	Notes         string
	MeetingLink   string
	SyncStatus    SyncStatus
	RemoteEventID string
	Notified      bool
	NotifiedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// StartAt combines Date and Time into an instant in the given location.
func (h Hearing) StartAt(loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, h.Date+" "+h.Time, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("hearing %s has no valid start instant: %w", h.ID, err)
	}
	return t, nil
}

// HasValidTime reports whether the time-of-day field parses.
func (h Hearing) HasValidTime() bool {
	_, err := time.Parse(TimeLayout, h.Time)
	return err == nil
}

// Draft holds the caller-editable fields of a hearing, used for both create
// and update operations.
type Draft struct {
	CaseID      string
	Date        string
	Time        string
	Kind        string
	Mode        Mode
	Location    string
	Notes       string
	MeetingLink string
}

// Validate checks the draft against the data invariants. It returns a
// *ValidationError describing the first violation found.
func (d Draft) Validate() error {
	if d.CaseID == "" {
		return &ValidationError{Field: "caseId", Reason: "must reference a case"}
	}
	if d.Kind == "" {
		return &ValidationError{Field: "kind", Reason: "must not be empty"}
	}
	if !d.Mode.Valid() {
		return &ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", string(d.Mode))}
	}
	if _, err := time.Parse(DateLayout, d.Date); err != nil {
		return &ValidationError{Field: "date", Reason: fmt.Sprintf("%q is not a valid date", d.Date)}
	}
	if _, err := time.Parse(TimeLayout, d.Time); err != nil {
		return &ValidationError{Field: "time", Reason: fmt.Sprintf("%q is not a valid time of day", d.Time)}
	}
	return nil
}

// ValidationError reports a hearing field that violates a data invariant.
// It is always surfaced synchronously and blocks the mutation that caused it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid hearing: %s: %s", e.Field, e.Reason)
}

// Op is the kind of store mutation a change event describes.
type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// Change is the notification emitted by the store after a local write has
// been committed. For deletions, Hearing is the last known snapshot and
// RemoteEventID carries the mirrored event id (if any) so subscribers can
// issue a best-effort remote removal.
type Change struct {
	HearingID     string
	Op            Op
	Hearing       Hearing
	RemoteEventID string
}
