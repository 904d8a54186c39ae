package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adv-tools/audsync/internal/hearing"
)

// ErrNotFound is returned by reads and updates that reference an unknown
// hearing id. Delete never returns it: deleting a missing id is a no-op.
var ErrNotFound = errors.New("hearing not found")

// HearingStore is the single writer of hearing state. It validates data
// invariants before every write and notifies subscribers only after the
// write has been committed.
type HearingStore struct {
	db  *sql.DB
	now func() time.Time

	mu   sync.Mutex
	subs []func(hearing.Change)
}

// NewHearingStore creates a store backed by db.
func NewHearingStore(db *DB) *HearingStore {
	return &HearingStore{db: db.sql, now: time.Now}
}

// Subscribe registers fn to receive change notifications. Notifications are
// delivered synchronously, after the local write is durable.
func (s *HearingStore) Subscribe(fn func(hearing.Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *HearingStore) emit(c hearing.Change) {
	s.mu.Lock()
	subs := make([]func(hearing.Change), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(c)
	}
}

// Create validates the draft and inserts a new hearing with a fresh id and
// SyncStatus unsynced. On invariant violation it performs no write.
func (s *HearingStore) Create(ctx context.Context, d hearing.Draft) (hearing.Hearing, error) {
	if err := d.Validate(); err != nil {
		return hearing.Hearing{}, err
	}

	now := s.now().UTC()
	h := hearing.Hearing{
		ID:          uuid.NewString(),
		CaseID:      d.CaseID,
		Date:        d.Date,
		Time:        d.Time,
		Kind:        d.Kind,
		Mode:        d.Mode,
		Location:    d.Location,
		Notes:       d.Notes,
		MeetingLink: d.MeetingLink,
		SyncStatus:  hearing.StatusUnsynced,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hearings (id, case_id, date, time, kind, mode, location, notes, meeting_link,
			sync_status, remote_event_id, notified, notified_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', 0, NULL, ?, ?)`,
		h.ID, h.CaseID, h.Date, h.Time, h.Kind, string(h.Mode), h.Location, h.Notes, h.MeetingLink,
		string(h.SyncStatus), h.CreatedAt.Format(time.RFC3339), h.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return hearing.Hearing{}, fmt.Errorf("failed to insert hearing: %w", err)
	}

	s.emit(hearing.Change{HearingID: h.ID, Op: hearing.OpCreated, Hearing: h})
	return h, nil
}

// Update validates the patched hearing and rewrites its editable fields.
// A synced hearing moves back to pending; failed and conflict hearings keep
// their status (explicit retry required); unsynced and pending are unchanged.
// The read-modify-write runs in one transaction so concurrent updaters
// cannot interleave and lose a status transition.
func (s *HearingStore) Update(ctx context.Context, id string, d hearing.Draft) (hearing.Hearing, error) {
	if err := d.Validate(); err != nil {
		return hearing.Hearing{}, err
	}

	var h hearing.Hearing
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		h, err = getHearing(ctx, tx, id)
		if err != nil {
			return err
		}

		h.CaseID = d.CaseID
		h.Date = d.Date
		h.Time = d.Time
		h.Kind = d.Kind
		h.Mode = d.Mode
		h.Location = d.Location
		h.Notes = d.Notes
		h.MeetingLink = d.MeetingLink
		h.UpdatedAt = s.now().UTC()
		if h.SyncStatus == hearing.StatusSynced {
			h.SyncStatus = hearing.StatusPending
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE hearings
			SET case_id = ?, date = ?, time = ?, kind = ?, mode = ?, location = ?, notes = ?,
				meeting_link = ?, sync_status = ?, updated_at = ?
			WHERE id = ?`,
			h.CaseID, h.Date, h.Time, h.Kind, string(h.Mode), h.Location, h.Notes,
			h.MeetingLink, string(h.SyncStatus), h.UpdatedAt.Format(time.RFC3339), id,
		)
		if err != nil {
			return fmt.Errorf("failed to update hearing %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return hearing.Hearing{}, err
	}

	s.emit(hearing.Change{HearingID: id, Op: hearing.OpUpdated, Hearing: h})
	return h, nil
}

// Delete removes the hearing immediately. It is idempotent: deleting an
// unknown id is a no-op success. The emitted change carries the last known
// remote event id so subscribers can remove the mirror best-effort.
func (s *HearingStore) Delete(ctx context.Context, id string) error {
	var h hearing.Hearing
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		h, err = getHearing(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM hearings WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete hearing %s: %w", id, err)
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	s.emit(hearing.Change{HearingID: id, Op: hearing.OpDeleted, Hearing: h, RemoteEventID: h.RemoteEventID})
	return nil
}

// withTx runs fn in a transaction, rolling back on error.
func (s *HearingStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Get returns the hearing with the given id.
func (s *HearingStore) Get(ctx context.Context, id string) (hearing.Hearing, error) {
	return getHearing(ctx, s.db, id)
}

// querier is the read surface shared by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getHearing(ctx context.Context, q querier, id string) (hearing.Hearing, error) {
	row := q.QueryRowContext(ctx, selectHearing+` WHERE id = ?`, id)
	h, err := scanHearing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return hearing.Hearing{}, ErrNotFound
	}
	if err != nil {
		return hearing.Hearing{}, fmt.Errorf("failed to load hearing %s: %w", id, err)
	}
	return h, nil
}

// ListAll returns every hearing ordered by date and time.
func (s *HearingStore) ListAll(ctx context.Context) ([]hearing.Hearing, error) {
	return s.list(ctx, selectHearing+` ORDER BY date, time`)
}

// ListByCase returns the hearings of one case ordered by date and time.
func (s *HearingStore) ListByCase(ctx context.Context, caseID string) ([]hearing.Hearing, error) {
	return s.list(ctx, selectHearing+` WHERE case_id = ? ORDER BY date, time`, caseID)
}

func (s *HearingStore) list(ctx context.Context, query string, args ...any) ([]hearing.Hearing, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list hearings: %w", err)
	}
	defer rows.Close()

	out := []hearing.Hearing{}
	for rows.Next() {
		h, err := scanHearing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan hearing: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// MarkPending records that a remote operation is owed for the hearing.
// Sync-state writes never emit change notifications.
func (s *HearingStore) MarkPending(ctx context.Context, id string) error {
	return s.setSyncState(ctx, id, hearing.StatusPending, nil)
}

// MarkSynced records a successful remote mirror together with its event id.
func (s *HearingStore) MarkSynced(ctx context.Context, id, remoteEventID string) error {
	if remoteEventID == "" {
		return fmt.Errorf("hearing %s cannot be synced without a remote event id", id)
	}
	return s.setSyncState(ctx, id, hearing.StatusSynced, &remoteEventID)
}

// MarkFailed settles the hearing in failed after retries were exhausted.
// The local record stays fully usable; only its remote mirror is stale.
func (s *HearingStore) MarkFailed(ctx context.Context, id string) error {
	return s.setSyncState(ctx, id, hearing.StatusFailed, nil)
}

// MarkConflict records a remote-side divergence that could not be recovered.
func (s *HearingStore) MarkConflict(ctx context.Context, id string) error {
	return s.setSyncState(ctx, id, hearing.StatusConflict, nil)
}

// setSyncState updates sync bookkeeping only. remoteEventID == nil keeps the
// stored value so a pending re-sync still knows which event to update.
func (s *HearingStore) setSyncState(ctx context.Context, id string, status hearing.SyncStatus, remoteEventID *string) error {
	var res sql.Result
	var err error
	if remoteEventID != nil {
		res, err = s.db.ExecContext(ctx,
			`UPDATE hearings SET sync_status = ?, remote_event_id = ?, updated_at = ? WHERE id = ?`,
			string(status), *remoteEventID, s.now().UTC().Format(time.RFC3339), id)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE hearings SET sync_status = ?, updated_at = ? WHERE id = ?`,
			string(status), s.now().UTC().Format(time.RFC3339), id)
	}
	if err != nil {
		return fmt.Errorf("failed to set sync state of hearing %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkNotified records that the notification collaborator handled the
// hearing. It does not emit a change notification.
func (s *HearingStore) MarkNotified(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE hearings SET notified = 1, notified_at = ? WHERE id = ?`,
		at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to mark hearing %s notified: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

const selectHearing = `
	SELECT id, case_id, date, time, kind, mode, location, notes, meeting_link,
		sync_status, remote_event_id, notified, notified_at, created_at, updated_at
	FROM hearings`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHearing(row rowScanner) (hearing.Hearing, error) {
	var h hearing.Hearing
	var mode, status, createdAt, updatedAt string
	var notified int
	var notifiedAt sql.NullString

	err := row.Scan(&h.ID, &h.CaseID, &h.Date, &h.Time, &h.Kind, &mode, &h.Location, &h.Notes,
		&h.MeetingLink, &status, &h.RemoteEventID, &notified, &notifiedAt, &createdAt, &updatedAt)
	if err != nil {
		return hearing.Hearing{}, err
	}

	h.Mode = hearing.Mode(mode)
	h.SyncStatus = hearing.SyncStatus(status)
	h.Notified = notified != 0
	if notifiedAt.Valid {
		if t, err := time.Parse(time.RFC3339, notifiedAt.String); err == nil {
			h.NotifiedAt = &t
		}
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		h.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		h.UpdatedAt = t
	}
	return h, nil
}
