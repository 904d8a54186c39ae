// Package sync drives the per-hearing synchronization state machine. Each
// hearing id gets its own serialized worker; distinct ids proceed
// independently. Edit bursts collapse to a single remote call carrying the
// latest data, retries follow an exponential backoff, and a deletion
// tombstones the id so a late in-flight result is discarded instead of
// resurrecting the mirror.
package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/adv-tools/audsync/internal/auth"
	"github.com/adv-tools/audsync/internal/hearing"
	"github.com/adv-tools/audsync/internal/remote"
	"github.com/adv-tools/audsync/internal/storage"
)

// Store is the slice of the hearing store the orchestrator needs: it reads
// hearing data and writes back sync bookkeeping only.
type Store interface {
	Get(ctx context.Context, id string) (hearing.Hearing, error)
	MarkPending(ctx context.Context, id string) error
	MarkSynced(ctx context.Context, id, remoteEventID string) error
	MarkFailed(ctx context.Context, id string) error
}

// Calendar is the remote calendar client surface the orchestrator drives.
type Calendar interface {
	CreateEvent(ctx context.Context, h hearing.Hearing) (string, error)
	UpdateEvent(ctx context.Context, remoteEventID string, h hearing.Hearing) error
	DeleteEvent(ctx context.Context, remoteEventID string) error
}

// maxAttempts is how many times one logical operation is tried before the
// hearing settles in failed.
const maxAttempts = 3

// worker tracks the serialization state of one hearing id.
type worker struct {
	running bool
	dirty   bool // an upsert is owed; re-set by later edits (collapse)
	deleted bool // tombstone: discard in-flight results, delete remotely

	// remote event ids owed a best-effort delete once the id is tombstoned.
	deleteIDs []string
}

// Orchestrator keeps local hearings mirrored in the external calendar.
type Orchestrator struct {
	store Store
	cal   Calendar
	log   *slog.Logger

	// newBackOff produces the retry schedule for one operation. Tests swap
	// in backoff.ZeroBackOff to avoid real sleeps.
	newBackOff func() backoff.BackOff

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	workers map[string]*worker
	closed  bool
	wg      sync.WaitGroup
}

// New creates an orchestrator. Call HandleChange from the store's change
// subscription (or pass it to Subscribe) to start mirroring.
func New(store Store, cal Calendar, log *slog.Logger) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		store:      store,
		cal:        cal,
		log:        log,
		newBackOff: defaultBackOff,
		ctx:        ctx,
		cancel:     cancel,
		workers:    make(map[string]*worker),
	}
}

// defaultBackOff is the production schedule: base 1s, factor 2, no jitter.
func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// HandleChange reacts to a hearing store mutation. Edits to hearings that
// settled in failed or conflict are ignored; Retry is the explicit way back.
func (o *Orchestrator) HandleChange(c hearing.Change) {
	switch c.Op {
	case hearing.OpCreated:
		o.enqueueUpsert(c.HearingID)
	case hearing.OpUpdated:
		if c.Hearing.SyncStatus == hearing.StatusFailed || c.Hearing.SyncStatus == hearing.StatusConflict {
			return
		}
		o.enqueueUpsert(c.HearingID)
	case hearing.OpDeleted:
		o.enqueueDelete(c.HearingID, c.RemoteEventID)
	}
}

// Retry re-enqueues a hearing that settled in failed or conflict.
func (o *Orchestrator) Retry(ctx context.Context, id string) error {
	h, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if h.SyncStatus != hearing.StatusFailed && h.SyncStatus != hearing.StatusConflict {
		return nil
	}
	o.enqueueUpsert(id)
	return nil
}

func (o *Orchestrator) enqueueUpsert(id string) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	w := o.workers[id]
	if w == nil {
		w = &worker{}
		o.workers[id] = w
	}
	if w.deleted {
		o.mu.Unlock()
		return
	}
	w.dirty = true
	start := !w.running
	if start {
		w.running = true
		o.wg.Add(1)
	}
	o.mu.Unlock()

	if start {
		go o.run(id, w)
	}
}

func (o *Orchestrator) enqueueDelete(id, remoteEventID string) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	w := o.workers[id]
	if w == nil {
		w = &worker{}
		o.workers[id] = w
	}
	w.deleted = true
	w.dirty = false
	if remoteEventID != "" {
		w.deleteIDs = append(w.deleteIDs, remoteEventID)
	}
	start := !w.running
	if start {
		w.running = true
		o.wg.Add(1)
	}
	o.mu.Unlock()

	if start {
		go o.run(id, w)
	}
}

// run is the per-id worker loop. It owns the only in-flight operation for
// its hearing id and exits once no work remains.
func (o *Orchestrator) run(id string, w *worker) {
	defer o.wg.Done()

	for {
		o.mu.Lock()
		if w.deleted {
			if len(w.deleteIDs) == 0 {
				delete(o.workers, id)
				o.mu.Unlock()
				return
			}
			remoteID := w.deleteIDs[0]
			w.deleteIDs = w.deleteIDs[1:]
			o.mu.Unlock()

			o.performDelete(id, remoteID)
			continue
		}
		if !w.dirty {
			w.running = false
			delete(o.workers, id)
			o.mu.Unlock()
			return
		}
		w.dirty = false
		o.mu.Unlock()

		// Pending is written on the worker goroutine, never the enqueuing
		// one, so it is ordered before the settle write of this operation.
		if err := o.store.MarkPending(o.ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			o.log.Error("failed to mark hearing pending", "hearing", id, "err", err)
		}

		h, err := o.store.Get(o.ctx, id)
		if err != nil {
			// Gone or unreadable; loop back to re-check the tombstone.
			if !errors.Is(err, storage.ErrNotFound) {
				o.log.Error("failed to load hearing for sync", "hearing", id, "err", err)
			}
			continue
		}

		remoteID, err := o.performUpsert(h)

		o.mu.Lock()
		if w.deleted {
			// The hearing was deleted while the call was in flight: discard
			// the outcome. If the call did create an event server-side,
			// queue it for removal so no orphan mirror survives.
			if err == nil && remoteID != "" && remoteID != h.RemoteEventID {
				w.deleteIDs = append(w.deleteIDs, remoteID)
			}
			o.mu.Unlock()
			continue
		}
		o.mu.Unlock()

		if err != nil {
			o.log.Error("hearing sync failed", "hearing", id, "err", err)
			if err := o.store.MarkFailed(o.ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
				o.log.Error("failed to mark hearing failed", "hearing", id, "err", err)
			}
			continue
		}
		if err := o.store.MarkSynced(o.ctx, id, remoteID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			o.log.Error("failed to mark hearing synced", "hearing", id, "err", err)
		}
	}
}

// performUpsert executes one logical create-or-update with retries. A
// conflict on update (the remote event vanished) is recovered by creating a
// replacement within the same attempt budget. On success it returns the
// remote event id now mirroring the hearing.
func (o *Orchestrator) performUpsert(h hearing.Hearing) (string, error) {
	b := o.newBackOff()
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		remoteID := h.RemoteEventID
		var err error
		if remoteID == "" {
			remoteID, err = o.cal.CreateEvent(o.ctx, h)
		} else {
			err = o.cal.UpdateEvent(o.ctx, remoteID, h)
			var conflict *remote.ConflictError
			if errors.As(err, &conflict) {
				o.log.Info("remote event vanished, recreating", "hearing", h.ID, "event", remoteID)
				h.RemoteEventID = ""
				remoteID, err = o.cal.CreateEvent(o.ctx, h)
			}
		}
		if err == nil {
			return remoteID, nil
		}
		lastErr = err

		if !retryable(err) {
			return "", err
		}
		if attempt == maxAttempts {
			break
		}
		if !o.sleep(b.NextBackOff()) {
			return "", lastErr
		}
	}
	return "", lastErr
}

// performDelete removes a remote event best-effort. Local deletion already
// happened; a final failure is only logged.
func (o *Orchestrator) performDelete(id, remoteEventID string) {
	b := o.newBackOff()
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := o.cal.DeleteEvent(o.ctx, remoteEventID)
		if err == nil {
			return
		}
		lastErr = err
		if !retryable(err) {
			break
		}
		if attempt == maxAttempts {
			break
		}
		if !o.sleep(b.NextBackOff()) {
			break
		}
	}
	o.log.Error("failed to delete remote event", "hearing", id, "event", remoteEventID, "err", lastErr)
}

// retryable reports whether the operation may be attempted again. Transport
// and credential failures are transient; configuration gaps and validation
// problems are not.
func retryable(err error) bool {
	var netErr *remote.NetworkError
	var authErr *auth.AuthError
	return errors.As(err, &netErr) || errors.As(err, &authErr)
}

// sleep waits for d, returning false when the orchestrator shuts down or
// the backoff schedule is exhausted.
func (o *Orchestrator) sleep(d time.Duration) bool {
	if d == backoff.Stop {
		return false
	}
	if d <= 0 {
		return true
	}
	select {
	case <-time.After(d):
		return true
	case <-o.ctx.Done():
		return false
	}
}

// Close stops accepting work and waits for in-flight workers to settle.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	o.wg.Wait()
	o.cancel()
}
