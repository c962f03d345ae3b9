package workspace

import (
	"context"
	"log"

	"voicecrm/api/internal/reconcile"
	"voicecrm/api/internal/record"
)

// Save writes the live record or draft addressed by key back to the store:
// a create when it has no identity yet, an update otherwise. The record's
// action lock is held for the duration of the call and released whatever
// the outcome. On failure the local edits are kept.
//
// A create merges the returned identity into the draft before the lock is
// released, so a second Save of the same draft is an update. Every
// successful write is followed by a re-fetch of the live collection; a
// failed re-fetch is reported through View.FetchErr, not as a sync failure.
func (w *Workspace) Save(ctx context.Context, key string) (string, error) {
	w.mu.Lock()
	seq := w.draftSeq
	w.mu.Unlock()

	lockKey, rec, err := w.acquire(ctx, key)
	if err != nil {
		return "", opError(SyncFailure, key, err)
	}

	id, err := w.push(ctx, rec)

	w.mu.Lock()
	if err == nil && rec.IsNew() && key == reconcile.DraftKey && seq == w.draftSeq {
		w.state = reconcile.AssignDraftID(w.state, id)
	}
	w.mu.Unlock()
	w.release(ctx, lockKey)

	if err != nil {
		log.Printf("workspace: sync %s failed: %v", key, err)
		return "", opError(SyncFailure, key, err)
	}
	w.refresh(ctx)
	return id, nil
}

func (w *Workspace) push(ctx context.Context, rec *record.Record) (string, error) {
	payload := rec.Payload()
	if rec.IsNew() {
		return w.live.Create(ctx, payload)
	}
	if err := w.live.Update(ctx, rec.ID, payload); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// acquire takes the local action lock for key and, when configured, the
// shared one. The draft is private to this session, so its lock stays local
// until it has a store identity. It returns the lock key and the record as it was at that point.
func (w *Workspace) acquire(ctx context.Context, key string) (string, *record.Record, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return "", nil, ErrClosed
	}
	rec, ok := reconcile.Find(w.state, key)
	if !ok {
		w.mu.Unlock()
		return "", nil, ErrNotFound
	}
	if !rec.Editable() {
		w.mu.Unlock()
		return "", nil, ErrNotEditable
	}
	lockKey := reconcile.LockKey(w.state, key)
	state, ok := reconcile.Acquire(w.state, lockKey)
	if !ok {
		w.mu.Unlock()
		return "", nil, ErrBusy
	}
	w.state = state
	w.mu.Unlock()

	if w.shared(lockKey) {
		held, err := w.locker.Acquire(ctx, lockKey)
		if err != nil || !held {
			w.releaseLocal(lockKey)
			if err != nil {
				return "", nil, err
			}
			return "", nil, ErrBusy
		}
	}
	return lockKey, rec, nil
}

func (w *Workspace) release(ctx context.Context, lockKey string) {
	if w.shared(lockKey) {
		if err := w.locker.Release(context.WithoutCancel(ctx), lockKey); err != nil {
			log.Printf("workspace: release shared lock %s: %v", lockKey, err)
		}
	}
	w.releaseLocal(lockKey)
}

func (w *Workspace) shared(lockKey string) bool {
	return w.locker != nil && lockKey != reconcile.DraftKey
}

func (w *Workspace) releaseLocal(lockKey string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = reconcile.Release(w.state, lockKey)
}
