package workspace

import (
	"context"
	"log"

	"voicecrm/api/internal/reconcile"
)

// RequestDelete asks for confirmation before deleting a live record. Nothing
// is sent to the server yet.
func (w *Workspace) RequestDelete(key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	rec, ok := reconcile.Find(w.state, key)
	if !ok || key == reconcile.DraftKey {
		return ErrNotFound
	}
	if !rec.Editable() {
		return ErrNotEditable
	}
	state, ok := reconcile.RequestDelete(w.state, key)
	if !ok {
		return ErrDeletePending
	}
	w.state = state
	return nil
}

// AbortDelete drops the pending request. No server call is made.
func (w *Workspace) AbortDelete() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = reconcile.AbortDelete(w.state)
}

// ConfirmDelete deletes the record awaiting confirmation, holding its action
// lock for the call. The record leaves local state only once the server
// acknowledged; on failure it stays where it was.
func (w *Workspace) ConfirmDelete(ctx context.Context) error {
	w.mu.Lock()
	state, key, ok := reconcile.TakePending(w.state)
	w.state = state
	w.mu.Unlock()
	if !ok {
		return ErrNoPendingDelete
	}

	lockKey, rec, err := w.acquire(ctx, key)
	if err != nil {
		return opError(DeleteFailure, key, err)
	}

	err = w.live.Delete(ctx, rec.ID)
	if err == nil {
		w.mu.Lock()
		w.state = reconcile.Remove(w.state, key)
		w.mu.Unlock()
	}
	w.release(ctx, lockKey)

	if err != nil {
		log.Printf("workspace: delete %s failed: %v", key, err)
		return opError(DeleteFailure, key, err)
	}
	return nil
}
