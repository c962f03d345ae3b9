// Package workspace owns the history view's state for the lifetime of a
// session: it loads both record sources, applies edits through the reconcile
// transitions, writes them back to the live store and runs the two-step
// delete.
package workspace

import (
	"context"
	"io"
	"log"
	"sync"

	"voicecrm/api/internal/reconcile"
	"voicecrm/api/internal/record"
)

type LiveStore interface {
	List(context.Context) ([]*record.Record, error)
	Create(context.Context, record.Payload) (string, error)
	Update(context.Context, string, record.Payload) error
	Delete(context.Context, string) error
}

type ReferenceStore interface {
	List(context.Context) ([]*record.Record, error)
}

// VoiceProcessor turns an audio upload into an unsaved draft.
type VoiceProcessor interface {
	ProcessVoice(context.Context, string, io.Reader) (*record.Record, error)
}

// SharedLocker extends the per-record action lock beyond this process.
type SharedLocker interface {
	Acquire(context.Context, string) (bool, error)
	Release(context.Context, string) error
}

type Option func(*Workspace)

func WithVoiceProcessor(voice VoiceProcessor) Option {
	return func(w *Workspace) { w.voice = voice }
}

func WithSharedLocker(locker SharedLocker) Option {
	return func(w *Workspace) { w.locker = locker }
}

type Workspace struct {
	live      LiveStore
	reference ReferenceStore
	voice     VoiceProcessor
	locker    SharedLocker

	mu       sync.Mutex
	state    reconcile.State
	loadGen  uint64 // bumped by Load
	liveGen  uint64 // bumped by Load and refresh
	draftSeq uint64
	closed   bool
	fetchErr error
}

func New(live LiveStore, reference ReferenceStore, opts ...Option) *Workspace {
	w := &Workspace{
		live:      live,
		reference: reference,
		state:     reconcile.New(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// View is a consistent snapshot for rendering.
type View struct {
	Rows           []reconcile.Row
	Loaded         bool
	LiveCount      int
	ReferenceCount int
	Draft          *record.Record
	DraftBusy      bool
	Pending        string
	FetchErr       error
}

func (w *Workspace) Snapshot() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	live, reference := w.state.Counts()
	return View{
		Rows:           reconcile.Rows(w.state),
		Loaded:         w.state.Loaded,
		LiveCount:      live,
		ReferenceCount: reference,
		Draft:          w.state.Draft,
		DraftBusy:      w.state.IsBusy(reconcile.LockKey(w.state, reconcile.DraftKey)),
		Pending:        w.state.Pending,
		FetchErr:       w.fetchErr,
	}
}

// Load fetches both sources. A reference failure is logged and treated as an
// empty dataset; a live failure keeps the previous live collection. Results
// arriving after Close, or after a newer Load started, are discarded. When a
// post-write refresh started after this Load, only the reference half is
// applied and the refreshed live collection stands.
func (w *Workspace) Load(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.loadGen++
	w.liveGen++
	loadGen, liveGen := w.loadGen, w.liveGen
	w.mu.Unlock()

	reference, err := w.reference.List(ctx)
	if err != nil {
		log.Printf("workspace: reference dataset unavailable: %v", err)
		reference = []*record.Record{}
	}
	live, liveErr := w.live.List(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || loadGen != w.loadGen {
		return nil
	}
	if liveGen != w.liveGen {
		w.state = reconcile.Load(w.state, w.state.Live, reference)
		return nil
	}
	if liveErr != nil {
		w.fetchErr = opError(FetchFailure, "", liveErr)
		w.state = reconcile.Load(w.state, w.state.Live, reference)
		return w.fetchErr
	}
	w.fetchErr = nil
	w.state = reconcile.Load(w.state, live, reference)
	return nil
}

// Close ends the session. In-flight loads and refreshes are discarded.
func (w *Workspace) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}

// Toggle expands or collapses a row.
func (w *Workspace) Toggle(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = reconcile.Toggle(w.state, key)
}

// Busy reports whether an update or delete is outstanding for key.
func (w *Workspace) Busy(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.IsBusy(reconcile.LockKey(w.state, key))
}

func (w *Workspace) SetCustomerField(key, field, value string) error {
	return w.edit(key, func(s reconcile.State) reconcile.State {
		return reconcile.SetCustomerField(s, key, field, value)
	})
}

func (w *Workspace) SetSummary(key, value string) error {
	return w.edit(key, func(s reconcile.State) reconcile.State {
		return reconcile.SetSummary(s, key, value)
	})
}

func (w *Workspace) SetTranscript(key, value string) error {
	return w.edit(key, func(s reconcile.State) reconcile.State {
		return reconcile.SetTranscript(s, key, value)
	})
}

func (w *Workspace) edit(key string, apply func(reconcile.State) reconcile.State) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	rec, ok := reconcile.Find(w.state, key)
	if !ok {
		return ErrNotFound
	}
	if !rec.Editable() {
		return ErrNotEditable
	}
	if w.state.IsBusy(reconcile.LockKey(w.state, key)) {
		return ErrBusy
	}
	w.state = apply(w.state)
	return nil
}

// Upload sends audio to the extraction service and puts the result in the
// draft slot.
func (w *Workspace) Upload(ctx context.Context, filename string, audio io.Reader) (*record.Record, error) {
	if w.voice == nil {
		return nil, ErrNoVoice
	}
	draft, err := w.voice.ProcessVoice(ctx, filename, audio)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draftSeq++
	w.state = reconcile.SetDraft(w.state, draft)
	return draft, nil
}

// DiscardDraft empties the draft slot.
func (w *Workspace) DiscardDraft() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draftSeq++
	w.state = reconcile.SetDraft(w.state, nil)
}

// refresh re-fetches the live collection after a successful write.
func (w *Workspace) refresh(ctx context.Context) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.liveGen++
	liveGen := w.liveGen
	w.mu.Unlock()

	live, err := w.live.List(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || liveGen != w.liveGen {
		return
	}
	if err != nil {
		log.Printf("workspace: refresh after write failed: %v", err)
		w.fetchErr = opError(FetchFailure, "", err)
		return
	}
	w.fetchErr = nil
	w.state = reconcile.LoadLive(w.state, live)
}
