package workspace

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"voicecrm/api/internal/reconcile"
	"voicecrm/api/internal/record"
)

type fakeLive struct {
	mu       sync.Mutex
	listFn   func(context.Context) ([]*record.Record, error)
	createFn func(context.Context, record.Payload) (string, error)
	updateFn func(context.Context, string, record.Payload) error
	deleteFn func(context.Context, string) error
	calls    []string
}

func (f *fakeLive) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeLive) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeLive) List(ctx context.Context) ([]*record.Record, error) {
	f.record("list")
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return nil, nil
}
func (f *fakeLive) Create(ctx context.Context, payload record.Payload) (string, error) {
	f.record("create")
	if f.createFn != nil {
		return f.createFn(ctx, payload)
	}
	return "db-new", nil
}
func (f *fakeLive) Update(ctx context.Context, id string, payload record.Payload) error {
	f.record("update " + id)
	if f.updateFn != nil {
		return f.updateFn(ctx, id, payload)
	}
	return nil
}
func (f *fakeLive) Delete(ctx context.Context, id string) error {
	f.record("delete " + id)
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

type fakeReference struct {
	listFn func(context.Context) ([]*record.Record, error)
}

func (f *fakeReference) List(ctx context.Context) ([]*record.Record, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return nil, nil
}

type fakeVoice struct {
	draft *record.Record
}

func (f *fakeVoice) ProcessVoice(context.Context, string, io.Reader) (*record.Record, error) {
	return f.draft, nil
}

type fakeLocker struct {
	acquireFn func(context.Context, string) (bool, error)
	released  []string
}

func (f *fakeLocker) Acquire(ctx context.Context, key string) (bool, error) {
	if f.acquireFn != nil {
		return f.acquireFn(ctx, key)
	}
	return true, nil
}
func (f *fakeLocker) Release(_ context.Context, key string) error {
	f.released = append(f.released, key)
	return nil
}

func named(id, name string) *record.Record {
	return &record.Record{ID: id, Provenance: record.Live, Customer: map[string]string{record.FieldFullName: name}}
}

func staticLive(records ...*record.Record) *fakeLive {
	return &fakeLive{listFn: func(context.Context) ([]*record.Record, error) { return records, nil }}
}

func staticReference(records ...*record.Record) *fakeReference {
	return &fakeReference{listFn: func(context.Context) ([]*record.Record, error) { return records, nil }}
}

func rowNames(view View) []string {
	names := make([]string, 0, len(view.Rows))
	for _, row := range view.Rows {
		names = append(names, string(row.Provenance)+":"+row.DisplayName)
	}
	return names
}

func TestLoadThenDeleteScenario(t *testing.T) {
	ref := &record.Record{Provenance: record.Reference, Customer: map[string]string{record.FieldFullName: "B"}}
	live := staticLive(named("1", "A"))
	ws := New(live, staticReference(ref))

	if view := ws.Snapshot(); view.Loaded {
		t.Fatal("workspace should not be loaded before the first fetch")
	}
	if err := ws.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := rowNames(ws.Snapshot()); len(got) != 2 || got[0] != "live:A" || got[1] != "reference:B" {
		t.Fatalf("unexpected projection %v", got)
	}

	key := record.LiveKey("1")
	ws.Toggle(key)
	if err := ws.RequestDelete(key); err != nil {
		t.Fatalf("request delete: %v", err)
	}
	if err := ws.ConfirmDelete(context.Background()); err != nil {
		t.Fatalf("confirm delete: %v", err)
	}

	view := ws.Snapshot()
	if got := rowNames(view); len(got) != 1 || got[0] != "reference:B" {
		t.Fatalf("unexpected projection after delete %v", got)
	}
	for _, row := range view.Rows {
		if row.Expanded {
			t.Fatal("deleted row should not leave anything expanded")
		}
	}
}

func TestAbortDeleteIssuesNoCalls(t *testing.T) {
	live := staticLive(named("1", "A"))
	ws := New(live, staticReference())
	if err := ws.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := ws.RequestDelete(record.LiveKey("1")); err != nil {
		t.Fatalf("request delete: %v", err)
	}
	ws.AbortDelete()

	if err := ws.ConfirmDelete(context.Background()); !errors.Is(err, ErrNoPendingDelete) {
		t.Fatalf("expected ErrNoPendingDelete, got %v", err)
	}
	for _, call := range live.Calls() {
		if call != "list" {
			t.Fatalf("unexpected server call %q", call)
		}
	}
	if len(ws.Snapshot().Rows) != 1 {
		t.Fatal("abort must not change the collection")
	}
}

func TestConfirmWithoutRequestMakesNoCall(t *testing.T) {
	live := staticLive(named("1", "A"))
	ws := New(live, staticReference())
	_ = ws.Load(context.Background())

	if err := ws.ConfirmDelete(context.Background()); !errors.Is(err, ErrNoPendingDelete) {
		t.Fatalf("expected ErrNoPendingDelete, got %v", err)
	}
	if calls := live.Calls(); len(calls) != 1 {
		t.Fatalf("expected only the initial list call, got %v", calls)
	}
}

func TestDeleteFailureKeepsRecord(t *testing.T) {
	live := staticLive(named("1", "A"))
	live.deleteFn = func(context.Context, string) error { return errors.New("boom") }
	ws := New(live, staticReference())
	_ = ws.Load(context.Background())

	key := record.LiveKey("1")
	_ = ws.RequestDelete(key)
	err := ws.ConfirmDelete(context.Background())

	var opErr *OpError
	if !errors.As(err, &opErr) || opErr.Kind != DeleteFailure {
		t.Fatalf("expected DeleteFailure, got %v", err)
	}
	if len(ws.Snapshot().Rows) != 1 {
		t.Fatal("record should stay after a failed delete")
	}
	if ws.Busy(key) {
		t.Fatal("lock should be released after a failed delete")
	}
}

func TestReferenceRowsAreInert(t *testing.T) {
	ref := &record.Record{ID: "3", Provenance: record.Reference, Customer: map[string]string{record.FieldFullName: "R"}}
	live := staticLive()
	ws := New(live, staticReference(ref))
	_ = ws.Load(context.Background())
	key := ws.Snapshot().Rows[0].Key

	if err := ws.SetCustomerField(key, record.FieldFullName, "X"); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("expected ErrNotEditable, got %v", err)
	}
	if _, err := ws.Save(context.Background(), key); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("expected ErrNotEditable on save, got %v", err)
	}
	if err := ws.RequestDelete(key); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("expected ErrNotEditable on delete, got %v", err)
	}
	if ref.CustomerName() != "R" {
		t.Fatal("reference record mutated")
	}
	if calls := live.Calls(); len(calls) != 1 {
		t.Fatalf("expected no write calls, got %v", calls)
	}
}

func TestReferenceFailureIsEmptyLiveFailureKeepsState(t *testing.T) {
	records := []*record.Record{named("1", "A")}
	fail := false
	live := &fakeLive{listFn: func(context.Context) ([]*record.Record, error) {
		if fail {
			return nil, errors.New("unreachable")
		}
		return records, nil
	}}
	reference := &fakeReference{listFn: func(context.Context) ([]*record.Record, error) {
		return nil, errors.New("missing")
	}}
	ws := New(live, reference)

	if err := ws.Load(context.Background()); err != nil {
		t.Fatalf("reference failure must be swallowed: %v", err)
	}
	if view := ws.Snapshot(); view.LiveCount != 1 || view.ReferenceCount != 0 {
		t.Fatalf("unexpected counts %d/%d", view.LiveCount, view.ReferenceCount)
	}

	fail = true
	err := ws.Load(context.Background())
	var opErr *OpError
	if !errors.As(err, &opErr) || opErr.Kind != FetchFailure {
		t.Fatalf("expected FetchFailure, got %v", err)
	}
	view := ws.Snapshot()
	if view.LiveCount != 1 || view.FetchErr == nil {
		t.Fatalf("prior live state should remain with an error, got %d err=%v", view.LiveCount, view.FetchErr)
	}
}

func TestLoadAfterCloseIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	live := &fakeLive{listFn: func(context.Context) ([]*record.Record, error) {
		close(started)
		<-release
		return []*record.Record{named("1", "A")}, nil
	}}
	ws := New(live, staticReference())

	done := make(chan error)
	go func() { done <- ws.Load(context.Background()) }()
	<-started
	ws.Close()
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("discarded load should not fail: %v", err)
	}
	if view := ws.Snapshot(); view.Loaded || len(view.Rows) != 0 {
		t.Fatal("result of a load finishing after close must be discarded")
	}
	if err := ws.Load(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestSaveUpdatesAndRefetches(t *testing.T) {
	live := staticLive(named("db-1", "A"))
	var payload record.Payload
	live.updateFn = func(_ context.Context, _ string, p record.Payload) error {
		payload = p
		return nil
	}
	ws := New(live, staticReference())
	_ = ws.Load(context.Background())

	key := record.LiveKey("db-1")
	if err := ws.SetCustomerField(key, record.FieldFullName, "Z"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	id, err := ws.Save(context.Background(), key)
	if err != nil || id != "db-1" {
		t.Fatalf("save: id=%q err=%v", id, err)
	}
	if payload.Customer[record.FieldFullName] != "Z" {
		t.Fatalf("payload should carry the edit, got %v", payload.Customer)
	}
	calls := live.Calls()
	if len(calls) != 3 || calls[1] != "update db-1" || calls[2] != "list" {
		t.Fatalf("expected update then re-fetch, got %v", calls)
	}
	if ws.Busy(key) {
		t.Fatal("lock should be released after save")
	}
}

func TestSaveFailureRetainsEdits(t *testing.T) {
	live := staticLive(named("db-1", "A"))
	live.updateFn = func(context.Context, string, record.Payload) error { return errors.New("rejected") }
	ws := New(live, staticReference())
	_ = ws.Load(context.Background())

	key := record.LiveKey("db-1")
	_ = ws.SetSummary(key, "edited")
	_, err := ws.Save(context.Background(), key)

	var opErr *OpError
	if !errors.As(err, &opErr) || opErr.Kind != SyncFailure {
		t.Fatalf("expected SyncFailure, got %v", err)
	}
	if ws.Snapshot().Rows[0].Record.Interaction.Summary != "edited" {
		t.Fatal("local edit should be retained after a failed sync")
	}
	if ws.Busy(key) {
		t.Fatal("lock should be released after a failed sync")
	}
}

func TestSecondSaveRefusedWhileBusy(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	live := staticLive(named("db-1", "A"), named("db-2", "B"))
	live.updateFn = func(_ context.Context, id string, _ record.Payload) error {
		if id == "db-1" {
			close(entered)
			<-release
		}
		return nil
	}
	ws := New(live, staticReference())
	_ = ws.Load(context.Background())

	first := make(chan error)
	go func() {
		_, err := ws.Save(context.Background(), record.LiveKey("db-1"))
		first <- err
	}()
	<-entered

	if _, err := ws.Save(context.Background(), record.LiveKey("db-1")); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy for overlapping save, got %v", err)
	}
	_ = ws.RequestDelete(record.LiveKey("db-1"))
	if err := ws.ConfirmDelete(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy for delete during save, got %v", err)
	}
	if _, err := ws.Save(context.Background(), record.LiveKey("db-2")); err != nil {
		t.Fatalf("other record should not be blocked: %v", err)
	}

	close(release)
	if err := <-first; err != nil {
		t.Fatalf("first save: %v", err)
	}
	if _, err := ws.Save(context.Background(), record.LiveKey("db-1")); err != nil {
		t.Fatalf("save after release: %v", err)
	}
}

func TestDraftCreateThenUpdate(t *testing.T) {
	live := staticLive()
	draft := record.Draft("Met Vikram Shah", record.Output{})
	ws := New(live, staticReference(), WithVoiceProcessor(&fakeVoice{draft: draft}))
	_ = ws.Load(context.Background())

	if _, err := ws.Upload(context.Background(), "a.webm", nil); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := ws.SetCustomerField(reconcile.DraftKey, record.FieldFullName, "Vikram Shah"); err != nil {
		t.Fatalf("edit draft: %v", err)
	}

	id, err := ws.Save(context.Background(), reconcile.DraftKey)
	if err != nil || id != "db-new" {
		t.Fatalf("first save: id=%q err=%v", id, err)
	}
	if ws.Snapshot().Draft.ID != "db-new" {
		t.Fatal("server identity should be merged into the draft")
	}
	if _, err := ws.Save(context.Background(), reconcile.DraftKey); err != nil {
		t.Fatalf("second save: %v", err)
	}

	var creates, updates int
	for _, call := range live.Calls() {
		switch call {
		case "create":
			creates++
		case "update db-new":
			updates++
		}
	}
	if creates != 1 || updates != 1 {
		t.Fatalf("expected one create and one update, got %v", live.Calls())
	}
}

func TestSharedLockRefusalBlocksSave(t *testing.T) {
	live := staticLive(named("db-1", "A"))
	locker := &fakeLocker{acquireFn: func(context.Context, string) (bool, error) { return false, nil }}
	ws := New(live, staticReference(), WithSharedLocker(locker))
	_ = ws.Load(context.Background())

	key := record.LiveKey("db-1")
	if _, err := ws.Save(context.Background(), key); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if ws.Busy(key) {
		t.Fatal("local lock should be released when the shared lock is refused")
	}
	if calls := live.Calls(); len(calls) != 1 {
		t.Fatalf("no write should be issued, got %v", calls)
	}
}

func TestSharedLockReleasedAfterSave(t *testing.T) {
	live := staticLive(named("db-1", "A"))
	locker := &fakeLocker{}
	ws := New(live, staticReference(), WithSharedLocker(locker))
	_ = ws.Load(context.Background())

	if _, err := ws.Save(context.Background(), record.LiveKey("db-1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(locker.released) != 1 || locker.released[0] != record.LiveKey("db-1") {
		t.Fatalf("expected shared lock release, got %v", locker.released)
	}
}

func TestLoadKeepsReferenceWhenSaveRefreshesFirst(t *testing.T) {
	ref := &record.Record{Provenance: record.Reference, Customer: map[string]string{record.FieldFullName: "B"}}
	started := make(chan struct{})
	release := make(chan struct{})
	reference := &fakeReference{listFn: func(context.Context) ([]*record.Record, error) {
		close(started)
		<-release
		return []*record.Record{ref}, nil
	}}
	live := staticLive(named("db-new", "Vikram Shah"))
	draft := record.Draft("Met Vikram Shah", record.Output{})
	ws := New(live, reference, WithVoiceProcessor(&fakeVoice{draft: draft}))

	done := make(chan error)
	go func() { done <- ws.Load(context.Background()) }()
	<-started

	if _, err := ws.Upload(context.Background(), "a.webm", nil); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := ws.Save(context.Background(), reconcile.DraftKey); err != nil {
		t.Fatalf("save draft: %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("load: %v", err)
	}

	view := ws.Snapshot()
	if !view.Loaded {
		t.Fatal("workspace should be loaded")
	}
	if view.ReferenceCount != 1 || view.LiveCount != 1 {
		t.Fatalf("expected 1 live and 1 reference record, got live=%d reference=%d", view.LiveCount, view.ReferenceCount)
	}
	if got := rowNames(view); len(got) != 2 || got[0] != "live:Vikram Shah" || got[1] != "reference:B" {
		t.Fatalf("unexpected projection %v", got)
	}
}

func TestEditRefusedWhileSaveInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	live := staticLive(named("db-1", "A"))
	var payload record.Payload
	live.updateFn = func(_ context.Context, _ string, p record.Payload) error {
		payload = p
		close(entered)
		<-release
		return nil
	}
	ws := New(live, staticReference())
	_ = ws.Load(context.Background())

	key := record.LiveKey("db-1")
	saved := make(chan error)
	go func() {
		_, err := ws.Save(context.Background(), key)
		saved <- err
	}()
	<-entered

	if err := ws.SetCustomerField(key, record.FieldFullName, "Z"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy for customer edit, got %v", err)
	}
	if err := ws.SetSummary(key, "late"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy for summary edit, got %v", err)
	}
	row := ws.Snapshot().Rows[0].Record
	if row.Customer[record.FieldFullName] != "A" || row.Interaction.Summary == "late" {
		t.Fatalf("refused edits must not change the record: %+v", row)
	}

	close(release)
	if err := <-saved; err != nil {
		t.Fatalf("save: %v", err)
	}
	if payload.Customer[record.FieldFullName] != "A" {
		t.Fatalf("save should write the record as it was acquired, got %v", payload.Customer)
	}
	if err := ws.SetCustomerField(key, record.FieldFullName, "Z"); err != nil {
		t.Fatalf("edit after save: %v", err)
	}
}

func TestUnsavedDraftLockStaysLocal(t *testing.T) {
	var mu sync.Mutex
	held := map[string]bool{}
	var asked []string
	acquire := func(_ context.Context, key string) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		asked = append(asked, key)
		if held[key] {
			return false, nil
		}
		held[key] = true
		return true, nil
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	liveA := staticLive()
	liveA.createFn = func(context.Context, record.Payload) (string, error) {
		close(entered)
		<-release
		return "db-a", nil
	}
	liveB := staticLive()
	liveB.createFn = func(context.Context, record.Payload) (string, error) { return "db-b", nil }

	lockerA := &fakeLocker{acquireFn: acquire}
	lockerB := &fakeLocker{acquireFn: acquire}
	a := New(liveA, staticReference(), WithSharedLocker(lockerA),
		WithVoiceProcessor(&fakeVoice{draft: record.Draft("first call", record.Output{})}))
	b := New(liveB, staticReference(), WithSharedLocker(lockerB),
		WithVoiceProcessor(&fakeVoice{draft: record.Draft("second call", record.Output{})}))
	for _, ws := range []*Workspace{a, b} {
		_ = ws.Load(context.Background())
		if _, err := ws.Upload(context.Background(), "a.webm", nil); err != nil {
			t.Fatalf("upload: %v", err)
		}
	}

	first := make(chan error)
	go func() {
		_, err := a.Save(context.Background(), reconcile.DraftKey)
		first <- err
	}()
	<-entered

	id, err := b.Save(context.Background(), reconcile.DraftKey)
	if err != nil || id != "db-b" {
		t.Fatalf("draft save in another session should not be blocked: id=%q err=%v", id, err)
	}
	close(release)
	if err := <-first; err != nil {
		t.Fatalf("first draft save: %v", err)
	}

	askedKeys := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), asked...)
	}
	if keys := askedKeys(); len(keys) != 0 {
		t.Fatalf("shared locker should not be asked for an unsaved draft, got %v", keys)
	}
	if len(lockerA.released) != 0 || len(lockerB.released) != 0 {
		t.Fatalf("no shared release expected, got %v and %v", lockerA.released, lockerB.released)
	}

	if _, err := b.Save(context.Background(), reconcile.DraftKey); err != nil {
		t.Fatalf("second draft save: %v", err)
	}
	if keys := askedKeys(); len(keys) != 1 || keys[0] != record.LiveKey("db-b") {
		t.Fatalf("saved draft should take the shared lock of its record, got %v", keys)
	}
}
