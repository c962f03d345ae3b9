// Package reconcile is the record edit state machine of the history view.
//
// State is a plain value owned by the caller. Every transition is a pure
// function returning a new State; collections are replaced, never edited in
// place, so an observer can tell which records changed by comparing pointers.
package reconcile

import "voicecrm/api/internal/record"

// DraftKey addresses the single-record editor slot holding an extraction
// result, and is the lock key of that draft until it has a server identity.
const DraftKey = "draft"

type State struct {
	Live      []*record.Record
	Reference []*record.Record
	// Loaded is false until the first fetch has been applied, which lets a
	// view tell "still loading" apart from an empty history.
	Loaded bool
	// Expanded is the display key of the one expanded row, or "".
	Expanded string
	// Pending is the display key awaiting delete confirmation, or "".
	Pending string
	Draft   *record.Record
	busy    map[string]struct{}
}

// Row is a projected record annotated with its UI state.
type Row struct {
	record.DisplayRecord
	Expanded      bool
	Busy          bool
	PendingDelete bool
	Editable      bool
}

func New() State {
	return State{}
}

// Rows projects the state for display.
func Rows(s State) []Row {
	projected := record.Project(s.Live, s.Reference)
	rows := make([]Row, 0, len(projected))
	for _, item := range projected {
		rows = append(rows, Row{
			DisplayRecord: item,
			Expanded:      item.Key == s.Expanded,
			Busy:          s.IsBusy(item.Key),
			PendingDelete: item.Key == s.Pending,
			Editable:      item.Provenance == record.Live,
		})
	}
	return rows
}

// Counts returns the number of live and reference records.
func (s State) Counts() (live, reference int) {
	return len(s.Live), len(s.Reference)
}

// Load replaces both collections with freshly fetched ones. Expansion and a
// pending delete survive only if their record is still present.
func Load(s State, live, reference []*record.Record) State {
	s.Live = live
	s.Reference = reference
	s.Loaded = true
	if s.Expanded != "" && !s.has(s.Expanded) {
		s.Expanded = ""
	}
	if s.Pending != "" && s.liveIndex(s.Pending) < 0 {
		s.Pending = ""
	}
	return s
}

// LoadLive replaces only the live collection.
func LoadLive(s State, live []*record.Record) State {
	return Load(s, live, s.Reference)
}

// Toggle collapses key if it is expanded, otherwise expands it and collapses
// whichever row was expanded before.
func Toggle(s State, key string) State {
	if s.Expanded == key {
		s.Expanded = ""
		return s
	}
	s.Expanded = key
	return s
}

// Find returns the record behind a display key, or the draft for DraftKey.
func Find(s State, key string) (*record.Record, bool) {
	if key == DraftKey {
		return s.Draft, s.Draft != nil
	}
	if i := s.liveIndex(key); i >= 0 {
		return s.Live[i], true
	}
	for i, rec := range s.Reference {
		if record.Key(record.Reference, rec.ID, i) == key {
			return rec, true
		}
	}
	return nil, false
}

// LockKey is the action-lock key for the record addressed by key. A saved
// draft shares the lock of its live row.
func LockKey(s State, key string) string {
	if key == DraftKey && s.Draft != nil && !s.Draft.IsNew() {
		return record.LiveKey(s.Draft.ID)
	}
	return key
}

func (s State) has(key string) bool {
	_, ok := Find(s, key)
	return ok
}

func (s State) liveIndex(key string) int {
	for i, rec := range s.Live {
		if record.Key(record.Live, rec.ID, i) == key {
			return i
		}
	}
	return -1
}
