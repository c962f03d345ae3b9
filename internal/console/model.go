// Package console is the terminal history browser. It lists live and
// reference interactions side by side, edits live ones in place, writes them
// back and turns uploaded recordings into drafts.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"voicecrm/api/internal/reconcile"
	"voicecrm/api/internal/record"
	"voicecrm/api/internal/workspace"
)

// Session is the subset of *workspace.Workspace the browser drives.
type Session interface {
	Snapshot() workspace.View
	Load(context.Context) error
	Toggle(string)
	SetCustomerField(key, field, value string) error
	SetSummary(key, value string) error
	SetTranscript(key, value string) error
	Save(context.Context, string) (string, error)
	RequestDelete(string) error
	AbortDelete()
	ConfirmDelete(context.Context) error
	Upload(context.Context, string, io.Reader) (*record.Record, error)
	DiscardDraft()
	Close()
}

const requestTimeout = 2 * time.Minute

const (
	fieldSummary    = "summary"
	fieldTranscript = "transcript"
)

// editFields is the order fields are visited with tab in an expanded row.
var editFields = []string{
	record.FieldFullName,
	record.FieldPhone,
	record.FieldCity,
	record.FieldLocality,
	fieldSummary,
	fieldTranscript,
}

var fieldLabels = map[string]string{
	record.FieldFullName: "Name",
	record.FieldPhone:    "Phone",
	record.FieldAddress:  "Address",
	record.FieldCity:     "City",
	record.FieldLocality: "Locality",
	fieldSummary:         "Summary",
	fieldTranscript:      "Transcript",
}

type mode int

const (
	modeBrowse mode = iota
	modeEdit
	modeUpload
	modeConfirm
)

type loadedMsg struct{ err error }

type savedMsg struct {
	key string
	id  string
	err error
}

type deletedMsg struct{ err error }

type uploadedMsg struct {
	name string
	err  error
}

// item is one rendered row: a projected record or the draft.
type item struct {
	key        string
	name       string
	provenance record.Provenance
	draft      bool
	record     *record.Record
	expanded   bool
	busy       bool
	pending    bool
	editable   bool
}

type Model struct {
	session Session
	ctx     context.Context
	keys    KeyMap
	theme   Theme
	open    func(string) (io.ReadCloser, error)

	view   workspace.View
	items  []item
	cursor int
	field  int

	mode      mode
	input     textinput.Model
	editKey   string
	editField string

	status string
	err    error

	width  int
	height int
}

func NewModel(ctx context.Context, session Session) Model {
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 4096
	model := Model{
		session: session,
		ctx:     ctx,
		keys:    DefaultKeyMap,
		theme:   DefaultTheme(),
		open:    openFile,
		input:   input,
	}
	model.sync()
	return model
}

func openFile(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

func (model Model) Init() tea.Cmd {
	return model.load()
}

func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.input.Width = max(message.Width-16, 20)
		return model, nil

	case loadedMsg:
		model.sync()
		if message.err != nil {
			model.fail(message.err)
		}
		return model, nil

	case savedMsg:
		model.sync()
		if message.err != nil {
			model.fail(message.err)
			return model, nil
		}
		model.notify("Saved " + message.id)
		return model, nil

	case deletedMsg:
		model.sync()
		if message.err != nil {
			model.fail(message.err)
			return model, nil
		}
		model.notify("Deleted")
		return model, nil

	case uploadedMsg:
		model.sync()
		if message.err != nil {
			model.fail(message.err)
			return model, nil
		}
		model.cursor = 0
		model.field = 0
		model.notify("Draft ready: " + message.name)
		return model, nil

	case tea.KeyMsg:
		model.sync()
		switch model.mode {
		case modeEdit, modeUpload:
			return model.handleInputKeys(message)
		case modeConfirm:
			return model.handleConfirmKeys(message)
		}
		return model.handleBrowseKeys(message)
	}

	if model.mode == modeEdit || model.mode == modeUpload {
		var command tea.Cmd
		model.input, command = model.input.Update(message)
		return model, command
	}
	return model, nil
}

func (model Model) handleBrowseKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Quit):
		model.session.Close()
		return model, tea.Quit

	case key.Matches(message, model.keys.Up):
		if model.cursor > 0 {
			model.cursor--
			model.field = 0
		}

	case key.Matches(message, model.keys.Down):
		if model.cursor < len(model.items)-1 {
			model.cursor++
			model.field = 0
		}

	case key.Matches(message, model.keys.Toggle):
		if selected, ok := model.selected(); ok && !selected.draft {
			model.session.Toggle(selected.key)
			model.field = 0
			model.sync()
		}

	case key.Matches(message, model.keys.NextField):
		if selected, ok := model.selected(); ok && selected.expanded {
			model.field = (model.field + 1) % len(editFields)
		}

	case key.Matches(message, model.keys.PrevField):
		if selected, ok := model.selected(); ok && selected.expanded {
			model.field = (model.field + len(editFields) - 1) % len(editFields)
		}

	case key.Matches(message, model.keys.Edit):
		return model.startEdit()

	case key.Matches(message, model.keys.Save):
		selected, ok := model.selected()
		if !ok {
			return model, nil
		}
		if !selected.editable {
			model.fail(workspace.ErrNotEditable)
			return model, nil
		}
		if selected.busy {
			model.fail(workspace.ErrBusy)
			return model, nil
		}
		model.notify("Saving " + selected.name + "...")
		return model, model.save(selected.key)

	case key.Matches(message, model.keys.Delete):
		selected, ok := model.selected()
		if !ok || selected.draft {
			return model, nil
		}
		if selected.busy {
			model.fail(workspace.ErrBusy)
			return model, nil
		}
		if err := model.session.RequestDelete(selected.key); err != nil {
			model.fail(err)
			return model, nil
		}
		model.mode = modeConfirm
		model.sync()

	case key.Matches(message, model.keys.Upload):
		model.notify("")
		model.mode = modeUpload
		model.input.Placeholder = "path to an audio recording"
		model.input.SetValue("")
		command := model.input.Focus()
		return model, command

	case key.Matches(message, model.keys.Discard):
		if model.view.Draft != nil {
			model.session.DiscardDraft()
			model.sync()
			model.notify("Draft discarded")
		}

	case key.Matches(message, model.keys.Refresh):
		model.notify("Refreshing...")
		return model, model.load()
	}

	return model, nil
}

func (model Model) handleConfirmKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Confirm):
		model.mode = modeBrowse
		model.notify("Deleting...")
		return model, model.confirmDelete()

	case key.Matches(message, model.keys.Cancel), message.Type == tea.KeyCtrlC:
		model.session.AbortDelete()
		model.mode = modeBrowse
		model.sync()
		model.notify("Delete cancelled")
	}
	return model, nil
}

func (model Model) handleInputKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch message.Type {
	case tea.KeyCtrlC:
		model.session.Close()
		return model, tea.Quit

	case tea.KeyEsc:
		model.endInput()
		return model, nil

	case tea.KeyEnter:
		value := model.input.Value()
		if model.mode == modeUpload {
			model.endInput()
			path := strings.TrimSpace(value)
			if path == "" {
				return model, nil
			}
			model.notify("Processing " + filepath.Base(path) + "...")
			return model, model.upload(path)
		}
		err := model.applyEdit(value)
		model.endInput()
		model.sync()
		if err != nil {
			model.fail(err)
		} else {
			model.notify("Edited " + fieldLabels[model.editField] + " (unsaved)")
		}
		return model, nil
	}

	var command tea.Cmd
	model.input, command = model.input.Update(message)
	return model, command
}

func (model Model) startEdit() (tea.Model, tea.Cmd) {
	selected, ok := model.selected()
	if !ok || !selected.expanded {
		return model, nil
	}
	if !selected.editable {
		model.fail(workspace.ErrNotEditable)
		return model, nil
	}
	if selected.busy {
		model.fail(workspace.ErrBusy)
		return model, nil
	}
	field := editFields[model.field]
	model.notify("")
	model.mode = modeEdit
	model.editKey = selected.key
	model.editField = field
	model.input.Placeholder = fieldLabels[field]
	model.input.SetValue(fieldValue(selected.record, field))
	model.input.CursorEnd()
	command := model.input.Focus()
	return model, command
}

func (model Model) applyEdit(value string) error {
	switch model.editField {
	case fieldSummary:
		return model.session.SetSummary(model.editKey, value)
	case fieldTranscript:
		return model.session.SetTranscript(model.editKey, value)
	default:
		return model.session.SetCustomerField(model.editKey, model.editField, value)
	}
}

func (model *Model) endInput() {
	model.mode = modeBrowse
	model.input.Blur()
	model.input.SetValue("")
}

func (model Model) load() tea.Cmd {
	session, parent := model.session, model.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, requestTimeout)
		defer cancel()
		return loadedMsg{err: session.Load(ctx)}
	}
}

func (model Model) save(key string) tea.Cmd {
	session, parent := model.session, model.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, requestTimeout)
		defer cancel()
		id, err := session.Save(ctx, key)
		return savedMsg{key: key, id: id, err: err}
	}
}

func (model Model) confirmDelete() tea.Cmd {
	session, parent := model.session, model.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, requestTimeout)
		defer cancel()
		return deletedMsg{err: session.ConfirmDelete(ctx)}
	}
}

func (model Model) upload(path string) tea.Cmd {
	session, parent, open := model.session, model.ctx, model.open
	return func() tea.Msg {
		file, err := open(path)
		if err != nil {
			return uploadedMsg{err: fmt.Errorf("open recording: %w", err)}
		}
		defer file.Close()

		ctx, cancel := context.WithTimeout(parent, requestTimeout)
		defer cancel()
		draft, err := session.Upload(ctx, filepath.Base(path), file)
		if err != nil {
			return uploadedMsg{err: err}
		}
		return uploadedMsg{name: draft.DisplayName()}
	}
}

// sync re-reads the session snapshot and rebuilds the row list, keeping the
// cursor on the same record when it is still present.
func (model *Model) sync() {
	current := ""
	if selected, ok := model.selected(); ok {
		current = selected.key
	}

	model.view = model.session.Snapshot()
	items := make([]item, 0, len(model.view.Rows)+1)
	if draft := model.view.Draft; draft != nil {
		items = append(items, item{
			key:        reconcile.DraftKey,
			name:       draft.DisplayName(),
			provenance: record.Live,
			draft:      true,
			record:     draft,
			expanded:   true,
			busy:       model.view.DraftBusy,
			editable:   true,
		})
	}
	for _, row := range model.view.Rows {
		items = append(items, item{
			key:        row.Key,
			name:       row.DisplayName,
			provenance: row.Provenance,
			record:     row.Record,
			expanded:   row.Expanded,
			busy:       row.Busy,
			pending:    row.PendingDelete,
			editable:   row.Editable,
		})
	}
	model.items = items

	for i, it := range items {
		if it.key == current {
			model.cursor = i
			return
		}
	}
	if model.cursor >= len(items) {
		model.cursor = max(len(items)-1, 0)
	}
}

func (model Model) selected() (item, bool) {
	if model.cursor < 0 || model.cursor >= len(model.items) {
		return item{}, false
	}
	return model.items[model.cursor], true
}

func (model *Model) fail(err error) {
	model.err = err
	model.status = ""
}

func (model *Model) notify(status string) {
	model.err = nil
	model.status = status
}

func fieldValue(rec *record.Record, field string) string {
	switch field {
	case fieldSummary:
		return rec.Interaction.Summary
	case fieldTranscript:
		return rec.Transcript
	default:
		return rec.CustomerField(field)
	}
}

// describeError renders a failure for the status line.
func describeError(err error) string {
	var opErr *workspace.OpError
	if errors.As(err, &opErr) {
		switch opErr.Kind {
		case workspace.FetchFailure:
			return "Could not load history: " + opErr.Err.Error()
		case workspace.SyncFailure:
			return "Save failed, edits kept: " + opErr.Err.Error()
		case workspace.DeleteFailure:
			return "Delete failed: " + opErr.Err.Error()
		}
	}
	return err.Error()
}
