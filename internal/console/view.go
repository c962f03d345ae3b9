package console

import (
	"fmt"
	"strings"

	"voicecrm/api/internal/record"
)

const previewRunes = 160

func (model Model) View() string {
	if !model.view.Loaded {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(model.renderHeader())
	b.WriteString("\n\n")

	if len(model.items) == 0 {
		b.WriteString(model.theme.Muted.Render("No interactions yet. Press u to upload a recording."))
		b.WriteString("\n")
	}
	for i, it := range model.items {
		b.WriteString(model.renderRow(it, i == model.cursor))
		b.WriteString("\n")
		if it.expanded {
			b.WriteString(model.renderDetail(it, i == model.cursor))
		}
	}

	b.WriteString("\n")
	if line := model.renderStatus(); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(model.renderHelp())
	return b.String()
}

func (model Model) renderHeader() string {
	counts := fmt.Sprintf("%d live · %d reference", model.view.LiveCount, model.view.ReferenceCount)
	header := model.theme.Title.Render("Voice CRM history") + "  " + model.theme.Counts.Render(counts)
	if model.view.FetchErr != nil {
		header += "\n" + model.theme.Error.Render(describeError(model.view.FetchErr))
	}
	return header
}

func (model Model) renderRow(it item, selected bool) string {
	marker := "  "
	if selected {
		marker = model.theme.Cursor.Render("> ")
	}

	var tag string
	switch {
	case it.draft:
		tag = model.theme.Draft.Render("[draft]")
	case it.provenance == record.Reference:
		tag = model.theme.Reference.Render("[ref]  ")
	default:
		tag = model.theme.Live.Render("[live] ")
	}

	name := it.name
	if selected {
		name = model.theme.Selected.Render(name)
	}
	line := marker + tag + " " + name
	if ts := it.record.Timestamp(); !ts.IsZero() {
		line += "  " + model.theme.Muted.Render(ts.Local().Format("2006-01-02 15:04"))
	}
	if it.busy {
		line += "  " + model.theme.Busy.Render("saving...")
	}
	if it.pending {
		line += "  " + model.theme.Pending.Render("delete? y/n")
	}
	return line
}

func (model Model) renderDetail(it item, selected bool) string {
	var b strings.Builder
	rec := it.record
	for i, field := range editFields {
		label := model.theme.Label.Render(fieldLabels[field])
		if selected && it.editable && i == model.field {
			label = model.theme.Field.Render(fieldLabels[field])
		}
		value := fieldValue(rec, field)
		if selected && model.mode == modeEdit && model.editKey == it.key && model.editField == field {
			value = model.input.View()
		} else if strings.TrimSpace(value) == "" {
			value = model.theme.Muted.Render("N/A")
		} else {
			value = clip(value, previewRunes)
		}
		fmt.Fprintf(&b, "      %s %s\n", label, value)
	}
	if address := rec.CustomerField(record.FieldAddress); address != "" {
		fmt.Fprintf(&b, "      %s %s\n", model.theme.Label.Render(fieldLabels[record.FieldAddress]), clip(address, previewRunes))
	}
	if it.provenance == record.Reference {
		status := rec.Status
		if rec.Error != "" {
			status += " (" + rec.Error + ")"
		}
		if status != "" {
			fmt.Fprintf(&b, "      %s %s\n", model.theme.Label.Render("Eval"), status)
		}
	}
	return b.String()
}

func (model Model) renderStatus() string {
	if model.err != nil {
		return model.theme.Error.Render(describeError(model.err))
	}
	if model.mode == modeUpload {
		return "Recording: " + model.input.View()
	}
	if model.status != "" {
		return model.theme.Status.Render(model.status)
	}
	return ""
}

func (model Model) renderHelp() string {
	var parts []string
	switch model.mode {
	case modeEdit:
		parts = []string{"enter apply", "esc cancel"}
	case modeUpload:
		parts = []string{"enter upload", "esc cancel"}
	case modeConfirm:
		parts = []string{"y delete", "n cancel"}
	default:
		parts = []string{"j/k move", "enter expand", "tab field", "e edit", "s save", "d delete", "u upload", "x discard", "r refresh", "q quit"}
	}
	return model.theme.Help.Render(strings.Join(parts, " · "))
}

func clip(value string, limit int) string {
	value = strings.ReplaceAll(value, "\n", " ")
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "..."
}
