package record

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Interaction is the nested interaction mapping. Keys other than summary and
// created_at are kept verbatim so a round trip never drops them.
type Interaction struct {
	Summary   string
	CreatedAt string
	Extra     map[string]json.RawMessage
}

func (i Interaction) clone() Interaction {
	out := i
	if i.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(i.Extra))
		for k, v := range i.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

func (i Interaction) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(i.Extra)+2)
	for k, v := range i.Extra {
		out[k] = v
	}
	out["summary"] = i.Summary
	if i.CreatedAt != "" {
		out["created_at"] = i.CreatedAt
	}
	return json.Marshal(out)
}

func (i *Interaction) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = Interaction{}
	for key, value := range raw {
		switch key {
		case "summary":
			i.Summary = rawString(value)
		case "created_at":
			i.CreatedAt = rawString(value)
		default:
			if i.Extra == nil {
				i.Extra = make(map[string]json.RawMessage)
			}
			i.Extra[key] = value
		}
	}
	return nil
}

// FlexID accepts both string identities ("db-7") and the numeric ids used by
// the evaluation dataset.
type FlexID string

func (f *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*f = FlexID(value)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return err
	}
	*f = FlexID(number.String())
	return nil
}

// Output is the structured extraction result.
type Output struct {
	Customer    map[string]*string `json:"customer"`
	Interaction Interaction        `json:"interaction"`
}

// Entry is the JSON shape of one history row. The API emits it for live rows
// and the evaluation runner emits it for reference rows; the customer and
// interaction may also appear at the top level, as in a write payload.
type Entry struct {
	ID           FlexID             `json:"id,omitempty"`
	Input        string             `json:"input,omitempty"`
	Transcript   string             `json:"transcript,omitempty"`
	Output       *Output            `json:"output,omitempty"`
	Customer     map[string]*string `json:"customer,omitempty"`
	Interaction  *Interaction       `json:"interaction,omitempty"`
	Status       string             `json:"status,omitempty"`
	Error        string             `json:"error,omitempty"`
	CreatedAt    string             `json:"created_at,omitempty"`
	CustomerName *string            `json:"customer_name,omitempty"`
	Phone        *string            `json:"phone,omitempty"`
	City         *string            `json:"city,omitempty"`
	Locality     *string            `json:"locality,omitempty"`
}

// Decode converts a wire entry into a Record with the given provenance.
// Usable top-level shortcut values take precedence over the nested customer
// mapping; "N/A" and empty shortcuts are skipped.
func Decode(entry Entry, provenance Provenance) *Record {
	rec := &Record{
		ID:         string(entry.ID),
		Provenance: provenance,
		Transcript: entry.Input,
		Customer:   map[string]string{},
		Status:     entry.Status,
		Error:      entry.Error,
	}
	if rec.Transcript == "" {
		rec.Transcript = entry.Transcript
	}

	nested := entry.Customer
	if entry.Output != nil {
		if entry.Output.Customer != nil {
			nested = entry.Output.Customer
		}
		rec.Interaction = entry.Output.Interaction.clone()
	} else if entry.Interaction != nil {
		rec.Interaction = entry.Interaction.clone()
	}
	for field, value := range nested {
		if value != nil {
			rec.Customer[field] = *value
		} else {
			rec.Customer[field] = ""
		}
	}

	shortcuts := map[string]*string{
		FieldFullName: entry.CustomerName,
		FieldPhone:    entry.Phone,
		FieldCity:     entry.City,
		FieldLocality: entry.Locality,
	}
	for field, value := range shortcuts {
		if value != nil && usable(*value) {
			rec.Customer[field] = *value
		}
	}

	if ts, ok := ParseTimestamp(entry.CreatedAt); ok {
		rec.CreatedAt = ts
	}
	return rec
}

// DecodeAll decodes a list of entries, preserving order.
func DecodeAll(entries []Entry, provenance Provenance) []*Record {
	out := make([]*Record, 0, len(entries))
	for _, entry := range entries {
		out = append(out, Decode(entry, provenance))
	}
	return out
}

// Draft builds an unsaved live record from an extraction result.
func Draft(transcript string, output Output) *Record {
	return Decode(Entry{Transcript: transcript, Output: &output}, Live)
}

// Encode renders r in the history row shape, recomputing the shortcut
// fields from the nested customer mapping.
func Encode(r *Record) Entry {
	customer := make(map[string]*string, len(r.Customer))
	for field, value := range r.Customer {
		v := value
		customer[field] = &v
	}
	entry := Entry{
		ID:     FlexID(r.ID),
		Input:  r.Transcript,
		Output: &Output{Customer: customer, Interaction: r.Interaction.clone()},
		Status: r.Status,
		Error:  r.Error,
	}
	if !r.CreatedAt.IsZero() {
		entry.CreatedAt = r.CreatedAt.Format("2006-01-02T15:04:05.999999Z07:00")
	}
	entry.CustomerName = shortcut(r, FieldFullName)
	entry.Phone = shortcut(r, FieldPhone)
	entry.City = shortcut(r, FieldCity)
	entry.Locality = shortcut(r, FieldLocality)
	return entry
}

func shortcut(r *Record, field string) *string {
	value, ok := r.Customer[field]
	if !ok {
		return nil
	}
	return &value
}

func rawString(raw json.RawMessage) string {
	var value string
	if err := json.Unmarshal(raw, &value); err == nil {
		return value
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return ""
	}
	return trimmed
}
