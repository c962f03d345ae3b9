// Package record holds the voice-intake record model shared by the API and
// the console, and the projection that merges live and reference records
// into one display list.
package record

import (
	"strings"
	"time"
)

// Provenance tags where a displayed record came from.
type Provenance string

const (
	Live      Provenance = "live"
	Reference Provenance = "reference"
)

// Customer field names produced by the extraction service.
const (
	FieldFullName = "full_name"
	FieldPhone    = "phone"
	FieldAddress  = "address"
	FieldCity     = "city"
	FieldLocality = "locality"
)

// EditableCustomerFields are the customer fields offered for editing in the
// history view, in display order.
var EditableCustomerFields = []string{FieldFullName, FieldPhone, FieldCity, FieldLocality}

// UnknownEntity is the display name used when no usable name exists.
const UnknownEntity = "Unknown Entity"

const notAvailable = "N/A"

// Record is one voice-intake session's extracted data.
//
// Customer is the single source of truth for customer fields. The flattened
// shortcut columns the API sends alongside (customer_name, phone, ...) are
// folded into Customer when decoding and recomputed when encoding, so a local
// edit never has to be written in two places.
//
// Records held by the reconcile state are treated as immutable: the With*
// methods return modified copies.
type Record struct {
	ID          string
	Provenance  Provenance
	Transcript  string
	Customer    map[string]string
	Interaction Interaction
	CreatedAt   time.Time
	// Status is the source's own tag: REAL for stored rows, PASS/FAIL/ERROR
	// for evaluation rows.
	Status string
	Error  string
}

// IsNew reports whether the record has not been persisted yet.
func (r *Record) IsNew() bool {
	return r.ID == ""
}

// Editable reports whether local mutations and write-back apply to r.
func (r *Record) Editable() bool {
	return r != nil && r.Provenance == Live
}

// CustomerField returns the named customer field, or "" when absent.
func (r *Record) CustomerField(field string) string {
	if r == nil || r.Customer == nil {
		return ""
	}
	return r.Customer[field]
}

// CustomerName is the derived view of the customer-name shortcut.
func (r *Record) CustomerName() string {
	return r.CustomerField(FieldFullName)
}

// DisplayName returns the customer's name, or UnknownEntity when the name is
// absent or the literal "N/A".
func (r *Record) DisplayName() string {
	if name := r.CustomerName(); usable(name) {
		return name
	}
	return UnknownEntity
}

// Timestamp is the time used for chronological display: CreatedAt, or the
// interaction's own creation time when CreatedAt is unset.
func (r *Record) Timestamp() time.Time {
	if !r.CreatedAt.IsZero() {
		return r.CreatedAt
	}
	if ts, ok := ParseTimestamp(r.Interaction.CreatedAt); ok {
		return ts
	}
	return time.Time{}
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.Customer != nil {
		out.Customer = make(map[string]string, len(r.Customer))
		for k, v := range r.Customer {
			out.Customer[k] = v
		}
	}
	out.Interaction = r.Interaction.clone()
	return &out
}

// WithCustomerField returns a copy of r with the customer field set. Every
// other customer field and the interaction are carried over.
func (r *Record) WithCustomerField(field, value string) *Record {
	out := r.Clone()
	if out.Customer == nil {
		out.Customer = make(map[string]string, 1)
	}
	out.Customer[field] = value
	return out
}

// WithSummary returns a copy of r with the interaction summary set.
func (r *Record) WithSummary(value string) *Record {
	out := r.Clone()
	out.Interaction.Summary = value
	return out
}

// WithTranscript returns a copy of r with the transcript set.
func (r *Record) WithTranscript(value string) *Record {
	out := r.Clone()
	out.Transcript = value
	return out
}

// WithID returns a copy of r carrying the server-assigned identity.
func (r *Record) WithID(id string) *Record {
	out := r.Clone()
	out.ID = id
	return out
}

// Payload is the body sent to the live store on create and update.
type Payload struct {
	Customer    map[string]string `json:"customer"`
	Interaction Interaction       `json:"interaction"`
	Transcript  string            `json:"transcript"`
}

// Payload builds the write-back body for r.
func (r *Record) Payload() Payload {
	clone := r.Clone()
	customer := clone.Customer
	if customer == nil {
		customer = map[string]string{}
	}
	return Payload{
		Customer:    customer,
		Interaction: clone.Interaction,
		Transcript:  clone.Transcript,
	}
}

func usable(value string) bool {
	trimmed := strings.TrimSpace(value)
	return trimmed != "" && trimmed != notAvailable
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp shapes the API and the extraction
// service emit. Values without a zone are taken as UTC.
func ParseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
