package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"voicecrm/api/internal/record"
)

// HistoryRow is one entry of GET /history.
type HistoryRow struct {
	ID           string          `json:"id"`
	Input        string          `json:"input"`
	Output       json.RawMessage `json:"output"`
	Status       string          `json:"status"`
	CreatedAt    string          `json:"created_at"`
	CustomerName *string         `json:"customer_name"`
	Phone        *string         `json:"phone"`
	City         *string         `json:"city"`
	Locality     *string         `json:"locality"`
}

// VoiceResult is the response of POST /process-voice.
type VoiceResult struct {
	Transcript string        `json:"transcript"`
	Data       record.Output `json:"data"`
	AudioKey   string        `json:"audio_key,omitempty"`
}

// WriteInput is a create or update payload. Presence is tracked per key so
// that an update leaves absent keys untouched.
type WriteInput struct {
	Customer       map[string]json.RawMessage
	Interaction    map[string]json.RawMessage
	HasCustomer    bool
	HasInteraction bool
	Transcript     *string
	AudioKey       string
}

// ParseWriteInput reads {customer, interaction, transcript} with "input" as a
// legacy alias for transcript.
func ParseWriteInput(raw map[string]json.RawMessage) (WriteInput, error) {
	var in WriteInput
	if value, ok := raw["customer"]; ok && !isNull(value) {
		if err := json.Unmarshal(value, &in.Customer); err != nil {
			return WriteInput{}, fmt.Errorf("customer must be an object")
		}
		in.HasCustomer = true
	}
	if value, ok := raw["interaction"]; ok && !isNull(value) {
		if err := json.Unmarshal(value, &in.Interaction); err != nil {
			return WriteInput{}, fmt.Errorf("interaction must be an object")
		}
		in.HasInteraction = true
	}
	for _, key := range []string{"transcript", "input"} {
		if value, ok := raw[key]; ok {
			text := jsonText(value)
			in.Transcript = &text
			break
		}
	}
	if value, ok := raw["audio_key"]; ok {
		in.AudioKey = jsonText(value)
	}
	return in, nil
}

// customerField returns the field value and whether the key was present.
// JSON null yields a nil value.
func (in WriteInput) customerField(field string) (*string, bool) {
	value, ok := in.Customer[field]
	if !ok {
		return nil, false
	}
	if isNull(value) {
		return nil, true
	}
	text := jsonText(value)
	return &text, true
}

// customerName is full_name, or the legacy customer_name key, when either is
// non-empty.
func (in WriteInput) customerName() *string {
	for _, field := range []string{record.FieldFullName, "customer_name"} {
		if value, _ := in.customerField(field); value != nil && strings.TrimSpace(*value) != "" {
			return value
		}
	}
	return nil
}

func (in WriteInput) summary() (*string, bool) {
	value, ok := in.Interaction["summary"]
	if !ok {
		return nil, false
	}
	if isNull(value) {
		return nil, true
	}
	text := jsonText(value)
	return &text, true
}

// rawJSON merges the payload's customer and interaction over the stored
// document. Keys absent from the payload keep their stored value.
func (in WriteInput) rawJSON(stored string) (string, error) {
	doc := map[string]json.RawMessage{}
	if strings.TrimSpace(stored) != "" {
		_ = json.Unmarshal([]byte(stored), &doc)
		if doc == nil {
			doc = map[string]json.RawMessage{}
		}
	}
	if in.HasCustomer {
		encoded, err := json.Marshal(in.Customer)
		if err != nil {
			return "", err
		}
		doc["customer"] = encoded
	} else if _, ok := doc["customer"]; !ok {
		doc["customer"] = json.RawMessage(`{}`)
	}
	if in.HasInteraction {
		encoded, err := json.Marshal(in.Interaction)
		if err != nil {
			return "", err
		}
		doc["interaction"] = encoded
	} else if _, ok := doc["interaction"]; !ok {
		doc["interaction"] = json.RawMessage(`{}`)
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// parseInteractionID accepts "db-<n>" or "<n>".
func parseInteractionID(value string) (int64, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "db-")
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || id <= 0 {
		return 0, domainError(http.StatusBadRequest, "INVALID_ID", "Invalid record id", map[string]any{"id": value})
	}
	return id, nil
}

func formatInteractionID(id int64) string {
	return "db-" + strconv.FormatInt(id, 10)
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// jsonText is the string value of a JSON string, or the literal text of any
// other JSON value.
func jsonText(raw json.RawMessage) string {
	var value string
	if err := json.Unmarshal(raw, &value); err == nil {
		return value
	}
	if isNull(raw) {
		return ""
	}
	return strings.TrimSpace(string(raw))
}
