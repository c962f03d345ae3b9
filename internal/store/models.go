package store

import "time"

// Interaction is one stored voice-intake record. The flattened customer
// columns mirror raw_json so the history list can be served and searched
// without decoding it.
type Interaction struct {
	ID           int64
	Transcript   string
	CustomerName *string
	Phone        *string
	Address      *string
	City         *string
	Locality     *string
	Summary      *string
	RawJSON      string
	AudioKey     *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
