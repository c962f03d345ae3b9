// Package export renders a stored interaction as a printable record sheet.
package export

import (
	"errors"
	"time"
)

// Field is one labelled customer attribute on the sheet.
type Field struct {
	Label string
	Value string
}

// Sheet is the content of one exported interaction.
type Sheet struct {
	ID         string
	Title      string
	Customer   []Field
	Summary    string
	Transcript string
	CreatedAt  time.Time
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
