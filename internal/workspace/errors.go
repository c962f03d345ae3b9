package workspace

import (
	"errors"
	"fmt"
)

var (
	ErrBusy            = errors.New("record is busy")
	ErrNotEditable     = errors.New("record is not editable")
	ErrNotFound        = errors.New("record not found")
	ErrNoPendingDelete = errors.New("no delete awaiting confirmation")
	ErrDeletePending   = errors.New("another delete is awaiting confirmation")
	ErrNoVoice         = errors.New("voice processing not configured")
	ErrClosed          = errors.New("workspace closed")
)

// Kind classifies a failed remote operation.
type Kind string

const (
	FetchFailure  Kind = "FETCH_FAILURE"
	SyncFailure   Kind = "SYNC_FAILURE"
	DeleteFailure Kind = "DELETE_FAILURE"
)

// OpError reports a failed fetch, sync or delete. Local state is never
// rolled back because of one: edits are retained and records stay in place.
type OpError struct {
	Kind Kind
	Key  string
	Err  error
}

func (e *OpError) Error() string {
	if e == nil {
		return ""
	}
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Key, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func opError(kind Kind, key string, err error) *OpError {
	return &OpError{Kind: kind, Key: key, Err: err}
}
