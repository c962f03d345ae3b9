package app

import (
	"fmt"
	"net/http"
)

// DomainError is an error with a fixed HTTP status and a machine-readable
// code. Err, when set, is the upstream failure it was raised for; it is
// logged but never sent to the client beyond Message.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
	Err     error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func invalidUpload(code, message string) *DomainError {
	return domainError(http.StatusBadRequest, code, message, nil)
}

func extractionUnavailable() *DomainError {
	return domainError(http.StatusServiceUnavailable, "EXTRACTION_UNAVAILABLE", "Voice processing is not configured", nil)
}

func pdfUnavailable(message string) *DomainError {
	return domainError(http.StatusServiceUnavailable, "PDF_UNAVAILABLE", message, nil)
}

// upstreamFailure reports a failed call to the transcription or extraction
// provider. The provider's message is passed through to the client.
func upstreamFailure(code string, err error) *DomainError {
	return &DomainError{
		Status:  http.StatusBadGateway,
		Code:    code,
		Message: err.Error(),
		Err:     err,
	}
}
