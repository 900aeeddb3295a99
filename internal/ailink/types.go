package ailink

import (
	"errors"
	"fmt"
)

// ErrorKind classifies generation failures that happen before any byte is produced.
type ErrorKind string

const (
	KindMissingCredential ErrorKind = "missing_credential"
	KindUpstreamFailure   ErrorKind = "upstream_failure"
)

// GenerationError is returned by Generate when a stream could not be opened.
//
// Code is a stable reason code for logs and metrics. It is never sent to callers.
type GenerationError struct {
	Kind     ErrorKind
	Provider string
	Code     string
	Err      error
}

func (e *GenerationError) Error() string {
	if e == nil {
		return "generation error"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf returns the kind of a *GenerationError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var gerr *GenerationError
	if errors.As(err, &gerr) && gerr != nil {
		return gerr.Kind
	}
	return ""
}
