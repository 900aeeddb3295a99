package ailink

import (
	"context"
	"errors"

	"github.com/adrianaguero/chatgate/internal/ailink/driver"
)

// Reason codes attached to GenerationError.Code.
const (
	CodeMissingCredential  = "AILINK_MISSING_CREDENTIAL"
	CodeProviderTimeout    = "AILINK_PROVIDER_TIMEOUT"
	CodeProviderCanceled   = "AILINK_PROVIDER_CANCELED"
	CodeProviderAuth       = "AILINK_PROVIDER_AUTH"
	CodeProviderRateLimit  = "AILINK_PROVIDER_RATE_LIMIT"
	CodeProviderBadRequest = "AILINK_PROVIDER_BAD_REQUEST"
	CodeProviderDown       = "AILINK_PROVIDER_UNAVAILABLE"
	CodeProviderError      = "AILINK_PROVIDER_ERROR"
)

// mapProviderError wraps a setup failure into a GenerationError.
func mapProviderError(provider string, err error) *GenerationError {
	if err == nil {
		return nil
	}
	if errors.Is(err, driver.ErrMissingAPIKey) {
		return &GenerationError{Kind: KindMissingCredential, Provider: provider, Code: CodeMissingCredential, Err: err}
	}

	gerr := &GenerationError{Kind: KindUpstreamFailure, Provider: provider, Code: CodeProviderError, Err: err}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		gerr.Code = CodeProviderTimeout
		return gerr
	case errors.Is(err, context.Canceled):
		gerr.Code = CodeProviderCanceled
		return gerr
	}

	var perr *driver.ProviderError
	if errors.As(err, &perr) && perr != nil {
		status := perr.StatusCode
		switch {
		case status == 401 || status == 403:
			gerr.Code = CodeProviderAuth
		case status == 429:
			gerr.Code = CodeProviderRateLimit
		case status >= 500 && status <= 599:
			gerr.Code = CodeProviderDown
		case status >= 400 && status <= 499:
			gerr.Code = CodeProviderBadRequest
		}
	}
	return gerr
}
