package ai

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable    = errors.New("ai not configured")
	ErrConfig         = errors.New("ai config invalid")
	ErrMissingContent = errors.New("ai response missing text content")
	ErrInvalidJSON    = errors.New("ai response was not valid JSON")
)

// UpstreamError is a non-2xx response from an LLM or embedding provider.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s request failed: status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// ParseError carries the raw provider text that could not be decoded.
type ParseError struct {
	Provider string
	Raw      string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %s", ErrInvalidJSON.Error(), e.Err, e.Raw)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidJSON.Error(), e.Raw)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return target == ErrInvalidJSON
}

func missingContent(provider, detail string) error {
	return fmt.Errorf("%s: %w: %s", provider, ErrMissingContent, detail)
}
