package release

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidURL   = errors.New("invalid repository url")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNoRelease    = errors.New("no release with a downloadable asset found")
)

// RemoteError is returned when the releases API answers with a non-2xx status.
// A 401 response matches ErrUnauthorized.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status code: %d, error: %s", e.StatusCode, e.Message)
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to send request: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse releases listing: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
