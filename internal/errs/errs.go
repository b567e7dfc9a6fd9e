// Package errs defines the error-kind taxonomy shared by every stage of the
// check pipeline. A single request never aborts the run: stage failures are
// captured as a Status{Error(kind, detail)} value instead of a returned Go
// error, so this package's job is to give that value a stable, comparable
// shape rather than a tree of exception types.
package errs

import "fmt"

// Kind classifies why a single request could not be completed.
type Kind string

const (
	InvalidURL      Kind = "invalid_url"
	InvalidFile     Kind = "invalid_file"
	InvalidFragment Kind = "invalid_fragment"
	UnreadableInput Kind = "unreadable_input"
	NetworkTransport Kind = "network_transport"
	Timeout         Kind = "timeout"
	HTTPStatus      Kind = "http_status"
	TooManyRedirects Kind = "too_many_redirects"
	RetriesExhausted Kind = "retries_exhausted"
	QuirkClassified Kind = "quirk_classified"
	ConfigError     Kind = "config_error"
	CacheIO         Kind = "cache_io"
)

// CheckError is the concrete error value carried by Status.Error. It wraps
// the underlying cause so callers can still use errors.Is/As against it.
type CheckError struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *CheckError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *CheckError) Unwrap() error { return e.Err }

// New builds a CheckError, wrapping err (which may be nil).
func New(kind Kind, detail string, err error) *CheckError {
	return &CheckError{Kind: kind, Detail: detail, Err: err}
}
