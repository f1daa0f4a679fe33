package lattice

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// TransportError means no response was obtained: connection failure, timeout,
// or TLS verification failure. Whether a retry is safe is the caller's call;
// for mutating operations the prior attempt may already have applied.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RemoteError means the core answered with a non-success status. It carries
// the status and body so callers can tell an unknown batch id from a
// validation failure from a plain not-found.
type RemoteError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *RemoteError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("remote rejected %s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("remote rejected %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a remote rejection with status 404.
func IsNotFound(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}

// IsRemoteRejection reports whether err is a response the core rejected, as
// opposed to a transport-level failure.
func IsRemoteRejection(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

const maxErrorBody = 64 * 1024

// newRemoteError drains up to maxErrorBody of the response body for
// diagnostics. The caller still owns closing the body.
func newRemoteError(method, path string, resp *http.Response) *RemoteError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &RemoteError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Body:       body,
	}
}
