// Package remote implements the marker-service transport: upload, fetch and
// delete of denormalized timeline sets keyed by video identifier.
package remote

import "fmt"

// ErrorKind classifies transport failures so callers can react per class.
type ErrorKind string

const (
	KindInvalidURL   ErrorKind = "invalid_url"
	KindNetwork      ErrorKind = "network"
	KindDecoding     ErrorKind = "decoding"
	KindServer       ErrorKind = "server"
	KindNoData       ErrorKind = "no_data"
	KindUnauthorized ErrorKind = "unauthorized"
	KindToken        ErrorKind = "token"
	KindUnknown      ErrorKind = "unknown"
)

// TransportError is the typed error returned by every client operation.
// StatusCode is set for server and unauthorized kinds; Err carries the
// underlying cause for network, decoding and token kinds.
type TransportError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("remote %s: HTTP %d: %s", e.Kind, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("remote %s: HTTP %d", e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("remote %s: %v", e.Kind, e.Err)
	case e.Message != "":
		return fmt.Sprintf("remote %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("remote %s", e.Kind)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a retry can plausibly succeed: network failures
// and 5xx responses. Client errors and auth failures are permanent.
func (e *TransportError) Retryable() bool {
	return e.Kind == KindNetwork || (e.Kind == KindServer && e.StatusCode >= 500)
}

func networkError(err error) *TransportError {
	return &TransportError{Kind: KindNetwork, Err: err}
}

func decodingError(err error) *TransportError {
	return &TransportError{Kind: KindDecoding, Err: err}
}

func tokenError(err error) *TransportError {
	return &TransportError{Kind: KindToken, Err: err}
}
