package canvas

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRemoteUnavailable means the request never completed: DNS, refused connections,
	// timeouts, truncated bodies.
	ErrRemoteUnavailable = errors.New("canvas: remote unavailable")

	ErrUnauthorized = errors.New("canvas: authentication failed")

	// errOutOfBand marks a response that carries a status object instead of the listing we
	// asked for.
	errOutOfBand = errors.New("canvas: response is not a listing")
)

// StatusError is returned when Canvas answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
	URL        string
}

func (err *StatusError) Error() string {
	return fmt.Sprintf("canvas: unexpected HTTP response status: %s: %s", err.Status, err.URL)
}

func (err *StatusError) Unwrap() error {
	if err.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}
