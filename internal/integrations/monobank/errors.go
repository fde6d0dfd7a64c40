package monobank

import (
	"errors"
	"fmt"
	"net/http"
)

// ProviderError is a non-2xx or unreadable response from the provider. It is
// not retried within a run.
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider responded with status %d: %s", e.Status, e.Body)
}

// Unauthorized reports whether the provider rejected the credential
func (e *ProviderError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// TransportError is a network or timeout failure. It is safe to retry on a
// later scheduled run.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err carries a credential rejection
func IsUnauthorized(err error) bool {
	var perr *ProviderError
	return errors.As(err, &perr) && perr.Unauthorized()
}
