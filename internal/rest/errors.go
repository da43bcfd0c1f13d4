package rest

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the backend. Message carries the
// backend's error text verbatim so conflict failures can be shown to the
// user unchanged.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.Status)
}

// IsConflict reports whether err is a conflict/validation failure: the kind
// of error that is surfaced to the user and never retried, as opposed to a
// transport failure that self-heals on the next poll or reconnect.
func IsConflict(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Status {
	case http.StatusBadRequest, http.StatusConflict, http.StatusForbidden:
		return true
	}
	return false
}
