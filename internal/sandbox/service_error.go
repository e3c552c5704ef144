package sandbox

import (
	"errors"
	"fmt"
)

// serviceError is a non-2xx response from the sandbox service.
type serviceError struct {
	StatusCode int
	Body       string
}

func (e *serviceError) Error() string {
	return fmt.Sprintf("sandbox service error: %d - %s", e.StatusCode, e.Body)
}

func asServiceError(err error, target **serviceError) bool {
	return errors.As(err, target)
}
