package orchestrator

import (
	"errors"
	"fmt"
)

// APIError is a non-2xx response from the orchestrator.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("orchestrator API error: %d - %s", e.StatusCode, e.Body)
}

// AsAPIError unwraps err into target, mirroring errors.As.
func AsAPIError(err error, target **APIError) bool {
	return errors.As(err, target)
}
