package sandbox

import (
	"errors"
	"fmt"
)

var (
	// ErrCreationTimeout indicates a concurrent provisioning did not
	// resolve within the configured window.
	ErrCreationTimeout = errors.New("timeout waiting for sandbox creation")
	// ErrMissingToken indicates no GitHub credential was available for the
	// repository clone.
	ErrMissingToken = errors.New("no GitHub token provided")
	// ErrAPIKeyMissing indicates the sandbox service API key is not
	// configured; sandboxes cannot be provisioned without it.
	ErrAPIKeyMissing = errors.New("sandbox service API key is not set")
)

// ProvisionError wraps a failure to create or start a sandbox.
type ProvisionError struct {
	Err error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("sandbox provisioning failed: %v", e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}
