// Package sandbox manages remote execution sandboxes: provisioning,
// reconnecting, and the per-thread lifecycle coordination that keeps one
// sandbox per conversation thread.
package sandbox

import "context"

// ExecResult is the outcome of a command executed inside a sandbox.
type ExecResult struct {
	// Output is the combined stdout and stderr of the command.
	Output string
	// ExitCode is the process exit code; 0 indicates success.
	ExitCode int
}

// Backend is the narrow shell-and-file contract the rest of the system
// depends on. Implementations run against a remote execution service.
type Backend interface {
	// ID is the stable identifier assigned by the provisioning backend.
	ID() string

	// Execute runs a full shell command string in the sandbox.
	Execute(ctx context.Context, command string) (ExecResult, error)

	// ReadFile returns the content of a file in the sandbox.
	ReadFile(ctx context.Context, path string) (string, error)

	// WriteFile writes content to a file in the sandbox.
	WriteFile(ctx context.Context, path, content string) error
}

// Provider provisions sandboxes.
type Provider interface {
	// Create provisions a new sandbox and waits for it to become ready.
	Create(ctx context.Context) (Backend, error)

	// Connect attaches to an existing sandbox by id.
	Connect(ctx context.Context, id string) (Backend, error)

	// Delete destroys a sandbox.
	Delete(ctx context.Context, id string) error
}

// RepoSyncer brings a repository checkout inside a sandbox up to date,
// cloning it first if needed. Returns the checkout directory.
type RepoSyncer interface {
	CloneOrPull(ctx context.Context, backend Backend, owner, repo, token string) (string, error)
}
