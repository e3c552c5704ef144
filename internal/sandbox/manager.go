package sandbox

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/openswe/agent/internal/orchestrator"
)

// Thread metadata keys owned by the manager.
const (
	metaSandboxID = "sandbox_id"
	metaRepoDir   = "repo_dir"
)

const (
	// DefaultCreationTimeout bounds how long a caller waits for a
	// concurrent provisioning to resolve.
	DefaultCreationTimeout = 180 * time.Second
	// DefaultPollInterval is how often thread metadata is re-read while
	// another caller is provisioning.
	DefaultPollInterval = time.Second
)

// Manager coordinates the sandbox lifecycle per thread. The persisted
// thread metadata is the source of truth for "does a sandbox exist"; the
// registry is only a cache. Concurrent creation for the same brand-new
// thread is narrowed (not eliminated) by writing a provisioning sentinel
// before the slow provision call and having racing callers poll it.
type Manager struct {
	threads  orchestrator.ThreadAPI
	provider Provider
	registry *Registry
	syncer   RepoSyncer

	creationTimeout time.Duration
	pollInterval    time.Duration
}

// NewManager creates a sandbox lifecycle manager.
func NewManager(threads orchestrator.ThreadAPI, provider Provider, registry *Registry, syncer RepoSyncer) *Manager {
	return &Manager{
		threads:         threads,
		provider:        provider,
		registry:        registry,
		syncer:          syncer,
		creationTimeout: DefaultCreationTimeout,
		pollInterval:    DefaultPollInterval,
	}
}

// WithTimeouts overrides the creation timeout and poll interval; used by
// tests to keep the poll loop fast.
func (m *Manager) WithTimeouts(creationTimeout, pollInterval time.Duration) *Manager {
	if creationTimeout > 0 {
		m.creationTimeout = creationTimeout
	}
	if pollInterval > 0 {
		m.pollInterval = pollInterval
	}
	return m
}

// GetOrCreate resolves the thread's sandbox: reconnects to a persisted one,
// waits out a concurrent provisioning, or provisions a new sandbox and
// clones the repository into it. The returned string is the repository
// checkout directory inside the sandbox.
func (m *Manager) GetOrCreate(ctx context.Context, threadID, owner, repo, token string) (Backend, string, error) {
	if token == "" {
		return nil, "", ErrMissingToken
	}

	ref, err := m.readRef(ctx, threadID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read thread metadata: %w", err)
	}

	if ref.State == StateProvisioning {
		log.Printf("Sandbox creation in progress for thread %s, waiting...", threadID)
		ref, err = m.waitForReady(ctx, threadID)
		if err != nil {
			return nil, "", err
		}
	}

	var backend Backend
	fresh := false
	switch ref.State {
	case StateAbsent:
		backend, err = m.provisionNew(ctx, threadID)
		fresh = true
	case StateReady:
		backend, fresh, err = m.reconnectOrReplace(ctx, threadID, ref.ID)
	}
	if err != nil {
		return nil, "", err
	}

	repoDir, err := m.syncer.CloneOrPull(ctx, backend, owner, repo, token)
	if err != nil {
		// A freshly provisioned sandbox with no usable checkout is reset so
		// the next caller starts from scratch. An established sandbox keeps
		// its id: the checkout (and any in-flight work) is still there, only
		// this sync failed.
		if fresh {
			m.resetRef(ctx, threadID)
		}
		return nil, "", err
	}

	if err := m.threads.UpdateThreadMetadata(ctx, threadID, map[string]any{metaRepoDir: repoDir}); err != nil {
		log.Printf("Warning: failed to persist repo_dir for thread %s: %v", threadID, err)
	}

	m.registry.Put(threadID, backend)
	return backend, repoDir, nil
}

// provisionNew writes the provisioning sentinel, creates a sandbox, and
// persists the real id as soon as it is known so racing callers can start
// connecting before the repository clone finishes.
func (m *Manager) provisionNew(ctx context.Context, threadID string) (Backend, error) {
	log.Printf("Creating new sandbox for thread %s", threadID)
	if err := m.writeRef(ctx, threadID, Ref{State: StateProvisioning}); err != nil {
		return nil, fmt.Errorf("failed to write provisioning sentinel: %w", err)
	}

	backend, err := m.provider.Create(ctx)
	if err != nil {
		m.resetRef(ctx, threadID)
		return nil, err
	}
	log.Printf("Sandbox created: %s", backend.ID())

	if err := m.writeRef(ctx, threadID, Ref{State: StateReady, ID: backend.ID()}); err != nil {
		m.resetRef(ctx, threadID)
		return nil, fmt.Errorf("failed to persist sandbox id: %w", err)
	}
	return backend, nil
}

// reconnectOrReplace connects to the persisted sandbox; if the sandbox has
// been evicted upstream, it is replaced rather than failing the operation.
// The second return value reports whether the backend was freshly provisioned.
func (m *Manager) reconnectOrReplace(ctx context.Context, threadID, sandboxID string) (Backend, bool, error) {
	log.Printf("Connecting to existing sandbox %s", sandboxID)
	backend, err := m.provider.Connect(ctx, sandboxID)
	if err == nil {
		return backend, false, nil
	}

	log.Printf("Warning: failed to connect to existing sandbox %s, creating new one: %v", sandboxID, err)
	m.registry.Delete(threadID)
	backend, err = m.provisionNew(ctx, threadID)
	return backend, true, err
}

// waitForReady polls thread metadata until the sandbox id resolves to a
// real value or the creation timeout elapses.
func (m *Manager) waitForReady(ctx context.Context, threadID string) (Ref, error) {
	deadline := time.Now().Add(m.creationTimeout)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return Ref{}, ctx.Err()
		case <-time.After(m.pollInterval):
		}

		ref, err := m.readRef(ctx, threadID)
		if err != nil {
			return Ref{}, fmt.Errorf("failed to poll thread metadata: %w", err)
		}
		if ref.State == StateReady {
			return ref, nil
		}
	}
	return Ref{}, fmt.Errorf("%w for thread %s", ErrCreationTimeout, threadID)
}

func (m *Manager) readRef(ctx context.Context, threadID string) (Ref, error) {
	thread, err := m.threads.GetThread(ctx, threadID)
	if err != nil {
		return Ref{}, err
	}
	return ParseRef(thread.Metadata[metaSandboxID]), nil
}

func (m *Manager) writeRef(ctx context.Context, threadID string, ref Ref) error {
	return m.threads.UpdateThreadMetadata(ctx, threadID, map[string]any{
		metaSandboxID: ref.Encode(),
	})
}

// resetRef clears the sandbox id to absent (not the sentinel) so subsequent
// callers retry cleanly after a failure.
func (m *Manager) resetRef(ctx context.Context, threadID string) {
	if err := m.writeRef(ctx, threadID, Ref{State: StateAbsent}); err != nil {
		log.Printf("Warning: failed to reset sandbox_id for thread %s: %v", threadID, err)
	} else {
		log.Printf("Reset sandbox_id for thread %s", threadID)
	}
}

// RepoDir returns the persisted checkout directory for a thread, if any.
func (m *Manager) RepoDir(ctx context.Context, threadID string) string {
	thread, err := m.threads.GetThread(ctx, threadID)
	if err != nil {
		return ""
	}
	dir, _ := thread.Metadata[metaRepoDir].(string)
	return dir
}
