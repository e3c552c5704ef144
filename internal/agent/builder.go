package agent

import (
	"context"
	"fmt"

	"github.com/openswe/agent/internal/prompt"
	"github.com/openswe/agent/internal/sandbox"
)

// Agent is the fully wired run spec for one thread: the sandbox it operates
// in, the system prompt, and the middleware pipeline in lifecycle order.
type Agent struct {
	SystemPrompt string
	Backend      sandbox.Backend
	RepoDir      string
	Middleware   []Middleware
}

// Builder constructs Agents: it resolves the thread's sandbox through the
// lifecycle manager and assembles the middleware stack.
type Builder struct {
	manager   *sandbox.Manager
	registry  *sandbox.Registry
	queue     MessageDrainer
	linear    Commenter
	finalizer Finalizing
	cipher    TokenDecrypter
}

// NewBuilder wires an agent builder.
func NewBuilder(manager *sandbox.Manager, registry *sandbox.Registry, queue MessageDrainer, commenter Commenter, finalizer Finalizing, cipher TokenDecrypter) *Builder {
	return &Builder{
		manager:   manager,
		registry:  registry,
		queue:     queue,
		linear:    commenter,
		finalizer: finalizer,
		cipher:    cipher,
	}
}

// GetAgent resolves (or provisions) the sandbox for the run and returns the
// agent spec. The sandbox ends up registered so tools and the after-run
// stage can reach it.
func (b *Builder) GetAgent(ctx context.Context, cfg RunConfig) (*Agent, error) {
	if cfg.ThreadID == "" {
		return nil, fmt.Errorf("missing thread id in run config")
	}
	token := b.cipher.Decrypt(cfg.EncryptedToken)

	backend, repoDir, err := b.manager.GetOrCreate(ctx, cfg.ThreadID, cfg.Repo.Owner, cfg.Repo.Name, token)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare sandbox: %w", err)
	}

	return &Agent{
		SystemPrompt: prompt.System(repoDir, cfg.LinearIssue.ProjectID, cfg.LinearIssue.IssueNumber),
		Backend:      backend,
		RepoDir:      repoDir,
		Middleware: []Middleware{
			ToolErrorMiddleware{},
			NewQueueDrainMiddleware(b.queue),
			NewPostToLinearMiddleware(b.linear),
			NewOpenPRMiddleware(b.registry, b.finalizer, b.linear, b.cipher, b.manager),
		},
	}, nil
}
