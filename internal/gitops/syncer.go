package gitops

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/openswe/agent/internal/sandbox"
)

// DefaultWorkRoot is where repositories are checked out inside a sandbox.
const DefaultWorkRoot = "/workspace"

// CloneError distinguishes a failed initial clone from a failed repair of
// an existing checkout.
type CloneError struct {
	Repair bool
	Err    error
}

func (e *CloneError) Error() string {
	if e.Repair {
		return fmt.Sprintf("failed to repair existing checkout: %v", e.Err)
	}
	return fmt.Sprintf("failed to clone repository: %v", e.Err)
}

func (e *CloneError) Unwrap() error { return e.Err }

// Syncer materializes GitHub repositories inside sandboxes. It implements
// sandbox.RepoSyncer.
type Syncer struct {
	workRoot string
	host     string
}

// NewSyncer creates a Syncer rooted at DefaultWorkRoot for github.com.
func NewSyncer() *Syncer {
	return &Syncer{workRoot: DefaultWorkRoot, host: "github.com"}
}

// WithWorkRoot overrides the checkout root; used by tests.
func (s *Syncer) WithWorkRoot(root string) *Syncer {
	s.workRoot = strings.TrimRight(root, "/")
	return s
}

func (s *Syncer) repoDir(repo string) string {
	return s.workRoot + "/" + repo
}

func (s *Syncer) cleanURL(owner, repo string) string {
	return fmt.Sprintf("https://%s/%s/%s.git", s.host, owner, repo)
}

// CloneOrPull ensures owner/repo is checked out in the sandbox and returns
// the checkout directory. Three cases: no directory yet (clone), a valid
// git checkout (pull when clean), and a directory that exists but is not a
// git repository (initialize in place and fetch into it).
func (s *Syncer) CloneOrPull(ctx context.Context, backend sandbox.Backend, owner, repo, token string) (string, error) {
	dir := s.repoDir(repo)
	clean := s.cleanURL(owner, repo)
	authed := authenticatedURL(clean, token)

	switch s.classify(ctx, backend, dir) {
	case checkoutMissing:
		log.Printf("Cloning %s/%s into %s", owner, repo, dir)
		if err := s.clone(ctx, backend, dir, clean, authed); err != nil {
			return "", &CloneError{Err: err}
		}

	case checkoutValid:
		if err := s.refresh(ctx, backend, dir, clean, authed); err != nil {
			return "", &CloneError{Repair: true, Err: err}
		}

	case checkoutBroken:
		log.Printf("Directory %s exists but is not a git repository, initializing in place", dir)
		if err := s.repair(ctx, backend, dir, clean, authed); err != nil {
			return "", &CloneError{Repair: true, Err: err}
		}
	}
	return dir, nil
}

type checkoutState int

const (
	checkoutMissing checkoutState = iota
	checkoutValid
	checkoutBroken
)

func (s *Syncer) classify(ctx context.Context, backend sandbox.Backend, dir string) checkoutState {
	result, err := backend.Execute(ctx, fmt.Sprintf("test -d %s", shQuote(dir)))
	if err != nil || result.ExitCode != 0 {
		return checkoutMissing
	}
	if _, err := run(ctx, backend, dir, "rev-parse --git-dir"); err != nil {
		return checkoutBroken
	}
	return checkoutValid
}

func (s *Syncer) clone(ctx context.Context, backend sandbox.Backend, dir, clean, authed string) error {
	result, err := backend.Execute(ctx, fmt.Sprintf("git clone %s %s", shQuote(authed), shQuote(dir)))
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("git clone failed (exit %d): %s", result.ExitCode, strings.TrimSpace(result.Output))
	}
	// The clone URL carried the token; replace it with the credential-free
	// URL so nothing sensitive survives in .git/config.
	_, err = run(ctx, backend, dir, fmt.Sprintf("remote set-url origin %s", shQuote(clean)))
	return err
}

// refresh updates an existing checkout. In-progress work is never clobbered:
// the pull only happens when the working tree is clean.
func (s *Syncer) refresh(ctx context.Context, backend sandbox.Backend, dir, clean, authed string) error {
	if _, err := run(ctx, backend, dir, fmt.Sprintf("remote set-url origin %s", shQuote(clean))); err != nil {
		return err
	}
	dirty, err := HasUncommittedChanges(ctx, backend, dir)
	if err != nil {
		return err
	}
	if dirty {
		log.Printf("Checkout %s has uncommitted changes, skipping pull", dir)
		return nil
	}
	if _, err := run(ctx, backend, dir, fmt.Sprintf("pull %s", shQuote(authed))); err != nil {
		log.Printf("Warning: pull failed for %s: %v", dir, err)
	}
	return nil
}

// repair turns a pre-existing non-git directory into a checkout without
// moving it, so any files already in place are preserved.
func (s *Syncer) repair(ctx context.Context, backend sandbox.Backend, dir, clean, authed string) error {
	steps := []string{
		"init",
		fmt.Sprintf("remote add origin %s", shQuote(clean)),
		fmt.Sprintf("fetch --prune %s", shQuote(authed)),
	}
	for _, step := range steps {
		if _, err := run(ctx, backend, dir, step); err != nil {
			return err
		}
	}
	branch, err := s.defaultBranch(ctx, backend, dir, authed)
	if err != nil {
		return err
	}
	_, err = run(ctx, backend, dir, fmt.Sprintf("checkout -B %s FETCH_HEAD", shQuote(branch)))
	return err
}

func (s *Syncer) defaultBranch(ctx context.Context, backend sandbox.Backend, dir, authed string) (string, error) {
	out, err := run(ctx, backend, dir, fmt.Sprintf("ls-remote --symref %s HEAD", shQuote(authed)))
	if err != nil {
		return "", err
	}
	// First line looks like: ref: refs/heads/main	HEAD
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "ref: refs/heads/") {
			fields := strings.Fields(strings.TrimPrefix(line, "ref: refs/heads/"))
			if len(fields) > 0 {
				return fields[0], nil
			}
		}
	}
	return "main", nil
}
