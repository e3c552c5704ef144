// Package gitops runs git operations inside a sandbox backend. All commands
// go through the backend's shell; tokens are injected into per-command URLs
// and never written into the repository's remote configuration.
package gitops

import (
	"context"
	"fmt"
	"strings"

	"github.com/openswe/agent/internal/sandbox"
)

// Bot identity used for commits made on behalf of the agent.
const (
	BotName  = "Open SWE[bot]"
	BotEmail = "Open SWE@users.noreply.github.com"
)

// run executes a git command in dir and fails on non-zero exit.
func run(ctx context.Context, backend sandbox.Backend, dir, args string) (string, error) {
	command := fmt.Sprintf("git -C %s %s", shQuote(dir), args)
	result, err := backend.Execute(ctx, command)
	if err != nil {
		return "", fmt.Errorf("git %s: %w", firstWord(args), err)
	}
	if result.ExitCode != 0 {
		return result.Output, fmt.Errorf("git %s failed (exit %d): %s", firstWord(args), result.ExitCode, strings.TrimSpace(result.Output))
	}
	return strings.TrimSpace(result.Output), nil
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

// shQuote wraps s in single quotes for safe use in a shell command.
func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// HasUncommittedChanges reports whether the working tree has staged or
// unstaged changes, including untracked files.
func HasUncommittedChanges(ctx context.Context, backend sandbox.Backend, dir string) (bool, error) {
	out, err := run(ctx, backend, dir, "status --porcelain")
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// FetchOrigin updates remote tracking refs. Failures are reported but are
// usually tolerable for callers that only need a best-effort view.
func FetchOrigin(ctx context.Context, backend sandbox.Backend, dir, token string) error {
	remote, err := RemoteURL(ctx, backend, dir)
	if err != nil {
		return err
	}
	_, err = run(ctx, backend, dir, fmt.Sprintf("fetch %s", shQuote(authenticatedURL(remote, token))))
	return err
}

// HasUnpushedCommits reports whether HEAD has commits not present on its
// upstream, falling back to origin/HEAD when no upstream is configured.
// When neither ref resolves it reports false: a branch pushed by URL has no
// upstream, and treating it as unpushed would re-push on every run.
func HasUnpushedCommits(ctx context.Context, backend sandbox.Backend, dir string) (bool, error) {
	out, err := run(ctx, backend, dir, "log @{upstream}..HEAD --oneline")
	if err == nil {
		return out != "", nil
	}

	out, err = run(ctx, backend, dir, "log origin/HEAD..HEAD --oneline")
	if err != nil {
		return false, nil
	}
	return out != "", nil
}

// CurrentBranch returns the checked-out branch name.
func CurrentBranch(ctx context.Context, backend sandbox.Backend, dir string) (string, error) {
	return run(ctx, backend, dir, "rev-parse --abbrev-ref HEAD")
}

// CheckoutBranch switches to the named branch, creating it if necessary.
func CheckoutBranch(ctx context.Context, backend sandbox.Backend, dir, branch string) error {
	if _, err := run(ctx, backend, dir, fmt.Sprintf("checkout %s", shQuote(branch))); err == nil {
		return nil
	}
	_, err := run(ctx, backend, dir, fmt.Sprintf("checkout -b %s", shQuote(branch)))
	return err
}

// ConfigUser sets the repository-local commit identity.
func ConfigUser(ctx context.Context, backend sandbox.Backend, dir, name, email string) error {
	if _, err := run(ctx, backend, dir, fmt.Sprintf("config user.name %s", shQuote(name))); err != nil {
		return err
	}
	_, err := run(ctx, backend, dir, fmt.Sprintf("config user.email %s", shQuote(email)))
	return err
}

// AddAll stages every change in the working tree.
func AddAll(ctx context.Context, backend sandbox.Backend, dir string) error {
	_, err := run(ctx, backend, dir, "add -A")
	return err
}

// Commit records staged changes with the given message.
func Commit(ctx context.Context, backend sandbox.Backend, dir, message string) error {
	_, err := run(ctx, backend, dir, fmt.Sprintf("commit -m %s", shQuote(message)))
	return err
}

// RemoteURL returns the origin URL as configured in the repository. It never
// includes credentials because this package never persists them.
func RemoteURL(ctx context.Context, backend sandbox.Backend, dir string) (string, error) {
	return run(ctx, backend, dir, "remote get-url origin")
}

// Push pushes branch to origin using a token-authenticated URL built for
// this one command. The configured remote is left untouched.
func Push(ctx context.Context, backend sandbox.Backend, dir, branch, token string) error {
	remote, err := RemoteURL(ctx, backend, dir)
	if err != nil {
		return err
	}
	_, err = run(ctx, backend, dir, fmt.Sprintf("push %s HEAD:refs/heads/%s",
		shQuote(authenticatedURL(remote, token)), branch))
	return err
}

// authenticatedURL injects an x-access-token credential into an https
// remote URL. Non-https URLs are returned unchanged.
func authenticatedURL(remote, token string) string {
	if token == "" {
		return remote
	}
	const prefix = "https://"
	if !strings.HasPrefix(remote, prefix) {
		return remote
	}
	rest := remote[len(prefix):]
	// Strip any credential already embedded in the URL.
	if i := strings.IndexByte(rest, '@'); i >= 0 && i < strings.IndexByte(rest+"/", '/') {
		rest = rest[i+1:]
	}
	return prefix + "x-access-token:" + token + "@" + rest
}
