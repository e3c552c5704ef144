// Package workflow drives the end-of-run sequence: commit whatever the
// agent changed, push it to a feature branch, open a pull request, and
// report the outcome back to the originating Linear issue.
package workflow

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/openswe/agent/internal/githubapi"
	"github.com/openswe/agent/internal/gitops"
	"github.com/openswe/agent/internal/linear"
	"github.com/openswe/agent/internal/sandbox"
)

// BranchPrefix is prepended to the thread id to form the PR head branch.
const BranchPrefix = "open-swe/"

// GitHubAPI is the slice of the GitHub client the finalizer needs.
type GitHubAPI interface {
	CreatePR(ctx context.Context, owner, repo, token, title, head, base, body string) (*githubapi.PullRequest, error)
	DefaultBranch(ctx context.Context, owner, repo, token string) string
}

// Commenter posts comments to Linear issues.
type Commenter interface {
	CommentOnIssue(ctx context.Context, issueID, body string) bool
}

// Request carries everything one finalization needs.
type Request struct {
	ThreadID string
	Owner    string
	Repo     string
	RepoDir  string
	Token    string

	Title         string
	Body          string
	CommitMessage string

	// LinearIssueID and ResponseText feed the outcome comment. Either may
	// be empty, in which case no comment is posted.
	LinearIssueID string
	ResponseText  string
}

// Result reports what the finalization did.
type Result struct {
	PRURL    string
	PRNumber int
	// NoChanges is set when the working tree and local history matched the
	// remote and nothing was committed or pushed.
	NoChanges bool
}

// Finalizer commits, pushes, and opens PRs for completed agent runs.
type Finalizer struct {
	github  GitHubAPI
	linear  Commenter
	botName string
	botMail string
}

// NewFinalizer creates a Finalizer with the agent's bot commit identity.
func NewFinalizer(github GitHubAPI, commenter Commenter) *Finalizer {
	return &Finalizer{
		github:  github,
		linear:  commenter,
		botName: gitops.BotName,
		botMail: gitops.BotEmail,
	}
}

// Finalize runs the full sequence against the thread's sandbox and posts the
// outcome to Linear. The returned Result is valid even when err is non-nil
// only for the NoChanges case; on error the caller should rely on err.
func (f *Finalizer) Finalize(ctx context.Context, backend sandbox.Backend, req Request) (Result, error) {
	result, err := f.Run(ctx, backend, req)
	f.comment(ctx, req, result, err)
	return result, err
}

// Run performs the commit/push/PR sequence without posting to Linear.
// Callers that report outcomes through another channel use this directly.
func (f *Finalizer) Run(ctx context.Context, backend sandbox.Backend, req Request) (Result, error) {
	uncommitted, err := gitops.HasUncommittedChanges(ctx, backend, req.RepoDir)
	if err != nil {
		return Result{}, fmt.Errorf("failed to inspect working tree: %w", err)
	}
	if err := gitops.FetchOrigin(ctx, backend, req.RepoDir, req.Token); err != nil {
		log.Printf("Warning: fetch before finalize failed: %v", err)
	}
	unpushed, err := gitops.HasUnpushedCommits(ctx, backend, req.RepoDir)
	if err != nil {
		return Result{}, fmt.Errorf("failed to inspect local commits: %w", err)
	}
	if !uncommitted && !unpushed {
		log.Printf("No changes detected for thread %s, skipping PR", req.ThreadID)
		return Result{NoChanges: true}, nil
	}

	target := BranchPrefix + req.ThreadID
	current, err := gitops.CurrentBranch(ctx, backend, req.RepoDir)
	if err != nil {
		return Result{}, err
	}
	if current != target {
		if err := gitops.CheckoutBranch(ctx, backend, req.RepoDir, target); err != nil {
			return Result{}, fmt.Errorf("failed to checkout branch %s: %w", target, err)
		}
	}

	if err := gitops.ConfigUser(ctx, backend, req.RepoDir, f.botName, f.botMail); err != nil {
		return Result{}, err
	}
	if err := gitops.AddAll(ctx, backend, req.RepoDir); err != nil {
		return Result{}, err
	}
	if uncommitted {
		message := req.CommitMessage
		if message == "" {
			message = req.Title
		}
		if err := gitops.Commit(ctx, backend, req.RepoDir, message); err != nil {
			return Result{}, fmt.Errorf("git commit failed: %w", err)
		}
	}

	if req.Token == "" {
		return Result{}, sandbox.ErrMissingToken
	}
	if err := gitops.Push(ctx, backend, req.RepoDir, target, req.Token); err != nil {
		return Result{}, fmt.Errorf("git push failed: %w", err)
	}

	base := f.github.DefaultBranch(ctx, req.Owner, req.Repo, req.Token)
	pr, err := f.github.CreatePR(ctx, req.Owner, req.Repo, req.Token, req.Title, target, base, req.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create pull request: %w", err)
	}
	log.Printf("Opened PR #%d for thread %s: %s", pr.Number, req.ThreadID, pr.URL)
	return Result{PRURL: pr.URL, PRNumber: pr.Number}, nil
}

// comment posts one Linear comment describing the terminal outcome.
func (f *Finalizer) comment(ctx context.Context, req Request, result Result, err error) {
	if req.LinearIssueID == "" {
		return
	}

	var body string
	switch {
	case err != nil:
		body = fmt.Sprintf("%s\n\nAn error occurred while processing this issue:\n\n```\n%v\n```",
			linear.AgentErrorPrefix, err)
	case result.PRURL != "":
		body = fmt.Sprintf("%s\n\nI've created a pull request to address this issue:\n\n**[PR #%d: %s](%s)**",
			linear.PRCreatedPrefix, result.PRNumber, req.Title, result.PRURL)
		if req.ResponseText != "" {
			body += "\n\n---\n\n" + responseSection(req.ResponseText)
		}
	case req.ResponseText != "":
		body = responseSection(req.ResponseText)
	default:
		return
	}

	if !f.linear.CommentOnIssue(ctx, req.LinearIssueID, body) {
		log.Printf("Warning: failed to post outcome comment for issue %s", req.LinearIssueID)
	}
}

func responseSection(text string) string {
	return linear.AgentResponsePrefix + "\n\n" + strings.TrimSpace(text)
}
