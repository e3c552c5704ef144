// Package executor turns an accepted webhook task into an agent run. It
// resolves the acting user's GitHub credentials through the identity
// service, assembles the issue prompt, and either creates an orchestrator
// run or queues the message when the thread is already busy. Every outcome
// that blocks the run is reported back to the Linear issue as a comment.
package executor

import (
	"context"
	"fmt"
	"log"

	"github.com/openswe/agent/internal/agent"
	"github.com/openswe/agent/internal/identity"
	"github.com/openswe/agent/internal/linear"
	"github.com/openswe/agent/internal/orchestrator"
	"github.com/openswe/agent/internal/prompt"
	"github.com/openswe/agent/internal/threadlog"
	"github.com/openswe/agent/internal/webhook"
)

// IssueService is the slice of the Linear client the executor needs.
type IssueService interface {
	FetchIssue(ctx context.Context, issueID string) *linear.Issue
	CommentOnIssue(ctx context.Context, issueID, body string) bool
	ReactToComment(ctx context.Context, commentID, emoji string) bool
}

// IdentityService resolves workspace users and their GitHub credentials.
type IdentityService interface {
	HasProvider() bool
	LookupUser(ctx context.Context, email string) (*identity.User, error)
	GitHubTokenForUser(ctx context.Context, user *identity.User) (*identity.AuthResult, error)
}

// TokenEncrypter seals a GitHub token for transport in the run config.
type TokenEncrypter interface {
	Encrypt(token string) (string, error)
}

// MessageQueue checks thread activity and stores follow-up messages.
type MessageQueue interface {
	IsThreadBusy(ctx context.Context, threadID string) bool
	Enqueue(ctx context.Context, threadID, message string) error
}

// RunCreator starts agent runs on the orchestrator.
type RunCreator interface {
	CreateRun(ctx context.Context, threadID, assistantID string, input orchestrator.RunInput, configurable map[string]any) error
}

// Executor processes webhook tasks in the background.
type Executor struct {
	linear      IssueService
	identity    IdentityService
	cipher      TokenEncrypter
	queue       MessageQueue
	runs        RunCreator
	logs        *threadlog.Store
	assistantID string
	trigger     string
}

// New creates an executor. trigger is the mention keyword users reply with
// to retry, e.g. "@openswe".
func New(issues IssueService, ident IdentityService, cipher TokenEncrypter, queue MessageQueue, runs RunCreator, logs *threadlog.Store, assistantID, trigger string) *Executor {
	return &Executor{
		linear:      issues,
		identity:    ident,
		cipher:      cipher,
		queue:       queue,
		runs:        runs,
		logs:        logs,
		assistantID: assistantID,
		trigger:     trigger,
	}
}

// Execute implements dispatcher.TaskExecutor.
func (e *Executor) Execute(ctx context.Context, task *webhook.Task) error {
	log.Printf("Processing Linear issue %s for repo %s/%s", task.IssueID, task.Owner, task.Repo)

	e.logs.Track(&threadlog.Record{
		ThreadID:        task.ThreadID,
		IssueID:         task.IssueID,
		IssueIdentifier: task.Issue.Identifier,
		IssueTitle:      task.Issue.Title,
		RepoOwner:       task.Owner,
		RepoName:        task.Repo,
		Actor:           task.AuthorName,
		Status:          threadlog.StatusRunning,
	})
	e.logs.AddLog(task.ThreadID, "info", "Processing webhook for "+task.Issue.Identifier)

	if task.CommentID != "" {
		e.linear.ReactToComment(ctx, task.CommentID, "👀")
	}

	issue := e.linear.FetchIssue(ctx, task.IssueID)
	if issue == nil {
		log.Printf("Warning: falling back to webhook data for issue %s", task.IssueID)
		issue = issueFromTask(task)
	}

	email, name := resolveUser(task, issue)
	mention := ""
	if name != "" {
		mention = "@" + name
	}

	token, handled, err := e.resolveToken(ctx, task, email, mention)
	if err != nil {
		return err
	}
	if handled {
		e.logs.SetStatus(task.ThreadID, threadlog.StatusFailed)
		return nil
	}

	userPrompt := prompt.ForIssue(issue, e.trigger)

	projectID, issueNumber := prompt.SplitIdentifier(issue.Identifier)
	cfg := agent.RunConfig{
		ThreadID: task.ThreadID,
		Repo:     agent.RepoRef{Owner: task.Owner, Name: task.Repo},
		LinearIssue: agent.IssueRef{
			ID:          task.IssueID,
			Identifier:  issue.Identifier,
			Title:       issue.Title,
			URL:         issue.URL,
			ProjectID:   projectID,
			IssueNumber: issueNumber,
		},
	}

	if token == "" {
		e.commentNoToken(ctx, task, email, mention)
		e.logs.SetStatus(task.ThreadID, threadlog.StatusFailed)
		return nil
	}

	encrypted, err := e.cipher.Encrypt(token)
	if err != nil {
		log.Printf("Warning: failed to encrypt GitHub token for issue %s: %v", task.IssueID, err)
		e.linear.CommentOnIssue(ctx, task.IssueID, fmt.Sprintf(
			"%s %s\n\nThe Open SWE agent is not properly configured (missing token encryption key).\n\nPlease contact your administrator.",
			linear.ConfigErrorPrefix, mention))
		e.logs.AddLog(task.ThreadID, "error", "Token encryption failed")
		e.logs.SetStatus(task.ThreadID, threadlog.StatusFailed)
		return fmt.Errorf("failed to encrypt token: %w", err)
	}
	cfg.EncryptedToken = encrypted

	if e.queue.IsThreadBusy(ctx, task.ThreadID) {
		log.Printf("Thread %s is busy, queueing message instead of creating run", task.ThreadID)
		if err := e.queue.Enqueue(ctx, task.ThreadID, userPrompt); err != nil {
			e.logs.AddLog(task.ThreadID, "error", "Failed to queue message")
			e.logs.SetStatus(task.ThreadID, threadlog.StatusFailed)
			return fmt.Errorf("failed to queue message for thread %s: %w", task.ThreadID, err)
		}
		e.logs.AddLog(task.ThreadID, "info", "Thread busy, message queued")
		e.logs.SetStatus(task.ThreadID, threadlog.StatusQueued)
		return nil
	}

	log.Printf("Creating run for thread %s", task.ThreadID)
	input := orchestrator.RunInput{
		Messages: []orchestrator.RunMessage{{Role: "user", Content: userPrompt}},
	}
	if err := e.runs.CreateRun(ctx, task.ThreadID, e.assistantID, input, cfg.Configurable()); err != nil {
		e.logs.AddLog(task.ThreadID, "error", "Failed to create run")
		e.logs.SetStatus(task.ThreadID, threadlog.StatusFailed)
		return fmt.Errorf("failed to create run for thread %s: %w", task.ThreadID, err)
	}
	log.Printf("Run created for thread %s", task.ThreadID)
	e.logs.AddLog(task.ThreadID, "success", "Agent run created")
	e.logs.SetStatus(task.ThreadID, threadlog.StatusCompleted)
	return nil
}

// resolveToken walks the identity flow for the triggering user. handled
// means a comment was already posted and processing should stop without an
// error. An empty token with handled false falls through to the generic
// no-token comment.
func (e *Executor) resolveToken(ctx context.Context, task *webhook.Task, email, mention string) (token string, handled bool, err error) {
	if email == "" || !e.identity.HasProvider() {
		return "", false, nil
	}

	user, lookupErr := e.identity.LookupUser(ctx, email)
	if lookupErr != nil {
		log.Printf("Warning: user lookup failed for %s: %v", email, lookupErr)
	}
	if user == nil {
		e.linear.CommentOnIssue(ctx, task.IssueID, fmt.Sprintf(
			"%s %s\n\nCould not find a LangSmith account for **%s**.\n\n"+
				"Please ensure this email is invited to the main LangSmith organization. "+
				"If your Linear account uses a different email than your LangSmith account, "+
				"you may need to update one of them to match.\n\n"+
				"Once your email is added to LangSmith, reply to this issue mentioning %s to retry.",
			linear.AuthRequiredPrefix, mention, email, e.trigger))
		e.logs.AddLog(task.ThreadID, "error", "No workspace account for "+email)
		return "", true, nil
	}

	auth, authErr := e.identity.GitHubTokenForUser(ctx, user)
	if authErr != nil {
		log.Printf("Warning: GitHub token exchange failed for %s: %v", email, authErr)
		return "", false, nil
	}
	if auth.AuthURL != "" {
		e.linear.CommentOnIssue(ctx, task.IssueID, fmt.Sprintf(
			"%s %s\n\nTo allow the Open SWE agent to work on this issue, "+
				"please authenticate with GitHub by clicking the link below:\n\n"+
				"[Authenticate with GitHub](%s)\n\n"+
				"Once authenticated, reply to this issue mentioning %s to retry.",
			linear.AuthRequiredPrefix, mention, auth.AuthURL, e.trigger))
		e.logs.AddLog(task.ThreadID, "info", "Sent GitHub auth link")
		return "", true, nil
	}
	return auth.Token, false, nil
}

// commentNoToken posts the terminal comment when no GitHub token could be
// resolved and no auth link was available.
func (e *Executor) commentNoToken(ctx context.Context, task *webhook.Task, email, mention string) {
	log.Printf("Warning: no GitHub token available, cannot create run for issue %s", task.IssueID)
	var comment string
	switch {
	case email == "":
		comment = fmt.Sprintf(
			"%s %s\n\nCould not determine the user email from this issue. "+
				"Please ensure your Linear account has an email address configured.\n\n"+
				"Reply to this issue mentioning %s to retry.",
			linear.AuthRequiredPrefix, mention, e.trigger)
	case !e.identity.HasProvider():
		comment = fmt.Sprintf(
			"%s %s\n\nThe Open SWE agent is not properly configured (missing GitHub OAuth provider).\n\nPlease contact your administrator.",
			linear.ConfigErrorPrefix, mention)
	default:
		comment = fmt.Sprintf(
			"%s %s\n\nUnable to authenticate with GitHub. "+
				"Please ensure you have connected your GitHub account in LangSmith.\n\n"+
				"Reply to this issue mentioning %s to retry.",
			linear.AuthRequiredPrefix, mention, e.trigger)
	}
	e.linear.CommentOnIssue(ctx, task.IssueID, comment)
	e.logs.AddLog(task.ThreadID, "error", "No GitHub token available")
}

// issueFromTask rebuilds a minimal issue from webhook data when the full
// fetch fails. The triggering comment stands in for the comment history.
func issueFromTask(task *webhook.Task) *linear.Issue {
	issue := &linear.Issue{
		ID:          task.Issue.ID,
		Identifier:  task.Issue.Identifier,
		Title:       task.Issue.Title,
		Description: task.Issue.Description,
		URL:         task.Issue.URL,
	}
	if task.CommentBody != "" {
		issue.Comments = []linear.Comment{{
			Body:   task.CommentBody,
			Author: task.AuthorName,
			Email:  task.AuthorEmail,
		}}
	}
	return issue
}

// resolveUser picks the email and name to authenticate as: the comment
// author first, then the issue creator, then the assignee.
func resolveUser(task *webhook.Task, issue *linear.Issue) (email, name string) {
	if task.AuthorEmail != "" {
		return task.AuthorEmail, task.AuthorName
	}
	name = task.AuthorName
	if issue.Creator != nil && issue.Creator.Email != "" {
		if name == "" {
			name = issue.Creator.Name
		}
		return issue.Creator.Email, name
	}
	if issue.Assignee != nil && issue.Assignee.Email != "" {
		if name == "" {
			name = issue.Assignee.Name
		}
		return issue.Assignee.Email, name
	}
	return "", name
}
