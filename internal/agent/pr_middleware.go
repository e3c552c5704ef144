package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/openswe/agent/internal/linear"
	"github.com/openswe/agent/internal/sandbox"
	"github.com/openswe/agent/internal/workflow"
)

// PRToolName is the tool the agent calls to submit its work.
const PRToolName = "commit_and_open_pr"

// prPayload is the tool-result JSON produced by the PR tool, or the PR
// intent the model emitted when the tool never ran.
type prPayload struct {
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
	PRURL   string `json:"pr_url,omitempty"`

	Title         string `json:"title,omitempty"`
	Body          string `json:"body,omitempty"`
	CommitMessage string `json:"commit_message,omitempty"`
}

// Finalizing runs the end-of-run git sequence and posts the terminal
// outcome to Linear.
type Finalizing interface {
	Finalize(ctx context.Context, backend sandbox.Backend, req workflow.Request) (workflow.Result, error)
}

// TokenDecrypter recovers the GitHub token from its encrypted run-config
// form.
type TokenDecrypter interface {
	Decrypt(encrypted string) string
}

// OpenPRMiddleware runs once after the agent finishes. When the PR tool
// produced a result it posts that outcome to Linear; when the model only
// stated a PR intent it drives the finalize workflow itself; otherwise it
// mirrors the final response.
type OpenPRMiddleware struct {
	NopMiddleware
	registry  *sandbox.Registry
	finalizer Finalizing
	linear    Commenter
	cipher    TokenDecrypter
	repoDirs  RepoDirLookup
}

// RepoDirLookup resolves the persisted checkout directory for a thread.
type RepoDirLookup interface {
	RepoDir(ctx context.Context, threadID string) string
}

// NewOpenPRMiddleware wires the after-run PR stage.
func NewOpenPRMiddleware(registry *sandbox.Registry, finalizer Finalizing, commenter Commenter, cipher TokenDecrypter, repoDirs RepoDirLookup) *OpenPRMiddleware {
	return &OpenPRMiddleware{
		registry:  registry,
		finalizer: finalizer,
		linear:    commenter,
		cipher:    cipher,
		repoDirs:  repoDirs,
	}
}

func (m *OpenPRMiddleware) AfterRun(ctx context.Context, cfg RunConfig, state *State) error {
	issueID := cfg.LinearIssue.ID
	response := ""
	if last := state.Last(); last.Role == RoleAssistant {
		response = last.Content
	}

	payload := m.extractPayload(state)
	switch {
	case payload == nil:
		log.Printf("No %s call found for thread %s, posting response only", PRToolName, cfg.ThreadID)
		m.respond(ctx, issueID, response)

	case payload.Success != nil:
		m.reportToolOutcome(ctx, issueID, response, payload)

	default:
		// The model stated what to submit but the tool never completed;
		// run the finalize sequence here.
		m.finalizeFromIntent(ctx, cfg, issueID, response, payload)
	}
	return nil
}

func (m *OpenPRMiddleware) extractPayload(state *State) *prPayload {
	raw := state.LastToolResult(PRToolName)
	if raw == "" {
		return nil
	}
	var payload prPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		log.Printf("Warning: unparseable %s payload: %v", PRToolName, err)
		return nil
	}
	return &payload
}

// reportToolOutcome posts the result of a completed PR tool call.
func (m *OpenPRMiddleware) reportToolOutcome(ctx context.Context, issueID, response string, payload *prPayload) {
	if issueID == "" {
		return
	}
	var body string
	switch {
	case payload.PRURL != "":
		body = fmt.Sprintf("%s\n\nI've created a pull request to address this issue:\n\n%s",
			linear.PRCreatedPrefix, payload.PRURL)
		if response != "" {
			body += "\n\n---\n\n" + linear.AgentResponsePrefix + "\n\n" + response
		}
	case payload.Error != "":
		body = fmt.Sprintf("%s\n\n%s", linear.AgentErrorPrefix, payload.Error)
		if response != "" {
			body += "\n\n---\n\n" + linear.AgentResponsePrefix + "\n\n" + response
		}
	case response != "":
		body = linear.AgentResponsePrefix + "\n\n" + response
	default:
		return
	}
	m.linear.CommentOnIssue(ctx, issueID, body)
}

func (m *OpenPRMiddleware) finalizeFromIntent(ctx context.Context, cfg RunConfig, issueID, response string, payload *prPayload) {
	backend, ok := m.registry.Get(cfg.ThreadID)
	if !ok {
		log.Printf("No sandbox registered for thread %s, posting response only", cfg.ThreadID)
		m.respond(ctx, issueID, response)
		return
	}
	repoDir := m.repoDirs.RepoDir(ctx, cfg.ThreadID)
	if repoDir == "" {
		repoDir = "/workspace/" + cfg.Repo.Name
	}

	title := payload.Title
	if title == "" {
		title = "feat: automated changes"
	}
	body := payload.Body
	if body == "" {
		body = "Automated PR."
	}

	// The finalizer posts the outcome comment itself.
	if _, err := m.finalizer.Finalize(ctx, backend, workflow.Request{
		ThreadID:      cfg.ThreadID,
		Owner:         cfg.Repo.Owner,
		Repo:          cfg.Repo.Name,
		RepoDir:       repoDir,
		Token:         m.cipher.Decrypt(cfg.EncryptedToken),
		Title:         title,
		Body:          body,
		CommitMessage: payload.CommitMessage,
		LinearIssueID: issueID,
		ResponseText:  response,
	}); err != nil {
		log.Printf("Finalize failed for thread %s: %v", cfg.ThreadID, err)
	}
}

func (m *OpenPRMiddleware) respond(ctx context.Context, issueID, response string) {
	if issueID == "" || response == "" {
		return
	}
	m.linear.CommentOnIssue(ctx, issueID, linear.AgentResponsePrefix+"\n\n"+response)
}
