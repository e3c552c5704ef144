package agent

import (
	"context"
	"log"

	"github.com/openswe/agent/internal/linear"
)

// Commenter posts comments to Linear issues.
type Commenter interface {
	CommentOnIssue(ctx context.Context, issueID, body string) bool
}

// PostToLinearMiddleware mirrors the agent's first text response to the
// originating Linear issue so progress is visible without leaving Linear.
// It only fires for single-request conversations: one user message, an
// assistant reply directly after it, and no earlier mirror of the same
// reply (tracked through LinearMessagesSentCount).
type PostToLinearMiddleware struct {
	NopMiddleware
	linear Commenter
}

// NewPostToLinearMiddleware wires the middleware to a Linear commenter.
func NewPostToLinearMiddleware(commenter Commenter) *PostToLinearMiddleware {
	return &PostToLinearMiddleware{linear: commenter}
}

func (m *PostToLinearMiddleware) AfterModel(ctx context.Context, cfg RunConfig, state *State) error {
	if cfg.LinearIssue.ID == "" || len(state.Messages) == 0 {
		return nil
	}
	if state.CountRole(RoleUser) != 1 {
		return nil
	}

	last := state.Last()
	if last.Role != RoleAssistant || last.Content == "" {
		return nil
	}
	if n := len(state.Messages); n >= 2 && state.Messages[n-2].Role != RoleUser {
		// The reply follows a tool result, not the request; the final
		// summary will be posted by the after-run stage instead.
		return nil
	}

	assistantCount := state.CountRole(RoleAssistant)
	if assistantCount <= state.LinearMessagesSentCount {
		return nil
	}

	body := linear.AgentResponsePrefix + "\n\n" + last.Content
	if !m.linear.CommentOnIssue(ctx, cfg.LinearIssue.ID, body) {
		log.Printf("Warning: failed to mirror response to Linear issue %s", cfg.LinearIssue.ID)
		return nil
	}
	state.LinearMessagesSentCount = assistantCount
	return nil
}
