package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/openswe/agent/internal/sandbox"
	"github.com/openswe/agent/internal/workflow"
)

// CommitAndOpenPRParams defines the input parameters for the tool
type CommitAndOpenPRParams struct {
	Title         string `json:"title" jsonschema:"Pull request title, include [closes ISSUE-ID] when resolving a Linear issue"`
	Body          string `json:"body" jsonschema:"Pull request description in markdown"`
	CommitMessage string `json:"commit_message" jsonschema:"Commit message for uncommitted changes"`
}

// SandboxConnector reattaches to an existing sandbox by id.
type SandboxConnector interface {
	Connect(ctx context.Context, id string) (sandbox.Backend, error)
}

// PRRunner executes the commit/push/PR workflow without posting comments;
// the agent's after-run middleware owns Linear messaging.
type PRRunner interface {
	Run(ctx context.Context, backend sandbox.Backend, req workflow.Request) (workflow.Result, error)
}

// HandlerConfig carries the per-run context resolved from the environment.
type HandlerConfig struct {
	SandboxID string
	ThreadID  string
	Owner     string
	Repo      string
	RepoDir   string
	Token     string
}

// Handler serves the commit_and_open_pr tool.
type Handler struct {
	connector SandboxConnector
	runner    PRRunner
	cfg       HandlerConfig
}

// NewHandler creates a Handler. An empty RepoDir falls back to the default
// clone location for the repository.
func NewHandler(connector SandboxConnector, runner PRRunner, cfg HandlerConfig) *Handler {
	if cfg.RepoDir == "" {
		cfg.RepoDir = "/workspace/" + cfg.Repo
	}
	return &Handler{connector: connector, runner: runner, cfg: cfg}
}

type toolResult struct {
	Success bool    `json:"success"`
	Error   *string `json:"error"`
	PRURL   *string `json:"pr_url"`
}

// HandleCommitAndOpenPR handles the commit_and_open_pr tool call
func (h *Handler) HandleCommitAndOpenPR(
	ctx context.Context,
	req *mcp.CallToolRequest,
	params CommitAndOpenPRParams,
) (*mcp.CallToolResult, any, error) {
	log.Printf("[MCP PR Server] Received commit_and_open_pr request: %q", params.Title)

	if params.Title == "" {
		return failure("title parameter is required"), nil, nil
	}
	if h.cfg.Token == "" {
		return failure("Missing GitHub token"), nil, nil
	}

	backend, err := h.connector.Connect(ctx, h.cfg.SandboxID)
	if err != nil {
		log.Printf("[MCP PR Server] Failed to connect to sandbox: %v", err)
		return failure(fmt.Sprintf("No sandbox found for thread: %v", err)), nil, nil
	}

	result, err := h.runner.Run(ctx, backend, workflow.Request{
		ThreadID:      h.cfg.ThreadID,
		Owner:         h.cfg.Owner,
		Repo:          h.cfg.Repo,
		RepoDir:       h.cfg.RepoDir,
		Token:         h.cfg.Token,
		Title:         params.Title,
		Body:          params.Body,
		CommitMessage: params.CommitMessage,
	})
	if err != nil {
		log.Printf("[MCP PR Server] Workflow failed: %v", err)
		return failure(err.Error()), nil, nil
	}
	if result.NoChanges {
		return failure("No changes detected"), nil, nil
	}

	log.Printf("[MCP PR Server] Opened pull request %s", result.PRURL)
	return success(result.PRURL), nil, nil
}

func failure(message string) *mcp.CallToolResult {
	return encode(toolResult{Success: false, Error: &message})
}

func success(prURL string) *mcp.CallToolResult {
	return encode(toolResult{Success: true, PRURL: &prURL})
}

func encode(result toolResult) *mcp.CallToolResult {
	payload, err := json.Marshal(result)
	if err != nil {
		payload = []byte(`{"success": false, "error": "failed to encode result"}`)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(payload)}},
		IsError: !result.Success,
	}
}
