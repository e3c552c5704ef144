package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/openswe/agent/internal/githubapi"
	"github.com/openswe/agent/internal/sandbox"
	"github.com/openswe/agent/internal/tokencipher"
	"github.com/openswe/agent/internal/workflow"
)

func main() {
	requiredEnv := []string{"SANDBOX_ID", "SANDBOX_API_URL", "SANDBOX_API_KEY", "REPO_OWNER", "REPO_NAME", "THREAD_ID"}
	for _, env := range requiredEnv {
		if os.Getenv(env) == "" {
			log.Fatalf("[MCP PR Server] Missing required environment variable: %s", env)
		}
	}

	token, err := resolveToken()
	if err != nil {
		log.Fatalf("[MCP PR Server] %v", err)
	}

	log.Println("[MCP PR Server] Starting PR MCP Server v1.0.0")
	log.Printf("[MCP PR Server] Repository: %s/%s", os.Getenv("REPO_OWNER"), os.Getenv("REPO_NAME"))
	log.Printf("[MCP PR Server] Sandbox: %s", os.Getenv("SANDBOX_ID"))

	provider := sandbox.NewHTTPProvider(
		os.Getenv("SANDBOX_API_URL"),
		os.Getenv("SANDBOX_API_KEY"),
		sandbox.TemplateConfig{},
		60*time.Second,
	)
	finalizer := workflow.NewFinalizer(githubapi.NewClient(os.Getenv("GITHUB_API_URL")), nil)

	handler := NewHandler(provider, finalizer, HandlerConfig{
		SandboxID: os.Getenv("SANDBOX_ID"),
		ThreadID:  os.Getenv("THREAD_ID"),
		Owner:     os.Getenv("REPO_OWNER"),
		Repo:      os.Getenv("REPO_NAME"),
		RepoDir:   os.Getenv("REPO_DIR"),
		Token:     token,
	})

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "open-swe-pr-server",
		Version: "v1.0.0",
	}, nil)

	tool := &mcp.Tool{
		Name:        "commit_and_open_pr",
		Description: "Commit all changes in the working tree, push them to a thread branch, and open a GitHub pull request",
	}
	mcp.AddTool(server, tool, handler.HandleCommitAndOpenPR)
	log.Println("[MCP PR Server] Registered tool: commit_and_open_pr")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("[MCP PR Server] Received shutdown signal")
		cancel()
	}()

	log.Println("[MCP PR Server] Starting on stdio transport...")
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		log.Fatalf("[MCP PR Server] Server error: %v", err)
	}
	log.Println("[MCP PR Server] Server stopped gracefully")
}

// resolveToken prefers the encrypted token handed through the run config;
// a plain GITHUB_TOKEN is accepted for local use.
func resolveToken() (string, error) {
	if encrypted := os.Getenv("GITHUB_TOKEN_ENCRYPTED"); encrypted != "" {
		cipher, err := tokencipher.New(os.Getenv("TOKEN_ENCRYPTION_KEY"))
		if err != nil {
			return "", err
		}
		if token := cipher.Decrypt(encrypted); token != "" {
			return token, nil
		}
		log.Println("[MCP PR Server] Warning: could not decrypt GITHUB_TOKEN_ENCRYPTED")
	}
	return os.Getenv("GITHUB_TOKEN"), nil
}
