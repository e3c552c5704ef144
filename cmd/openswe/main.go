package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/openswe/agent/internal/config"
	"github.com/openswe/agent/internal/dispatcher"
	"github.com/openswe/agent/internal/executor"
	"github.com/openswe/agent/internal/identity"
	"github.com/openswe/agent/internal/linear"
	"github.com/openswe/agent/internal/msgqueue"
	"github.com/openswe/agent/internal/orchestrator"
	"github.com/openswe/agent/internal/threadlog"
	"github.com/openswe/agent/internal/tokencipher"
	"github.com/openswe/agent/internal/web"
	"github.com/openswe/agent/internal/webhook"
)

var (
	loadDotEnv         = godotenv.Load
	newDispatcher      = dispatcher.New
	defaultListenServe = http.ListenAndServe
)

func main() {
	if err := run(context.Background(), defaultListenServe); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func run(ctx context.Context, serve func(string, http.Handler) error) error {
	// Load .env file (ignore error if file doesn't exist)
	_ = loadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log.Printf("Starting Open SWE agent server...")
	log.Printf("Port: %d", cfg.Port)
	log.Printf("Trigger keyword: %s", cfg.TriggerKeyword)
	log.Printf("Orchestrator: %s (assistant %s)", cfg.OrchestratorURL, cfg.AssistantID)
	log.Printf("Dispatcher workers: %d, queue size: %d", cfg.DispatcherWorkers, cfg.DispatcherQueueSize)

	repos, err := webhook.ParseRepoMap(cfg.LinearTeamRepos, webhook.RepoTarget{
		Owner: cfg.DefaultRepoOwner,
		Name:  cfg.DefaultRepoName,
	})
	if err != nil {
		return fmt.Errorf("failed to parse LINEAR_TEAM_REPOS: %w", err)
	}

	cipher, err := tokencipher.New(cfg.TokenEncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize token cipher: %w", err)
	}

	linearClient := linear.NewClient(cfg.LinearAPIKey, cfg.LinearEndpoint)
	identityService := identity.New(
		cfg.ServiceJWTSecret,
		cfg.GitHubOAuthProviderID,
		cfg.IdentityAPIKey,
		cfg.IdentityAPIURL,
		cfg.IdentityHostURL,
	)
	orchestratorClient := orchestrator.NewClient(cfg.OrchestratorURL, cfg.OrchestratorAPIKey)
	queue := msgqueue.New(orchestratorClient, orchestratorClient)

	logs := threadlog.NewStore()
	exec := executor.New(
		linearClient,
		identityService,
		cipher,
		queue,
		orchestratorClient,
		logs,
		cfg.AssistantID,
		cfg.TriggerKeyword,
	)

	taskDispatcher := newDispatcher(exec, dispatcher.Config{
		Workers:   cfg.DispatcherWorkers,
		QueueSize: cfg.DispatcherQueueSize,
	})
	defer taskDispatcher.Shutdown(ctx)

	handler := webhook.NewHandler(cfg.LinearWebhookSecret, cfg.TriggerKeyword, taskDispatcher, repos)
	webHandler := web.NewHandler(logs)

	r := mux.NewRouter()
	r.HandleFunc("/webhooks/linear", handler.Handle).Methods("POST")
	r.HandleFunc("/webhooks/linear", handler.HandleVerify).Methods("GET")
	r.HandleFunc("/health", handler.HandleHealth).Methods("GET")
	webHandler.RegisterRoutes(r)

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("Server listening on %s", addr)
	log.Printf("Webhook endpoint: http://localhost%s/webhooks/linear", addr)
	log.Printf("Thread status: http://localhost%s/threads", addr)

	if err := serve(addr, r); err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}
