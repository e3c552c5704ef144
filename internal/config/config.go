package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the Open SWE agent service
type Config struct {
	// Server settings
	Port int

	// Linear settings
	LinearAPIKey        string
	LinearEndpoint      string
	LinearWebhookSecret string
	TriggerKeyword      string

	// Repo routing: JSON team mapping plus the fallback repository used
	// when no team or label matches.
	LinearTeamRepos  string
	DefaultRepoOwner string
	DefaultRepoName  string

	// Identity service settings (GitHub OAuth on behalf of the user)
	ServiceJWTSecret      string
	GitHubOAuthProviderID string
	IdentityAPIKey        string
	IdentityAPIURL        string
	IdentityHostURL       string

	// Token transport
	TokenEncryptionKey string

	// Orchestrator settings
	OrchestratorURL    string
	OrchestratorAPIKey string
	AssistantID        string

	// Sandbox settings
	SandboxAPIURL         string
	SandboxAPIKey         string
	SandboxTemplateName   string
	SandboxTemplateImage  string
	SandboxStartupTimeout time.Duration

	// GitHub API (empty means api.github.com)
	GitHubAPIURL string

	// Dispatcher settings
	DispatcherWorkers   int
	DispatcherQueueSize int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                  getEnvInt("PORT", 8000),
		LinearAPIKey:          os.Getenv("LINEAR_API_KEY"),
		LinearEndpoint:        os.Getenv("LINEAR_API_ENDPOINT"),
		LinearWebhookSecret:   os.Getenv("LINEAR_WEBHOOK_SECRET"),
		TriggerKeyword:        getEnv("TRIGGER_KEYWORD", "@openswe"),
		LinearTeamRepos:       os.Getenv("LINEAR_TEAM_REPOS"),
		DefaultRepoOwner:      os.Getenv("DEFAULT_REPO_OWNER"),
		DefaultRepoName:       os.Getenv("DEFAULT_REPO_NAME"),
		ServiceJWTSecret:      os.Getenv("X_SERVICE_AUTH_JWT_SECRET"),
		GitHubOAuthProviderID: os.Getenv("GITHUB_OAUTH_PROVIDER_ID"),
		IdentityAPIKey:        os.Getenv("LANGSMITH_API_KEY"),
		IdentityAPIURL:        getEnv("LANGSMITH_ENDPOINT", "https://api.smith.langchain.com"),
		IdentityHostURL:       os.Getenv("LANGSMITH_HOST_API_URL"),
		TokenEncryptionKey:    os.Getenv("TOKEN_ENCRYPTION_KEY"),
		OrchestratorURL:       getEnv("LANGGRAPH_URL", "http://localhost:2024"),
		OrchestratorAPIKey:    os.Getenv("LANGGRAPH_API_KEY"),
		AssistantID:           getEnv("ASSISTANT_ID", "agent"),
		SandboxAPIURL:         os.Getenv("SANDBOX_API_URL"),
		SandboxAPIKey:         os.Getenv("SANDBOX_API_KEY"),
		SandboxTemplateName:   getEnv("DEFAULT_SANDBOX_TEMPLATE_NAME", "open-swe"),
		SandboxTemplateImage:  os.Getenv("DEFAULT_SANDBOX_TEMPLATE_IMAGE"),
		SandboxStartupTimeout: getEnvDuration("SANDBOX_STARTUP_TIMEOUT_SECONDS", 60*time.Second),
		GitHubAPIURL:          os.Getenv("GITHUB_API_URL"),
		DispatcherWorkers:     getEnvInt("DISPATCHER_WORKERS", 4),
		DispatcherQueueSize:   getEnvInt("DISPATCHER_QUEUE_SIZE", 16),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.warnDegraded()
	return cfg, nil
}

// validate checks invariants that would make the service unusable. Missing
// credentials are not fatal, they disable the feature they serve.
func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if c.DispatcherWorkers <= 0 {
		return fmt.Errorf("DISPATCHER_WORKERS must be greater than 0")
	}
	if c.DispatcherQueueSize <= 0 {
		return fmt.Errorf("DISPATCHER_QUEUE_SIZE must be greater than 0")
	}
	if c.SandboxStartupTimeout <= 0 {
		return fmt.Errorf("SANDBOX_STARTUP_TIMEOUT_SECONDS must be greater than 0")
	}
	if (c.DefaultRepoOwner == "" || c.DefaultRepoName == "") && c.LinearTeamRepos == "" {
		return fmt.Errorf("either LINEAR_TEAM_REPOS or DEFAULT_REPO_OWNER/DEFAULT_REPO_NAME must be set")
	}
	return nil
}

func (c *Config) warnDegraded() {
	if c.LinearAPIKey == "" {
		log.Printf("Warning: LINEAR_API_KEY not set, issue comments and reactions disabled")
	}
	if c.LinearWebhookSecret == "" {
		log.Printf("Warning: LINEAR_WEBHOOK_SECRET not set, webhook signature verification disabled")
	}
	if c.TokenEncryptionKey == "" {
		log.Printf("Warning: TOKEN_ENCRYPTION_KEY not set, GitHub tokens cannot be passed to runs")
	}
	if c.GitHubOAuthProviderID == "" {
		log.Printf("Warning: GITHUB_OAUTH_PROVIDER_ID not set, GitHub authentication disabled")
	}
	if c.SandboxAPIKey == "" {
		log.Printf("Warning: SANDBOX_API_KEY not set, sandbox provisioning disabled")
	}
}

// getEnv gets environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets environment variable as int with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: invalid value for %s: %s, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return intValue
}

// getEnvDuration reads an environment variable holding whole seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	seconds, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: invalid value for %s: %s, using default %s", key, value, defaultValue)
		return defaultValue
	}
	return time.Duration(seconds) * time.Second
}
