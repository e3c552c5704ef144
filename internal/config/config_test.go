package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
		check   func(*testing.T, *Config)
	}{
		{
			name: "full environment",
			env: map[string]string{
				"PORT":                     "9090",
				"LINEAR_API_KEY":           "lin_api_test",
				"LINEAR_WEBHOOK_SECRET":    "whsec",
				"TRIGGER_KEYWORD":          "@swebot",
				"DEFAULT_REPO_OWNER":       "acme",
				"DEFAULT_REPO_NAME":        "monolith",
				"TOKEN_ENCRYPTION_KEY":     "a2V5",
				"GITHUB_OAUTH_PROVIDER_ID": "provider-1",
				"LANGGRAPH_URL":            "http://orchestrator:2024",
				"ASSISTANT_ID":             "swe",
				"SANDBOX_API_URL":          "http://sandboxes:8080",
				"SANDBOX_API_KEY":          "sb-key",
				"DISPATCHER_WORKERS":       "8",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != 9090 {
					t.Errorf("Port = %d, want 9090", cfg.Port)
				}
				if cfg.TriggerKeyword != "@swebot" {
					t.Errorf("TriggerKeyword = %s, want @swebot", cfg.TriggerKeyword)
				}
				if cfg.OrchestratorURL != "http://orchestrator:2024" {
					t.Errorf("OrchestratorURL = %s", cfg.OrchestratorURL)
				}
				if cfg.AssistantID != "swe" {
					t.Errorf("AssistantID = %s, want swe", cfg.AssistantID)
				}
				if cfg.DispatcherWorkers != 8 {
					t.Errorf("DispatcherWorkers = %d, want 8", cfg.DispatcherWorkers)
				}
				if cfg.DispatcherQueueSize != 16 {
					t.Errorf("DispatcherQueueSize = %d, want default 16", cfg.DispatcherQueueSize)
				}
			},
		},
		{
			name: "defaults applied",
			env: map[string]string{
				"DEFAULT_REPO_OWNER": "acme",
				"DEFAULT_REPO_NAME":  "monolith",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != 8000 {
					t.Errorf("Port = %d, want 8000", cfg.Port)
				}
				if cfg.TriggerKeyword != "@openswe" {
					t.Errorf("TriggerKeyword = %s, want @openswe", cfg.TriggerKeyword)
				}
				if cfg.OrchestratorURL != "http://localhost:2024" {
					t.Errorf("OrchestratorURL = %s", cfg.OrchestratorURL)
				}
				if cfg.SandboxTemplateName != "open-swe" {
					t.Errorf("SandboxTemplateName = %s, want open-swe", cfg.SandboxTemplateName)
				}
				if cfg.SandboxStartupTimeout != 60*time.Second {
					t.Errorf("SandboxStartupTimeout = %s, want 60s", cfg.SandboxStartupTimeout)
				}
			},
		},
		{
			name: "team mapping without default repo",
			env: map[string]string{
				"LINEAR_TEAM_REPOS": `{"Docs": {"owner": "acme", "name": "docs"}}`,
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.LinearTeamRepos == "" {
					t.Error("LinearTeamRepos not loaded")
				}
			},
		},
		{
			name:    "no repo routing at all",
			env:     map[string]string{},
			wantErr: "LINEAR_TEAM_REPOS",
		},
		{
			name: "invalid port",
			env: map[string]string{
				"PORT":               "70000",
				"DEFAULT_REPO_OWNER": "acme",
				"DEFAULT_REPO_NAME":  "monolith",
			},
			wantErr: "PORT",
		},
		{
			name: "zero workers",
			env: map[string]string{
				"DISPATCHER_WORKERS": "-1",
				"DEFAULT_REPO_OWNER": "acme",
				"DEFAULT_REPO_NAME":  "monolith",
			},
			wantErr: "DISPATCHER_WORKERS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("Load() error = nil, want %q", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("Load() error = %v, want mention of %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestGetEnv(t *testing.T) {
	os.Clearenv()
	if got := getEnv("CONFIG_TEST_VAR", "fallback"); got != "fallback" {
		t.Errorf("getEnv() = %s, want fallback", got)
	}
	os.Setenv("CONFIG_TEST_VAR", "set")
	if got := getEnv("CONFIG_TEST_VAR", "fallback"); got != "set" {
		t.Errorf("getEnv() = %s, want set", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     int
	}{
		{"unset", "", 42},
		{"valid", "7", 7},
		{"invalid", "not-a-number", 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.envValue != "" {
				os.Setenv("CONFIG_TEST_INT", tt.envValue)
			}
			if got := getEnvInt("CONFIG_TEST_INT", 42); got != tt.want {
				t.Errorf("getEnvInt() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     time.Duration
	}{
		{"unset", "", 30 * time.Second},
		{"valid seconds", "120", 120 * time.Second},
		{"invalid", "soon", 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.envValue != "" {
				os.Setenv("CONFIG_TEST_DURATION", tt.envValue)
			}
			if got := getEnvDuration("CONFIG_TEST_DURATION", 30*time.Second); got != tt.want {
				t.Errorf("getEnvDuration() = %s, want %s", got, tt.want)
			}
		})
	}
}
