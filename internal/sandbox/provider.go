package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultCommandTimeout is the ceiling for a single remote command.
	DefaultCommandTimeout = 30 * time.Minute

	// readyPollInterval is how often a freshly created sandbox is probed.
	readyPollInterval = 2 * time.Second
)

// TemplateConfig names the sandbox template and its image.
type TemplateConfig struct {
	Name  string
	Image string
}

// HTTPProvider provisions sandboxes against the sandbox service REST API.
type HTTPProvider struct {
	baseURL        string
	apiKey         string
	template       TemplateConfig
	startupTimeout time.Duration
	commandTimeout time.Duration
	httpClient     *http.Client
}

// NewHTTPProvider creates a provider. Template name/image fall back to the
// service defaults when empty.
func NewHTTPProvider(baseURL, apiKey string, template TemplateConfig, startupTimeout time.Duration) *HTTPProvider {
	if template.Name == "" {
		template.Name = "open-swe"
	}
	if template.Image == "" {
		template.Image = "python:3"
	}
	if startupTimeout <= 0 {
		startupTimeout = DefaultCreationTimeout
	}
	return &HTTPProvider{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		apiKey:         apiKey,
		template:       template,
		startupTimeout: startupTimeout,
		commandTimeout: DefaultCommandTimeout,
		httpClient: &http.Client{
			// Command execution blocks until the remote command finishes.
			Timeout: DefaultCommandTimeout + time.Minute,
		},
	}
}

// Create provisions a new sandbox from the configured template and waits
// for it to answer a probe command. A sandbox that never becomes ready is
// deleted before the error is returned.
func (p *HTTPProvider) Create(ctx context.Context) (Backend, error) {
	if p.apiKey == "" {
		return nil, ErrAPIKeyMissing
	}

	if err := p.ensureTemplate(ctx); err != nil {
		return nil, &ProvisionError{Err: err}
	}

	var created struct {
		Name string `json:"name"`
	}
	err := p.do(ctx, http.MethodPost, "/v1/sandboxes", map[string]any{
		"template_name": p.template.Name,
	}, &created)
	if err != nil {
		return nil, &ProvisionError{Err: fmt.Errorf("failed to create sandbox from template %q: %w", p.template.Name, err)}
	}
	if created.Name == "" {
		return nil, &ProvisionError{Err: fmt.Errorf("sandbox service returned no sandbox id")}
	}

	backend := &httpBackend{provider: p, id: created.Name}

	if err := p.waitReady(ctx, backend); err != nil {
		if delErr := p.Delete(context.WithoutCancel(ctx), created.Name); delErr != nil {
			log.Printf("Warning: failed to delete unready sandbox %s: %v", created.Name, delErr)
		}
		return nil, &ProvisionError{Err: err}
	}
	return backend, nil
}

// Connect attaches to an existing sandbox, verifying it still exists.
func (p *HTTPProvider) Connect(ctx context.Context, id string) (Backend, error) {
	if p.apiKey == "" {
		return nil, ErrAPIKeyMissing
	}

	err := p.do(ctx, http.MethodGet, "/v1/sandboxes/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to existing sandbox %q: %w", id, err)
	}
	return &httpBackend{provider: p, id: id}, nil
}

// Delete destroys a sandbox.
func (p *HTTPProvider) Delete(ctx context.Context, id string) error {
	return p.do(ctx, http.MethodDelete, "/v1/sandboxes/"+url.PathEscape(id), nil, nil)
}

// ensureTemplate creates the template if the service does not know it yet.
func (p *HTTPProvider) ensureTemplate(ctx context.Context) error {
	err := p.do(ctx, http.MethodGet, "/v1/templates/"+url.PathEscape(p.template.Name), nil, nil)
	if err == nil {
		return nil
	}
	var svcErr *serviceError
	if !asServiceError(err, &svcErr) || svcErr.StatusCode != http.StatusNotFound {
		return fmt.Errorf("failed to check template %q: %w", p.template.Name, err)
	}

	err = p.do(ctx, http.MethodPost, "/v1/templates", map[string]any{
		"name":  p.template.Name,
		"image": p.template.Image,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to create template %q: %w", p.template.Name, err)
	}
	return nil
}

// waitReady probes the sandbox until it answers or the startup window
// closes.
func (p *HTTPProvider) waitReady(ctx context.Context, backend *httpBackend) error {
	deadline := time.Now().Add(p.startupTimeout)
	for time.Now().Before(deadline) {
		result, err := backend.Execute(ctx, "echo ready")
		if err == nil && result.ExitCode == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readyPollInterval):
		}
	}
	return fmt.Errorf("sandbox %s failed to start within %s", backend.id, p.startupTimeout)
}

func (p *HTTPProvider) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sandbox service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return &serviceError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode sandbox service response: %w", err)
		}
	}
	return nil
}

// httpBackend executes commands and file operations in one remote sandbox.
type httpBackend struct {
	provider *HTTPProvider
	id       string
}

func (b *httpBackend) ID() string {
	return b.id
}

func (b *httpBackend) Execute(ctx context.Context, command string) (ExecResult, error) {
	var result struct {
		Stdout   string `json:"stdout"`
		Stderr   string `json:"stderr"`
		ExitCode int    `json:"exit_code"`
	}
	err := b.provider.do(ctx, http.MethodPost, "/v1/sandboxes/"+url.PathEscape(b.id)+"/exec", map[string]any{
		"command":         command,
		"timeout_seconds": int(b.provider.commandTimeout.Seconds()),
	}, &result)
	if err != nil {
		return ExecResult{}, err
	}

	output := result.Stdout
	if result.Stderr != "" {
		if output != "" {
			output += "\n" + result.Stderr
		} else {
			output = result.Stderr
		}
	}
	return ExecResult{Output: output, ExitCode: result.ExitCode}, nil
}

func (b *httpBackend) ReadFile(ctx context.Context, path string) (string, error) {
	var result struct {
		Content string `json:"content"`
	}
	endpoint := fmt.Sprintf("/v1/sandboxes/%s/files?path=%s", url.PathEscape(b.id), url.QueryEscape(path))
	if err := b.provider.do(ctx, http.MethodGet, endpoint, nil, &result); err != nil {
		return "", err
	}
	return result.Content, nil
}

func (b *httpBackend) WriteFile(ctx context.Context, path, content string) error {
	// Content travels in the HTTP body, never on a shell command line, so
	// large files do not hit ARG_MAX.
	return b.provider.do(ctx, http.MethodPost, "/v1/sandboxes/"+url.PathEscape(b.id)+"/files", map[string]any{
		"path":    path,
		"content": content,
	}, nil)
}
