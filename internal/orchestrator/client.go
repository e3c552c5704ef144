// Package orchestrator is the HTTP client for the conversational run
// orchestrator: thread metadata, run creation, and the durable key-value
// store that backs queued messages.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Thread status values reported by the orchestrator.
const (
	StatusBusy = "busy"
	StatusIdle = "idle"
)

// Thread is the orchestrator's view of a conversation thread.
type Thread struct {
	ID       string         `json:"thread_id"`
	Status   string         `json:"status"`
	Metadata map[string]any `json:"metadata"`
}

// RunInput is the initial conversation input for a run.
type RunInput struct {
	Messages []RunMessage `json:"messages"`
}

// RunMessage is a single conversation turn in a run request.
type RunMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ThreadAPI is the thread-metadata surface consumed by the sandbox manager
// and the message queue.
type ThreadAPI interface {
	GetThread(ctx context.Context, threadID string) (*Thread, error)
	UpdateThreadMetadata(ctx context.Context, threadID string, metadata map[string]any) error
}

// RunAPI creates agent runs.
type RunAPI interface {
	CreateRun(ctx context.Context, threadID, assistantID string, input RunInput, configurable map[string]any) error
}

// StoreAPI is the durable KV store surface consumed by the message queue.
// GetItem returns nil for a missing item.
type StoreAPI interface {
	GetItem(ctx context.Context, namespace []string, key string) (map[string]any, error)
	PutItem(ctx context.Context, namespace []string, key string, value map[string]any) error
	DeleteItem(ctx context.Context, namespace []string, key string) error
}

// Client talks to the orchestrator service over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates an orchestrator client. apiKey may be empty for local
// deployments.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// GetThread fetches a thread with its status and metadata.
func (c *Client) GetThread(ctx context.Context, threadID string) (*Thread, error) {
	var thread Thread
	if err := c.do(ctx, http.MethodGet, "/threads/"+url.PathEscape(threadID), nil, &thread); err != nil {
		return nil, err
	}
	if thread.ID == "" {
		thread.ID = threadID
	}
	return &thread, nil
}

// UpdateThreadMetadata merges metadata keys into the thread. The
// orchestrator merges at the top level, so callers send only changed keys.
func (c *Client) UpdateThreadMetadata(ctx context.Context, threadID string, metadata map[string]any) error {
	payload := map[string]any{"metadata": metadata}
	return c.do(ctx, http.MethodPatch, "/threads/"+url.PathEscape(threadID), payload, nil)
}

// CreateRun starts a run on the thread, creating the thread if it does not
// exist yet.
func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string, input RunInput, configurable map[string]any) error {
	payload := map[string]any{
		"assistant_id":  assistantID,
		"input":         input,
		"config":        map[string]any{"configurable": configurable},
		"if_not_exists": "create",
	}
	return c.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/runs", payload, nil)
}

// GetItem fetches a store item. Missing items return (nil, nil).
func (c *Client) GetItem(ctx context.Context, namespace []string, key string) (map[string]any, error) {
	path := fmt.Sprintf("/store/items?namespace=%s&key=%s",
		url.QueryEscape(strings.Join(namespace, ".")), url.QueryEscape(key))

	var item struct {
		Value map[string]any `json:"value"`
	}
	err := c.do(ctx, http.MethodGet, path, nil, &item)
	if err != nil {
		var apiErr *APIError
		if AsAPIError(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return item.Value, nil
}

// PutItem stores a value under namespace/key, overwriting any prior value.
func (c *Client) PutItem(ctx context.Context, namespace []string, key string, value map[string]any) error {
	payload := map[string]any{
		"namespace": namespace,
		"key":       key,
		"value":     value,
	}
	return c.do(ctx, http.MethodPut, "/store/items", payload, nil)
}

// DeleteItem removes a store item. Deleting a missing item is not an error.
func (c *Client) DeleteItem(ctx context.Context, namespace []string, key string) error {
	payload := map[string]any{
		"namespace": namespace,
		"key":       key,
	}
	err := c.do(ctx, http.MethodDelete, "/store/items", payload, nil)
	if err != nil {
		var apiErr *APIError
		if AsAPIError(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil
		}
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("orchestrator request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode orchestrator response: %w", err)
		}
	}
	return nil
}
