package githubapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v66/github"
)

// PullRequest is the result of a successful PR creation.
type PullRequest struct {
	URL    string
	Number int
}

// ValidationError wraps a GitHub 422 response (e.g. no diff between
// branches). It is reported to the user, never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("github validation error: %s", e.Message)
}

// Client creates pull requests and resolves repository metadata via the
// GitHub REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a GitHub API client. baseURL is empty in production and
// points at a test server in tests.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) api(token string) (*gh.Client, error) {
	client := gh.NewClient(c.httpClient).WithAuthToken(token)
	if c.baseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(c.baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("failed to configure GitHub base URL: %w", err)
		}
		client.BaseURL = u
	}
	return client, nil
}

// CreatePR opens a pull request from head into base. A 422 from GitHub is
// returned as *ValidationError.
func (c *Client) CreatePR(ctx context.Context, owner, repo, token, title, head, base, body string) (*PullRequest, error) {
	api, err := c.api(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Creating PR: head=%s, base=%s, repo=%s/%s", head, base, owner, repo)

	pr, resp, err := api.PullRequests.Create(ctx, owner, repo, &gh.NewPullRequest{
		Title: gh.String(title),
		Head:  gh.String(head),
		Base:  gh.String(base),
		Body:  gh.String(body),
	})
	if err != nil {
		var ghErr *gh.ErrorResponse
		if errors.As(err, &ghErr) && resp != nil && resp.StatusCode == http.StatusUnprocessableEntity {
			msg := ghErr.Message
			var details []string
			for _, e := range ghErr.Errors {
				if e.Message != "" {
					details = append(details, e.Message)
				}
			}
			if len(details) > 0 {
				msg = msg + ": " + strings.Join(details, "; ")
			}
			return nil, &ValidationError{Message: msg}
		}
		return nil, fmt.Errorf("failed to create PR: %w", err)
	}

	result := &PullRequest{
		URL:    pr.GetHTMLURL(),
		Number: pr.GetNumber(),
	}
	log.Printf("PR created successfully: %s", result.URL)
	return result, nil
}

// DefaultBranch resolves the repository's default branch. Falls back to
// "main" when the lookup fails, the default branch is never assumed without
// asking first.
func (c *Client) DefaultBranch(ctx context.Context, owner, repo, token string) string {
	api, err := c.api(token)
	if err != nil {
		log.Printf("Warning: failed to build GitHub client, falling back to 'main': %v", err)
		return "main"
	}

	repository, _, err := api.Repositories.Get(ctx, owner, repo)
	if err != nil {
		log.Printf("Warning: failed to get repo info from GitHub API, falling back to 'main': %v", err)
		return "main"
	}
	if repository.GetDefaultBranch() == "" {
		return "main"
	}
	return repository.GetDefaultBranch()
}
