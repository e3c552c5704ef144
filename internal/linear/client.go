package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// DefaultEndpoint is the Linear GraphQL API endpoint.
const DefaultEndpoint = "https://api.linear.app/graphql"

// EyesEmoji is the reaction posted when a webhook is accepted.
const EyesEmoji = "👀"

// Client is a minimal Linear GraphQL client. A client with an empty API key
// is valid: every operation reports itself disabled instead of failing.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// Issue holds the fields of a Linear issue this service cares about.
type Issue struct {
	ID          string    `json:"id"`
	Identifier  string    `json:"identifier"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Creator     *Person   `json:"-"`
	Assignee    *Person   `json:"-"`
	Comments    []Comment `json:"-"`
}

// Person is a Linear user attached to an issue.
type Person struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Comment is a single issue comment.
type Comment struct {
	ID        string `json:"id"`
	Body      string `json:"body"`
	CreatedAt string `json:"createdAt"`
	Author    string `json:"-"`
	Email     string `json:"-"`
}

// NewClient creates a Linear client. endpoint may be empty to use the
// production API.
func NewClient(apiKey, endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		apiKey:   apiKey,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

const commentCreateMutation = `mutation CommentCreate($issueId: String!, $body: String!) {
    commentCreate(input: { issueId: $issueId, body: $body }) {
        success
        comment { id }
    }
}`

// CommentOnIssue posts a comment to a Linear issue. Returns false when
// posting is disabled or the mutation did not succeed.
func (c *Client) CommentOnIssue(ctx context.Context, issueID, body string) bool {
	if !c.Enabled() {
		return false
	}

	var result struct {
		Data struct {
			CommentCreate struct {
				Success bool `json:"success"`
			} `json:"commentCreate"`
		} `json:"data"`
	}

	err := c.query(ctx, commentCreateMutation, map[string]any{
		"issueId": issueID,
		"body":    body,
	}, &result)
	if err != nil {
		log.Printf("Warning: failed to comment on Linear issue %s: %v", issueID, err)
		return false
	}
	return result.Data.CommentCreate.Success
}

const reactionCreateMutation = `mutation ReactionCreate($commentId: String!, $emoji: String!) {
    reactionCreate(input: { commentId: $commentId, emoji: $emoji }) {
        success
    }
}`

// ReactToComment adds an emoji reaction to a comment. Empty emoji defaults
// to 👀.
func (c *Client) ReactToComment(ctx context.Context, commentID, emoji string) bool {
	if !c.Enabled() {
		return false
	}
	if emoji == "" {
		emoji = EyesEmoji
	}

	var result struct {
		Data struct {
			ReactionCreate struct {
				Success bool `json:"success"`
			} `json:"reactionCreate"`
		} `json:"data"`
	}

	err := c.query(ctx, reactionCreateMutation, map[string]any{
		"commentId": commentID,
		"emoji":     emoji,
	}, &result)
	if err != nil {
		log.Printf("Warning: failed to react to Linear comment %s: %v", commentID, err)
		return false
	}
	return result.Data.ReactionCreate.Success
}

const issueQuery = `query GetIssue($issueId: String!) {
    issue(id: $issueId) {
        id
        identifier
        title
        description
        url
        creator { name email }
        assignee { name email }
        comments {
            nodes {
                id
                body
                createdAt
                user { id name email }
            }
        }
    }
}`

// FetchIssue retrieves full issue details including description and
// comments. Returns nil when disabled or the fetch fails.
func (c *Client) FetchIssue(ctx context.Context, issueID string) *Issue {
	if !c.Enabled() {
		return nil
	}

	var result struct {
		Data struct {
			Issue *struct {
				ID          string `json:"id"`
				Identifier  string `json:"identifier"`
				Title       string `json:"title"`
				Description string `json:"description"`
				URL         string `json:"url"`
				Creator     *Person `json:"creator"`
				Assignee    *Person `json:"assignee"`
				Comments    struct {
					Nodes []struct {
						ID        string `json:"id"`
						Body      string `json:"body"`
						CreatedAt string `json:"createdAt"`
						User      struct {
							Name  string `json:"name"`
							Email string `json:"email"`
						} `json:"user"`
					} `json:"nodes"`
				} `json:"comments"`
			} `json:"issue"`
		} `json:"data"`
	}

	if err := c.query(ctx, issueQuery, map[string]any{"issueId": issueID}, &result); err != nil {
		log.Printf("Warning: failed to fetch Linear issue %s: %v", issueID, err)
		return nil
	}
	if result.Data.Issue == nil {
		return nil
	}

	issue := &Issue{
		ID:          result.Data.Issue.ID,
		Identifier:  result.Data.Issue.Identifier,
		Title:       result.Data.Issue.Title,
		Description: result.Data.Issue.Description,
		URL:         result.Data.Issue.URL,
		Creator:     result.Data.Issue.Creator,
		Assignee:    result.Data.Issue.Assignee,
	}
	for _, node := range result.Data.Issue.Comments.Nodes {
		issue.Comments = append(issue.Comments, Comment{
			ID:        node.ID,
			Body:      node.Body,
			CreatedAt: node.CreatedAt,
			Author:    node.User.Name,
			Email:     node.User.Email,
		})
	}
	return issue
}

func (c *Client) query(ctx context.Context, query string, variables map[string]any, out any) error {
	payload, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return fmt.Errorf("failed to encode GraphQL request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("linear API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("linear API error: %d - %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode Linear response: %w", err)
	}
	return nil
}
