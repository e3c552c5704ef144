package agent

// RepoRef identifies the GitHub repository a run works on.
type RepoRef struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// IssueRef identifies the originating Linear issue.
type IssueRef struct {
	ID          string `json:"id"`
	Identifier  string `json:"identifier"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	ProjectID   string `json:"linear_project_id"`
	IssueNumber string `json:"linear_issue_number"`
}

// RunConfig is the explicit per-run context handed to the agent builder and
// to tools. It replaces ad-hoc key lookups with a typed object; Configurable
// is its wire form for the orchestrator run API.
type RunConfig struct {
	ThreadID       string
	Repo           RepoRef
	LinearIssue    IssueRef
	EncryptedToken string
}

// Configurable encodes the run config for the orchestrator's run-creation
// payload.
func (c RunConfig) Configurable() map[string]any {
	m := map[string]any{
		"thread_id": c.ThreadID,
		"repo": map[string]any{
			"owner": c.Repo.Owner,
			"name":  c.Repo.Name,
		},
		"linear_issue": map[string]any{
			"id":                  c.LinearIssue.ID,
			"identifier":          c.LinearIssue.Identifier,
			"title":               c.LinearIssue.Title,
			"url":                 c.LinearIssue.URL,
			"linear_project_id":   c.LinearIssue.ProjectID,
			"linear_issue_number": c.LinearIssue.IssueNumber,
		},
	}
	if c.EncryptedToken != "" {
		m["github_token_encrypted"] = c.EncryptedToken
	}
	return m
}

// ParseRunConfig decodes the wire form back into a RunConfig. Unknown or
// missing keys are tolerated so older payloads still parse.
func ParseRunConfig(configurable map[string]any) RunConfig {
	cfg := RunConfig{}
	cfg.ThreadID, _ = configurable["thread_id"].(string)
	cfg.EncryptedToken, _ = configurable["github_token_encrypted"].(string)

	if repo, ok := configurable["repo"].(map[string]any); ok {
		cfg.Repo.Owner, _ = repo["owner"].(string)
		cfg.Repo.Name, _ = repo["name"].(string)
	}
	if issue, ok := configurable["linear_issue"].(map[string]any); ok {
		cfg.LinearIssue.ID, _ = issue["id"].(string)
		cfg.LinearIssue.Identifier, _ = issue["identifier"].(string)
		cfg.LinearIssue.Title, _ = issue["title"].(string)
		cfg.LinearIssue.URL, _ = issue["url"].(string)
		cfg.LinearIssue.ProjectID, _ = issue["linear_project_id"].(string)
		cfg.LinearIssue.IssueNumber, _ = issue["linear_issue_number"].(string)
	}
	return cfg
}
