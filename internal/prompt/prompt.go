// Package prompt builds the system prompt and per-issue task prompt handed
// to the agent run.
package prompt

import (
	"fmt"
	"strings"

	"github.com/openswe/agent/internal/linear"
)

const systemTemplate = `### Current Working Directory

You are operating in a **remote Linux sandbox** at ` + "`%[1]s`" + `.

All code execution and file operations happen in this sandbox environment.

**Important:**
- Use ` + "`%[1]s`" + ` as your working directory for all operations

### Code Style

- NEVER add inline comments to code
- Any docstrings on functions you add or modify must be VERY concise (1 line preferred)

### Committing Changes and Opening Pull Requests

When you have completed your implementation, follow these steps in order:

1. **Run linters and formatters**: You MUST run the appropriate lint/format commands before submitting. Determine which languages are in the repo and run the corresponding commands:

   **Python** (if repo contains ` + "`.py`" + ` files):
   - ` + "`make format`" + ` then ` + "`make lint`" + `

   **Frontend / TypeScript / JavaScript** (if repo contains ` + "`package.json`" + `):
   - ` + "`yarn format`" + ` then ` + "`yarn lint`" + `

   **Go** (if repo contains ` + "`.go`" + ` files):
   - Figure out what the lint/formatter commands are (check the ` + "`Makefile`, `go.mod`" + `, or CI config) and run them

   Fix any errors reported by linters before proceeding.

2. **Review your changes**: Before submitting, review the diff of your changes to ensure correctness. Verify you haven't introduced any regressions or unintended modifications.

3. **Submit via ` + "`commit_and_open_pr`" + ` tool**: Call this tool as the final step. It will commit all changes, push to a branch, and create a pull request.

   **PR Title** (keep under 70 characters):
   ` + "```" + `
   <type>: <concise description> [closes %[2]s-%[3]s]
   ` + "```" + `
   Where type is one of: ` + "`fix`" + ` (bug fix), ` + "`feat`" + ` (new feature), ` + "`chore`" + ` (maintenance), ` + "`ci`" + ` (CI/CD)

   **PR Body**:
   ` + "```" + `
   ## Description
   <Explain WHY this PR is needed, list the changes, and reference the Linear issue>

   ## Test Plan
   - [ ] <specific verification step>
   ` + "```" + `

   **Commit message**: Should be concise and focus on the "why" rather than the "what". If not provided, the PR title is used.

Always call ` + "`commit_and_open_pr`" + ` as the final step once your implementation is complete and code quality checks pass.
`

// System renders the system prompt for a run rooted at workingDir. The
// Linear identifiers feed the required PR title format; placeholders are
// used when they are unknown.
func System(workingDir, linearProjectID, linearIssueNumber string) string {
	if linearProjectID == "" {
		linearProjectID = "<PROJECT_ID>"
	}
	if linearIssueNumber == "" {
		linearIssueNumber = "<ISSUE_NUMBER>"
	}
	return fmt.Sprintf(systemTemplate, workingDir, linearProjectID, linearIssueNumber)
}

// ForIssue builds the task prompt from a Linear issue: title, description,
// and the conversation since the agent last spoke. Comment history restarts
// at the comment mentioning the trigger keyword so stale discussion above it
// is not replayed, and the agent's own comments are dropped.
func ForIssue(issue *linear.Issue, trigger string) string {
	title := issue.Title
	if title == "" {
		title = "No title"
	}
	description := issue.Description
	if description == "" {
		description = "No description"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Please work on the following issue:\n\n## Title: %s\n\n## Description:\n%s\n", title, description)

	if comments := relevantComments(issue.Comments, trigger); len(comments) > 0 {
		b.WriteString("\n\n## Comments:\n")
		for _, c := range comments {
			author := c.Author
			if author == "" {
				author = "Unknown"
			}
			fmt.Fprintf(&b, "\n**%s:** %s\n", author, c.Body)
		}
	}

	b.WriteString("\n\nPlease analyze this issue and implement the necessary changes. " +
		"When you're done, commit and push your changes.")
	return b.String()
}

// relevantComments returns the comments after the agent's last reply,
// starting at the first one that mentions the trigger keyword. Agent
// comments within that window are filtered out.
func relevantComments(comments []linear.Comment, trigger string) []linear.Comment {
	lastBot := -1
	for i, c := range comments {
		if linear.IsBotMessage(c.Body) {
			lastBot = i
		}
	}

	trigger = strings.ToLower(trigger)
	var relevant []linear.Comment
	for i := lastBot + 1; i < len(comments); i++ {
		if strings.Contains(strings.ToLower(comments[i].Body), trigger) {
			relevant = comments[i:]
			break
		}
	}

	filtered := relevant[:0:0]
	for _, c := range relevant {
		if linear.IsBotMessage(c.Body) {
			continue
		}
		filtered = append(filtered, c)
	}
	return filtered
}

// SplitIdentifier splits a Linear identifier like "ENG-42" into its project
// id and issue number. Identifiers without a dash return empty strings.
func SplitIdentifier(identifier string) (projectID, issueNumber string) {
	i := strings.IndexByte(identifier, '-')
	if i < 0 {
		return "", ""
	}
	return identifier[:i], identifier[i+1:]
}
