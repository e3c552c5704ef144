package webhook

// Linear webhook payload types. Only the fields the handler inspects are
// modeled; Linear sends much more.

type Payload struct {
	Type   string      `json:"type"`
	Action string      `json:"action"`
	Data   CommentData `json:"data"`
}

type CommentData struct {
	ID       string `json:"id"`
	Body     string `json:"body"`
	BotActor *Actor `json:"botActor,omitempty"`
	User     *Actor `json:"user,omitempty"`
	Issue    *Issue `json:"issue,omitempty"`
}

type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Issue struct {
	ID          string   `json:"id"`
	Identifier  string   `json:"identifier"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Team        *Team    `json:"team,omitempty"`
	Project     *Project `json:"project,omitempty"`
	Labels      []Label  `json:"labels,omitempty"`
}

type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Project struct {
	Name string `json:"name"`
}

type Label struct {
	Name string `json:"name"`
}

// Task is the unit of work handed to the dispatcher after a webhook passes
// all filters.
type Task struct {
	ThreadID  string
	IssueID   string
	Issue     Issue
	Owner     string
	Repo      string
	CommentID string
	// CommentBody is the triggering comment, kept for the executor's
	// fallback prompt when the full issue fetch fails.
	CommentBody string
	AuthorName  string
	AuthorEmail string
}

// TaskDispatcher enqueues tasks for asynchronous execution.
type TaskDispatcher interface {
	Enqueue(task *Task) error
}
