package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/openswe/agent/internal/linear"
)

// Handler accepts Linear webhooks and turns qualifying comment events into
// dispatcher tasks. Everything slow (reactions, issue fetches, run creation)
// happens in the executor; the handler only filters and enqueues.
type Handler struct {
	webhookSecret  string
	triggerKeyword string
	dispatcher     TaskDispatcher
	repos          *RepoMap
	deduper        *commentDeduper
}

// NewHandler creates a webhook handler.
func NewHandler(webhookSecret, triggerKeyword string, dispatcher TaskDispatcher, repos *RepoMap) *Handler {
	if webhookSecret == "" {
		log.Printf("Warning: no webhook secret configured, signature verification disabled")
	}
	return &Handler{
		webhookSecret:  webhookSecret,
		triggerKeyword: triggerKeyword,
		dispatcher:     dispatcher,
		repos:          repos,
		deduper:        newCommentDeduper(12 * time.Hour),
	}
}

type response struct {
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// Handle processes POST /webhooks/linear.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Error reading payload: %v", err)
		http.Error(w, "Error reading payload", http.StatusBadRequest)
		return
	}

	if !VerifySignature(payload, r.Header.Get("Linear-Signature"), h.webhookSecret) {
		log.Printf("Signature verification failed")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var event Payload
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("Error parsing webhook JSON: %v", err)
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Message: "Invalid JSON"})
		return
	}

	if reason := h.filter(&event); reason != "" {
		writeJSON(w, http.StatusOK, response{Status: "ignored", Reason: reason})
		return
	}

	issue := event.Data.Issue
	target := h.repos.Resolve(issue)

	task := &Task{
		ThreadID:    ThreadIDForIssue(issue.ID),
		IssueID:     issue.ID,
		Issue:       *issue,
		Owner:       target.Owner,
		Repo:        target.Name,
		CommentID:   event.Data.ID,
		CommentBody: event.Data.Body,
	}
	if event.Data.User != nil {
		task.AuthorName = event.Data.User.Name
		task.AuthorEmail = event.Data.User.Email
	}

	if err := h.dispatcher.Enqueue(task); err != nil {
		log.Printf("Failed to enqueue task: %v", err)
		switch {
		case errors.Is(err, ErrQueueFull):
			http.Error(w, "Task queue is busy, try again later", http.StatusServiceUnavailable)
		case errors.Is(err, ErrQueueClosed):
			http.Error(w, "Task queue unavailable", http.StatusServiceUnavailable)
		default:
			http.Error(w, "Failed to enqueue task", http.StatusInternalServerError)
		}
		return
	}

	log.Printf("Accepted webhook for issue %q (%s), repo %s/%s", issue.Title, issue.ID, target.Owner, target.Name)
	writeJSON(w, http.StatusAccepted, response{
		Status:  "accepted",
		Message: "Processing issue " + issue.Identifier + " for repo " + target.Owner + "/" + target.Name,
	})
}

// filter returns a non-empty reason when the event should be ignored.
func (h *Handler) filter(event *Payload) string {
	if event.Type != "Comment" {
		return "Not a Comment event"
	}
	if event.Action != "create" {
		return "Comment action is '" + event.Action + "', only processing 'create'"
	}
	if event.Data.BotActor != nil {
		return "Comment is from a bot"
	}
	if linear.IsBotMessage(event.Data.Body) {
		return "Comment is our own bot message"
	}
	if !strings.Contains(strings.ToLower(event.Data.Body), strings.ToLower(h.triggerKeyword)) {
		return "Comment doesn't mention " + h.triggerKeyword
	}
	if event.Data.Issue == nil || event.Data.Issue.ID == "" {
		return "No issue data in comment"
	}
	if !h.deduper.markIfNew(event.Data.ID) {
		return "Duplicate comment"
	}
	return ""
}

// HandleVerify processes GET /webhooks/linear, used by Linear to check the
// endpoint during webhook setup.
func (h *Handler) HandleVerify(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Status: "ok", Message: "Linear webhook endpoint is active"})
}

// HandleHealth processes GET /health.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Status: "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}
