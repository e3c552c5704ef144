package linear

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_DisabledWithoutAPIKey(t *testing.T) {
	c := NewClient("", "")

	if c.Enabled() {
		t.Fatal("Enabled should be false without API key")
	}
	if c.CommentOnIssue(context.Background(), "issue-1", "body") {
		t.Fatal("CommentOnIssue should report disabled")
	}
	if c.ReactToComment(context.Background(), "comment-1", "") {
		t.Fatal("ReactToComment should report disabled")
	}
	if issue := c.FetchIssue(context.Background(), "issue-1"); issue != nil {
		t.Fatalf("FetchIssue should return nil, got %+v", issue)
	}
}

func TestCommentOnIssue(t *testing.T) {
	var gotAuth string
	var gotVariables map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Variables map[string]any `json:"variables"`
		}
		json.Unmarshal(body, &req)
		gotVariables = req.Variables

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"commentCreate":{"success":true,"comment":{"id":"c-1"}}}}`))
	}))
	defer srv.Close()

	c := NewClient("lin_api_key", srv.URL)
	ok := c.CommentOnIssue(context.Background(), "issue-42", "hello")
	if !ok {
		t.Fatal("CommentOnIssue should succeed")
	}
	if gotAuth != "lin_api_key" {
		t.Fatalf("Authorization header = %q, want API key", gotAuth)
	}
	if gotVariables["issueId"] != "issue-42" || gotVariables["body"] != "hello" {
		t.Fatalf("variables = %v", gotVariables)
	}
}

func TestCommentOnIssue_FailureModes(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "http error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "mutation not successful",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"data":{"commentCreate":{"success":false}}}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewClient("key", srv.URL)
			if c.CommentOnIssue(context.Background(), "issue-1", "body") {
				t.Fatal("CommentOnIssue should return false")
			}
		})
	}
}

func TestReactToComment_DefaultEmoji(t *testing.T) {
	var gotEmoji string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Variables map[string]any `json:"variables"`
		}
		json.Unmarshal(body, &req)
		gotEmoji, _ = req.Variables["emoji"].(string)
		w.Write([]byte(`{"data":{"reactionCreate":{"success":true}}}`))
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL)
	if !c.ReactToComment(context.Background(), "comment-9", "") {
		t.Fatal("ReactToComment should succeed")
	}
	if gotEmoji != EyesEmoji {
		t.Fatalf("emoji = %q, want default eyes", gotEmoji)
	}
}

func TestFetchIssue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"issue":{
			"id":"issue-1",
			"identifier":"ENG-42",
			"title":"Fix the bug",
			"description":"It is broken",
			"url":"https://linear.app/acme/issue/ENG-42",
			"comments":{"nodes":[
				{"id":"c1","body":"@openswe please fix","createdAt":"2026-08-29T10:00:00Z","user":{"name":"Dana","email":"dana@acme.dev"}}
			]}
		}}}`))
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL)
	issue := c.FetchIssue(context.Background(), "issue-1")
	if issue == nil {
		t.Fatal("FetchIssue returned nil")
	}
	if issue.Identifier != "ENG-42" || issue.Title != "Fix the bug" {
		t.Fatalf("issue = %+v", issue)
	}
	if len(issue.Comments) != 1 || issue.Comments[0].Author != "Dana" {
		t.Fatalf("comments = %+v", issue.Comments)
	}
}

func TestFetchIssue_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"issue":null}}`))
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL)
	if issue := c.FetchIssue(context.Background(), "missing"); issue != nil {
		t.Fatalf("FetchIssue = %+v, want nil", issue)
	}
}
