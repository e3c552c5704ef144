package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openswe/agent/internal/linear"
	"github.com/openswe/agent/internal/sandbox"
	"github.com/openswe/agent/internal/workflow"
)

type fakeDrainer struct {
	messages []string
	err      error
	drains   int
}

func (f *fakeDrainer) DrainAndClear(_ context.Context, _ string) ([]string, error) {
	f.drains++
	if f.err != nil {
		return nil, f.err
	}
	out := f.messages
	f.messages = nil
	return out, nil
}

type fakeCommenter struct {
	comments []string
	fail     bool
}

func (f *fakeCommenter) CommentOnIssue(_ context.Context, _ string, body string) bool {
	if f.fail {
		return false
	}
	f.comments = append(f.comments, body)
	return true
}

func testConfig() RunConfig {
	return RunConfig{
		ThreadID: "t1",
		Repo:     RepoRef{Owner: "acme", Name: "api"},
		LinearIssue: IssueRef{
			ID: "issue-1", Identifier: "ENG-42",
			ProjectID: "ENG", IssueNumber: "42",
		},
		EncryptedToken: "enc",
	}
}

func TestQueueDrainInjectsSingleUserTurn(t *testing.T) {
	drainer := &fakeDrainer{messages: []string{"first", "second"}}
	mw := NewQueueDrainMiddleware(drainer)
	state := &State{}

	if err := mw.BeforeModel(context.Background(), testConfig(), state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(state.Messages) != 1 {
		t.Fatalf("expected one injected message, got %d", len(state.Messages))
	}
	msg := state.Messages[0]
	if msg.Role != RoleUser {
		t.Errorf("expected user role, got %s", msg.Role)
	}
	if msg.Content != "first\n\nsecond" {
		t.Errorf("expected FIFO concatenation, got %q", msg.Content)
	}
}

func TestQueueDrainToleratesQueueFailure(t *testing.T) {
	mw := NewQueueDrainMiddleware(&fakeDrainer{err: errors.New("store down")})
	state := &State{}
	if err := mw.BeforeModel(context.Background(), testConfig(), state); err != nil {
		t.Fatalf("queue failure must not fail the run: %v", err)
	}
	if len(state.Messages) != 0 {
		t.Errorf("expected no messages, got %v", state.Messages)
	}
}

func TestQueueDrainEmptyQueueNoop(t *testing.T) {
	mw := NewQueueDrainMiddleware(&fakeDrainer{})
	state := &State{Messages: []Message{{Role: RoleUser, Content: "hi"}}}
	if err := mw.BeforeModel(context.Background(), testConfig(), state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(state.Messages) != 1 {
		t.Errorf("expected untouched state, got %v", state.Messages)
	}
}

func TestPostToLinearFirstResponse(t *testing.T) {
	commenter := &fakeCommenter{}
	mw := NewPostToLinearMiddleware(commenter)
	state := &State{Messages: []Message{
		{Role: RoleUser, Content: "fix the bug"},
		{Role: RoleAssistant, Content: "Looking into it."},
	}}

	if err := mw.AfterModel(context.Background(), testConfig(), state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(commenter.comments) != 1 {
		t.Fatalf("expected one comment, got %d", len(commenter.comments))
	}
	if !strings.HasPrefix(commenter.comments[0], linear.AgentResponsePrefix) {
		t.Errorf("unexpected comment:\n%s", commenter.comments[0])
	}
	if state.LinearMessagesSentCount != 1 {
		t.Errorf("expected sent count 1, got %d", state.LinearMessagesSentCount)
	}
}

func TestPostToLinearSkipsCases(t *testing.T) {
	tests := []struct {
		name  string
		cfg   RunConfig
		state *State
	}{
		{
			"no linear issue",
			RunConfig{ThreadID: "t1"},
			&State{Messages: []Message{
				{Role: RoleUser, Content: "q"},
				{Role: RoleAssistant, Content: "a"},
			}},
		},
		{
			"multiple user messages",
			testConfig(),
			&State{Messages: []Message{
				{Role: RoleUser, Content: "q1"},
				{Role: RoleAssistant, Content: "a1"},
				{Role: RoleUser, Content: "q2"},
				{Role: RoleAssistant, Content: "a2"},
			}},
		},
		{
			"response follows tool result",
			testConfig(),
			&State{Messages: []Message{
				{Role: RoleUser, Content: "q"},
				{Role: RoleAssistant, Content: "calling tool"},
				{Role: RoleTool, Name: "x", Content: "{}"},
				{Role: RoleAssistant, Content: "done"},
			}},
		},
		{
			"already sent",
			testConfig(),
			&State{
				Messages: []Message{
					{Role: RoleUser, Content: "q"},
					{Role: RoleAssistant, Content: "a"},
				},
				LinearMessagesSentCount: 1,
			},
		},
		{
			"last message not assistant",
			testConfig(),
			&State{Messages: []Message{{Role: RoleUser, Content: "q"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commenter := &fakeCommenter{}
			mw := NewPostToLinearMiddleware(commenter)
			if err := mw.AfterModel(context.Background(), tt.cfg, tt.state); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(commenter.comments) != 0 {
				t.Errorf("expected no comment, got %v", commenter.comments)
			}
		})
	}
}

func TestToolErrorMiddlewareConvertsFailures(t *testing.T) {
	mw := ToolErrorMiddleware{}
	call := ToolCall{Name: "commit_and_open_pr"}

	t.Run("returned error", func(t *testing.T) {
		msg, err := mw.WrapToolCall(context.Background(), testConfig(), call,
			func(_ context.Context, _ ToolCall) (Message, error) {
				return Message{}, errors.New("push rejected")
			})
		if err != nil {
			t.Fatalf("errors must be swallowed, got %v", err)
		}
		if msg.Role != RoleTool || msg.Name != call.Name {
			t.Errorf("unexpected message %+v", msg)
		}
		if !strings.Contains(msg.Content, "push rejected") || !strings.Contains(msg.Content, `"status":"error"`) {
			t.Errorf("unexpected payload %s", msg.Content)
		}
	})

	t.Run("panic", func(t *testing.T) {
		msg, err := mw.WrapToolCall(context.Background(), testConfig(), call,
			func(_ context.Context, _ ToolCall) (Message, error) {
				panic("nil deref")
			})
		if err != nil {
			t.Fatalf("panics must be converted, got %v", err)
		}
		if !strings.Contains(msg.Content, "nil deref") {
			t.Errorf("unexpected payload %s", msg.Content)
		}
	})

	t.Run("success passthrough", func(t *testing.T) {
		want := Message{Role: RoleTool, Name: call.Name, Content: `{"success":true}`}
		msg, err := mw.WrapToolCall(context.Background(), testConfig(), call,
			func(_ context.Context, _ ToolCall) (Message, error) {
				return want, nil
			})
		if err != nil || msg != want {
			t.Errorf("expected passthrough, got %+v, %v", msg, err)
		}
	})
}

type fakeFinalizer struct {
	runs   int
	result workflow.Result
	err    error
	last   workflow.Request
}

func (f *fakeFinalizer) Finalize(_ context.Context, _ sandbox.Backend, req workflow.Request) (workflow.Result, error) {
	f.runs++
	f.last = req
	return f.result, f.err
}

type fakeCipher struct{}

func (fakeCipher) Decrypt(encrypted string) string {
	return strings.TrimPrefix(encrypted, "enc:")
}

type fakeRepoDirs struct{ dir string }

func (f fakeRepoDirs) RepoDir(_ context.Context, _ string) string { return f.dir }

type prBackend struct{}

func (prBackend) ID() string { return "sbx-1" }

func (prBackend) Execute(_ context.Context, _ string) (sandbox.ExecResult, error) {
	return sandbox.ExecResult{ExitCode: 0}, nil
}

func (prBackend) ReadFile(_ context.Context, _ string) (string, error) { return "", nil }

func (prBackend) WriteFile(_ context.Context, _, _ string) error { return nil }

func newPRMiddleware(commenter *fakeCommenter, finalizer *fakeFinalizer, withBackend bool) *OpenPRMiddleware {
	registry := sandbox.NewRegistry()
	if withBackend {
		registry.Put("t1", prBackend{})
	}
	return NewOpenPRMiddleware(registry, finalizer, commenter, fakeCipher{}, fakeRepoDirs{dir: "/workspace/api"})
}

func TestOpenPRToolSuccessPayload(t *testing.T) {
	commenter := &fakeCommenter{}
	finalizer := &fakeFinalizer{}
	mw := newPRMiddleware(commenter, finalizer, true)

	state := &State{Messages: []Message{
		{Role: RoleUser, Content: "fix it"},
		{Role: RoleTool, Name: PRToolName, Content: `{"success":true,"pr_url":"https://github.com/acme/api/pull/9"}`},
		{Role: RoleAssistant, Content: "Opened the PR."},
	}}
	if err := mw.AfterRun(context.Background(), testConfig(), state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if finalizer.runs != 0 {
		t.Error("tool already finalized; middleware must not run the workflow again")
	}
	if len(commenter.comments) != 1 {
		t.Fatalf("expected one comment, got %d", len(commenter.comments))
	}
	comment := commenter.comments[0]
	if !strings.HasPrefix(comment, linear.PRCreatedPrefix) || !strings.Contains(comment, "pull/9") {
		t.Errorf("unexpected comment:\n%s", comment)
	}
	if !strings.Contains(comment, "Opened the PR.") {
		t.Errorf("comment missing response section:\n%s", comment)
	}
}

func TestOpenPRToolErrorPayload(t *testing.T) {
	commenter := &fakeCommenter{}
	mw := newPRMiddleware(commenter, &fakeFinalizer{}, true)

	state := &State{Messages: []Message{
		{Role: RoleTool, Name: PRToolName, Content: `{"success":false,"error":"No changes detected"}`},
		{Role: RoleAssistant, Content: "Nothing to submit."},
	}}
	if err := mw.AfterRun(context.Background(), testConfig(), state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(commenter.comments) != 1 {
		t.Fatalf("expected one comment, got %d", len(commenter.comments))
	}
	if !strings.HasPrefix(commenter.comments[0], linear.AgentErrorPrefix) {
		t.Errorf("unexpected comment:\n%s", commenter.comments[0])
	}
}

func TestOpenPRIntentDrivesFinalizer(t *testing.T) {
	commenter := &fakeCommenter{}
	finalizer := &fakeFinalizer{result: workflow.Result{PRURL: "https://github.com/acme/api/pull/3", PRNumber: 3}}
	mw := newPRMiddleware(commenter, finalizer, true)

	state := &State{Messages: []Message{
		{Role: RoleTool, Name: PRToolName, Content: `{"title":"fix: crash [closes ENG-42]","body":"## Description\nfixes"}`},
		{Role: RoleAssistant, Content: "Submitted."},
	}}
	cfg := testConfig()
	cfg.EncryptedToken = "enc:tok"
	if err := mw.AfterRun(context.Background(), cfg, state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if finalizer.runs != 1 {
		t.Fatalf("expected one finalize run, got %d", finalizer.runs)
	}
	if finalizer.last.Token != "tok" {
		t.Errorf("expected decrypted token, got %q", finalizer.last.Token)
	}
	if finalizer.last.RepoDir != "/workspace/api" || finalizer.last.Owner != "acme" {
		t.Errorf("unexpected request %+v", finalizer.last)
	}
	if finalizer.last.LinearIssueID != "issue-1" || finalizer.last.ResponseText != "Submitted." {
		t.Errorf("finalizer must receive the comment context, got %+v", finalizer.last)
	}
	if len(commenter.comments) != 0 {
		t.Errorf("outcome comment belongs to the finalizer, got %v", commenter.comments)
	}
}

func TestOpenPRNoPayloadRespondsOnly(t *testing.T) {
	commenter := &fakeCommenter{}
	finalizer := &fakeFinalizer{}
	mw := newPRMiddleware(commenter, finalizer, true)

	state := &State{Messages: []Message{
		{Role: RoleUser, Content: "what does this repo do?"},
		{Role: RoleAssistant, Content: "It serves webhooks."},
	}}
	if err := mw.AfterRun(context.Background(), testConfig(), state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if finalizer.runs != 0 {
		t.Error("must not finalize without a PR payload")
	}
	if len(commenter.comments) != 1 || !strings.HasPrefix(commenter.comments[0], linear.AgentResponsePrefix) {
		t.Errorf("unexpected comments %v", commenter.comments)
	}
}

func TestOpenPRIntentWithoutSandbox(t *testing.T) {
	commenter := &fakeCommenter{}
	finalizer := &fakeFinalizer{}
	mw := newPRMiddleware(commenter, finalizer, false)

	state := &State{Messages: []Message{
		{Role: RoleTool, Name: PRToolName, Content: `{"title":"fix: x"}`},
		{Role: RoleAssistant, Content: "Submitted."},
	}}
	if err := mw.AfterRun(context.Background(), testConfig(), state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if finalizer.runs != 0 {
		t.Error("must not finalize without a sandbox")
	}
	if len(commenter.comments) != 1 || !strings.HasPrefix(commenter.comments[0], linear.AgentResponsePrefix) {
		t.Errorf("unexpected comments %v", commenter.comments)
	}
}
