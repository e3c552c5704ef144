package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/openswe/agent/internal/webhook"
)

type mockExecutor struct {
	fn func(ctx context.Context, task *webhook.Task) error
}

func (m *mockExecutor) Execute(ctx context.Context, task *webhook.Task) error {
	if m.fn == nil {
		return nil
	}
	return m.fn(ctx, task)
}

func TestDispatcherEnqueueRunsTask(t *testing.T) {
	done := make(chan *webhook.Task, 1)
	exec := &mockExecutor{
		fn: func(_ context.Context, task *webhook.Task) error {
			done <- task
			return nil
		},
	}

	d := New(exec, Config{Workers: 1, QueueSize: 2})
	defer d.Shutdown(context.Background())

	if err := d.Enqueue(&webhook.Task{IssueID: "issue-1"}); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	select {
	case task := <-done:
		if task.IssueID != "issue-1" {
			t.Errorf("unexpected task %+v", task)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Timed out waiting for task execution")
	}
}

func TestDispatcherNilTask(t *testing.T) {
	d := New(&mockExecutor{}, Config{Workers: 1})
	defer d.Shutdown(context.Background())

	if err := d.Enqueue(nil); err == nil {
		t.Fatal("expected error for nil task")
	}
}

func TestDispatcherQueueFull(t *testing.T) {
	block := make(chan struct{})
	exec := &mockExecutor{
		fn: func(_ context.Context, _ *webhook.Task) error {
			<-block
			return nil
		},
	}

	d := New(exec, Config{Workers: 1, QueueSize: 1})
	defer func() {
		close(block)
		d.Shutdown(context.Background())
	}()

	// First task occupies the worker; the second fills the queue. Keep
	// enqueueing until the buffer is provably full.
	deadline := time.Now().Add(time.Second)
	sawFull := false
	for time.Now().Before(deadline) {
		if err := d.Enqueue(&webhook.Task{IssueID: "x"}); errors.Is(err, webhook.ErrQueueFull) {
			sawFull = true
			break
		}
	}
	if !sawFull {
		t.Fatal("expected ErrQueueFull once the buffer filled")
	}
}

func TestDispatcherNoRetryOnFailure(t *testing.T) {
	var mu sync.Mutex
	executions := 0
	exec := &mockExecutor{
		fn: func(_ context.Context, _ *webhook.Task) error {
			mu.Lock()
			executions++
			mu.Unlock()
			return errors.New("executor failed")
		},
	}

	d := New(exec, Config{Workers: 1, QueueSize: 2})
	defer d.Shutdown(context.Background())

	if err := d.Enqueue(&webhook.Task{IssueID: "issue-1"}); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if executions != 1 {
		t.Errorf("failed task must run exactly once, ran %d times", executions)
	}
}

func TestDispatcherEnqueueAfterShutdown(t *testing.T) {
	d := New(&mockExecutor{}, Config{Workers: 1})
	d.Shutdown(context.Background())

	if err := d.Enqueue(&webhook.Task{IssueID: "x"}); !errors.Is(err, webhook.ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}
