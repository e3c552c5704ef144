// Package dispatcher runs accepted webhook tasks on a bounded worker pool.
// There is no per-issue serialization and no retry here: concurrent work on
// the same thread is resolved by the sandbox manager's provisioning guard
// and by the orchestrator's message queue, and a failed task reports its
// outcome to Linear rather than re-running.
package dispatcher

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/openswe/agent/internal/webhook"
)

// TaskExecutor runs a webhook task.
type TaskExecutor interface {
	Execute(ctx context.Context, task *webhook.Task) error
}

// Config controls dispatcher behaviour.
type Config struct {
	Workers   int
	QueueSize int
}

// Dispatcher fans accepted tasks out to workers.
type Dispatcher struct {
	executor TaskExecutor

	queue  chan *webhook.Task
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// New creates a dispatcher with the provided configuration and starts its
// workers.
func New(executor TaskExecutor, cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 4
	}

	d := &Dispatcher{
		executor: executor,
		queue:    make(chan *webhook.Task, cfg.QueueSize),
		stopCh:   make(chan struct{}),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Enqueue queues a new task for execution.
func (d *Dispatcher) Enqueue(task *webhook.Task) error {
	if task == nil {
		return errors.New("dispatcher enqueue: task is nil")
	}

	select {
	case <-d.stopCh:
		return webhook.ErrQueueClosed
	default:
	}

	select {
	case d.queue <- task:
		return nil
	default:
		return webhook.ErrQueueFull
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case <-d.stopCh:
			return
		case task, ok := <-d.queue:
			if !ok {
				return
			}
			if err := d.executor.Execute(context.Background(), task); err != nil {
				log.Printf("Task for issue %s failed: %v", task.IssueID, err)
				continue
			}
			log.Printf("Task for issue %s completed", task.IssueID)
		}
	}
}

// Shutdown gracefully stops the dispatcher, waiting for in-flight tasks
// until ctx expires.
func (d *Dispatcher) Shutdown(ctx context.Context) {
	d.once.Do(func() {
		close(d.stopCh)
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.wg.Wait()
	}()

	select {
	case <-ctx.Done():
	case <-done:
	}
}
