// Package msgqueue buffers messages for threads that are busy running the
// agent. Pending messages live in the orchestrator's durable store so they
// survive process restarts; a drain happens at the start of the next run.
package msgqueue

import (
	"context"
	"log"

	"github.com/openswe/agent/internal/orchestrator"
)

const pendingKey = "pending_messages"

func namespace(threadID string) []string {
	return []string{"queue", threadID}
}

// Queue persists and drains per-thread pending messages.
type Queue struct {
	store   orchestrator.StoreAPI
	threads orchestrator.ThreadAPI
}

// New creates a Queue over the orchestrator store and thread APIs.
func New(store orchestrator.StoreAPI, threads orchestrator.ThreadAPI) *Queue {
	return &Queue{store: store, threads: threads}
}

// IsThreadBusy reports whether the thread currently has a run in flight.
// Lookup failures are treated as idle so a flaky status check never strands
// a message in the queue.
func (q *Queue) IsThreadBusy(ctx context.Context, threadID string) bool {
	thread, err := q.threads.GetThread(ctx, threadID)
	if err != nil {
		log.Printf("Warning: failed to check thread %s status: %v", threadID, err)
		return false
	}
	return thread.Status == orchestrator.StatusBusy
}

// Enqueue appends a message to the thread's pending list.
func (q *Queue) Enqueue(ctx context.Context, threadID, message string) error {
	item, err := q.store.GetItem(ctx, namespace(threadID), pendingKey)
	if err != nil {
		return err
	}
	messages := decodeMessages(item)
	messages = append(messages, message)
	return q.store.PutItem(ctx, namespace(threadID), pendingKey, map[string]any{
		"messages": messages,
	})
}

// DrainAndClear returns all pending messages in arrival order and removes
// them from the store. The delete happens before returning so a crashed
// consumer drops messages rather than replaying them.
func (q *Queue) DrainAndClear(ctx context.Context, threadID string) ([]string, error) {
	item, err := q.store.GetItem(ctx, namespace(threadID), pendingKey)
	if err != nil {
		return nil, err
	}
	messages := decodeMessages(item)
	if len(messages) == 0 {
		return nil, nil
	}
	if err := q.store.DeleteItem(ctx, namespace(threadID), pendingKey); err != nil {
		return nil, err
	}
	return messages, nil
}

func decodeMessages(item map[string]any) []string {
	if item == nil {
		return nil
	}
	raw, ok := item["messages"].([]any)
	if !ok {
		// Already-typed value, e.g. when the store round-trips in memory.
		if typed, ok := item["messages"].([]string); ok {
			return typed
		}
		return nil
	}
	messages := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			messages = append(messages, s)
		}
	}
	return messages
}
