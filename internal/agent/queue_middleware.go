package agent

import (
	"context"
	"log"
	"strings"
)

// MessageDrainer provides queued messages for a thread. The drain must be
// destructive so the same entries are never replayed.
type MessageDrainer interface {
	DrainAndClear(ctx context.Context, threadID string) ([]string, error)
}

// QueueDrainMiddleware injects messages queued while the thread was busy
// as a single user turn before the next model call.
type QueueDrainMiddleware struct {
	NopMiddleware
	queue MessageDrainer
}

// NewQueueDrainMiddleware wires the middleware to a message queue.
func NewQueueDrainMiddleware(queue MessageDrainer) *QueueDrainMiddleware {
	return &QueueDrainMiddleware{queue: queue}
}

func (m *QueueDrainMiddleware) BeforeModel(ctx context.Context, cfg RunConfig, state *State) error {
	if cfg.ThreadID == "" {
		return nil
	}
	queued, err := m.queue.DrainAndClear(ctx, cfg.ThreadID)
	if err != nil {
		// Queue trouble must not kill the run; the messages stay queued
		// only if the store delete failed before handing them over.
		log.Printf("Warning: failed to drain message queue for thread %s: %v", cfg.ThreadID, err)
		return nil
	}
	if len(queued) == 0 {
		return nil
	}
	log.Printf("Injecting %d queued message(s) into thread %s", len(queued), cfg.ThreadID)
	state.Append(Message{Role: RoleUser, Content: strings.Join(queued, "\n\n")})
	return nil
}
