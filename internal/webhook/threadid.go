package webhook

import (
	"crypto/sha256"

	"github.com/google/uuid"
)

// ThreadIDForIssue derives the orchestrator thread id for a Linear issue.
// The id is deterministic so every comment on the same issue lands on the
// same thread, which is what makes sandbox reuse and message queueing work.
func ThreadIDForIssue(issueID string) string {
	sum := sha256.Sum256([]byte("linear-issue:" + issueID))
	id, _ := uuid.FromBytes(sum[:16])
	return id.String()
}
