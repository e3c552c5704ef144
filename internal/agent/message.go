// Package agent assembles the run-time shape of one agent conversation:
// the tagged message model, the run configuration, and the middleware
// pipeline that surrounds model and tool calls.
package agent

// Message roles. Tool results carry the tool's name so later stages can
// find specific payloads without guessing at shapes.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one conversation entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	// Name identifies the producing tool for RoleTool messages.
	Name string `json:"name,omitempty"`
}

// State is the mutable conversation state threaded through middleware.
type State struct {
	Messages []Message
	// LinearMessagesSentCount tracks how many assistant messages have been
	// mirrored to Linear, so reruns don't post duplicates.
	LinearMessagesSentCount int
}

// Append adds a message to the conversation.
func (s *State) Append(m Message) {
	s.Messages = append(s.Messages, m)
}

// Last returns the most recent message, or a zero Message when empty.
func (s *State) Last() Message {
	if len(s.Messages) == 0 {
		return Message{}
	}
	return s.Messages[len(s.Messages)-1]
}

// CountRole returns how many messages carry the given role.
func (s *State) CountRole(role string) int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == role {
			n++
		}
	}
	return n
}

// LastToolResult returns the content of the most recent tool message with
// the given name, or "" when none exists.
func (s *State) LastToolResult(name string) string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleTool && s.Messages[i].Name == name {
			return s.Messages[i].Content
		}
	}
	return ""
}
