package linear

import "strings"

// Prefixes of comments the agent itself posts on Linear issues. They are
// used to recognize our own output: webhook filtering ignores such comments
// and prompt assembly drops them from conversation history.
const (
	AuthRequiredPrefix  = "🔐 **GitHub Authentication Required**"
	PRCreatedPrefix     = "✅ **Pull Request Created**"
	AgentResponsePrefix = "🤖 **Agent Response**"
	AgentErrorPrefix    = "❌ **Agent Error**"
	ConfigErrorPrefix   = "❌ **Configuration Error**"
)

var botMessagePrefixes = []string{
	AuthRequiredPrefix,
	PRCreatedPrefix,
	AgentResponsePrefix,
	AgentErrorPrefix,
	ConfigErrorPrefix,
}

// IsBotMessage reports whether a comment body was written by the agent.
func IsBotMessage(body string) bool {
	for _, prefix := range botMessagePrefixes {
		if strings.HasPrefix(body, prefix) {
			return true
		}
	}
	return false
}
