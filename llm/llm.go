// Package llm is the narrow text-in/text-out boundary to the language-model
// service. The toolset never depends on anything beyond Client.
package llm

import (
	"context"
	"strings"
)

// Client sends a prompt and returns the model's text response.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// StripCodeFence removes a surrounding markdown code fence from model output.
// Models routinely wrap SQL in ```sql blocks despite being told not to.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	if strings.HasSuffix(s, "```") {
		s = s[:strings.LastIndex(s, "```")]
	}
	return strings.TrimSpace(s)
}
