package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/lazypower/keepstreak/internal/habit"
)

// Composer adapts a Client to notify.Composer.
type Composer struct {
	client Client
}

func NewComposer(client Client) *Composer {
	return &Composer{client: client}
}

// Compose returns generated notification text, or an error when the
// provider fails. Empty output is returned as-is for the caller to replace.
func (c *Composer) Compose(ctx context.Context, subjectName string, trigger habit.Trigger) (string, error) {
	resp, err := c.client.Complete(ctx, NotificationPrompt(subjectName, trigger))
	if err != nil {
		return "", fmt.Errorf("compose notification: %w", err)
	}
	if resp == nil {
		return "", nil
	}
	return Clean(resp.Content), nil
}

// Clean trims whitespace and wrapping quotes, and keeps only the first
// non-empty line.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	for len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') || (first == '`' && last == '`') {
			s = strings.TrimSpace(s[1 : len(s)-1])
			continue
		}
		break
	}
	return s
}
