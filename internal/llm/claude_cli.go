package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ClaudeCLI generates notification text by running `claude -p` locally.
// Useful on a workstation that is already logged in to the CLI.
type ClaudeCLI struct {
	bin     string
	model   string
	timeout time.Duration
}

func NewClaudeCLI(model string) *ClaudeCLI {
	return &ClaudeCLI{bin: "claude", model: model, timeout: 60 * time.Second}
}

func (c *ClaudeCLI) Complete(ctx context.Context, prompt string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.bin,
		"-p",
		"--model", c.model,
		"--max-turns", "1",
		"--output-format", "text",
	)
	cmd.Stdin = strings.NewReader(prompt)
	cmd.Env = sessionFreeEnv(os.Environ())

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("claude cli: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("claude cli: %w", err)
	}

	return &Response{
		Content:  strings.TrimSpace(string(out)),
		Provider: "claude-cli",
	}, nil
}

// sessionFreeEnv drops CLAUDE_* variables so the subprocess does not attach
// to a parent CLI session.
func sessionFreeEnv(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		if strings.HasPrefix(kv, "CLAUDE_") {
			continue
		}
		out = append(out, kv)
	}
	return out
}
