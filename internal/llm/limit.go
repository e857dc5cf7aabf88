package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limited throttles calls to an underlying Client.
type Limited struct {
	client  Client
	limiter *rate.Limiter
}

// NewLimited allows perMinute completions per minute with a burst of one.
// A non-positive perMinute returns client unchanged.
func NewLimited(client Client, perMinute float64) Client {
	if perMinute <= 0 {
		return client
	}
	return &Limited{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(perMinute/60), 1),
	}
}

func (l *Limited) Complete(ctx context.Context, prompt string) (*Response, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return l.client.Complete(ctx, prompt)
}
