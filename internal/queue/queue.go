// Package queue carries habit events from the scanner to the notification
// worker. A scan cycle only publishes; delivery happens on the consumer side
// and never blocks cycle completion.
package queue

import (
	"context"
	"errors"
	"strings"

	"github.com/lazypower/keepstreak/internal/habit"
)

// ErrClosed is returned when publishing to a closed queue.
var ErrClosed = errors.New("queue closed")

// Handler processes one event. A non-nil error asks the transport to retry
// the event where it can.
type Handler func(ctx context.Context, ev habit.Event) error

type Publisher interface {
	Publish(ctx context.Context, ev habit.Event) error
}

type Consumer interface {
	// Consume runs h for each event until ctx is cancelled or the source
	// closes.
	Consume(ctx context.Context, h Handler) error
}

// RoutingKey returns the topic key an event is published under, e.g.
// "habit.streak_freeze".
func RoutingKey(t habit.Trigger) string {
	return "habit." + strings.ToLower(string(t))
}
