package queue

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/lazypower/keepstreak/internal/habit"
)

// Memory is an in-process queue backed by a buffered channel.
type Memory struct {
	ch     chan habit.Event
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewMemory returns a queue buffering up to size events.
func NewMemory(size int, logger *zap.Logger) *Memory {
	if size <= 0 {
		size = 64
	}
	return &Memory{ch: make(chan habit.Event, size), logger: logger}
}

// Publish enqueues ev, blocking while the buffer is full.
func (m *Memory) Publish(ctx context.Context, ev habit.Event) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	select {
	case m.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume handles events until ctx is done or the queue is closed. Handler
// errors are logged and the event is dropped.
func (m *Memory) Consume(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-m.ch:
			if !ok {
				return nil
			}
			if err := h(ctx, ev); err != nil {
				m.logger.Error("event handler failed, dropping event",
					zap.String("event_id", ev.ID),
					zap.Int64("habit_id", ev.HabitID),
					zap.String("trigger", string(ev.Trigger)),
					zap.Error(err),
				)
			}
		}
	}
}

// Drain handles every event currently buffered and returns. Unlike Consume
// it reports handler failures to the caller.
func (m *Memory) Drain(ctx context.Context, h Handler) (int, error) {
	var (
		n    int
		errs []error
	)
	for {
		select {
		case ev, ok := <-m.ch:
			if !ok {
				return n, errors.Join(errs...)
			}
			n++
			if err := h(ctx, ev); err != nil {
				errs = append(errs, err)
			}
		default:
			return n, errors.Join(errs...)
		}
	}
}

// Len returns the number of buffered events.
func (m *Memory) Len() int { return len(m.ch) }

// Close stops the queue. Buffered events are still delivered to Consume.
func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.ch)
	}
}
