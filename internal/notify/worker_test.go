package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lazypower/keepstreak/internal/habit"
	"github.com/lazypower/keepstreak/internal/queue"
)

func TestWorkerDrainsMemoryQueue(t *testing.T) {
	q := queue.NewMemory(8, zap.NewNop())
	h, d := &fakeHistory{}, &fakeDeliverer{}
	w := NewWorker(q, newTestDispatcher(nil, h, d), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, testEvent(habit.TriggerStreakFreeze)))
	require.NoError(t, q.Publish(ctx, testEvent(habit.TriggerInactivity)))
	q.Close()

	require.NoError(t, w.Run(ctx))
	assert.Len(t, d.sent, 2)
	assert.Len(t, h.records, 2)
}

func TestWorkerRunCancelled(t *testing.T) {
	q := queue.NewMemory(1, zap.NewNop())
	w := NewWorker(q, newTestDispatcher(nil, &fakeHistory{}, &fakeDeliverer{}), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, w.Run(ctx))
}

func TestWorkerDropsUnknownTrigger(t *testing.T) {
	d := &fakeDeliverer{}
	w := NewWorker(nil, newTestDispatcher(nil, &fakeHistory{}, d), zap.NewNop())
	ev := testEvent("BOGUS")
	assert.NoError(t, w.Handle(context.Background(), ev))
	assert.Empty(t, d.sent)
}
