package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lazypower/keepstreak/internal/date"
	"github.com/lazypower/keepstreak/internal/habit"
)

var fixedNow = time.Date(2025, 11, 2, 8, 0, 0, 0, time.UTC)

func testEvent(trigger habit.Trigger) habit.Event {
	return habit.Event{ID: "ev-1", HabitID: 7, HabitName: "Meditate", Trigger: trigger, Date: date.MustParse("2025-11-02")}
}

func newTestDispatcher(c Composer, h *fakeHistory, d *fakeDeliverer, opts ...Option) *Dispatcher {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewDispatcher(c, h, d, zap.NewNop(), opts...)
}

func TestDispatchUsesComposedText(t *testing.T) {
	c := &fakeComposer{text: "  Your streak survived, keep going.  "}
	h, d := &fakeHistory{}, &fakeDeliverer{}

	n, err := newTestDispatcher(c, h, d).Dispatch(context.Background(), testEvent(habit.TriggerStreakFreeze))
	require.NoError(t, err)

	assert.Equal(t, "KeepStreak: Meditate", n.Title)
	assert.Equal(t, "Your streak survived, keep going.", n.Message)
	assert.Equal(t, habit.TriggerStreakFreeze, n.Type)
	assert.Equal(t, fixedNow, n.Timestamp)
	assert.Equal(t, "ev-1", n.EventID)
	assert.Equal(t, []habit.Trigger{habit.TriggerStreakFreeze}, c.got)

	require.Len(t, h.records, 1)
	require.Len(t, d.sent, 1)
	assert.Equal(t, delivered{7, "KeepStreak: Meditate", "Your streak survived, keep going."}, d.sent[0])
}

func TestDispatchFallback(t *testing.T) {
	tests := []struct {
		name     string
		composer Composer
	}{
		{"composer error", &fakeComposer{err: errors.New("rate limited")}},
		{"empty text", &fakeComposer{text: "   "}},
		{"no composer", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, d := &fakeHistory{}, &fakeDeliverer{}
			n, err := newTestDispatcher(tt.composer, h, d).Dispatch(context.Background(), testEvent(habit.TriggerInactivity))
			require.NoError(t, err)
			assert.Equal(t, "Time to work on Meditate!", n.Message)
			require.Len(t, d.sent, 1)
			assert.Equal(t, "Time to work on Meditate!", d.sent[0].message)
		})
	}
}

func TestDispatchHistoryFailureSkipsDelivery(t *testing.T) {
	boom := errors.New("db locked")
	h, d := &fakeHistory{err: boom}, &fakeDeliverer{}

	_, err := newTestDispatcher(&fakeComposer{text: "hi"}, h, d).Dispatch(context.Background(), testEvent(habit.TriggerInactivity))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, d.sent)
}

func TestDispatchDeliveryFailureIsReturned(t *testing.T) {
	boom := errors.New("broker down")
	h, d := &fakeHistory{}, &fakeDeliverer{err: boom}

	n, err := newTestDispatcher(&fakeComposer{text: "hi"}, h, d).Dispatch(context.Background(), testEvent(habit.TriggerInactivity))
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, n)
	assert.Len(t, h.records, 1)
}

func TestDispatchDedup(t *testing.T) {
	dd := newFakeDeduper()
	h, d := &fakeHistory{}, &fakeDeliverer{}
	disp := newTestDispatcher(&fakeComposer{text: "hi"}, h, d, WithDeduper(dd))
	ctx := context.Background()

	_, err := disp.Dispatch(ctx, testEvent(habit.TriggerInactivity))
	require.NoError(t, err)
	n, err := disp.Dispatch(ctx, testEvent(habit.TriggerInactivity))
	require.NoError(t, err)
	assert.Nil(t, n)
	assert.Len(t, d.sent, 1)
}

func TestDispatchFailureReleasesDedup(t *testing.T) {
	dd := newFakeDeduper()
	d := &fakeDeliverer{err: errors.New("broker down")}
	disp := newTestDispatcher(&fakeComposer{text: "hi"}, &fakeHistory{}, d, WithDeduper(dd))

	_, err := disp.Dispatch(context.Background(), testEvent(habit.TriggerInactivity))
	require.Error(t, err)
	assert.Equal(t, []string{"ev-1"}, dd.released)

	d.err = nil
	_, err = disp.Dispatch(context.Background(), testEvent(habit.TriggerInactivity))
	require.NoError(t, err)
	assert.Len(t, d.sent, 1)
}

func TestRedeliveryAfterFailureRecordsHistoryOnce(t *testing.T) {
	dd := newFakeDeduper()
	h := &fakeHistory{}
	d := &flakyDeliverer{failures: 1}
	c := &fakeComposer{text: "first text"}
	disp := NewDispatcher(c, h, d, zap.NewNop(), WithDeduper(dd), WithClock(func() time.Time { return fixedNow }))
	ctx := context.Background()

	_, err := disp.Dispatch(ctx, testEvent(habit.TriggerStreakFreeze))
	require.Error(t, err)
	require.Len(t, h.records, 1)

	c.text = "second text"
	n, err := disp.Dispatch(ctx, testEvent(habit.TriggerStreakFreeze))
	require.NoError(t, err)
	assert.Len(t, h.records, 1)
	assert.Equal(t, h.records[0].ID, n.ID)
	require.Len(t, d.sent, 1)
	assert.Equal(t, "first text", d.sent[0].message)
	assert.Equal(t, 2, d.calls)
}

func TestWithAppName(t *testing.T) {
	h, d := &fakeHistory{}, &fakeDeliverer{}
	n, err := newTestDispatcher(nil, h, d, WithAppName("SelfTracker")).Dispatch(context.Background(), testEvent(habit.TriggerInactivity))
	require.NoError(t, err)
	assert.Equal(t, "SelfTracker: Meditate", n.Title)
}
