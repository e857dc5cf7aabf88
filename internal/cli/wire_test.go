package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lazypower/keepstreak/internal/config"
	"github.com/lazypower/keepstreak/internal/date"
	"github.com/lazypower/keepstreak/internal/habit"
	"github.com/lazypower/keepstreak/internal/notify"
	"github.com/lazypower/keepstreak/internal/queue"
	"github.com/lazypower/keepstreak/internal/reminder"
)

func TestTodayOverride(t *testing.T) {
	c := config.Default()
	d, err := today(c, "2025-11-02")
	require.NoError(t, err)
	assert.Equal(t, "2025-11-02", d.String())

	_, err = today(c, "tomorrow")
	assert.Error(t, err)

	c.Scan.Timezone = "Not/AZone"
	_, err = today(c, "")
	assert.Error(t, err)
}

func TestOpenRepoDrivers(t *testing.T) {
	ctx := context.Background()
	c := config.Default()
	c.Database.Path = filepath.Join(t.TempDir(), "ks.db")

	repo, err := openRepo(ctx, c, zap.NewNop())
	require.NoError(t, err)
	defer repo.Close()
	habits, err := repo.ListHabits(ctx)
	require.NoError(t, err)
	assert.Empty(t, habits)

	c.Database.Driver = "postgres"
	_, err = openRepo(ctx, c, zap.NewNop())
	assert.ErrorContains(t, err, "dsn")

	c.Database.Driver = "mongo"
	_, err = openRepo(ctx, c, zap.NewNop())
	assert.ErrorContains(t, err, "unknown database driver")
}

func TestNewEventQueue(t *testing.T) {
	q, err := newEventQueue(config.QueueConfig{Driver: "memory", BufferSize: 4}, zap.NewNop())
	require.NoError(t, err)
	defer q.close()
	_, ok := q.pub.(*queue.Memory)
	assert.True(t, ok)
	assert.Same(t, q.pub, q.cons)

	_, err = newEventQueue(config.QueueConfig{Driver: "kafka"}, zap.NewNop())
	assert.Error(t, err)
}

func TestNewComposerDisabled(t *testing.T) {
	assert.Nil(t, newComposer(config.LLMConfig{Provider: "none"}, zap.NewNop()))
	// Misconfigured providers degrade to the fallback text.
	assert.Nil(t, newComposer(config.LLMConfig{Provider: "anthropic"}, zap.NewNop()))
}

func TestScanThenDispatchWithDefaults(t *testing.T) {
	ctx := context.Background()
	c := config.Default()
	c.Database.Path = filepath.Join(t.TempDir(), "ks.db")
	logger := zap.NewNop()

	repo, err := openRepo(ctx, c, logger)
	require.NoError(t, err)
	defer repo.Close()
	h := &habit.Habit{Name: "Stretch", TargetValue: 1, ScheduleType: "daily"}
	require.NoError(t, repo.CreateHabit(ctx, h))
	_, err = repo.InsertLog(ctx, habit.LogEntry{HabitID: h.ID, Date: date.MustParse("2025-10-01"), IsCompleted: true})
	require.NoError(t, err)

	n, err := newNotifier(ctx, repo, c, logger)
	require.NoError(t, err)
	defer n.Close()

	events := queue.NewMemory(4, logger)
	worker := notify.NewWorker(events, n.dispatcher, logger)
	res, err := runCycle(ctx, newScanner(repo, events, c, logger), events, date.MustParse("2025-11-02"), worker.Handle)
	require.NoError(t, err)
	require.Len(t, res.report.Events, 1)
	assert.Equal(t, 1, res.handled)
	assert.Empty(t, res.failed)

	list, err := repo.ListNotifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "KeepStreak: Stretch", list[0].Title)
	assert.Equal(t, "Time to work on Stretch!", list[0].Message)
}

func TestRunCycleMoreEventsThanBuffer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c := config.Default()
	c.Database.Path = filepath.Join(t.TempDir(), "ks.db")
	logger := zap.NewNop()

	repo, err := openRepo(ctx, c, logger)
	require.NoError(t, err)
	defer repo.Close()
	// No entry for yesterday, so every habit consumes a freeze.
	for _, name := range []string{"Read", "Run", "Stretch", "Journal", "Water"} {
		require.NoError(t, repo.CreateHabit(ctx, &habit.Habit{Name: name, TargetValue: 1, ScheduleType: "daily"}))
	}

	events := queue.NewMemory(2, logger)
	var seen []habit.Trigger
	res, err := runCycle(ctx, newScanner(repo, events, c, logger), events, date.MustParse("2025-11-02"),
		func(_ context.Context, ev habit.Event) error {
			seen = append(seen, ev.Trigger)
			return nil
		})
	require.NoError(t, err)
	assert.Len(t, res.report.Events, 5)
	assert.Equal(t, 5, res.handled)
	require.Len(t, seen, 5)
	for _, trig := range seen {
		assert.Equal(t, habit.TriggerStreakFreeze, trig)
	}

	habits, err := repo.ListHabits(ctx)
	require.NoError(t, err)
	for _, h := range habits {
		assert.Equal(t, habit.DefaultFreezeCap-1, h.MonthlyFreezeCount, h.Name)
	}
}

func TestRunCycleHandlesEventsBeforeScanFailure(t *testing.T) {
	ctx := context.Background()
	c := config.Default()
	c.Database.Path = filepath.Join(t.TempDir(), "ks.db")
	logger := zap.NewNop()

	repo, err := openRepo(ctx, c, logger)
	require.NoError(t, err)
	require.NoError(t, repo.CreateHabit(ctx, &habit.Habit{Name: "Read", TargetValue: 1, ScheduleType: "daily"}))
	sc := newScanner(repo, queue.NewMemory(1, logger), c, logger)
	require.NoError(t, repo.Close())

	events := queue.NewMemory(1, logger)
	res, err := runCycle(ctx, sc, events, date.MustParse("2025-11-02"), func(context.Context, habit.Event) error { return nil })
	assert.Error(t, err)
	assert.Zero(t, res.handled)
	assert.ErrorIs(t, events.Publish(ctx, habit.Event{ID: "late"}), queue.ErrClosed)
}

func TestReminderDispatchRecordsOnce(t *testing.T) {
	ctx := context.Background()
	c := config.Default()
	c.Database.Path = filepath.Join(t.TempDir(), "ks.db")
	logger := zap.NewNop()

	repo, err := openRepo(ctx, c, logger)
	require.NoError(t, err)
	defer repo.Close()
	h := &habit.Habit{Name: "Read", TargetValue: 1, ScheduleType: "daily", ReminderTime: "07:30"}
	require.NoError(t, repo.CreateHabit(ctx, h))

	events := queue.NewMemory(4, logger)
	at := time.Date(2025, 11, 2, 7, 30, 0, 0, time.UTC)
	rem := reminder.New(repo, events, logger)
	// The same minute fired twice raises the same event.
	for i := 0; i < 2; i++ {
		sent, err := rem.Run(ctx, at)
		require.NoError(t, err)
		require.Len(t, sent, 1)
	}

	n, err := newNotifier(ctx, repo, c, logger)
	require.NoError(t, err)
	defer n.Close()
	worker := notify.NewWorker(events, n.dispatcher, logger)
	handled, err := events.Drain(ctx, worker.Handle)
	require.NoError(t, err)
	assert.Equal(t, 2, handled)

	list, err := repo.ListNotifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, habit.TriggerReminder, list[0].Type)
	assert.Equal(t, reminder.EventID(h.ID, date.MustParse("2025-11-02")), list[0].EventID)
}
