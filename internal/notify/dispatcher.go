// Package notify turns habit events into delivered, recorded notifications.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lazypower/keepstreak/internal/habit"
	"github.com/lazypower/keepstreak/internal/metrics"
)

// DefaultAppName prefixes every notification title.
const DefaultAppName = "KeepStreak"

// Composer writes the notification text for a habit and trigger.
type Composer interface {
	Compose(ctx context.Context, subjectName string, trigger habit.Trigger) (string, error)
}

// Deliverer hands a finished notification to the user.
type Deliverer interface {
	Deliver(ctx context.Context, habitID int64, title, message string) error
}

// History records delivered notifications. Recording an EventID twice keeps
// the first record.
type History interface {
	RecordHistory(ctx context.Context, n *habit.Notification) (recorded bool, err error)
}

// Deduper guards against handling a redelivered event twice.
type Deduper interface {
	// AcquireOnce returns false if eventID was already acquired.
	AcquireOnce(ctx context.Context, eventID string) bool
	// Release forgets eventID so a retry can acquire it again.
	Release(ctx context.Context, eventID string)
}

// Fallback is the message used when composition fails or returns nothing.
func Fallback(habitName string) string {
	return fmt.Sprintf("Time to work on %s!", habitName)
}

// Title returns the notification title for habitName.
func Title(appName, habitName string) string {
	return appName + ": " + habitName
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithAppName overrides DefaultAppName.
func WithAppName(name string) Option {
	return func(d *Dispatcher) {
		if name != "" {
			d.appName = name
		}
	}
}

// WithDeduper skips events whose ID was already handled.
func WithDeduper(dd Deduper) Option {
	return func(d *Dispatcher) { d.dedup = dd }
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// Dispatcher composes, records and delivers one event at a time.
type Dispatcher struct {
	composer  Composer
	history   History
	deliverer Deliverer
	dedup     Deduper
	appName   string
	now       func() time.Time
	logger    *zap.Logger
}

func NewDispatcher(composer Composer, history History, deliverer Deliverer, logger *zap.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		composer:  composer,
		history:   history,
		deliverer: deliverer,
		appName:   DefaultAppName,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch handles ev. Composition failures fall back to a fixed message;
// history and delivery failures are returned. A duplicate event returns
// nil, nil. A redelivered event whose history was already written is
// delivered again without a second history record.
func (d *Dispatcher) Dispatch(ctx context.Context, ev habit.Event) (*habit.Notification, error) {
	trigger := string(ev.Trigger)
	log := d.logger.With(
		zap.String("event_id", ev.ID),
		zap.Int64("habit_id", ev.HabitID),
		zap.String("trigger", trigger),
	)

	if d.dedup != nil && ev.ID != "" && !d.dedup.AcquireOnce(ctx, ev.ID) {
		log.Info("skipping duplicate event")
		metrics.RecordDispatch(trigger, "duplicate")
		return nil, nil
	}

	n := &habit.Notification{
		EventID:   ev.ID,
		HabitID:   ev.HabitID,
		Title:     Title(d.appName, ev.HabitName),
		Message:   d.compose(ctx, ev, log),
		Timestamp: d.now(),
		Type:      ev.Trigger,
	}

	recorded, err := d.history.RecordHistory(ctx, n)
	if err != nil {
		d.fail(ctx, ev, trigger)
		return nil, fmt.Errorf("record history: %w", err)
	}
	if !recorded {
		// A previous attempt failed after recording; resend the stored text.
		log.Info("history already recorded, retrying delivery", zap.Int64("notification_id", n.ID))
	}
	if err := d.deliverer.Deliver(ctx, n.HabitID, n.Title, n.Message); err != nil {
		d.fail(ctx, ev, trigger)
		return n, fmt.Errorf("deliver notification: %w", err)
	}

	metrics.RecordDispatch(trigger, "delivered")
	log.Info("notification delivered", zap.Int64("notification_id", n.ID))
	return n, nil
}

func (d *Dispatcher) compose(ctx context.Context, ev habit.Event, log *zap.Logger) string {
	if d.composer != nil {
		text, err := d.composer.Compose(ctx, ev.HabitName, ev.Trigger)
		text = strings.TrimSpace(text)
		if err == nil && text != "" {
			return text
		}
		log.Warn("compose failed, using fallback", zap.Error(err))
	}
	metrics.ComposeFallbacks.Inc()
	return Fallback(ev.HabitName)
}

func (d *Dispatcher) fail(ctx context.Context, ev habit.Event, trigger string) {
	metrics.RecordDispatch(trigger, "failed")
	if d.dedup != nil && ev.ID != "" {
		d.dedup.Release(ctx, ev.ID)
	}
}
