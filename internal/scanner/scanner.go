// Package scanner runs the continuity scan cycle: for each habit in order,
// try to consume a streak freeze for yesterday, and otherwise check for
// inactivity. The first inactive habit ends the cycle.
package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lazypower/keepstreak/internal/date"
	"github.com/lazypower/keepstreak/internal/freeze"
	"github.com/lazypower/keepstreak/internal/habit"
	"github.com/lazypower/keepstreak/internal/inactivity"
	"github.com/lazypower/keepstreak/internal/metrics"
	"github.com/lazypower/keepstreak/internal/queue"
)

// State is a step of the per-habit state machine.
type State string

const (
	StateStart           State = "start"
	StateFreezeCheck     State = "freeze_check"
	StateConsumed        State = "consumed"
	StateNotConsumed     State = "not_consumed"
	StateInactivityCheck State = "inactivity_check"
	StateClear           State = "clear"
	StateFlagged         State = "flagged"
	StateDispatch        State = "dispatch"
	StateEnd             State = "end"
	// StateAbortCycle is cycle-level: no habit after the flagged one is
	// evaluated.
	StateAbortCycle State = "abort_cycle"
)

// HabitResult records what one cycle did with one habit.
type HabitResult struct {
	HabitID int64         `json:"habit_id"`
	Name    string        `json:"name"`
	Path    []State       `json:"path"`
	Freeze  freeze.Reason `json:"freeze"`
	Reset   bool          `json:"reset"`
	Window  *WindowResult `json:"inactivity,omitempty"`
	Event   *habit.Event  `json:"event,omitempty"`
	Final   State         `json:"final"`
}

// WindowResult is the inactivity check summary of a HabitResult.
type WindowResult struct {
	Flagged  bool      `json:"flagged"`
	From     date.Date `json:"from"`
	To       date.Date `json:"to"`
	LastSeen date.Date `json:"last_seen"`
}

// Report is the outcome of one Run.
type Report struct {
	CycleID string        `json:"cycle_id"`
	Today   date.Date     `json:"today"`
	Habits  []HabitResult `json:"habits"`
	Events  []habit.Event `json:"events"`
	// Aborted is set when an inactive habit ended the cycle early.
	Aborted bool `json:"aborted"`
	// Skipped counts habits never evaluated because of the abort.
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// Scanner runs scan cycles. It holds no per-cycle state; every Run reads
// what it needs from the store.
type Scanner struct {
	store     habit.Store
	ledger    *freeze.Ledger
	detector  *inactivity.Detector
	publisher queue.Publisher
	newID     func() string
	logger    *zap.Logger
}

func New(store habit.Store, ledger *freeze.Ledger, detector *inactivity.Detector, publisher queue.Publisher, logger *zap.Logger) *Scanner {
	return &Scanner{
		store:     store,
		ledger:    ledger,
		detector:  detector,
		publisher: publisher,
		newID:     uuid.NewString,
		logger:    logger,
	}
}

// Run executes one cycle for today. Any store or publish failure stops the
// cycle and is returned; writes already made for earlier habits stay.
func (s *Scanner) Run(ctx context.Context, today date.Date) (*Report, error) {
	start := time.Now()
	report := &Report{CycleID: s.newID(), Today: today}
	log := s.logger.With(zap.String("cycle_id", report.CycleID), zap.String("date", today.String()))

	err := s.run(ctx, today, report, log)
	report.Duration = time.Since(start)

	result := "ok"
	switch {
	case err != nil:
		result = "failed"
		log.Error("scan cycle failed", zap.Int("evaluated", len(report.Habits)), zap.Error(err))
	case report.Aborted:
		result = "aborted"
	}
	metrics.RecordScan(result, report.Duration)
	if err == nil {
		log.Info("scan cycle complete",
			zap.Int("habits", len(report.Habits)),
			zap.Int("events", len(report.Events)),
			zap.Bool("aborted", report.Aborted),
			zap.Duration("duration", report.Duration),
		)
	}
	return report, err
}

func (s *Scanner) run(ctx context.Context, today date.Date, report *Report, log *zap.Logger) error {
	habits, err := s.store.ListHabits(ctx)
	if err != nil {
		return fmt.Errorf("list habits: %w", err)
	}

	for i, h := range habits {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := s.step(ctx, h, today, report)
		report.Habits = append(report.Habits, res)
		if err != nil {
			return fmt.Errorf("habit %d: %w", h.ID, err)
		}

		if res.Final == StateAbortCycle {
			report.Aborted = true
			report.Skipped = len(habits) - i - 1
			log.Info("inactive habit found, ending cycle",
				zap.Int64("habit_id", h.ID),
				zap.String("habit", h.Name),
				zap.Int("skipped", report.Skipped),
			)
			break
		}
	}
	return nil
}

// step walks one habit through the state machine.
func (s *Scanner) step(ctx context.Context, h habit.Habit, today date.Date, report *Report) (HabitResult, error) {
	res := HabitResult{HabitID: h.ID, Name: h.Name, Path: []State{StateStart, StateFreezeCheck}}

	out, err := s.ledger.Step(ctx, h, today)
	if err != nil {
		return res, fmt.Errorf("freeze step: %w", err)
	}
	res.Freeze = out.Reason
	res.Reset = out.Reset

	if out.Consumed {
		res.Path = append(res.Path, StateConsumed)
		metrics.FreezesConsumed.Inc()
		ev, err := s.publish(ctx, out.Habit, habit.TriggerStreakFreeze, today, report)
		res.Event = ev
		if err != nil {
			return res, err
		}
		res.Final = StateEnd
		res.Path = append(res.Path, StateEnd)
		return res, nil
	}

	res.Path = append(res.Path, StateNotConsumed, StateInactivityCheck)
	ir, err := s.detector.Check(ctx, out.Habit, today)
	if err != nil {
		return res, fmt.Errorf("inactivity check: %w", err)
	}
	res.Window = &WindowResult{Flagged: ir.Flagged, From: ir.From, To: ir.To, LastSeen: ir.LastSeen}

	if !ir.Flagged {
		res.Final = StateEnd
		res.Path = append(res.Path, StateClear, StateEnd)
		return res, nil
	}

	res.Path = append(res.Path, StateFlagged, StateDispatch)
	metrics.InactivityFlags.Inc()
	ev, err := s.publish(ctx, out.Habit, habit.TriggerInactivity, today, report)
	res.Event = ev
	if err != nil {
		return res, err
	}
	res.Final = StateAbortCycle
	res.Path = append(res.Path, StateAbortCycle)
	return res, nil
}

func (s *Scanner) publish(ctx context.Context, h habit.Habit, trigger habit.Trigger, today date.Date, report *Report) (*habit.Event, error) {
	ev := habit.Event{
		ID:        s.newID(),
		HabitID:   h.ID,
		HabitName: h.Name,
		Trigger:   trigger,
		Date:      today,
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		return nil, fmt.Errorf("publish %s: %w", trigger, err)
	}
	report.Events = append(report.Events, ev)
	s.logger.Debug("event published",
		zap.String("event_id", ev.ID),
		zap.Int64("habit_id", h.ID),
		zap.String("trigger", string(trigger)),
	)
	return &ev, nil
}
