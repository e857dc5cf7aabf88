package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/lazypower/keepstreak/internal/habit"
	"github.com/lazypower/keepstreak/internal/queue"
)

// Worker feeds events from a queue into a Dispatcher.
type Worker struct {
	consumer   queue.Consumer
	dispatcher *Dispatcher
	logger     *zap.Logger
}

func NewWorker(consumer queue.Consumer, dispatcher *Dispatcher, logger *zap.Logger) *Worker {
	return &Worker{consumer: consumer, dispatcher: dispatcher, logger: logger}
}

// Run consumes until ctx is cancelled. Cancellation is not an error.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("notification worker started")
	err := w.consumer.Consume(ctx, w.Handle)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	w.logger.Info("notification worker stopped")
	return err
}

// Handle dispatches one event. It satisfies queue.Handler.
func (w *Worker) Handle(ctx context.Context, ev habit.Event) error {
	if !ev.Trigger.Valid() {
		w.logger.Warn("dropping event with unknown trigger", zap.String("trigger", string(ev.Trigger)))
		return nil
	}
	_, err := w.dispatcher.Dispatch(ctx, ev)
	return err
}
