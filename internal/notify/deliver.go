package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// LogDeliverer writes notifications to the log. It is the default channel
// when no broker or bot is configured.
type LogDeliverer struct {
	logger *zap.Logger
}

func NewLogDeliverer(logger *zap.Logger) *LogDeliverer {
	return &LogDeliverer{logger: logger}
}

func (l *LogDeliverer) Deliver(_ context.Context, habitID int64, title, message string) error {
	l.logger.Info("notification",
		zap.Int64("habit_id", habitID),
		zap.String("title", title),
		zap.String("message", message),
	)
	return nil
}

// Multi delivers to every channel and joins their errors.
type Multi []Deliverer

func (m Multi) Deliver(ctx context.Context, habitID int64, title, message string) error {
	var errs []error
	for _, d := range m {
		if err := d.Deliver(ctx, habitID, title, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
