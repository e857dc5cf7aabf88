package notify

import (
	"context"
	"errors"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lazypower/keepstreak/internal/habit"
)

type fakeComposer struct {
	text string
	err  error
	got  []habit.Trigger
}

func (f *fakeComposer) Compose(_ context.Context, _ string, trigger habit.Trigger) (string, error) {
	f.got = append(f.got, trigger)
	return f.text, f.err
}

type fakeHistory struct {
	records []habit.Notification
	err     error
}

func (f *fakeHistory) RecordHistory(_ context.Context, n *habit.Notification) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, r := range f.records {
		if n.EventID != "" && r.EventID == n.EventID {
			*n = r
			return false, nil
		}
	}
	n.ID = int64(len(f.records) + 1)
	f.records = append(f.records, *n)
	return true, nil
}

type delivered struct {
	habitID        int64
	title, message string
}

type fakeDeliverer struct {
	sent []delivered
	err  error
}

func (f *fakeDeliverer) Deliver(_ context.Context, habitID int64, title, message string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, delivered{habitID, title, message})
	return nil
}

// flakyDeliverer fails the first failures calls.
type flakyDeliverer struct {
	fakeDeliverer
	failures int
	calls    int
}

func (f *flakyDeliverer) Deliver(ctx context.Context, habitID int64, title, message string) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("broker down")
	}
	return f.fakeDeliverer.Deliver(ctx, habitID, title, message)
}

type fakeDeduper struct {
	mu       sync.Mutex
	seen     map[string]bool
	released []string
}

func newFakeDeduper() *fakeDeduper { return &fakeDeduper{seen: map[string]bool{}} }

func (f *fakeDeduper) AcquireOnce(_ context.Context, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen[id] {
		return false
	}
	f.seen[id] = true
	return true
}

func (f *fakeDeduper) Release(_ context.Context, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.seen, id)
	f.released = append(f.released, id)
}

type fakeSender struct {
	msgs []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.msgs = append(f.msgs, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}
