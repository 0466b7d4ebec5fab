package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type logger struct {
	storage            Storage
	now                func() time.Time
	requestIDExtractor func(context.Context) string
}

// Option configures NewLogger.
type Option func(*logger)

// WithRequestIDExtractor copies a request id from context into events.
func WithRequestIDExtractor(fn func(context.Context) string) Option {
	return func(l *logger) { l.requestIDExtractor = fn }
}

func WithClock(now func() time.Time) Option {
	return func(l *logger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLogger panics when storage is nil.
func NewLogger(storage Storage, opts ...Option) Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	l := &logger{storage: storage, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *logger) Log(ctx context.Context, action string, opts ...EventOption) error {
	return l.store(ctx, l.newEvent(ctx, action, ResultSuccess, opts))
}

func (l *logger) LogError(ctx context.Context, action string, err error, opts ...EventOption) error {
	ev := l.newEvent(ctx, action, ResultFailure, opts)
	if err != nil {
		ev.Error = err.Error()
	}
	return l.store(ctx, ev)
}

func (l *logger) newEvent(ctx context.Context, action string, result Result, opts []EventOption) Event {
	ev := Event{
		ID:        uuid.NewString(),
		Action:    action,
		Result:    result,
		CreatedAt: l.now().UTC(),
	}
	if l.requestIDExtractor != nil {
		ev.RequestID = l.requestIDExtractor(ctx)
	}
	for _, opt := range opts {
		opt(&ev)
	}
	return ev
}

func (l *logger) store(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	return l.storage.Store(ctx, ev)
}

// Discard is a Logger that drops every event.
var Discard Logger = discard{}

type discard struct{}

func (discard) Log(context.Context, string, ...EventOption) error             { return nil }
func (discard) LogError(context.Context, string, error, ...EventOption) error { return nil }
