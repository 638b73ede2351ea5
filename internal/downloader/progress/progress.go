package progress

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Sink receives download progress. total is zero when the server did not declare a size.
type Sink interface {
	Report(ctx context.Context, downloaded, total int64)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, downloaded, total int64)

func (f SinkFunc) Report(ctx context.Context, downloaded, total int64) {
	f(ctx, downloaded, total)
}

// Discard drops every report.
var Discard Sink = SinkFunc(func(context.Context, int64, int64) {})

// Throttle forwards at most one report per interval to the wrapped sink.
// The first report always passes.
type Throttle struct {
	sink    Sink
	limiter *rate.Limiter
	now     func() time.Time
}

// Option configures a Throttle.
type Option func(*Throttle)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Throttle) {
		t.now = now
	}
}

func NewThrottle(sink Sink, interval time.Duration, opts ...Option) *Throttle {
	t := &Throttle{
		sink:    sink,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

func (t *Throttle) Report(ctx context.Context, downloaded, total int64) {
	if !t.limiter.AllowN(t.now(), 1) {
		return
	}

	t.sink.Report(ctx, downloaded, total)
}
