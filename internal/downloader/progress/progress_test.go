package progress_test

import (
	"context"
	"testing"
	"time"

	"github.com/italolelis/leechbot/internal/downloader/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type recorder struct {
	at         []time.Time
	downloaded []int64
	clock      *fakeClock
}

func (r *recorder) Report(_ context.Context, downloaded, _ int64) {
	r.at = append(r.at, r.clock.Now())
	r.downloaded = append(r.downloaded, downloaded)
}

func TestThrottle_AtMostOncePerWindow(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	rec := &recorder{clock: clock}
	th := progress.NewThrottle(rec, 2*time.Second, progress.WithClock(clock.Now))

	// 10 chunks, 700ms apart: spans 6.3s.
	for i := 1; i <= 10; i++ {
		th.Report(context.Background(), int64(i), 0)
		clock.Advance(700 * time.Millisecond)
	}

	require.Len(t, rec.at, 4)
	assert.Equal(t, []int64{1, 4, 7, 10}, rec.downloaded)

	for i := 1; i < len(rec.at); i++ {
		assert.GreaterOrEqual(t, rec.at[i].Sub(rec.at[i-1]), 2*time.Second)
	}
}

func TestThrottle_FiresWhenStreamExceedsWindow(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	rec := &recorder{clock: clock}
	th := progress.NewThrottle(rec, 2*time.Second, progress.WithClock(clock.Now))

	// Many fast chunks, 10ms apart, across 3 seconds.
	for i := 0; i < 300; i++ {
		th.Report(context.Background(), int64(i), 300)
		clock.Advance(10 * time.Millisecond)
	}

	assert.GreaterOrEqual(t, len(rec.at), 1)
	assert.LessOrEqual(t, len(rec.at), 2)
}

func TestThrottle_ShortTransfer(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	rec := &recorder{clock: clock}
	th := progress.NewThrottle(rec, 2*time.Second, progress.WithClock(clock.Now))

	for i := 0; i < 5; i++ {
		th.Report(context.Background(), int64(i), 5)
		clock.Advance(100 * time.Millisecond)
	}

	assert.LessOrEqual(t, len(rec.at), 1)
}

func TestSinkFunc(t *testing.T) {
	var gotDownloaded, gotTotal int64

	sink := progress.SinkFunc(func(_ context.Context, downloaded, total int64) {
		gotDownloaded, gotTotal = downloaded, total
	})
	sink.Report(context.Background(), 3, 9)

	assert.Equal(t, int64(3), gotDownloaded)
	assert.Equal(t, int64(9), gotTotal)

	progress.Discard.Report(context.Background(), 1, 1)
}
