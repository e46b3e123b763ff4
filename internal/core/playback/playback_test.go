package playback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueuePopsInPlaybackOrder(t *testing.T) {
	q := NewQueue(1000)
	q.Push(Sample{PlaybackNo: 2, TimestampMs: 200})
	q.Push(Sample{PlaybackNo: 0, TimestampMs: 0})
	q.Push(Sample{PlaybackNo: 1, TimestampMs: 100})

	s, ok := q.Pop()
	require.True(t, ok)
	require.EqualValues(t, 0, s.PlaybackNo)

	s, ok = q.Pop()
	require.True(t, ok)
	require.EqualValues(t, 1, s.PlaybackNo)

	s, ok = q.Pop()
	require.True(t, ok)
	require.EqualValues(t, 2, s.PlaybackNo)

	_, ok = q.Pop()
	require.False(t, ok)
}

func TestPopFailsWhenHeadMissing(t *testing.T) {
	q := NewQueue(1000)
	q.Push(Sample{PlaybackNo: 1, TimestampMs: 100})
	_, ok := q.Pop()
	require.False(t, ok, "expected head (0) was never pushed")
}

type skipRecorder struct {
	skipped []uint32
}

func (r *skipRecorder) OnSkipHead(no uint32) { r.skipped = append(r.skipped, no) }

func TestSkipHeadAdvancesAndNotifies(t *testing.T) {
	q := NewQueue(1000)
	rec := &skipRecorder{}
	q.Attach(rec)

	q.Push(Sample{PlaybackNo: 3, TimestampMs: 300})
	q.Push(Sample{PlaybackNo: 4, TimestampMs: 400})
	s, ok := q.SkipHead()
	require.True(t, ok)
	require.EqualValues(t, 3, s.PlaybackNo)
	require.Equal(t, []uint32{0}, rec.skipped)

	s2, ok := q.Pop()
	require.True(t, ok)
	require.EqualValues(t, 4, s2.PlaybackNo)
}

func TestSizeMsIsSpanOfQueuedTimestamps(t *testing.T) {
	q := NewQueue(1000)
	require.EqualValues(t, 0, q.SizeMs())
	q.Push(Sample{PlaybackNo: 0, TimestampMs: 100})
	q.Push(Sample{PlaybackNo: 1, TimestampMs: 400})
	require.EqualValues(t, 300, q.SizeMs())
}

type constDrift struct{ ms float64 }

func (c constDrift) DriftMs() float64 { return c.ms }

func TestPlayoutReleasesInOrderAndGatesOnAllow(t *testing.T) {
	q := NewQueue(1000)
	p := NewPlayout(q, 50*time.Millisecond)
	var slept []time.Duration
	p.sleepFunc = func(d time.Duration) { slept = append(slept, d) }

	var released []uint32
	p.OnRelease(func(s Sample) { released = append(released, s.PlaybackNo) })

	q.Push(Sample{PlaybackNo: 0, TimestampMs: 0})
	p.Tick(context.Background())
	require.Empty(t, released, "playout gated off by default")

	p.AllowPlayout(true)
	p.Tick(context.Background())
	require.Equal(t, []uint32{0}, released)
	require.Empty(t, slept, "no sleep before the first release")

	q.Push(Sample{PlaybackNo: 1, TimestampMs: 33})
	p.Tick(context.Background())
	require.Equal(t, []uint32{0, 1}, released)
	require.Equal(t, []time.Duration{33 * time.Millisecond}, slept)
}

func TestPlayoutNeverSleepsBackwards(t *testing.T) {
	q := NewQueue(1000)
	p := NewPlayout(q, 50*time.Millisecond)
	var slept []time.Duration
	p.sleepFunc = func(d time.Duration) { slept = append(slept, d) }
	p.AllowPlayout(true)

	q.Push(Sample{PlaybackNo: 0, TimestampMs: 100})
	p.Tick(context.Background())
	q.Push(Sample{PlaybackNo: 1, TimestampMs: 50}) // wall-clock drifted past target
	p.Tick(context.Background())

	require.Equal(t, []time.Duration{0}, slept, "negative delta clamps to zero, released immediately")
}

func TestPlayoutAppliesDriftAdjustment(t *testing.T) {
	q := NewQueue(1000)
	p := NewPlayout(q, 50*time.Millisecond)
	var slept []time.Duration
	p.sleepFunc = func(d time.Duration) { slept = append(slept, d) }
	p.AllowPlayout(true)
	p.SetDriftSource(constDrift{ms: 10})

	q.Push(Sample{PlaybackNo: 0, TimestampMs: 0})
	p.Tick(context.Background())
	q.Push(Sample{PlaybackNo: 1, TimestampMs: 33})
	p.Tick(context.Background())

	require.Equal(t, []time.Duration{43 * time.Millisecond}, slept)
}

func TestPlayoutSkipsAfterBoundedWaitOnMissingHead(t *testing.T) {
	q := NewQueue(1000)
	p := NewPlayout(q, 20*time.Millisecond)
	var slept []time.Duration
	p.sleepFunc = func(d time.Duration) { slept = append(slept, d) }
	p.AllowPlayout(true)

	rec := &skipRecorder{}
	q.Attach(rec)

	q.Push(Sample{PlaybackNo: 1, TimestampMs: 100}) // head (0) never arrives

	pollInterval := 10 * time.Millisecond
	for i := 0; i < 3; i++ {
		p.mu.Lock()
		p.waitedHead += pollInterval
		p.mu.Unlock()
		p.Tick(context.Background())
	}

	require.Equal(t, []uint32{0}, rec.skipped)
}
