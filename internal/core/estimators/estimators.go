// Package estimators provides sliding-window statistics primitives shared
// by the DRD, interest-control and latency-control components: a moving
// average with deviation, a frequency meter, and a low-pass filter.
package estimators

import (
	"math"
	"sync"
	"time"
)

// Window bounds how far back an Average or FreqMeter looks.
type Window interface {
	// IsLimitReached reports whether the window boundary has been crossed
	// by the latest observation. Must be called once per new value.
	IsLimitReached() bool
}

// SampleWindow is a count-based window: it reaches its limit every
// N observations.
type SampleWindow struct {
	n         int
	remaining int
}

// NewSampleWindow returns a window that reaches its limit every n samples.
func NewSampleWindow(n int) *SampleWindow {
	if n <= 0 {
		n = 1
	}
	return &SampleWindow{n: n, remaining: n}
}

func (w *SampleWindow) IsLimitReached() bool {
	w.remaining--
	if w.remaining <= 0 {
		w.remaining = w.n
		return true
	}
	return false
}

// TimeWindow is a wall-clock window: it reaches its limit once per
// configured duration.
type TimeWindow struct {
	d       time.Duration
	lastHit time.Time
	nowFunc func() time.Time
}

// NewTimeWindow returns a window that reaches its limit once every d.
func NewTimeWindow(d time.Duration) *TimeWindow {
	return &TimeWindow{d: d, lastHit: time.Time{}, nowFunc: time.Now}
}

func (w *TimeWindow) IsLimitReached() bool {
	now := w.nowFunc()
	if w.lastHit.IsZero() || now.Sub(w.lastHit) >= w.d {
		w.lastHit = now
		return true
	}
	return false
}

// Average is a sliding-window mean and variance estimator. Values age out
// once the window reports its limit reached, matching the reference
// estimator's deque-based eviction.
type Average struct {
	mu       sync.Mutex
	window   Window
	samples  []float64
	sum      float64
	variance float64
	count    uint64
}

// NewAverage creates an Average bounded by window.
func NewAverage(window Window) *Average {
	return &Average{window: window}
}

// NewValue records a new observation and recomputes mean/variance.
func (a *Average) NewValue(v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.samples = append(a.samples, v)
	a.sum += v
	a.count++

	if a.window != nil && a.window.IsLimitReached() && len(a.samples) > 1 {
		// Drop the oldest sample each time the window limit fires,
		// mirroring the deque-pop behavior of the reference
		// implementation.
		oldest := a.samples[0]
		a.sum -= oldest
		a.samples = a.samples[1:]
	}

	a.recompute()
}

func (a *Average) recompute() {
	n := float64(len(a.samples))
	if n == 0 {
		a.variance = 0
		return
	}
	mean := a.sum / n
	var acc float64
	for _, s := range a.samples {
		d := s - mean
		acc += d * d
	}
	a.variance = acc / n
}

// Value returns the current mean, or 0 if no samples have been observed.
func (a *Average) Value() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.samples) == 0 {
		return 0
	}
	return a.sum / float64(len(a.samples))
}

// Deviation returns the current standard deviation.
func (a *Average) Deviation() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return math.Sqrt(a.variance)
}

// Variance returns the current variance.
func (a *Average) Variance() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.variance
}

// Count returns the number of values observed so far (lifetime, not
// windowed).
func (a *Average) Count() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// LatestValue returns the most recently observed raw sample, or 0 if none.
func (a *Average) LatestValue() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.samples) == 0 {
		return 0
	}
	return a.samples[len(a.samples)-1]
}

// OldestValue returns the oldest sample still inside the window.
func (a *Average) OldestValue() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.samples) == 0 {
		return 0
	}
	return a.samples[0]
}

// FreqMeter measures the frequency (events per second) at which NewValue
// is called, updated once per window interval.
type FreqMeter struct {
	mu      sync.Mutex
	window  Window
	calls   uint64
	value   float64
	started time.Time
	nowFunc func() time.Time
}

// NewFreqMeter creates a FreqMeter bounded by window.
func NewFreqMeter(window Window) *FreqMeter {
	return &FreqMeter{window: window, nowFunc: time.Now}
}

// NewValue registers one occurrence; the passed value itself is ignored.
func (f *FreqMeter) NewValue(_ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.started.IsZero() {
		f.started = f.nowFunc()
	}
	f.calls++

	if f.window != nil && f.window.IsLimitReached() {
		elapsed := f.nowFunc().Sub(f.started).Seconds()
		if elapsed > 0 {
			f.value = float64(f.calls) / elapsed
		}
		f.calls = 0
		f.started = f.nowFunc()
	}
}

// Value returns the last computed frequency in Hz.
func (f *FreqMeter) Value() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Filter is a simple exponential (low-pass) filter.
type Filter struct {
	mu        sync.Mutex
	smoothing float64
	value     float64
	seeded    bool
}

// NewFilter creates a low-pass filter with the given smoothing factor
// (0 < smoothing <= 1; smaller means smoother/slower to react).
func NewFilter(smoothing float64) *Filter {
	if smoothing <= 0 || smoothing > 1 {
		smoothing = 1.0 / 8.0
	}
	return &Filter{smoothing: smoothing}
}

// NewValue folds v into the filter.
func (f *Filter) NewValue(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.seeded {
		f.value = v
		f.seeded = true
		return
	}
	f.value = f.smoothing*v + (1-f.smoothing)*f.value
}

// Value returns the current filtered value.
func (f *Filter) Value() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}
