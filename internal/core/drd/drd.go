// Package drd implements the Data Retrieval Delay estimator: separate
// sliding-window averages for original (first-time) versus cached
// answers.
package drd

import (
	"sync"
	"time"

	"ndnrtc/internal/core/estimators"
)

// DefaultInitialEstimationMs seeds both windows until real samples
// accumulate.
const DefaultInitialEstimationMs = 150.0

// DefaultWindow is the reference's ~30s time window.
const DefaultWindow = 30 * time.Second

// CachedThresholdMs is the default boundary distinguishing an original
// answer from one served out of an in-network cache: a generation delay
// below this is considered a cache hit.
const CachedThresholdMs = 2.0

// Observer receives DRD update notifications.
type Observer interface {
	OnDrdUpdate()
	OnOriginalDrdUpdate()
	OnCachedDrdUpdate()
}

// Estimator is a process-wide singleton (per consumer) tracking DRD for
// original and cached answers independently.
type Estimator struct {
	mu        sync.Mutex
	original  *estimators.Average
	cached    *estimators.Average
	observers []Observer
	initMs    float64
}

// New creates an Estimator seeded with initialEstimationMs until real
// samples accumulate, using a time-based sliding window of length window.
// initialEstimationMs <= 0 uses DefaultInitialEstimationMs; window <= 0
// uses DefaultWindow.
func New(initialEstimationMs float64, window time.Duration) *Estimator {
	if initialEstimationMs <= 0 {
		initialEstimationMs = DefaultInitialEstimationMs
	}
	if window <= 0 {
		window = DefaultWindow
	}
	e := &Estimator{
		original: estimators.NewAverage(estimators.NewTimeWindow(window)),
		cached:   estimators.NewAverage(estimators.NewTimeWindow(window)),
		initMs:   initialEstimationMs,
	}
	e.original.NewValue(initialEstimationMs)
	e.cached.NewValue(initialEstimationMs)
	return e
}

// Attach registers an observer for update notifications.
func (e *Estimator) Attach(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, o)
}

// Detach removes a previously attached observer.
func (e *Estimator) Detach(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, existing := range e.observers {
		if existing == o {
			e.observers = append(e.observers[:i], e.observers[i+1:]...)
			return
		}
	}
}

// NewValue records a DRD observation in milliseconds, classified as
// original or cached by the caller (see IsOriginal).
func (e *Estimator) NewValue(drdMs float64, isOriginal bool) {
	e.mu.Lock()
	if isOriginal {
		e.original.NewValue(drdMs)
	} else {
		e.cached.NewValue(drdMs)
	}
	observers := append([]Observer(nil), e.observers...)
	e.mu.Unlock()

	for _, o := range observers {
		o.OnDrdUpdate()
		if isOriginal {
			o.OnOriginalDrdUpdate()
		} else {
			o.OnCachedDrdUpdate()
		}
	}
}

// GetOriginalEstimation returns the current mean DRD for original answers.
func (e *Estimator) GetOriginalEstimation() float64 {
	return e.original.Value()
}

// GetCachedEstimation returns the current mean DRD for cached answers.
func (e *Estimator) GetCachedEstimation() float64 {
	return e.cached.Value()
}

// OriginalAverage exposes the underlying estimator for strategies that
// need deviation as well as mean (e.g. interestcontrol.StrategyDefault).
func (e *Estimator) OriginalAverage() *estimators.Average { return e.original }

// CachedAverage exposes the underlying cached estimator.
func (e *Estimator) CachedAverage() *estimators.Average { return e.cached }

// Reset clears both windows back to the seeded initial estimation.
func (e *Estimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.original = estimators.NewAverage(estimators.NewTimeWindow(DefaultWindow))
	e.cached = estimators.NewAverage(estimators.NewTimeWindow(DefaultWindow))
	e.original.NewValue(e.initMs)
	e.cached.NewValue(e.initMs)
}

// IsOriginal classifies a segment's generation delay as original (true)
// or cached (false) per the threshold.
func IsOriginal(generationDelayMs float64) bool {
	return generationDelayMs >= CachedThresholdMs
}
