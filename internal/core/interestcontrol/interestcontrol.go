// Package interestcontrol enforces the outstanding-interest pipeline
// window per thread: Little's law with slack,
// sized off the DRD estimate and sample period.
package interestcontrol

import (
	"math"
	"sync"

	"golang.org/x/time/rate"

	"ndnrtc/internal/core/drd"
)

// MinPipelineSize is the floor any strategy's lower limit is clamped to.
const MinPipelineSize = 3

// Strategy computes pipeline limits and burst/withhold deltas. Strategies
// are a small capability set, not a class hierarchy.
type Strategy interface {
	// GetLimits returns the lower/upper pipeline bounds for the given
	// target sample rate (Hz) and current DRD average.
	GetLimits(rate float64, drdMean, drdDeviation float64) (lower, upper uint32)
	// Burst returns the delta to add to the current limit when growing.
	Burst(currentLimit, lowerLimit, upperLimit uint32) int
	// Withhold returns the (negative) delta to apply when shrinking.
	Withhold(currentLimit, lowerLimit, upperLimit uint32) int
}

// StrategyDefault implements the reference default strategy:
//   - lowerLimit = max(MinPipelineSize, ceil((drdMean + 4*drdDeviation) / samplePeriodMs))
//   - upperLimit = 8 * lowerLimit
//   - burst grows by ceil(currentLimit / 2)
//   - withhold shrinks by halving the distance to lowerLimit
type StrategyDefault struct{}

func (StrategyDefault) GetLimits(sampleRate float64, drdMean, drdDeviation float64) (lower, upper uint32) {
	if sampleRate <= 0 {
		sampleRate = 1
	}
	samplePeriodMs := 1000.0 / sampleRate
	demand := int(math.Ceil((drdMean + 4*drdDeviation) / samplePeriodMs))
	if demand < MinPipelineSize {
		demand = MinPipelineSize
	}
	return uint32(demand), uint32(demand * 8)
}

func (StrategyDefault) Burst(currentLimit, _, _ uint32) int {
	return int(math.Ceil(float64(currentLimit) / 2.0))
}

func (StrategyDefault) Withhold(currentLimit, lowerLimit, _ uint32) int {
	return -int(math.Floor(float64(currentLimit-lowerLimit) / 2.0))
}

// Control enforces ceil(window) outstanding interests per thread, sized
// so that window * samplePeriodMs ~= DRD.
type Control struct {
	mu sync.Mutex

	strategy Strategy
	drd      *drd.Estimator

	initialized bool
	limitSet    bool

	lowerLimit uint32
	limit      uint32
	upperLimit uint32
	pipeline   int32

	targetRate float64

	// burster paces how fast newly-opened room is actually handed to the
	// network face, independent of the window arithmetic above: a token
	// bucket sized to the current limit avoids slamming the face with a
	// full burst of interests the instant the window grows.
	burster *rate.Limiter
}

// New creates a Control bound to the given DRD estimator and strategy.
// A nil strategy uses StrategyDefault.
func New(drdEstimator *drd.Estimator, strategy Strategy) *Control {
	if strategy == nil {
		strategy = StrategyDefault{}
	}
	c := &Control{
		strategy:   strategy,
		drd:        drdEstimator,
		lowerLimit: MinPipelineSize,
		limit:      MinPipelineSize,
		upperLimit: MinPipelineSize * 10,
		burster:    rate.NewLimiter(rate.Limit(MinPipelineSize*10), MinPipelineSize),
	}
	return c
}

// Reset returns the control to its uninitialized starting limits.
func (c *Control) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initialized = false
	c.limitSet = false
	c.pipeline = 0
	c.lowerLimit = MinPipelineSize
	c.limit = MinPipelineSize
	c.upperLimit = 30
}

// Increment records one more outstanding interest. Fails (returns false)
// when pipeline >= limit.
func (c *Control) Increment() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pipeline >= int32(c.limit) {
		return false
	}
	c.pipeline++
	return true
}

// Decrement records one fewer outstanding interest; never drops below 0.
func (c *Control) Decrement() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pipeline > 0 {
		c.pipeline--
	}
	return true
}

// PipelineSize returns the current number of outstanding interests.
func (c *Control) PipelineSize() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint32(c.pipeline)
}

// PipelineLimit returns the current pipeline ceiling.
func (c *Control) PipelineLimit() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limit
}

// Room returns how much room remains to express new interests. Negative
// or zero means no new interests should be issued for new samples.
func (c *Control) Room() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int32(c.limit) - c.pipeline
}

// Burst grows the current limit per the strategy, clamped to
// [lowerLimit, upperLimit]. Returns false if not yet initialized.
func (c *Control) Burst() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return false
	}
	d := c.strategy.Burst(c.limit, c.lowerLimit, c.upperLimit)
	c.changeLimitTo(int64(c.limit) + int64(d))
	c.burster.SetBurst(int(c.limit))
	return true
}

// Withhold shrinks the current limit per the strategy. Returns false if
// not yet initialized or the strategy produced no change.
func (c *Control) Withhold() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return false
	}
	d := c.strategy.Withhold(c.limit, c.lowerLimit, c.upperLimit)
	if d == 0 {
		return false
	}
	c.changeLimitTo(int64(c.limit) + int64(d))
	c.burster.SetBurst(int(c.limit))
	return true
}

// MarkLowerLimit pins a floor under the pipeline limit (used by the
// Adjusting->Fetching transition in the consumer state machine).
func (c *Control) MarkLowerLimit(lowerLimit uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limitSet = true
	c.lowerLimit = lowerLimit
	c.setLimitsLocked()
}

// TargetRateUpdate sets the sample rate used to compute limits and marks
// the control as initialized.
func (c *Control) TargetRateUpdate(sampleRate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.targetRate = sampleRate
	c.initialized = true
	c.setLimitsLocked()
}

// OnDrdUpdate implements drd.Observer: recompute limits when DRD moves.
func (c *Control) OnDrdUpdate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		c.setLimitsLocked()
	}
}

// OnOriginalDrdUpdate and OnCachedDrdUpdate are ignored, matching the
// reference: only the combined update recomputes limits.
func (c *Control) OnOriginalDrdUpdate() {}
func (c *Control) OnCachedDrdUpdate()   {}

// AllowBurst reports (and consumes, if allowed) one token from the pacing
// bucket, gating how fast the pipeliner is allowed to actually dispatch
// newly-opened interest room to the network face.
func (c *Control) AllowBurst() bool {
	return c.burster.Allow()
}

func (c *Control) setLimitsLocked() {
	if c.drd == nil {
		return
	}
	newLower, newUpper := c.strategy.GetLimits(c.targetRate, c.drd.GetOriginalEstimation(), c.drd.OriginalAverage().Deviation())

	if c.lowerLimit != newLower || c.upperLimit != newUpper {
		if !c.limitSet || newLower > c.lowerLimit {
			c.lowerLimit = newLower
		}
		c.upperLimit = newUpper

		if c.limit < c.lowerLimit {
			c.changeLimitTo(int64(c.lowerLimit))
		}
	}
	c.burster.SetLimit(rate.Limit(c.upperLimit))
	c.burster.SetBurst(int(c.limit))
}

func (c *Control) changeLimitTo(newLimit int64) {
	switch {
	case newLimit < int64(c.lowerLimit):
		c.limit = c.lowerLimit
	case newLimit > int64(c.upperLimit):
		c.limit = c.upperLimit
	default:
		c.limit = uint32(newLimit)
	}
}
