// Package monitoring exposes Prometheus metrics for the pipeline and
// buffer collaborators.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds every metric this engine exports.
type Collector struct {
	drdOriginalMs *prometheus.GaugeVec
	drdCachedMs   *prometheus.GaugeVec

	pipelineWindow *prometheus.GaugeVec
	bufferOccupied *prometheus.GaugeVec

	starvationTotal          *prometheus.CounterVec
	skipHeadTotal            *prometheus.CounterVec
	verificationFailureTotal *prometheus.CounterVec
	verificationOKTotal      *prometheus.CounterVec

	segmentFetchDuration prometheus.Histogram
	frameDroppedTotal    *prometheus.CounterVec
	malformedTotal       *prometheus.CounterVec
}

// New registers and returns a Collector against reg. Pass
// prometheus.DefaultRegisterer for the process-wide registry used by
// cmd/producer and cmd/consumer's /metrics handler; tests should pass a
// fresh prometheus.NewRegistry() so repeated calls don't collide.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		drdOriginalMs: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ndnrtc_drd_original_ms",
			Help: "Data retrieval delay estimate for originally-generated data, in milliseconds",
		}, []string{"thread"}),

		drdCachedMs: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ndnrtc_drd_cached_ms",
			Help: "Data retrieval delay estimate for cache-hit data, in milliseconds",
		}, []string{"thread"}),

		pipelineWindow: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ndnrtc_pipeline_window",
			Help: "Current interest pipeline window size",
		}, []string{"thread"}),

		bufferOccupied: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ndnrtc_buffer_slots_occupied",
			Help: "Number of non-free slots currently held in the buffer",
		}, []string{"thread"}),

		starvationTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ndnrtc_starvation_total",
			Help: "Total number of starvation recoveries triggered",
		}, []string{"thread"}),

		skipHeadTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ndnrtc_playout_skip_head_total",
			Help: "Total number of playout queue head skips",
		}, []string{"thread"}),

		verificationFailureTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ndnrtc_verification_failure_total",
			Help: "Total number of samples that failed manifest verification",
		}, []string{"thread"}),

		verificationOKTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ndnrtc_verification_ok_total",
			Help: "Total number of samples that passed manifest verification",
		}, []string{"thread"}),

		segmentFetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ndnrtc_segment_fetch_duration_seconds",
			Help:    "Duration between interest expression and data arrival",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),

		frameDroppedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ndnrtc_frame_dropped_total",
			Help: "Total number of raw frames dropped by the encoder",
		}, []string{"thread"}),

		malformedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ndnrtc_malformed_total",
			Help: "Total number of packets dropped for a bad name or header",
		}, []string{"thread"}),
	}
}

// SetDRD records the latest original/cached DRD estimates for a thread.
func (c *Collector) SetDRD(thread string, originalMs, cachedMs float64) {
	c.drdOriginalMs.WithLabelValues(thread).Set(originalMs)
	c.drdCachedMs.WithLabelValues(thread).Set(cachedMs)
}

// SetPipelineWindow records the current pipeline window size for a thread.
func (c *Collector) SetPipelineWindow(thread string, window int) {
	c.pipelineWindow.WithLabelValues(thread).Set(float64(window))
}

// SetBufferOccupancy records the number of non-free slots for a thread.
func (c *Collector) SetBufferOccupancy(thread string, occupied int) {
	c.bufferOccupied.WithLabelValues(thread).Set(float64(occupied))
}

// RecordStarvation increments the starvation counter for a thread.
func (c *Collector) RecordStarvation(thread string) {
	c.starvationTotal.WithLabelValues(thread).Inc()
}

// RecordSkipHead increments the playout skip-head counter for a thread.
func (c *Collector) RecordSkipHead(thread string) {
	c.skipHeadTotal.WithLabelValues(thread).Inc()
}

// RecordVerification increments the appropriate verification counter.
func (c *Collector) RecordVerification(thread string, ok bool) {
	if ok {
		c.verificationOKTotal.WithLabelValues(thread).Inc()
		return
	}
	c.verificationFailureTotal.WithLabelValues(thread).Inc()
}

// RecordSegmentFetch observes one interest-to-data round trip.
func (c *Collector) RecordSegmentFetch(d time.Duration) {
	c.segmentFetchDuration.Observe(d.Seconds())
}

// RecordFrameDropped increments the frame-dropped counter for a thread.
func (c *Collector) RecordFrameDropped(thread string) {
	c.frameDroppedTotal.WithLabelValues(thread).Inc()
}

// RecordMalformed increments the malformed-packet counter for a thread.
func (c *Collector) RecordMalformed(thread string) {
	c.malformedTotal.WithLabelValues(thread).Inc()
}
