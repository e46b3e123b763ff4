package drd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSeedsWithInitialEstimation(t *testing.T) {
	e := New(0, 0)
	require.Equal(t, DefaultInitialEstimationMs, e.GetOriginalEstimation())
	require.Equal(t, DefaultInitialEstimationMs, e.GetCachedEstimation())
}

func TestOriginalAndCachedTrackSeparately(t *testing.T) {
	e := New(100, 30*time.Second)

	e.NewValue(300, true)
	e.NewValue(10, false)

	require.Greater(t, e.GetOriginalEstimation(), e.GetCachedEstimation())
}

func TestIsOriginalThreshold(t *testing.T) {
	require.False(t, IsOriginal(0))
	require.False(t, IsOriginal(1.9))
	require.True(t, IsOriginal(2.0))
	require.True(t, IsOriginal(25))
}

type countingObserver struct {
	updates, originals, cacheds int
}

func (o *countingObserver) OnDrdUpdate()         { o.updates++ }
func (o *countingObserver) OnOriginalDrdUpdate() { o.originals++ }
func (o *countingObserver) OnCachedDrdUpdate()   { o.cacheds++ }

func TestObserversNotifiedPerClass(t *testing.T) {
	e := New(150, 30*time.Second)
	obs := &countingObserver{}
	e.Attach(obs)

	e.NewValue(200, true)
	e.NewValue(5, false)
	e.NewValue(180, true)

	require.Equal(t, 3, obs.updates)
	require.Equal(t, 2, obs.originals)
	require.Equal(t, 1, obs.cacheds)

	e.Detach(obs)
	e.NewValue(190, true)
	require.Equal(t, 3, obs.updates)
}
