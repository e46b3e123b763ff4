package estimators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAverageMeanAndDeviation(t *testing.T) {
	a := NewAverage(NewSampleWindow(100))
	for _, v := range []float64{10, 20, 30} {
		a.NewValue(v)
	}
	require.InDelta(t, 20, a.Value(), 1e-9)
	require.InDelta(t, 8.1649, a.Deviation(), 1e-3)
	require.EqualValues(t, 3, a.Count())
	require.Equal(t, 10.0, a.OldestValue())
	require.Equal(t, 30.0, a.LatestValue())
}

func TestSampleWindowEvictsOldest(t *testing.T) {
	a := NewAverage(NewSampleWindow(3))
	for i := 0; i < 12; i++ {
		a.NewValue(100)
	}
	a.NewValue(0)
	require.Less(t, a.Value(), 100.0)
	require.Greater(t, a.Value(), 0.0)
}

func TestTimeWindowLimit(t *testing.T) {
	w := NewTimeWindow(time.Hour)
	now := time.Now()
	w.nowFunc = func() time.Time { return now }

	require.True(t, w.IsLimitReached(), "first observation establishes the window")
	require.False(t, w.IsLimitReached())

	now = now.Add(2 * time.Hour)
	require.True(t, w.IsLimitReached())
}

func TestFilterConvergesTowardInput(t *testing.T) {
	f := NewFilter(0.5)
	f.NewValue(0)
	for i := 0; i < 20; i++ {
		f.NewValue(100)
	}
	require.InDelta(t, 100, f.Value(), 1)
}
