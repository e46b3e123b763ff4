package segctl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ndnrtc/internal/core/name"
	"ndnrtc/internal/core/wire"
)

type recordingObserver struct {
	arrived    int
	timeouts   int
	starvation int
}

func (r *recordingObserver) SegmentArrived(wire.Segment, name.Info) { r.arrived++ }
func (r *recordingObserver) SegmentRequestTimeout(name.Info)        { r.timeouts++ }
func (r *recordingObserver) SegmentStarvation()                     { r.starvation++ }

func TestStarvationFiresOnceUntilDataArrives(t *testing.T) {
	c := New(10 * time.Millisecond)
	obs := &recordingObserver{}
	c.Attach(obs)

	fakeNow := time.Now()
	c.nowFunc = func() time.Time { return fakeNow }

	fakeNow = fakeNow.Add(20 * time.Millisecond)
	c.CheckStarvation()
	require.Equal(t, 1, obs.starvation)

	// Still idle: must not re-fire.
	fakeNow = fakeNow.Add(20 * time.Millisecond)
	c.CheckStarvation()
	require.Equal(t, 1, obs.starvation)

	c.OnData(wire.Segment{}, name.Info{})
	require.Equal(t, 1, obs.arrived)

	fakeNow = fakeNow.Add(20 * time.Millisecond)
	c.CheckStarvation()
	require.Equal(t, 2, obs.starvation)
}

func TestTimeoutDispatchesToObservers(t *testing.T) {
	c := New(time.Second)
	obs := &recordingObserver{}
	c.Attach(obs)

	c.OnTimeout(name.Info{Stream: "s"})
	require.Equal(t, 1, obs.timeouts)
}
