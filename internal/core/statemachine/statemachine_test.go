package statemachine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ndnrtc/internal/core/latencycontrol"
	"ndnrtc/internal/core/name"
)

type recordingActions struct {
	rightmostReqs []name.Class
	exactReqs     []uint64
	sisterSeq     []uint64
	windowIncr    int
	advances      int
	playoutOn     bool
	frozen        bool
	fullResets    int
	states        []State
}

func (a *recordingActions) RequestRightmost(class name.Class) {
	a.rightmostReqs = append(a.rightmostReqs, class)
}
func (a *recordingActions) RequestExact(class name.Class, sampleNo uint64) {
	a.exactReqs = append(a.exactReqs, sampleNo)
}
func (a *recordingActions) SetSisterSequenceNumber(class name.Class, sampleNo uint64) {
	a.sisterSeq = append(a.sisterSeq, sampleNo)
}
func (a *recordingActions) IncrementWindow()  { a.windowIncr++ }
func (a *recordingActions) AdvancePipeliner() { a.advances++ }
func (a *recordingActions) EnablePlayout()    { a.playoutOn = true }
func (a *recordingActions) FreezeLowerLimit() { a.frozen = true }
func (a *recordingActions) FullReset()        { a.fullResets++ }
func (a *recordingActions) OnStateChange(s State) {
	a.states = append(a.states, s)
}

func TestColdStartAudioConsumerReachesChasing(t *testing.T) {
	a := &recordingActions{}
	m := New(a, false)

	require.Equal(t, Idle, m.State())

	m.Dispatch(Event{Kind: EventStart})
	require.Equal(t, WaitForRightmost, m.State())
	require.Equal(t, []name.Class{name.ClassDelta}, a.rightmostReqs)

	m.Dispatch(Event{Kind: EventSegment, SegmentInfo: name.Info{Class: name.ClassDelta, SampleNo: 41}})
	require.Equal(t, WaitForInitial, m.State())
	require.Equal(t, []uint64{42}, a.exactReqs)
	require.Equal(t, 1, a.windowIncr)

	m.Dispatch(Event{Kind: EventSegment, SegmentInfo: name.Info{Class: name.ClassDelta, SampleNo: 42}})
	require.Equal(t, Chasing, m.State())

	m.Dispatch(Event{Kind: EventSegment, LatencyCmd: latencycontrol.Keep})
	require.Equal(t, Chasing, m.State())
	require.Equal(t, 1, a.advances)
}

func TestColdStartVideoConsumerTracksSisterSequence(t *testing.T) {
	a := &recordingActions{}
	m := New(a, true)

	m.Dispatch(Event{Kind: EventStart})
	require.Equal(t, []name.Class{name.ClassKey}, a.rightmostReqs)

	m.Dispatch(Event{Kind: EventSegment, SegmentInfo: name.Info{Class: name.ClassKey, SampleNo: 3}})
	require.Equal(t, WaitForInitial, m.State())

	m.Dispatch(Event{Kind: EventSegment, SegmentInfo: name.Info{Class: name.ClassKey, SampleNo: 4}, PairedSeqNo: 47})
	require.Equal(t, Chasing, m.State())
	require.Equal(t, []uint64{47}, a.sisterSeq)
}

func TestChasingDecreaseEntersAdjustingThenFetchingOnIncrease(t *testing.T) {
	a := &recordingActions{}
	m := New(a, false)
	m.Dispatch(Event{Kind: EventStart})
	m.Dispatch(Event{Kind: EventSegment, SegmentInfo: name.Info{SampleNo: 1}})
	m.Dispatch(Event{Kind: EventSegment})
	require.Equal(t, Chasing, m.State())

	m.Dispatch(Event{Kind: EventSegment, LatencyCmd: latencycontrol.Decrease})
	require.Equal(t, Adjusting, m.State())
	require.True(t, a.playoutOn)

	m.Dispatch(Event{Kind: EventSegment, LatencyCmd: latencycontrol.Decrease})
	require.Equal(t, Adjusting, m.State(), "stays Adjusting while Decrease keeps firing")

	m.Dispatch(Event{Kind: EventSegment, LatencyCmd: latencycontrol.Increase})
	require.Equal(t, Fetching, m.State())
	require.True(t, a.frozen)

	m.Dispatch(Event{Kind: EventSegment})
	require.Equal(t, 1, a.advances)
}

func TestStarvationRecoversFromAnyStateToWaitForRightmost(t *testing.T) {
	a := &recordingActions{}
	m := New(a, false)
	m.Dispatch(Event{Kind: EventStart})
	m.Dispatch(Event{Kind: EventSegment, SegmentInfo: name.Info{SampleNo: 1}})
	m.Dispatch(Event{Kind: EventSegment})
	require.Equal(t, Chasing, m.State())

	m.Dispatch(Event{Kind: EventStarvation})
	require.Equal(t, WaitForRightmost, m.State())
	require.Equal(t, 1, a.fullResets)
	require.Len(t, a.rightmostReqs, 2)
}

func TestRepeatedTimeoutsInWaitForInitialFallBackToIdle(t *testing.T) {
	a := &recordingActions{}
	m := New(a, false)
	m.Dispatch(Event{Kind: EventStart})
	m.Dispatch(Event{Kind: EventSegment, SegmentInfo: name.Info{SampleNo: 1}})
	require.Equal(t, WaitForInitial, m.State())

	for i := 0; i < 3; i++ {
		m.Dispatch(Event{Kind: EventTimeout})
		require.Equal(t, WaitForInitial, m.State())
	}
	m.Dispatch(Event{Kind: EventTimeout})
	require.Equal(t, Idle, m.State())
}

func TestUnknownTransitionIsIgnoredNotFatal(t *testing.T) {
	a := &recordingActions{}
	m := New(a, false)
	require.NotPanics(t, func() {
		m.Dispatch(Event{Kind: EventTimeout}) // Idle has no Timeout transition
	})
	require.Equal(t, Idle, m.State())
}
