package pipeliner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ndnrtc/internal/core/drd"
	"ndnrtc/internal/core/interestcontrol"
	"ndnrtc/internal/core/name"
	"ndnrtc/internal/core/ports"
	"ndnrtc/internal/core/wire"
)

type fakeFace struct {
	lastName      string
	lastSelectors ports.Selectors
	onData        ports.OnData
	onTimeout     ports.OnTimeout
}

func (f *fakeFace) ExpressInterest(ctx context.Context, n string, sel ports.Selectors, lifetime time.Duration, onData ports.OnData, onTimeout ports.OnTimeout, onNack ports.OnNack) error {
	f.lastName = n
	f.lastSelectors = sel
	f.onData = onData
	f.onTimeout = onTimeout
	return nil
}

func (f *fakeFace) RegisterPrefix(ctx context.Context, n string, onInterest ports.OnInterest) error {
	return nil
}

func (f *fakeFace) PutData(ctx context.Context, n string, seg wire.Segment) error { return nil }

func TestTimeoutRetransmitsUpToBudgetThenSurfaces(t *testing.T) {
	d := drd.New(150, 30*time.Second)
	ic := interestcontrol.New(d, nil)
	ic.TargetRateUpdate(30)

	face := &fakeFace{}
	p := New(face, ic, "/base", "stream1", "hi", time.Second)
	p.SetMaxRetransmits(2)

	var surfaced []name.Info
	p.OnTimeout(func(info name.Info) { surfaced = append(surfaced, info) })
	p.SetSequenceNumber(5, name.ClassDelta)

	require.NoError(t, p.Express(context.Background(), name.ClassDelta, true))
	require.EqualValues(t, 1, ic.PipelineSize())

	// First two timeouts are absorbed by silent re-expression.
	face.onTimeout(face.lastName)
	require.Empty(t, surfaced)
	require.EqualValues(t, 1, ic.PipelineSize())
	face.onTimeout(face.lastName)
	require.Empty(t, surfaced)

	// Third timeout exhausts the budget and propagates.
	face.onTimeout(face.lastName)
	require.Len(t, surfaced, 1)
	require.EqualValues(t, 5, surfaced[0].SampleNo)
	require.EqualValues(t, 0, ic.PipelineSize())
}

func TestExpressRightmostThenExactAfterSegmentArrival(t *testing.T) {
	d := drd.New(150, 30*time.Second)
	ic := interestcontrol.New(d, nil)
	ic.TargetRateUpdate(30)

	face := &fakeFace{}
	p := New(face, ic, "/base", "stream1", "hi", time.Second)
	p.SetNeedRightmost()

	require.NoError(t, p.Express(context.Background(), name.ClassDelta, false))
	require.True(t, face.lastSelectors.ChildSelectorRight)
	require.EqualValues(t, 1, ic.PipelineSize())

	p.SegmentArrived(context.Background(), name.Info{Class: name.ClassDelta, SampleNo: 7})
	seq, ok := p.SequenceNumber(name.ClassDelta)
	require.True(t, ok)
	require.EqualValues(t, 8, seq)
}
