// Package statemachine sequences the consumer from cold-start into
// steady-state fetching and drives recovery on starvation. It is modeled as a (State x EventKind) -> (State, Action)
// table with an explicit ignored fallback — unknown transitions are
// dropped, never fatal.
package statemachine

import (
	"sync"

	"ndnrtc/internal/core/latencycontrol"
	"ndnrtc/internal/core/name"
)

// State is one of the six public consumer states.
type State int

const (
	Idle State = iota
	WaitForRightmost
	WaitForInitial
	Chasing
	Adjusting
	Fetching
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case WaitForRightmost:
		return "WaitForRightmost"
	case WaitForInitial:
		return "WaitForInitial"
	case Chasing:
		return "Chasing"
	case Adjusting:
		return "Adjusting"
	case Fetching:
		return "Fetching"
	default:
		return "Unknown"
	}
}

// EventKind enumerates the five events the machine dispatches on.
type EventKind int

const (
	EventStart EventKind = iota
	EventReset
	EventStarvation
	EventSegment
	EventTimeout
)

// Event carries the payload relevant to its kind. Only the fields
// relevant to Kind are meaningful.
type Event struct {
	Kind        EventKind
	SegmentInfo name.Info // EventSegment, EventTimeout
	PairedSeqNo uint64    // EventSegment: the segment header's pairedSequenceNo
	IsVideo     bool      // whether this subscription is a video (paired key/delta) consumer
	LatencyCmd  latencycontrol.Command
}

// Actions is the set of side effects the machine invokes on transitions.
// The machine itself holds no reference to pipeliner/buffer/interest
// control/latency control directly — it calls back through this
// interface so each component stays independently testable.
type Actions interface {
	// RequestRightmost re-issues a rightmost interest for the given class.
	RequestRightmost(class name.Class)
	// RequestExact issues an exact-number interest, starting at sampleNo,
	// for class.
	RequestExact(class name.Class, sampleNo uint64)
	// SetSisterSequenceNumber sets the starting sequence number for the
	// class this subscription did not request rightmost for (video only).
	SetSisterSequenceNumber(class name.Class, sampleNo uint64)
	// IncrementWindow bumps the outstanding-interest pipeline window.
	IncrementWindow()
	// AdvancePipeliner requests the next sample in sequence.
	AdvancePipeliner()
	// EnablePlayout turns playback on (Adjusting entry).
	EnablePlayout()
	// FreezeLowerLimit pins the interest-control lower limit to the
	// current pipeline limit (Adjusting -> Fetching entry).
	FreezeLowerLimit()
	// FullReset resets buffer, pipeliner, interest window and latency
	// control, used on starvation recovery.
	FullReset()
	// OnStateChange is called with the machine's current state after each
	// handled event, including ones that leave the state unchanged, for
	// the observable StateUpdate surface. Ignored events and a Keep
	// command while Adjusting do not call it.
	OnStateChange(s State)
}

// Machine is one pipeline-control state machine instance, one per active
// thread subscription.
type Machine struct {
	mu sync.Mutex

	state   State
	actions Actions
	isVideo bool

	timeoutCount int // consecutive timeouts while WaitForInitial

	adjustingLimit uint32
}

// New creates a Machine in the initial Idle state. isVideo selects
// key-class-first behavior (paired key/delta tracking); false selects
// delta-class-first (audio) behavior.
func New(actions Actions, isVideo bool) *Machine {
	return &Machine{state: Idle, actions: actions, isVideo: isVideo}
}

// State returns the machine's current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) startClass() name.Class {
	if m.isVideo {
		return name.ClassKey
	}
	return name.ClassDelta
}

func (m *Machine) sisterClass() name.Class {
	if m.isVideo {
		return name.ClassDelta
	}
	return name.ClassKey
}

// Dispatch routes ev through the transition table. An event with no
// matching transition in the current state is silently dropped: the machine never panics or errors on unknown
// transitions.
func (m *Machine) Dispatch(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Reset and Starvation are handled uniformly from (almost) any state.
	if ev.Kind == EventReset {
		m.state = Idle
		m.notifyLocked()
		return
	}
	if ev.Kind == EventStarvation && m.state != Idle {
		m.actions.FullReset()
		m.state = WaitForRightmost
		m.actions.RequestRightmost(m.startClass())
		m.notifyLocked()
		return
	}

	switch m.state {
	case Idle:
		if ev.Kind == EventStart {
			m.state = WaitForRightmost
			m.actions.RequestRightmost(m.startClass())
			m.notifyLocked()
		}

	case WaitForRightmost:
		switch ev.Kind {
		case EventSegment:
			m.state = WaitForInitial
			m.timeoutCount = 0
			start := ev.SegmentInfo.SampleNo + 1
			m.actions.RequestExact(m.startClass(), start)
			m.actions.IncrementWindow()
			m.notifyLocked()
		case EventTimeout:
			m.actions.RequestRightmost(m.startClass())
			m.notifyLocked()
		}

	case WaitForInitial:
		switch ev.Kind {
		case EventSegment:
			if m.isVideo {
				m.actions.SetSisterSequenceNumber(m.sisterClass(), ev.PairedSeqNo)
			}
			m.state = Chasing
			m.timeoutCount = 0
			m.notifyLocked()
		case EventTimeout:
			m.timeoutCount++
			if m.timeoutCount >= 4 {
				m.state = Idle
				m.timeoutCount = 0
			}
			m.notifyLocked()
		}

	case Chasing:
		if ev.Kind == EventSegment {
			switch ev.LatencyCmd {
			case latencycontrol.Decrease:
				m.state = Adjusting
				m.adjustingLimit = 0 // recorded by caller via FreezeLowerLimit at Fetching entry
				m.actions.EnablePlayout()
				m.notifyLocked()
			default: // Increase or Keep
				m.actions.AdvancePipeliner()
				m.notifyLocked()
			}
		}

	case Adjusting:
		if ev.Kind == EventSegment {
			switch ev.LatencyCmd {
			case latencycontrol.Increase:
				m.state = Fetching
				m.actions.FreezeLowerLimit()
				m.notifyLocked()
			case latencycontrol.Decrease:
				// remain Adjusting
				m.notifyLocked()
			default:
				// Keep: remain Adjusting per the table (only Increase
				// promotes to Fetching, only Decrease is called out
				// explicitly otherwise); no action.
			}
		}

	case Fetching:
		if ev.Kind == EventSegment {
			m.actions.AdvancePipeliner()
			m.notifyLocked()
		}
	}
}

func (m *Machine) notifyLocked() {
	if m.actions != nil {
		m.actions.OnStateChange(m.state)
	}
}
