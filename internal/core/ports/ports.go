// Package ports declares the narrow external-collaborator interfaces the
// core depends on: the NDN network face, the signer,
// and the codec. The core never assumes a concrete transport, signing
// primitive, or media codec — it only calls these interfaces.
package ports

import (
	"context"
	"time"

	"ndnrtc/internal/core/wire"
)

// Selectors mirror NDN Interest selectors relevant to this engine:
// MustBeFresh and a rightmost-child preference for discovery.
type Selectors struct {
	MustBeFresh        bool
	ChildSelectorRight bool // prefer rightmost (most recent) child
	ExactName          bool // if true, name must match exactly (no selector-based discovery)
}

// OnData is invoked when a matching Data packet arrives for an Interest.
type OnData func(interestName string, seg wire.Segment, rawName string)

// OnTimeout is invoked when an Interest's lifetime elapses with no Data.
type OnTimeout func(interestName string)

// OnNack is invoked when the network explicitly refuses an Interest.
type OnNack func(interestName string, reason string)

// OnInterest is invoked on the producer side when an Interest arrives for
// a registered prefix.
type OnInterest func(interestName string, selectors Selectors)

// NetworkFace is the NDN transport collaborator. The core assumes
// Interest/Data pairing, at-most-one Data per Interest, digest-based
// content identity, and the selector semantics in Selectors — nothing
// about the underlying wire protocol.
type NetworkFace interface {
	ExpressInterest(ctx context.Context, name string, selectors Selectors, lifetime time.Duration, onData OnData, onTimeout OnTimeout, onNack OnNack) error
	RegisterPrefix(ctx context.Context, name string, onInterest OnInterest) error
	PutData(ctx context.Context, name string, seg wire.Segment) error
}

// Signer signs outgoing data and verifies incoming data. May be
// synchronous or completion-based; the core treats both uniformly via
// these blocking-style methods run on the caller's executor.
type Signer interface {
	Sign(ctx context.Context, identity string, data []byte) ([]byte, error)
	VerifyData(ctx context.Context, data []byte, signature []byte, identity string) (ok bool, failReason string, err error)
}

// FrameKind distinguishes key from delta at the codec boundary.
type FrameKind int

const (
	FrameKey FrameKind = iota
	FrameDelta
)

// EncodedFrame is what the codec collaborator hands back after encoding,
// or accepts before decoding.
type EncodedFrame struct {
	Kind             FrameKind
	Width, Height    int
	PresentationTsMs int64
	Payload          []byte
	Dropped          bool
}

// RawImage is a raw captured frame awaiting encoding, in the codec's
// native pixel format (e.g. I420).
type RawImage struct {
	Width, Height int
	PixelFormat   string
	Data          []byte
	CapturedAtMs  int64
}

// Codec is the encode/decode collaborator. The core never interprets
// pixel data itself.
type Codec interface {
	Encode(ctx context.Context, img RawImage, forceKey bool) (EncodedFrame, error)
	Decode(ctx context.Context, frame EncodedFrame) (RawImage, error)
}
