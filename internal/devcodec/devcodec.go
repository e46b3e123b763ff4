// Package devcodec is a minimal ports.Codec stand-in for cmd/producer:
// the media codec is an external collaborator (the core never
// interprets pixel data), so no real encoder/decoder ships
// with this engine. This codec passes the raw image bytes through
// unchanged, assigning frame kind by the producer's forceKey signal, just
// enough to exercise slicing, FEC, signing and publishing end to end
// without a real video toolchain.
package devcodec

import (
	"context"

	"ndnrtc/internal/core/ports"
)

// Codec is a passthrough ports.Codec: Encode wraps the raw image bytes
// into an EncodedFrame with no compression, Decode does the reverse.
type Codec struct{}

// New creates a passthrough Codec.
func New() *Codec {
	return &Codec{}
}

// Encode wraps img.Data as the encoded payload. Never drops a frame.
func (c *Codec) Encode(ctx context.Context, img ports.RawImage, forceKey bool) (ports.EncodedFrame, error) {
	kind := ports.FrameDelta
	if forceKey {
		kind = ports.FrameKey
	}
	return ports.EncodedFrame{
		Kind:             kind,
		Width:            img.Width,
		Height:           img.Height,
		PresentationTsMs: img.CapturedAtMs,
		Payload:          img.Data,
	}, nil
}

// Decode unwraps frame.Payload back into a RawImage.
func (c *Codec) Decode(ctx context.Context, frame ports.EncodedFrame) (ports.RawImage, error) {
	return ports.RawImage{
		Width:        frame.Width,
		Height:       frame.Height,
		PixelFormat:  "raw",
		Data:         frame.Payload,
		CapturedAtMs: frame.PresentationTsMs,
	}, nil
}
