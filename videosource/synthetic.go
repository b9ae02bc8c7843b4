package videosource

import (
	"context"
	"image"
	"image/color"
	"math"
	"time"

	"gocv.io/x/gocv"
)

const (
	syntheticWidth  = 640
	syntheticHeight = 480
	syntheticFPS    = 30
	discRadius      = 40
	caption         = "BIOSCOPEAI WEBRTC"
)

// syntheticTrack is the bundled test implementation of the Track
// contract: a 640x480 BGR frame at 30fps containing an oscillating
// green disc and a static caption, drawn with gocv exactly like the
// teacher's detection overlays (client/detection.go drew face boxes the
// same way, with gocv.Rectangle over a color.RGBA).
type syntheticTrack struct {
	start time.Time
	mat   gocv.Mat
}

// NewSyntheticFactory returns the default video-source factory: each
// call produces a fresh synthetic track, so every session gets its own
// independent oscillation phase.
func NewSyntheticFactory() Factory {
	return func() Track {
		return &syntheticTrack{
			start: time.Time{},
			mat:   gocv.NewMatWithSize(syntheticHeight, syntheticWidth, gocv.MatTypeCV8UC3),
		}
	}
}

func (t *syntheticTrack) Kind() string { return KindVideo }

func (t *syntheticTrack) NextFrame(ctx context.Context) (Frame, error) {
	if t.start.IsZero() {
		t.start = time.Now()
	}
	elapsed := time.Since(t.start)

	sec := elapsed.Seconds()
	cx := int((syntheticWidth / 2) + (syntheticWidth/4)*math.Sin(sec))
	cy := int((syntheticHeight / 2) + (syntheticHeight/4)*math.Cos(sec))

	t.mat.SetTo(gocv.NewScalar(0, 0, 0, 0))
	gocv.Circle(&t.mat, image.Pt(cx, cy), discRadius, color.RGBA{G: 255, A: 0}, -1)
	gocv.PutText(&t.mat, caption, image.Pt(20, 40), gocv.FontHersheySimplex, 0.8,
		color.RGBA{R: 255, G: 255, B: 255, A: 0}, 2)

	data := t.mat.ToBytes()
	frame := Frame{
		Data:      append([]byte(nil), data...),
		Timestamp: elapsed,
		Duration:  time.Second / syntheticFPS,
	}

	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-time.After(frame.Duration):
	}

	return frame, nil
}

// Close releases the underlying Mat. Not part of the Track contract
// (which has no lifecycle obligations beyond pacing/timestamping), but
// rtcsession calls it via an optional interface when the track supports
// it, to avoid leaking gocv's off-heap buffer.
func (t *syntheticTrack) Close() error {
	return t.mat.Close()
}
