// Package vision defines the data model shared by the detection, OCR and
// depth collaborators, and the interfaces the core consumes them through.
//
// The engines themselves (YOLO, EasyOCR, MiDaS, ...) live in sidecar
// processes; this package only speaks their boundary shapes. Detections are
// ephemeral: produced fresh each frame and owned by that frame's processing
// cycle.
package vision

import "context"

// Box is an axis-aligned bounding box in frame-pixel coordinates.
type Box struct {
	X, Y, W, H int
}

// Area returns the box area in pixels.
func (b Box) Area() int {
	return b.W * b.H
}

// CenterX returns the horizontal center of the box.
func (b Box) CenterX() int {
	return b.X + b.W/2
}

// IoU returns the Intersection-over-Union overlap ratio with another box.
// Returns 0 when the boxes do not overlap or either is degenerate.
func (b Box) IoU(o Box) float64 {
	ix1 := max(b.X, o.X)
	iy1 := max(b.Y, o.Y)
	ix2 := min(b.X+b.W, o.X+o.W)
	iy2 := min(b.Y+b.H, o.Y+o.H)

	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}

	inter := (ix2 - ix1) * (iy2 - iy1)
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Detection is one detected region in a frame, optionally enriched with
// OCR text and a depth estimate. Depth is normalized to [0,1] where
// smaller means closer.
type Detection struct {
	Label          string
	Confidence     float64
	Box            Box
	Text           string
	TextConfidence float64
	Depth          float64
	HasDepth       bool
}

// Frame is one captured camera frame.
type Frame struct {
	JPEG   []byte
	Width  int
	Height int
}

// FrameSource captures frames from the camera wrapper.
type FrameSource interface {
	Capture(ctx context.Context) (Frame, error)
}

// Detector finds objects in a frame. Best effort, possibly empty.
type Detector interface {
	Detect(ctx context.Context, frame Frame) ([]Detection, error)
}

// Reader runs OCR on a cropped region of a frame.
// Returns empty text (not an error) when no text is found.
type Reader interface {
	ReadRegion(ctx context.Context, frame Frame, box Box) (text string, confidence float64, err error)
}

// DepthEstimator estimates the depth of a region of a frame.
// The estimator may be entirely absent; callers must check Available once
// per session and fall back to box-area proximity when it reports false.
type DepthEstimator interface {
	Available() bool
	BoxDepth(ctx context.Context, frame Frame, box Box) (float64, error)
}

// Largest returns the detection with the biggest box, or nil when empty.
func Largest(dets []Detection) *Detection {
	var best *Detection
	for i := range dets {
		if best == nil || dets[i].Box.Area() > best.Box.Area() {
			best = &dets[i]
		}
	}
	return best
}

// LargestExcluding returns the largest detection whose label is not in the
// excluded set. Falls back to the largest overall when everything is
// excluded, so "what is this" still answers when only a person is visible.
func LargestExcluding(dets []Detection, exclude ...string) *Detection {
	skip := make(map[string]bool, len(exclude))
	for _, label := range exclude {
		skip[label] = true
	}

	var best *Detection
	for i := range dets {
		if skip[dets[i].Label] {
			continue
		}
		if best == nil || dets[i].Box.Area() > best.Box.Area() {
			best = &dets[i]
		}
	}
	if best == nil {
		return Largest(dets)
	}
	return best
}
