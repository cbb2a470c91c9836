package vision

import (
	"context"
	"log/slog"
	"sync"
)

// Collaborator names used for failure accounting.
const (
	CollaboratorDetector = "detector"
	CollaboratorOCR      = "ocr"
	CollaboratorDepth    = "depth"
)

// FaultThreshold is how many consecutive failures of one collaborator are
// tolerated before the boundary reports it as down.
const FaultThreshold = 3

// Boundary wraps the external vision collaborators so a single bad call
// never reaches the frame loop as an error. Failures are logged and
// converted to "no data this frame"; consecutive failures per collaborator
// are counted so the controller can bail out of the active mode when a
// collaborator is genuinely down.
type Boundary struct {
	detector Detector
	reader   Reader
	depth    DepthEstimator
	logger   *slog.Logger

	mu      sync.Mutex
	streaks map[string]int

	// Depth capability is probed once per session so proximity reporting
	// does not flap between depth and area mid-track.
	depthProbed    bool
	depthAvailable bool
}

// NewBoundary creates a guarded boundary around the vision collaborators.
// reader must be non-nil; depth may be nil when no estimator is deployed.
func NewBoundary(detector Detector, reader Reader, depth DepthEstimator, logger *slog.Logger) *Boundary {
	return &Boundary{
		detector: detector,
		reader:   reader,
		depth:    depth,
		logger:   logger.With("component", "vision.boundary"),
		streaks:  make(map[string]int),
	}
}

// Detect runs the detector, returning an empty slice on failure.
func (b *Boundary) Detect(ctx context.Context, frame Frame) []Detection {
	dets, err := b.detector.Detect(ctx, frame)
	if err != nil {
		b.fail(CollaboratorDetector, err)
		return nil
	}
	b.ok(CollaboratorDetector)
	return dets
}

// ReadRegion runs OCR on a region, returning ("", 0) on failure.
func (b *Boundary) ReadRegion(ctx context.Context, frame Frame, box Box) (string, float64) {
	text, conf, err := b.reader.ReadRegion(ctx, frame, box)
	if err != nil {
		b.fail(CollaboratorOCR, err)
		return "", 0
	}
	b.ok(CollaboratorOCR)
	return text, conf
}

// DepthAvailable reports whether depth estimation can be used this session.
// The first call decides; later calls return the same answer.
func (b *Boundary) DepthAvailable() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.depthProbed {
		b.depthProbed = true
		b.depthAvailable = b.depth != nil && b.depth.Available()
		b.logger.Info("depth capability decided", "available", b.depthAvailable)
	}
	return b.depthAvailable
}

// BoxDepth estimates region depth. The bool result is false when depth is
// unavailable or the call failed.
func (b *Boundary) BoxDepth(ctx context.Context, frame Frame, box Box) (float64, bool) {
	if !b.DepthAvailable() {
		return 0, false
	}
	d, err := b.depth.BoxDepth(ctx, frame, box)
	if err != nil {
		b.fail(CollaboratorDepth, err)
		return 0, false
	}
	b.ok(CollaboratorDepth)
	return d, true
}

// Down returns the name of a collaborator whose consecutive-failure streak
// reached FaultThreshold, or "" when all are healthy. Reporting a
// collaborator resets its streak so the notice fires once per outage.
func (b *Boundary) Down() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	for name, n := range b.streaks {
		if n >= FaultThreshold {
			b.streaks[name] = 0
			return name
		}
	}
	return ""
}

func (b *Boundary) fail(name string, err error) {
	b.mu.Lock()
	b.streaks[name]++
	n := b.streaks[name]
	b.mu.Unlock()

	b.logger.Warn("collaborator call failed", "collaborator", name, "streak", n, "error", err)
}

func (b *Boundary) ok(name string) {
	b.mu.Lock()
	b.streaks[name] = 0
	b.mu.Unlock()
}
