// Package tracking maintains a lock on a single detected region across
// frames using IoU association, coasting through short occlusions.
package tracking

import (
	"log/slog"

	"github.com/wheredamilk/go-wheredamilk/pkg/vision"
)

// State of the tracker.
type State int

const (
	// StateSearching means no target is locked.
	StateSearching State = iota
	// StateLocked means the tracker is following one region.
	StateLocked
)

// String returns the state name.
func (s State) String() string {
	if s == StateLocked {
		return "locked"
	}
	return "searching"
}

// Event reports what happened during an Update.
type Event int

const (
	// EventNone: nothing notable (updated, coasting, or not locked).
	EventNone Event = iota
	// EventLost: the occlusion grace ran out; the tracker dropped to
	// searching and the caller should re-run the matcher.
	EventLost
)

// Tracker follows one target across frames. It is not goroutine-safe:
// all methods must be called from the frame-processing context.
type Tracker struct {
	cfg    Config
	logger *slog.Logger

	state  State
	box    vision.Box
	label  string
	query  string
	misses int
}

// New creates a tracker in the searching state.
func New(cfg Config, logger *slog.Logger) *Tracker {
	return &Tracker{
		cfg:    cfg,
		logger: logger.With("component", "tracking"),
	}
}

// State returns the current tracker state.
func (t *Tracker) State() State { return t.state }

// Box returns the last known bounding box of the target.
func (t *Tracker) Box() vision.Box { return t.box }

// Query returns the spoken query the lock was acquired for.
func (t *Tracker) Query() string { return t.query }

// Misses returns the current consecutive-miss count.
func (t *Tracker) Misses() int { return t.misses }

// Lock commits the tracker to the given detection.
func (t *Tracker) Lock(det vision.Detection, query string) {
	t.state = StateLocked
	t.box = det.Box
	t.label = det.Label
	t.query = query
	t.misses = 0

	t.logger.Info("target locked",
		"query", query,
		"label", det.Label,
		"confidence", det.Confidence,
	)
}

// Reset drops the lock and clears all tracked state.
func (t *Tracker) Reset() {
	if t.state == StateLocked {
		t.logger.Info("tracker reset", "query", t.query)
	}
	*t = Tracker{cfg: t.cfg, logger: t.logger}
}

// Update associates this frame's detections with the locked box. While no
// detection clears the IoU threshold the tracker coasts on the last known
// box; when the grace limit is exceeded it transitions to searching and
// returns EventLost.
func (t *Tracker) Update(dets []vision.Detection) Event {
	if t.state != StateLocked {
		return EventNone
	}

	if best := t.associate(dets); best != nil {
		t.box = best.Box
		t.misses = 0
		return EventNone
	}

	t.misses++
	if t.misses <= t.cfg.GraceFrames {
		// Coasting: keep reporting the last known box.
		return EventNone
	}

	t.logger.Warn("target lost",
		"query", t.query,
		"missed_frames", t.misses,
	)
	t.state = StateSearching
	t.misses = 0
	return EventLost
}

// associate picks the detection with the highest IoU against the locked
// box. Scores within TieEpsilon are ties, resolved by preferring the
// detection whose label matches the locked label, then higher confidence.
func (t *Tracker) associate(dets []vision.Detection) *vision.Detection {
	var best *vision.Detection
	bestIoU := 0.0

	for i := range dets {
		iou := t.box.IoU(dets[i].Box)
		if iou < t.cfg.IoUThreshold {
			continue
		}

		switch {
		case best == nil, iou > bestIoU+t.cfg.TieEpsilon:
			best = &dets[i]
			bestIoU = iou
		case iou >= bestIoU-t.cfg.TieEpsilon:
			if t.prefer(&dets[i], best) {
				best = &dets[i]
				if iou > bestIoU {
					bestIoU = iou
				}
			}
		}
	}
	return best
}

// prefer reports whether candidate should win a tie against current.
func (t *Tracker) prefer(candidate, current *vision.Detection) bool {
	candMatch := candidate.Label == t.label
	currMatch := current.Label == t.label
	if candMatch != currMatch {
		return candMatch
	}
	return candidate.Confidence > current.Confidence
}
