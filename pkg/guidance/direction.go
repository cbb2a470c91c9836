// Package guidance turns a tracked region's geometry into a discretized
// spoken directive: a horizontal bucket with hysteresis and a proximity
// band from depth or, when no estimator is deployed, box area.
package guidance

import (
	"fmt"
	"log/slog"

	"github.com/wheredamilk/go-wheredamilk/pkg/vision"
)

// Bucket is the horizontal third of the frame the target sits in.
type Bucket int

const (
	BucketLeft Bucket = iota
	BucketCenter
	BucketRight
)

// String returns the bucket name.
func (b Bucket) String() string {
	switch b {
	case BucketLeft:
		return "left"
	case BucketRight:
		return "right"
	default:
		return "center"
	}
}

// Proximity is the discretized distance band of the target.
type Proximity int

const (
	ProximityUnknown Proximity = iota
	ProximityNear
	ProximityMid
	ProximityFar
)

// String returns the proximity band name.
func (p Proximity) String() string {
	switch p {
	case ProximityNear:
		return "near"
	case ProximityMid:
		return "mid"
	case ProximityFar:
		return "far"
	default:
		return "unknown"
	}
}

// Signal is one emitted directive. Changed is true only when bucket or
// proximity differs from the previously emitted signal, so per-frame
// jitter never re-triggers speech.
type Signal struct {
	Bucket    Bucket
	Proximity Proximity
	Changed   bool
}

// Config holds the tunable fusion parameters.
type Config struct {
	// HysteresisFraction is how far past a zone boundary the box center
	// must travel before the bucket switches, as a fraction of frame
	// width. Suppresses flicker at zone edges.
	HysteresisFraction float64

	// Depth band thresholds over the estimator's normalized [0,1] output
	// (smaller = closer): near below DepthNear, far above DepthFar.
	DepthNear float64
	DepthFar  float64

	// Area band thresholds as a fraction of frame area, used when no
	// depth estimator is available. Deliberately coarse and wide since
	// box size is a weak distance proxy: near above AreaNear, far below
	// AreaFar.
	AreaNear float64
	AreaFar  float64
}

// DefaultConfig returns the recommended fusion parameters.
func DefaultConfig() Config {
	return Config{
		HysteresisFraction: 0.05,
		DepthNear:          0.33,
		DepthFar:           0.66,
		AreaNear:           0.15,
		AreaFar:            0.02,
	}
}

// Fuser derives directives from tracked boxes. Whether depth is used is
// decided at construction, once per session, so proximity never flaps
// between depth and area mid-track. Not goroutine-safe: frame context only.
type Fuser struct {
	cfg      Config
	useDepth bool
	logger   *slog.Logger

	bucket     Bucket // current hysteresis state
	hasBucket  bool
	lastSignal Signal
	hasEmitted bool
}

// New creates a fuser. useDepth should come from the depth estimator's
// one-time capability probe.
func New(cfg Config, useDepth bool, logger *slog.Logger) *Fuser {
	return &Fuser{
		cfg:      cfg,
		useDepth: useDepth,
		logger:   logger.With("component", "guidance"),
	}
}

// Reset forgets the emission history, for a fresh FIND session.
func (f *Fuser) Reset() {
	f.hasBucket = false
	f.hasEmitted = false
}

// Observe fuses one frame's tracked box into a Signal. depth is consumed
// only when the session uses depth and hasDepth is true; otherwise the
// area fallback applies.
func (f *Fuser) Observe(box vision.Box, frameW, frameH int, depth float64, hasDepth bool) Signal {
	sig := Signal{
		Bucket:    f.fuseBucket(box, frameW),
		Proximity: f.fuseProximity(box, frameW, frameH, depth, hasDepth),
	}

	if !f.hasEmitted || sig.Bucket != f.lastSignal.Bucket || sig.Proximity != f.lastSignal.Proximity {
		sig.Changed = true
		f.logger.Debug("directive changed",
			"bucket", sig.Bucket.String(),
			"proximity", sig.Proximity.String(),
		)
	}

	f.lastSignal = sig
	f.hasEmitted = true
	return sig
}

// fuseBucket places the box center into a third of the frame, requiring
// the center to cross the new zone's boundary by the hysteresis margin
// before leaving the current bucket.
func (f *Fuser) fuseBucket(box vision.Box, frameW int) Bucket {
	if frameW <= 0 {
		return BucketCenter
	}

	cx := float64(box.CenterX())
	left := float64(frameW) / 3
	right := 2 * float64(frameW) / 3
	margin := f.cfg.HysteresisFraction * float64(frameW)

	if !f.hasBucket {
		f.bucket = rawBucket(cx, left, right)
		f.hasBucket = true
		return f.bucket
	}

	switch f.bucket {
	case BucketLeft:
		if cx > right+margin {
			f.bucket = BucketRight
		} else if cx > left+margin {
			f.bucket = BucketCenter
		}
	case BucketRight:
		if cx < left-margin {
			f.bucket = BucketLeft
		} else if cx < right-margin {
			f.bucket = BucketCenter
		}
	default: // center
		if cx < left-margin {
			f.bucket = BucketLeft
		} else if cx > right+margin {
			f.bucket = BucketRight
		}
	}
	return f.bucket
}

func rawBucket(cx, left, right float64) Bucket {
	switch {
	case cx < left:
		return BucketLeft
	case cx > right:
		return BucketRight
	default:
		return BucketCenter
	}
}

func (f *Fuser) fuseProximity(box vision.Box, frameW, frameH int, depth float64, hasDepth bool) Proximity {
	if f.useDepth {
		if !hasDepth {
			return ProximityUnknown
		}
		switch {
		case depth < f.cfg.DepthNear:
			return ProximityNear
		case depth > f.cfg.DepthFar:
			return ProximityFar
		default:
			return ProximityMid
		}
	}

	frameArea := frameW * frameH
	if frameArea <= 0 || box.Area() <= 0 {
		return ProximityUnknown
	}
	frac := float64(box.Area()) / float64(frameArea)
	switch {
	case frac > f.cfg.AreaNear:
		return ProximityNear
	case frac < f.cfg.AreaFar:
		return ProximityFar
	default:
		return ProximityMid
	}
}

// Phrase renders a signal as the spoken directive for a query.
func Phrase(query string, sig Signal) string {
	var side string
	switch sig.Bucket {
	case BucketLeft:
		side = "to your left"
	case BucketRight:
		side = "to your right"
	default:
		side = "straight ahead"
	}

	switch sig.Proximity {
	case ProximityNear:
		return fmt.Sprintf("%s is %s. Stop, it's right in front of you", query, side)
	case ProximityMid:
		return fmt.Sprintf("%s is %s. Almost there", query, side)
	case ProximityFar:
		return fmt.Sprintf("%s is %s. Keep going", query, side)
	default:
		return fmt.Sprintf("%s is %s", query, side)
	}
}
