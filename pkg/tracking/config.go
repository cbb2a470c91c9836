package tracking

// Config holds the tunable parameters for single-target tracking.
// The values are defaults, not contract: tune per camera and detector.
type Config struct {
	// IoUThreshold is the minimum overlap for associating a detection
	// with the locked box.
	IoUThreshold float64

	// GraceFrames is how many consecutive missed frames the tracker
	// coasts on the last known box before declaring the target lost.
	// Frame-counted rather than wall-clock so it adapts to capture rate.
	GraceFrames int

	// TieEpsilon treats IoU scores within this margin as ties, resolved
	// by label match and then detector confidence.
	TieEpsilon float64
}

// DefaultConfig returns the recommended tracking parameters: association
// at 0.3 IoU and roughly two seconds of occlusion tolerance at the usual
// processed-frame cadence.
func DefaultConfig() Config {
	return Config{
		IoUThreshold: 0.3,
		GraceFrames:  6,
		TieEpsilon:   0.05,
	}
}

// PatientConfig tolerates longer occlusions, for cluttered scenes where
// the target is frequently blocked by a reaching hand.
func PatientConfig() Config {
	cfg := DefaultConfig()
	cfg.GraceFrames = 10
	return cfg
}

// StrictConfig demands tighter overlap and gives up sooner, for detectors
// with jittery boxes where loose association drifts onto neighbors.
func StrictConfig() Config {
	cfg := DefaultConfig()
	cfg.IoUThreshold = 0.5
	cfg.GraceFrames = 4
	return cfg
}

// Preset returns a named config, falling back to DefaultConfig.
func Preset(name string) Config {
	switch name {
	case "patient":
		return PatientConfig()
	case "strict":
		return StrictConfig()
	default:
		return DefaultConfig()
	}
}
