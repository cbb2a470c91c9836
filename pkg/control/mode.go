package control

// Mode is the controller's top-level state. Exactly one mode is active
// at a time; transitions happen only on command events or one-shot
// completion.
type Mode int

const (
	ModeIdle Mode = iota
	ModeFind
	ModeWhat
	ModeRead
	ModeDetails
	// ModeShutdown is terminal; only quit reaches it.
	ModeShutdown
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeFind:
		return "find"
	case ModeWhat:
		return "what"
	case ModeRead:
		return "read"
	case ModeDetails:
		return "details"
	case ModeShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}
