// Package speech serializes and throttles spoken output. Multiple
// producers enqueue utterances; a single consumer goroutine synthesizes
// and plays them one at a time, so the at-most-one-speaking invariant is
// structural rather than policed.
package speech

import "github.com/google/uuid"

// Priority of an utterance.
type Priority int

const (
	// PriorityNormal utterances queue FIFO and are subject to anti-repeat
	// and per-source throttling.
	PriorityNormal Priority = iota
	// PriorityInterrupt utterances cancel the currently playing normal
	// utterance and play next.
	PriorityInterrupt
)

// String returns the priority name.
func (p Priority) String() string {
	if p == PriorityInterrupt {
		return "interrupt"
	}
	return "normal"
}

// Utterance is one piece of text somebody wants spoken.
type Utterance struct {
	ID       uuid.UUID
	Text     string
	Priority Priority
	Source   string

	// Bypass exempts the utterance from the per-source minimum interval.
	// Set for direction signals whose bucket or proximity actually
	// changed: state changes are never suppressed, only repetition is.
	Bypass bool
}

// Normal builds a normal-priority utterance.
func Normal(source, text string) Utterance {
	return Utterance{ID: uuid.New(), Text: text, Priority: PriorityNormal, Source: source}
}

// Interrupt builds an interrupt-priority utterance.
func Interrupt(source, text string) Utterance {
	return Utterance{ID: uuid.New(), Text: text, Priority: PriorityInterrupt, Source: source}
}
