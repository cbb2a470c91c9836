package control

import (
	"errors"
	"strings"
)

// ErrInvalidCommand marks a command that cannot be acted on, such as a
// find with no object name. Recovered locally with a spoken
// clarification; never fatal.
var ErrInvalidCommand = errors.New("invalid command")

// Intent identifies what the user asked for.
type Intent int

const (
	IntentNone Intent = iota
	IntentFind
	IntentWhat
	IntentRead
	IntentDetails
	IntentStop
	IntentQuit
)

func (i Intent) String() string {
	switch i {
	case IntentFind:
		return "find"
	case IntentWhat:
		return "what"
	case IntentRead:
		return "read"
	case IntentDetails:
		return "details"
	case IntentStop:
		return "stop"
	case IntentQuit:
		return "quit"
	default:
		return "none"
	}
}

// Terminal reports whether the intent ends the current activity. Terminal
// commands preempt queued non-terminal ones.
func (i Intent) Terminal() bool {
	return i == IntentStop || i == IntentQuit
}

// Command is one user instruction. Argument is the object name for find,
// empty otherwise.
type Command struct {
	Intent   Intent
	Argument string
}

// findPrefixes start a find command; the remainder of the phrase is the
// object name.
var findPrefixes = []string{
	"find ",
	"look for ",
	"where is ",
	"where's ",
	"search for ",
}

var phraseIntents = map[string]Intent{
	"what is this":      IntentWhat,
	"what's this":       IntentWhat,
	"what is that":      IntentWhat,
	"what am i holding": IntentWhat,
	"read":              IntentRead,
	"read this":         IntentRead,
	"read it":           IntentRead,
	"read the label":    IntentRead,
	"details":           IntentDetails,
	"tell me more":      IntentDetails,
	"describe it":       IntentDetails,
	"stop":              IntentStop,
	"cancel":            IntentStop,
	"never mind":        IntentStop,
	"quit":              IntentQuit,
	"exit":              IntentQuit,
	"shut down":         IntentQuit,
	"goodbye":           IntentQuit,
}

// ParseTranscript maps a recognized phrase to a Command. Transcripts that
// match no known phrase return ok=false and are ignored by the listener.
func ParseTranscript(text string) (Command, bool) {
	phrase := normalizePhrase(text)
	if phrase == "" {
		return Command{}, false
	}

	if intent, ok := phraseIntents[phrase]; ok {
		return Command{Intent: intent}, true
	}

	for _, prefix := range findPrefixes {
		if strings.HasPrefix(phrase, prefix) {
			arg := stripArticle(strings.TrimSpace(strings.TrimPrefix(phrase, prefix)))
			// "find" with nothing after it is still a find; the
			// controller answers with a clarification.
			return Command{Intent: IntentFind, Argument: arg}, true
		}
	}
	if phrase == "find" {
		return Command{Intent: IntentFind}, true
	}

	return Command{}, false
}

func normalizePhrase(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.Trim(s, ".!?,")
	return strings.Join(strings.Fields(s), " ")
}

func stripArticle(s string) string {
	for _, art := range []string{"the ", "a ", "an ", "my ", "some "} {
		if strings.HasPrefix(s, art) {
			return strings.TrimSpace(strings.TrimPrefix(s, art))
		}
	}
	return s
}
