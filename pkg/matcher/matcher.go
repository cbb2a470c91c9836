// Package matcher resolves a spoken query against one frame's detections.
//
// Matching runs in two stages: class labels first (cheap, uses the
// detector's own confidence), then OCR text containment only when no class
// match is confident enough. An empty result is a normal outcome meaning
// "not found this frame", never an error.
package matcher

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/wheredamilk/go-wheredamilk/pkg/vision"
)

// MatchKind says which stage produced a candidate.
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchClass
	MatchText
)

// String returns the match kind name.
func (k MatchKind) String() string {
	switch k {
	case MatchClass:
		return "class"
	case MatchText:
		return "text"
	default:
		return "none"
	}
}

// Candidate is a detection annotated with its match score.
type Candidate struct {
	Detection vision.Detection
	Score     float64
	Kind      MatchKind
}

// DefaultClassThreshold gates stage 1: a class match below this detector
// confidence does not suppress the OCR stage.
const DefaultClassThreshold = 0.5

// synonyms maps a canonical spoken term to detector class labels that
// should count as the same thing. Both directions are checked.
var synonyms = map[string][]string{
	"soda":      {"coca-cola", "coke", "pepsi", "sprite"},
	"pop":       {"coca-cola", "coke", "pepsi", "sprite"},
	"phone":     {"cell phone", "mobile phone"},
	"mug":       {"cup"},
	"laptop":    {"computer", "notebook"},
	"remote":    {"remote control"},
	"glasses":   {"eyeglasses", "sunglasses"},
	"keys":      {"key"},
	"container": {"bowl", "box", "jar"},
}

// Matcher scores detections against a text query.
type Matcher struct {
	classThreshold float64
	logger         *slog.Logger
}

// New creates a matcher with the default class-confidence threshold.
func New(logger *slog.Logger) *Matcher {
	return &Matcher{
		classThreshold: DefaultClassThreshold,
		logger:         logger.With("component", "matcher"),
	}
}

// WithClassThreshold overrides the stage-1 confidence gate.
func (m *Matcher) WithClassThreshold(threshold float64) *Matcher {
	m.classThreshold = threshold
	return m
}

// Match resolves query against the frame's detections and returns ranked
// candidates, best first. Ties on score prefer the larger bounding box
// (closer objects read better and are easier to guide toward).
func (m *Matcher) Match(dets []vision.Detection, query string) []Candidate {
	query = normalize(query)
	if query == "" || len(dets) == 0 {
		return nil
	}

	classCands := m.matchClasses(dets, query)

	confident := false
	for _, c := range classCands {
		if c.Score >= m.classThreshold {
			confident = true
			break
		}
	}

	cands := classCands
	if !confident {
		cands = append(cands, m.matchTexts(dets, query)...)
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return cands[i].Detection.Box.Area() > cands[j].Detection.Box.Area()
	})

	if len(cands) > 0 {
		m.logger.Debug("query resolved",
			"query", query,
			"candidates", len(cands),
			"best_kind", cands[0].Kind.String(),
			"best_score", cands[0].Score,
		)
	}
	return cands
}

// matchClasses runs stage 1: label equivalence via the synonym set.
func (m *Matcher) matchClasses(dets []vision.Detection, query string) []Candidate {
	var cands []Candidate
	for _, d := range dets {
		if classEquivalent(normalize(d.Label), query) {
			cands = append(cands, Candidate{Detection: d, Score: d.Confidence, Kind: MatchClass})
		}
	}
	return cands
}

// matchTexts runs stage 2: OCR substring containment. The score is the OCR
// confidence scaled by containment specificity, so a query that covers most
// of the recognized text beats one buried in a long label.
func (m *Matcher) matchTexts(dets []vision.Detection, query string) []Candidate {
	var cands []Candidate
	for _, d := range dets {
		text := normalize(d.Text)
		if text == "" || !strings.Contains(text, query) {
			continue
		}
		specificity := float64(len(query)) / float64(len(text))
		cands = append(cands, Candidate{
			Detection: d,
			Score:     d.TextConfidence * specificity,
			Kind:      MatchText,
		})
	}
	return cands
}

// classEquivalent reports whether a detector label and a query name the
// same object: direct containment either way, or via the synonym table.
func classEquivalent(label, query string) bool {
	if label == "" || query == "" {
		return false
	}
	if strings.Contains(label, query) || strings.Contains(query, label) {
		return true
	}
	for _, alias := range synonyms[query] {
		if strings.Contains(label, alias) || strings.Contains(alias, label) {
			return true
		}
	}
	for _, alias := range synonyms[label] {
		if strings.Contains(query, alias) || strings.Contains(alias, query) {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
