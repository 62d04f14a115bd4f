// Package intent classifies free-form utterances into briefing commands.
// Detection is a pure table lookup over priority-ordered phrase patterns;
// there is no I/O and no model round trip, which is what lets the shadow
// path react to "pause" faster than the reasoning loop can.
package intent

import (
	"strings"
	"sync"
)

// Type identifies a briefing command.
type Type string

const (
	Pause    Type = "PAUSE"
	Resume   Type = "RESUME"
	Skip     Type = "SKIP"
	GoBack   Type = "GO_BACK"
	GoDeeper Type = "GO_DEEPER"
	Next     Type = "NEXT"
	Repeat   Type = "REPEAT"
	Stop     Type = "STOP"
	Unknown  Type = "UNKNOWN"
)

// Pattern maps a set of trigger phrases to an intent with a confidence.
type Pattern struct {
	Type       Type
	Phrases    []string
	Confidence float64
}

// Detection is the outcome of classifying one utterance.
type Detection struct {
	Type          Type
	Confidence    float64
	MatchedPhrase string
}

// NoMatch is the detection returned for unrecognized utterances.
var NoMatch = Detection{Type: Unknown, Confidence: 0}

// Detector holds the priority-ordered pattern table. Earlier entries win,
// which is how "next topic" resolves to SKIP before "next" can claim it
// for NEXT. Safe for concurrent use.
type Detector struct {
	mu       sync.RWMutex
	patterns []Pattern
}

// NewDetector builds a detector seeded with the built-in command table.
// Custom patterns are appended after the built-ins, in the order given.
func NewDetector(custom ...Pattern) *Detector {
	patterns := make([]Pattern, 0, len(builtinPatterns)+len(custom))
	patterns = append(patterns, builtinPatterns...)
	patterns = append(patterns, custom...)
	return &Detector{patterns: patterns}
}

// Detect classifies text against the pattern table. Matching is
// case-insensitive and respects word boundaries, so "context" never
// triggers NEXT. No match yields NoMatch.
func (d *Detector) Detect(text string) Detection {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return NoMatch
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, pattern := range d.patterns {
		for _, phrase := range pattern.Phrases {
			if containsPhrase(normalized, phrase) {
				return Detection{
					Type:          pattern.Type,
					Confidence:    pattern.Confidence,
					MatchedPhrase: phrase,
				}
			}
		}
	}
	return NoMatch
}

// AddPattern registers an additional pattern at the end of the table.
// Phrases are normalized to lower case.
func (d *Detector) AddPattern(p Pattern) {
	normalized := make([]string, 0, len(p.Phrases))
	for _, phrase := range p.Phrases {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase == "" {
			continue
		}
		normalized = append(normalized, phrase)
	}
	p.Phrases = normalized

	d.mu.Lock()
	defer d.mu.Unlock()
	d.patterns = append(d.patterns, p)
}

// Patterns returns a copy of the active table in priority order.
func (d *Detector) Patterns() []Pattern {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Pattern, len(d.patterns))
	copy(out, d.patterns)
	return out
}

// containsPhrase reports whether phrase occurs in text on word boundaries.
func containsPhrase(text, phrase string) bool {
	for offset := 0; offset <= len(text)-len(phrase); {
		i := strings.Index(text[offset:], phrase)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(phrase)
		if (start == 0 || !isWordChar(text[start-1])) &&
			(end == len(text) || !isWordChar(text[end])) {
			return true
		}
		offset = start + 1
	}
	return false
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '\''
}
