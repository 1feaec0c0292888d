package concept

import (
	"regexp"
	"strings"
)

// DefaultOverlapThreshold is the fraction of a multi-word concept's
// significant words that must appear in a text for a fuzzy match.
const DefaultOverlapThreshold = 0.6

// connectives are short glue words ignored when computing word overlap.
var connectives = map[string]bool{
	"the": true, "and": true, "for": true, "with": true,
}

// Matcher decides whether a single concept is mentioned in a text.
// Both arguments are lowercased by the Detector before the call.
// Implementations must be safe for concurrent use.
type Matcher interface {
	Matches(text, concept string) bool
}

// Detector finds which known concepts a free-text question or answer
// mentions. The matching strategy is pluggable so stronger matchers
// (stemming, embeddings) can be substituted without touching callers.
type Detector struct {
	matcher Matcher
}

// NewDetector creates a detector with the default matching strategy:
// exact substring, then significant-word overlap for multi-word concepts,
// then whole-word boundary for single words.
func NewDetector() *Detector {
	return &Detector{matcher: &DefaultMatcher{Threshold: DefaultOverlapThreshold}}
}

// NewDetectorWith creates a detector using a custom matcher.
func NewDetectorWith(m Matcher) *Detector {
	return &Detector{matcher: m}
}

// Detect returns the subset of known concepts mentioned in text,
// preserving the order of known and never repeating a concept.
func (d *Detector) Detect(text string, known []string) []string {
	textLower := strings.ToLower(text)

	var detected []string
	seen := make(map[string]bool, len(known))
	for _, c := range known {
		if seen[c] {
			continue
		}
		seen[c] = true
		if d.matcher.Matches(textLower, strings.ToLower(c)) {
			detected = append(detected, c)
		}
	}
	return detected
}

// DefaultMatcher implements the layered matching policy tolerant of
// paraphrase and partial mention in student text.
type DefaultMatcher struct {
	// Threshold is the minimum significant-word overlap ratio for
	// multi-word concepts.
	Threshold float64
}

// Matches implements Matcher.
func (m *DefaultMatcher) Matches(text, concept string) bool {
	// Exact substring is the best case.
	if strings.Contains(text, concept) {
		return true
	}

	if strings.Contains(concept, " ") {
		return m.overlapMatch(text, concept)
	}
	return wholeWordMatch(text, concept)
}

// overlapMatch checks if enough of a multi-word concept's significant
// words appear anywhere in the text.
func (m *DefaultMatcher) overlapMatch(text, concept string) bool {
	var significant []string
	for _, w := range strings.Fields(concept) {
		if len(w) <= 3 || connectives[w] {
			continue
		}
		significant = append(significant, w)
	}
	if len(significant) == 0 {
		return false
	}

	matches := 0
	for _, w := range significant {
		if strings.Contains(text, w) {
			matches++
		}
	}
	return float64(matches)/float64(len(significant)) >= m.Threshold
}

// wholeWordMatch requires a word-boundary match so a single-word concept
// does not match fragments of longer words.
func wholeWordMatch(text, word string) bool {
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(word) + `\b`)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}
