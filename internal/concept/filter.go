package concept

import (
	"strings"
)

// stopwords is the canonical set of generic terms that never qualify as
// trackable concepts on their own. It covers question words, course/learning
// vocabulary, process and system words, and the articles and prepositions
// students sprinkle through free-text questions.
var stopwords = map[string]bool{
	// Question words and demonstratives
	"what": true, "how": true, "why": true, "when": true, "where": true,
	"who": true, "which": true, "that": true, "this": true, "these": true, "those": true,
	// Common words
	"data": true, "training": true, "testing": true, "test": true, "train": true,
	"information": true, "knowledge": true,
	// Course/learning terms
	"course": true, "lesson": true, "lecture": true, "chapter": true, "section": true,
	"module": true, "unit": true, "introduction": true, "overview": true, "summary": true,
	"conclusion": true, "example": true, "examples": true,
	"student": true, "students": true, "professor": true, "teacher": true,
	"learning": true, "study": true, "studying": true,
	// Generic verbs
	"understanding": true, "explain": true, "explaining": true, "understand": true,
	"learn": true, "teach": true, "know": true,
	// Generic concepts
	"concept": true, "concepts": true, "topic": true, "topics": true,
	"subject": true, "subjects": true, "material": true, "materials": true,
	"content": true, "contents": true,
	// Process words
	"process": true, "processes": true, "method": true, "methods": true,
	"approach": true, "approaches": true, "technique": true, "techniques": true,
	"strategy": true, "strategies": true,
	// System words
	"system": true, "systems": true, "model": true, "models": true,
	"framework": true, "frameworks": true,
	// Generic adjectives
	"basic": true, "advanced": true, "simple": true, "complex": true,
	"important": true, "key": true, "main": true,
	// Articles and prepositions
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"about": true, "into": true, "through": true,
	// Others
	"different": true, "various": true, "several": true, "many": true,
	"some": true, "all": true, "each": true,
}

// leadWords are words that disqualify a concept when they appear first:
// a phrase starting with a question word or article is a question fragment,
// not a concept.
var leadWords = map[string]bool{
	"what": true, "how": true, "why": true, "when": true, "where": true,
	"the": true, "a": true, "an": true,
}

// maxStopwordRatio is the fraction of stopwords above which a multi-word
// concept is considered noise.
const maxStopwordRatio = 0.7

// IsValid reports whether a concept string is meaningful enough to track.
// It is a pure predicate: the same gate is applied before a mastery record
// is created and again, defensively, when stored records are read back.
func IsValid(concept string) bool {
	lower := strings.ToLower(strings.TrimSpace(concept))
	if lower == "" {
		return false
	}
	if stopwords[lower] {
		return false
	}

	words := strings.Fields(lower)
	if len(words) == 0 {
		return false
	}

	// Single short words ("tree", "sort") collide with everyday language.
	if len(words) == 1 && len(lower) < 5 {
		return false
	}

	if leadWords[words[0]] {
		return false
	}

	allStop := true
	stopCount := 0
	for _, w := range words {
		if stopwords[w] {
			stopCount++
		} else {
			allStop = false
		}
	}
	if allStop {
		return false
	}

	if len(words) > 1 {
		if float64(stopCount)/float64(len(words)) > maxStopwordRatio {
			return false
		}
	}

	// Ignoring spaces, anything under 4 characters carries no signal.
	if len(strings.ReplaceAll(lower, " ", "")) < 4 {
		return false
	}

	return true
}

// IsStopword reports whether a single lowercased word is in the stopword set.
func IsStopword(word string) bool {
	return stopwords[strings.ToLower(word)]
}
