package concept

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sreeram-gsan/brillia-v3/internal/llm"
)

const (
	// MaxConcepts caps how many concepts a single extraction returns.
	MaxConcepts = 15

	maxMaterials       = 10
	maxMaterialExcerpt = 1500
)

// Material is a unit of course content fed into extraction.
type Material struct {
	Title   string
	Content string
}

// Excerpt truncates s to at most max bytes without splitting a UTF-8
// sequence.
func Excerpt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Extractor distills course materials into a list of canonical concept
// names. The primary path asks an LLM; when the call fails or the
// response does not parse the extractor falls back to deterministic
// pattern matching, so Extract never returns an error.
type Extractor struct {
	provider llm.Provider
	logger   *slog.Logger
}

// NewExtractor creates an extractor. provider may be nil, in which case
// only the deterministic fallback runs.
func NewExtractor(provider llm.Provider, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{provider: provider, logger: logger}
}

const extractSystemPrompt = `You are an expert at identifying specific, testable academic concepts in course materials.

Extract 10-15 SPECIFIC concepts a student could be quizzed on. Respond with ONLY a JSON array of strings.

GOOD concepts (specific, substantive): "Binary Search Tree", "Gradient Descent", "Backpropagation", "Dynamic Programming", "Bayes Theorem"
BAD concepts (generic, structural): "Introduction", "Chapter 1", "Learning", "Data", "Overview", "Key Concepts", "Course Materials"

Rules:
- Each concept must be a noun phrase naming a concrete technique, structure, theorem, or principle.
- Never include course-structure words (chapter, lecture, module, summary).
- Never include generic learning vocabulary (understanding, knowledge, studying).
- Respond with the JSON array only, no prose.`

// Extract returns up to MaxConcepts concept names for the given
// materials, best first.
func (e *Extractor) Extract(ctx context.Context, materials []Material) []string {
	if len(materials) == 0 {
		return nil
	}

	if e.provider != nil {
		concepts, err := e.extractLLM(ctx, materials)
		if err == nil {
			// A parsed response wins even when every entry was
			// filtered out; the fallback covers transport and
			// parse failures only.
			return concepts
		}
		e.logger.Warn("LLM concept extraction failed, using pattern fallback",
			"error", err)
	}

	return e.extractPatterns(materials)
}

func (e *Extractor) extractLLM(ctx context.Context, materials []Material) ([]string, error) {
	var b strings.Builder
	for i, m := range materials {
		if i >= maxMaterials {
			break
		}
		content := Excerpt(m.Content, maxMaterialExcerpt)
		b.WriteString("\n")
		b.WriteString(m.Title)
		b.WriteString("\n")
		b.WriteString(content)
		b.WriteString("\n")
	}

	raw, err := llm.Complete(ctx, e.provider, extractSystemPrompt, b.String())
	if err != nil {
		return nil, err
	}

	var parsed []string
	if err := json.Unmarshal([]byte(llm.StripFences(raw)), &parsed); err != nil {
		return nil, err
	}

	concepts := make([]string, 0, len(parsed))
	for _, c := range parsed {
		c = strings.TrimSpace(c)
		if !e.acceptLLMConcept(c) {
			continue
		}
		concepts = append(concepts, c)
		if len(concepts) >= MaxConcepts {
			break
		}
	}
	return concepts, nil
}

// llmStopwords is the short list of structural and generic-learning
// terms the model returns despite the prompt. It is deliberately much
// narrower than the record-validation stopwords: phrases like "Hidden
// Markov Model" or "Systems Design" must survive this check.
var llmStopwords = map[string]struct{}{
	"data": {}, "training": {}, "testing": {}, "what": {}, "how": {},
	"course": {}, "introduction": {}, "overview": {}, "example": {},
	"chapter": {}, "student": {}, "professor": {}, "learning": {},
	"understanding": {}, "information": {}, "system": {}, "process": {},
	"method": {}, "approach": {}, "concept": {}, "topic": {},
	"subject": {}, "material": {}, "content": {},
}

// acceptLLMConcept double-checks model output: the model sometimes
// returns structural terms despite the prompt.
func (e *Extractor) acceptLLMConcept(c string) bool {
	if len(c) <= 3 {
		return false
	}
	lower := strings.ToLower(c)
	if _, ok := llmStopwords[lower]; ok {
		return false
	}
	// Short stopword components flag generic phrases like "Data Overview";
	// long ones ("understanding") can legitimately appear inside a real
	// concept name.
	for _, w := range strings.Fields(lower) {
		if _, ok := llmStopwords[w]; ok && len(w) < 8 {
			return false
		}
	}
	return true
}

// Capitalized runs of 2-4 words: "Binary Search Tree", "Bayes Theorem".
var titleCasePattern = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,3}\b`)

// Technical vocabulary caught even in lowercase prose.
var technicalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(algorithm|data structure|neural network|machine learning|deep learning)\b`),
	regexp.MustCompile(`(?i)\b(supervised|unsupervised|reinforcement)\s+learning\b`),
	regexp.MustCompile(`(?i)\b(binary|linear|hash|merge|quick)\s+(search|sort|tree|table)\b`),
	regexp.MustCompile(`(?i)\b(linked|doubly)\s+list\b`),
	regexp.MustCompile(`(?i)\b(gradient|stochastic)\s+descent\b`),
	regexp.MustCompile(`(?i)\b(time|space)\s+complexity\b`),
	regexp.MustCompile(`(?i)\b(object|functional|procedural)\s+programming\b`),
}

// Title-cased fragments that look like concepts but are course
// structure or glue.
var patternExclusions = map[string]struct{}{
	"Data": {}, "Training": {}, "Testing": {}, "What": {}, "How": {},
	"Course": {}, "Introduction": {}, "Overview": {}, "Example": {},
	"Chapter": {}, "The": {}, "This": {}, "That": {}, "With": {}, "From": {},
}

func (e *Extractor) extractPatterns(materials []Material) []string {
	counts := make(map[string]int)

	for i, m := range materials {
		if i >= maxMaterials {
			break
		}
		text := Excerpt(m.Title+"\n"+m.Content, maxMaterialExcerpt)

		for _, match := range titleCasePattern.FindAllString(text, -1) {
			counts[match]++
		}
		for _, re := range technicalPatterns {
			for _, match := range re.FindAllString(text, -1) {
				counts[titleCase(match)]++
			}
		}
	}

	type candidate struct {
		name  string
		count int
	}
	candidates := make([]candidate, 0, len(counts))
	for name, count := range counts {
		if count < 2 || len(name) <= 5 {
			continue
		}
		if _, excluded := patternExclusions[name]; excluded {
			continue
		}
		candidates = append(candidates, candidate{name, count})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].count != candidates[j].count {
			return candidates[i].count > candidates[j].count
		}
		return candidates[i].name < candidates[j].name
	})

	concepts := make([]string, 0, MaxConcepts)
	for _, c := range candidates {
		concepts = append(concepts, c.name)
		if len(concepts) >= MaxConcepts {
			break
		}
	}
	return concepts
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
