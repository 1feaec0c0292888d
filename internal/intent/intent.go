// Package intent classifies student messages and scopes materials to a
// requested topic.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sreeram-gsan/brillia-v3/internal/concept"
	"github.com/sreeram-gsan/brillia-v3/internal/llm"
)

// QuizIntent is the classification result for one student message.
type QuizIntent struct {
	IsQuizRequest bool    `json:"is_quiz_request"`
	Topic         string  `json:"topic,omitempty"`
	Confidence    float64 `json:"confidence"`
}

// Detector classifies messages with an LLM and falls back to keyword
// matching when the model is unavailable.
type Detector struct {
	provider llm.Provider
	logger   *slog.Logger
}

func NewDetector(provider llm.Provider, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{provider: provider, logger: logger}
}

const quizIntentSystemPrompt = `You are an intent classifier for an educational AI assistant.

Your task: Analyze student messages and determine if they are asking to be quizzed/tested.

QUIZ REQUEST INDICATORS:
- Explicit: "quiz me", "test me", "give me a quiz", "I want to take a quiz"
- Implicit: "can you assess my understanding", "I want to practice", "check if I know"

NOT QUIZ REQUESTS:
- Technical questions: "what is test data", "explain testing", "difference between X and Y"
- Clarification: "can you explain", "what does X mean", "how does Y work"
- General chat: "hello", "thanks", "I don't understand"

If it IS a quiz request, extract the SPECIFIC TOPIC if mentioned:
- "quiz me on supervised learning" → topic: "supervised learning"
- "test me on algorithms" → topic: "algorithms"
- "quiz me" → topic: null (general quiz)

Return ONLY valid JSON:
{
  "is_quiz_request": true/false,
  "topic": "specific topic" or null,
  "confidence": 0.0-1.0
}`

// Fallback phrases checked when the classifier is unreachable.
var quizPhrases = []string{"quiz me", "test me", "give me a quiz"}

// DetectQuizIntent classifies a student message. It never returns an
// error: classifier failures degrade to keyword matching.
func (d *Detector) DetectQuizIntent(ctx context.Context, message string) QuizIntent {
	if d.provider != nil {
		intent, err := d.detectLLM(ctx, message)
		if err == nil {
			return intent
		}
		d.logger.Warn("intent classification failed, using keyword fallback",
			"error", err)
	}
	return keywordFallback(message)
}

func (d *Detector) detectLLM(ctx context.Context, message string) (QuizIntent, error) {
	prompt := fmt.Sprintf("Analyze this student message: %q", message)
	raw, err := llm.Complete(ctx, d.provider, quizIntentSystemPrompt, prompt)
	if err != nil {
		return QuizIntent{}, err
	}

	var parsed struct {
		IsQuizRequest bool     `json:"is_quiz_request"`
		Topic         *string  `json:"topic"`
		Confidence    *float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(llm.StripFences(raw)), &parsed); err != nil {
		return QuizIntent{}, fmt.Errorf("parse classifier response: %w", err)
	}

	intent := QuizIntent{IsQuizRequest: parsed.IsQuizRequest, Confidence: 0.5}
	if parsed.Topic != nil {
		intent.Topic = strings.TrimSpace(*parsed.Topic)
	}
	if parsed.Confidence != nil {
		intent.Confidence = *parsed.Confidence
	}
	return intent, nil
}

func keywordFallback(message string) QuizIntent {
	lower := strings.ToLower(message)
	for _, phrase := range quizPhrases {
		if strings.Contains(lower, phrase) {
			return QuizIntent{IsQuizRequest: true, Confidence: 0.7}
		}
	}
	return QuizIntent{}
}

const relevanceSystemPrompt = `You are a content relevance analyzer for educational materials.

Your task: Determine if course material content is relevant to a specific topic.

Respond with ONLY "YES" or "NO" for each material.`

const (
	maxRelevanceChecks  = 10
	maxRelevanceExcerpt = 1000
	fallbackMaterials   = 5
)

// FilterMaterialsByTopic keeps only materials the model judges relevant
// to topic. An empty topic returns all materials unchanged; when the
// model fails, or rejects everything, the first few materials are
// returned rather than nothing.
func (d *Detector) FilterMaterialsByTopic(ctx context.Context, materials []concept.Material, topic string) []concept.Material {
	if strings.TrimSpace(topic) == "" {
		return materials
	}
	if d.provider == nil {
		return head(materials, fallbackMaterials)
	}

	relevant := make([]concept.Material, 0, len(materials))
	for i, m := range materials {
		if i >= maxRelevanceChecks {
			break
		}
		content := concept.Excerpt(m.Content, maxRelevanceExcerpt)
		prompt := fmt.Sprintf("Topic: %q\n\nMaterial Title: %q\nMaterial Content: %q\n\nIs this material relevant to the topic? Answer ONLY \"YES\" or \"NO\".",
			topic, m.Title, content)

		raw, err := llm.Complete(ctx, d.provider, relevanceSystemPrompt, prompt)
		if err != nil {
			d.logger.Warn("relevance check failed", "title", m.Title, "error", err)
			return head(materials, fallbackMaterials)
		}
		if strings.Contains(strings.ToUpper(raw), "YES") {
			relevant = append(relevant, m)
		}
	}

	if len(relevant) == 0 {
		return head(materials, fallbackMaterials)
	}
	return relevant
}

func head(materials []concept.Material, n int) []concept.Material {
	if len(materials) > n {
		return materials[:n]
	}
	return materials
}
