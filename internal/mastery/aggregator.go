package mastery

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sreeram-gsan/brillia-v3/internal/concept"
)

// QuizAttempt is a completed quiz record from the quiz history
// collaborator.
type QuizAttempt struct {
	Topic          string
	Score          int
	TotalQuestions int
	CompletedAt    time.Time
}

// ChatMessage is a student chat message from the chat history
// collaborator.
type ChatMessage struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// QuizHistory exposes read-only quiz attempt records.
type QuizHistory interface {
	ListAttempts(ctx context.Context, courseID, studentID string) ([]QuizAttempt, error)
}

// ChatHistory exposes read-only chat messages.
type ChatHistory interface {
	ListMessages(ctx context.Context, courseID, studentID string) ([]ChatMessage, error)
}

// HeatmapEntry is one concept row in a heatmap.
type HeatmapEntry struct {
	Concept      string  `json:"concept"`
	Mastery      float64 `json:"mastery"`
	Interactions int     `json:"interactions"`
	Students     int     `json:"students"`
}

// Heatmap is the course-wide mastery view.
type Heatmap struct {
	TotalConcepts int            `json:"total_concepts"`
	TotalStudents int            `json:"total_students"`
	HeatmapData   []HeatmapEntry `json:"heatmap_data"`
}

// TopicScore is aggregate quiz performance for one topic.
type TopicScore struct {
	Topic    string `json:"topic"`
	Score    int    `json:"score"`
	Attempts int    `json:"attempts"`
}

// QuizScore is one quiz result in the recent trend.
type QuizScore struct {
	Date  string `json:"date"`
	Score int    `json:"score"`
	Topic string `json:"topic"`
}

// DiscussedTopic is a frequently mentioned word from chat.
type DiscussedTopic struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// ActivityDay is one day in the 7-day activity view.
type ActivityDay struct {
	Date      string `json:"date"`
	Questions int    `json:"questions"`
	Quizzes   int    `json:"quizzes"`
	Active    bool   `json:"active"`
}

// Insights is the per-student learning view for one course.
type Insights struct {
	TotalQuestionsAsked int              `json:"total_questions_asked"`
	TotalQuizzes        int              `json:"total_quizzes"`
	AvgQuizScore        int              `json:"avg_quiz_score"`
	QuizScores          []QuizScore      `json:"quiz_scores"`
	QuizByTopic         []TopicScore     `json:"quiz_by_topic"`
	MostDiscussedTopics []DiscussedTopic `json:"most_discussed_topics"`
	ConceptMastery      Heatmap          `json:"concept_mastery"`
	ActivityStreak      []ActivityDay    `json:"activity_streak"`
	MasteredConcepts    int              `json:"mastered_concepts"`
	WeakConcepts        []string         `json:"weak_concepts"`
}

// Aggregator builds read-only mastery views. Both views are pure reads;
// quiz and chat collaborators are optional and insights degrade to
// empty sections when they are absent.
type Aggregator struct {
	store  Store
	quiz   QuizHistory
	chat   ChatHistory
	logger *slog.Logger
	now    func() time.Time
}

// NewAggregator creates an aggregator. quiz and chat may be nil.
func NewAggregator(store Store, quiz QuizHistory, chat ChatHistory, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		store:  store,
		quiz:   quiz,
		chat:   chat,
		logger: logger,
		now:    time.Now,
	}
}

// CourseHeatmap aggregates mastery per concept across all students in a
// course, highest mastery first.
func (a *Aggregator) CourseHeatmap(ctx context.Context, courseID string) (*Heatmap, error) {
	records, err := a.store.ListByCourse(ctx, courseID, 0)
	if err != nil {
		return nil, fmt.Errorf("list course records: %w", err)
	}

	type bucket struct {
		scoreSum     float64
		interactions int
		students     map[string]struct{}
	}
	buckets := make(map[string]*bucket)
	allStudents := make(map[string]struct{})

	for _, rec := range records {
		// Records predating the filter may carry generic concepts; keep
		// them out of the view even before cleanup runs.
		if !concept.IsValid(rec.Concept) {
			continue
		}
		b, ok := buckets[rec.Concept]
		if !ok {
			b = &bucket{students: make(map[string]struct{})}
			buckets[rec.Concept] = b
		}
		b.scoreSum += rec.MasteryScore
		b.interactions += rec.Interactions
		b.students[rec.StudentID] = struct{}{}
		allStudents[rec.StudentID] = struct{}{}
	}

	entries := make([]HeatmapEntry, 0, len(buckets))
	for name, b := range buckets {
		entries = append(entries, HeatmapEntry{
			Concept:      name,
			Mastery:      round1(b.scoreSum / float64(len(b.students))),
			Interactions: b.interactions,
			Students:     len(b.students),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Mastery != entries[j].Mastery {
			return entries[i].Mastery > entries[j].Mastery
		}
		return entries[i].Concept < entries[j].Concept
	})

	return &Heatmap{
		TotalConcepts: len(entries),
		TotalStudents: len(allStudents),
		HeatmapData:   entries,
	}, nil
}

// StudentInsights builds the per-student view: quiz performance, chat
// engagement, concept mastery, and a 7-day activity strip.
func (a *Aggregator) StudentInsights(ctx context.Context, courseID, studentID string) (*Insights, error) {
	insights := &Insights{
		QuizScores:          []QuizScore{},
		QuizByTopic:         []TopicScore{},
		MostDiscussedTopics: []DiscussedTopic{},
		ActivityStreak:      []ActivityDay{},
		WeakConcepts:        []string{},
	}

	var attempts []QuizAttempt
	if a.quiz != nil {
		var err error
		attempts, err = a.quiz.ListAttempts(ctx, courseID, studentID)
		if err != nil {
			a.logger.Warn("quiz history unavailable", "error", err)
			attempts = nil
		}
	}
	a.fillQuizPerformance(insights, attempts)

	var messages []ChatMessage
	if a.chat != nil {
		var err error
		messages, err = a.chat.ListMessages(ctx, courseID, studentID)
		if err != nil {
			a.logger.Warn("chat history unavailable", "error", err)
			messages = nil
		}
	}
	userMessages := make([]ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == "user" {
			userMessages = append(userMessages, m)
		}
	}
	insights.TotalQuestionsAsked = len(userMessages)
	insights.MostDiscussedTopics = mostDiscussed(userMessages)
	insights.ActivityStreak = activityStreak(a.now().UTC(), userMessages, attempts)

	records, err := a.store.ListByStudent(ctx, courseID, studentID)
	if err != nil {
		return nil, fmt.Errorf("list student records: %w", err)
	}

	entries := make([]HeatmapEntry, 0, len(records))
	for _, rec := range records {
		if !concept.IsValid(rec.Concept) {
			continue
		}
		entries = append(entries, HeatmapEntry{
			Concept:      rec.Concept,
			Mastery:      round1(rec.MasteryScore),
			Interactions: rec.Interactions,
			Students:     1,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Mastery != entries[j].Mastery {
			return entries[i].Mastery > entries[j].Mastery
		}
		return entries[i].Concept < entries[j].Concept
	})

	insights.ConceptMastery = Heatmap{
		TotalConcepts: len(entries),
		TotalStudents: 1,
		HeatmapData:   entries,
	}
	for _, e := range entries {
		if e.Mastery >= 80 {
			insights.MasteredConcepts++
		}
	}
	for _, e := range entries {
		if e.Mastery < 40 && len(insights.WeakConcepts) < 5 {
			insights.WeakConcepts = append(insights.WeakConcepts, e.Concept)
		}
	}

	return insights, nil
}

func (a *Aggregator) fillQuizPerformance(insights *Insights, attempts []QuizAttempt) {
	insights.TotalQuizzes = len(attempts)
	if len(attempts) == 0 {
		return
	}

	totalScore, totalPossible := 0, 0
	for _, at := range attempts {
		totalScore += at.Score
		totalPossible += at.TotalQuestions
	}
	if totalPossible > 0 {
		insights.AvgQuizScore = int(math.Round(100 * float64(totalScore) / float64(totalPossible)))
	}

	sorted := make([]QuizAttempt, len(attempts))
	copy(sorted, attempts)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CompletedAt.Before(sorted[j].CompletedAt)
	})
	recent := sorted
	if len(recent) > 7 {
		recent = recent[len(recent)-7:]
	}
	for _, at := range recent {
		pct := 0
		if at.TotalQuestions > 0 {
			pct = int(math.Round(100 * float64(at.Score) / float64(at.TotalQuestions)))
		}
		insights.QuizScores = append(insights.QuizScores, QuizScore{
			Date:  at.CompletedAt.Format("01/02"),
			Score: pct,
			Topic: topicOrGeneral(at.Topic),
		})
	}

	type perf struct{ correct, total, attempts int }
	byTopic := make(map[string]*perf)
	for _, at := range attempts {
		topic := topicOrGeneral(at.Topic)
		p, ok := byTopic[topic]
		if !ok {
			p = &perf{}
			byTopic[topic] = p
		}
		p.correct += at.Score
		p.total += at.TotalQuestions
		p.attempts++
	}
	for topic, p := range byTopic {
		score := 0
		if p.total > 0 {
			score = int(math.Round(100 * float64(p.correct) / float64(p.total)))
		}
		insights.QuizByTopic = append(insights.QuizByTopic, TopicScore{
			Topic:    topic,
			Score:    score,
			Attempts: p.attempts,
		})
	}
	sort.Slice(insights.QuizByTopic, func(i, j int) bool {
		if insights.QuizByTopic[i].Score != insights.QuizByTopic[j].Score {
			return insights.QuizByTopic[i].Score > insights.QuizByTopic[j].Score
		}
		return insights.QuizByTopic[i].Topic < insights.QuizByTopic[j].Topic
	})
}

var discussedWordPattern = regexp.MustCompile(`\b\w{5,}\b`)

// Function words long enough to clear the 5-char bar.
var discussedStopwords = map[string]struct{}{
	"what": {}, "which": {}, "where": {}, "when": {}, "would": {},
	"could": {}, "should": {}, "about": {}, "their": {}, "there": {},
	"these": {}, "those": {}, "explain": {}, "understand": {},
}

func mostDiscussed(messages []ChatMessage) []DiscussedTopic {
	counts := make(map[string]int)
	for _, m := range messages {
		for _, w := range discussedWordPattern.FindAllString(strings.ToLower(m.Content), -1) {
			if _, skip := discussedStopwords[w]; skip {
				continue
			}
			counts[w]++
		}
	}

	topics := make([]DiscussedTopic, 0, len(counts))
	for w, c := range counts {
		topics = append(topics, DiscussedTopic{Topic: w, Count: c})
	}
	sort.Slice(topics, func(i, j int) bool {
		if topics[i].Count != topics[j].Count {
			return topics[i].Count > topics[j].Count
		}
		return topics[i].Topic < topics[j].Topic
	})
	if len(topics) > 10 {
		topics = topics[:10]
	}
	return topics
}

func activityStreak(now time.Time, messages []ChatMessage, attempts []QuizAttempt) []ActivityDay {
	days := make([]ActivityDay, 0, 7)
	for i := 6; i >= 0; i-- {
		dayStart := now.AddDate(0, 0, -(i + 1))
		dayEnd := now.AddDate(0, 0, -i)

		questions := 0
		for _, m := range messages {
			if !m.Timestamp.Before(dayStart) && !m.Timestamp.After(dayEnd) {
				questions++
			}
		}
		quizzes := 0
		for _, at := range attempts {
			if !at.CompletedAt.Before(dayStart) && !at.CompletedAt.After(dayEnd) {
				quizzes++
			}
		}

		days = append(days, ActivityDay{
			Date:      dayEnd.Format("01/02"),
			Questions: questions,
			Quizzes:   quizzes,
			Active:    questions > 0 || quizzes > 0,
		})
	}
	return days
}

func topicOrGeneral(topic string) string {
	if strings.TrimSpace(topic) == "" {
		return "General"
	}
	return topic
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
