package learning

import (
	"context"
	"fmt"
	"math"

	"github.com/sreeram-gsan/brillia-v3/internal/mastery"
)

// PlanTopic is one recommended topic in a study plan.
type PlanTopic struct {
	Concept           string  `json:"concept"`
	CurrentMastery    float64 `json:"current_mastery"`
	EstimatedTime     int     `json:"estimated_time"`
	Priority          string  `json:"priority"`
	RecommendedAction string  `json:"recommended_action"`
}

// StudyPlan is a daily recommendation built from weak concepts.
type StudyPlan struct {
	DailyFocus         string      `json:"daily_focus"`
	RecommendedTopics  []PlanTopic `json:"recommended_topics"`
	TotalEstimatedTime int         `json:"total_estimated_time"`
}

// Planner builds study plans from mastery records.
type Planner struct {
	masteries mastery.Store
}

func NewPlanner(masteries mastery.Store) *Planner {
	return &Planner{masteries: masteries}
}

const allMasteredMessage = "Great job! All concepts are well understood. Try exploring advanced topics!"

// Plan recommends up to five weak concepts, weakest first, with time
// estimates scaled to how far each concept is from mastered.
func (p *Planner) Plan(ctx context.Context, courseID, studentID string) (*StudyPlan, error) {
	weak, err := p.masteries.ListBelow(ctx, courseID, studentID, cardMasteryThreshold)
	if err != nil {
		return nil, fmt.Errorf("list weak concepts: %w", err)
	}

	if len(weak) == 0 {
		return &StudyPlan{
			DailyFocus:        allMasteredMessage,
			RecommendedTopics: []PlanTopic{},
		}, nil
	}

	plan := &StudyPlan{
		DailyFocus:        weak[0].Concept,
		RecommendedTopics: []PlanTopic{},
	}

	for i, rec := range weak {
		if i >= 5 {
			break
		}
		topic := PlanTopic{
			Concept:        rec.Concept,
			CurrentMastery: math.Round(rec.MasteryScore*10) / 10,
		}

		switch {
		case rec.MasteryScore < 30:
			topic.EstimatedTime = 45
		case rec.MasteryScore < 50:
			topic.EstimatedTime = 30
		default:
			topic.EstimatedTime = 20
		}

		switch {
		case rec.MasteryScore < 40:
			topic.Priority = "High"
			topic.RecommendedAction = "Take a quiz"
		case rec.MasteryScore < 50:
			topic.Priority = "Medium"
			topic.RecommendedAction = "Review materials"
		default:
			topic.Priority = "Low"
			topic.RecommendedAction = "Review materials"
		}

		plan.RecommendedTopics = append(plan.RecommendedTopics, topic)
		plan.TotalEstimatedTime += topic.EstimatedTime
	}

	return plan, nil
}
