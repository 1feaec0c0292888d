package learning

import (
	"context"
	"testing"

	"github.com/sreeram-gsan/brillia-v3/internal/mastery"
)

func TestPlanAllMastered(t *testing.T) {
	p := NewPlanner(&fakeMasteryStore{records: []*mastery.Record{
		{StudentID: "s1", CourseID: "c1", Concept: "recursion", MasteryScore: 85},
	}})

	plan, err := p.Plan(context.Background(), "c1", "s1")
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if plan.DailyFocus != allMasteredMessage {
		t.Errorf("DailyFocus = %q; want congratulation message", plan.DailyFocus)
	}
	if len(plan.RecommendedTopics) != 0 || plan.TotalEstimatedTime != 0 {
		t.Errorf("plan = %+v; want empty recommendations", plan)
	}
}

func TestPlanRecommendations(t *testing.T) {
	p := NewPlanner(&fakeMasteryStore{records: []*mastery.Record{
		{StudentID: "s1", CourseID: "c1", Concept: "gradient descent", MasteryScore: 20},
		{StudentID: "s1", CourseID: "c1", Concept: "hash table", MasteryScore: 45},
		{StudentID: "s1", CourseID: "c1", Concept: "recursion", MasteryScore: 55},
	}})

	plan, err := p.Plan(context.Background(), "c1", "s1")
	if err != nil {
		t.Fatal(err)
	}

	if plan.DailyFocus != "gradient descent" {
		t.Errorf("DailyFocus = %q; want weakest concept", plan.DailyFocus)
	}
	if len(plan.RecommendedTopics) != 3 {
		t.Fatalf("len(RecommendedTopics) = %d; want 3", len(plan.RecommendedTopics))
	}

	first := plan.RecommendedTopics[0]
	if first.EstimatedTime != 45 || first.Priority != "High" || first.RecommendedAction != "Take a quiz" {
		t.Errorf("topic for mastery 20 = %+v; want 45min/High/Take a quiz", first)
	}
	second := plan.RecommendedTopics[1]
	if second.EstimatedTime != 30 || second.Priority != "Medium" || second.RecommendedAction != "Review materials" {
		t.Errorf("topic for mastery 45 = %+v; want 30min/Medium/Review materials", second)
	}
	third := plan.RecommendedTopics[2]
	if third.EstimatedTime != 20 || third.Priority != "Low" {
		t.Errorf("topic for mastery 55 = %+v; want 20min/Low", third)
	}

	if plan.TotalEstimatedTime != 95 {
		t.Errorf("TotalEstimatedTime = %d; want 95", plan.TotalEstimatedTime)
	}
}

func TestPlanCapsAtFive(t *testing.T) {
	records := make([]*mastery.Record, 8)
	for i := range records {
		records[i] = &mastery.Record{
			StudentID:    "s1",
			CourseID:     "c1",
			Concept:      string(rune('a'+i)) + " concept",
			MasteryScore: float64(10 + i),
		}
	}
	p := NewPlanner(&fakeMasteryStore{records: records})

	plan, err := p.Plan(context.Background(), "c1", "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.RecommendedTopics) != 5 {
		t.Errorf("len(RecommendedTopics) = %d; want 5", len(plan.RecommendedTopics))
	}
}
