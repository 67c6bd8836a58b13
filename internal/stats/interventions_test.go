package stats

import (
	"testing"
	"time"

	"flowmod/api/internal/models"
)

func flagged(id, category string, at time.Time, intervened bool) models.Message {
	return models.Message{
		ID:                   id,
		GroupID:              "grp_1",
		ParticipantID:        models.StringPtr("p1"),
		SenderChannel:        models.ChannelMember,
		Body:                 "body of " + id,
		CreatedAt:            at,
		InterventionCategory: models.StringPtr(category),
		Intervened:           intervened,
	}
}

func TestSummarizeInterventions(t *testing.T) {
	now := time.Date(2025, 6, 15, 15, 0, 0, 0, time.UTC)
	msgs := []models.Message{
		flagged("1", "spam", now.Add(-time.Hour), true),
		flagged("2", "spam", now.Add(-20*time.Hour), false),
		flagged("3", "profanity", now.Add(-3*24*time.Hour), true),
		flagged("4", "harassment", now.Add(-10*24*time.Hour), true),
		{ID: "5", CreatedAt: now, SenderChannel: models.ChannelMember},
	}

	summary := SummarizeInterventions(msgs, now)
	if summary.Total != 4 {
		t.Fatalf("expected 4 flagged, got %d", summary.Total)
	}
	if summary.TodayCount != 1 {
		t.Fatalf("expected 1 today, got %d", summary.TodayCount)
	}
	if summary.WeekCount != 3 {
		t.Fatalf("expected 3 this week, got %d", summary.WeekCount)
	}
	if summary.SuccessRate != 75 {
		t.Fatalf("expected 75%% success, got %d", summary.SuccessRate)
	}
	if summary.Categories[0].Category != "spam" || summary.Categories[0].Count != 2 || summary.Categories[0].Label != "Spam" {
		t.Fatalf("unexpected leading category: %+v", summary.Categories[0])
	}
}

func TestSummarizeInterventionsEmpty(t *testing.T) {
	summary := SummarizeInterventions(nil, time.Now())
	if summary.Total != 0 || summary.SuccessRate != 0 || len(summary.Categories) != 0 {
		t.Fatalf("expected zero summary, got %+v", summary)
	}
}

func TestFilterInterventions(t *testing.T) {
	now := time.Now()
	msgs := []models.Message{
		flagged("1", "spam", now, true),
		flagged("2", "profanity", now, true),
	}
	msgs[1].GroupID = "grp_books"

	bySpam := FilterInterventions(msgs, InterventionFilter{Category: "spam"})
	if len(bySpam) != 1 || bySpam[0].ID != "1" {
		t.Fatalf("expected spam message only, got %+v", bySpam)
	}

	byGroup := FilterInterventions(msgs, InterventionFilter{
		Query:      "BOOK",
		GroupNames: map[string]string{"grp_books": "Book Club"},
	})
	if len(byGroup) != 1 || byGroup[0].ID != "2" {
		t.Fatalf("expected group-name match, got %+v", byGroup)
	}

	all := FilterInterventions(msgs, InterventionFilter{Category: "all", Query: "body"})
	if len(all) != 2 {
		t.Fatalf("expected both messages, got %d", len(all))
	}
}
