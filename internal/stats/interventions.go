package stats

import (
	"math"
	"sort"
	"strings"
	"time"

	"flowmod/api/internal/models"
)

// CategoryCount is the number of flagged originals in one category.
type CategoryCount struct {
	Category string `json:"category"`
	Label    string `json:"label"`
	Count    int    `json:"count"`
}

// InterventionSummary summarises flagged originals for the moderation view.
type InterventionSummary struct {
	Total       int             `json:"total"`
	Categories  []CategoryCount `json:"categories"`
	TodayCount  int             `json:"todayCount"`
	WeekCount   int             `json:"weekCount"`
	SuccessRate int             `json:"successRate"`
}

// SummarizeInterventions counts the flagged originals in messages. "Today"
// starts at midnight in now's location; "week" is the trailing 7×24h.
// Responses and unflagged messages are ignored.
func SummarizeInterventions(messages []models.Message, now time.Time) InterventionSummary {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekAgo := now.Add(-7 * 24 * time.Hour)

	perCategory := make(map[string]int)
	var summary InterventionSummary
	intervened := 0
	for _, msg := range messages {
		if msg.IsResponse() || !msg.Flagged() {
			continue
		}
		summary.Total++
		perCategory[msg.Category()]++
		if !msg.CreatedAt.Before(today) {
			summary.TodayCount++
		}
		if !msg.CreatedAt.Before(weekAgo) {
			summary.WeekCount++
		}
		if msg.Intervened {
			intervened++
		}
	}

	summary.Categories = make([]CategoryCount, 0, len(perCategory))
	for category, count := range perCategory {
		summary.Categories = append(summary.Categories, CategoryCount{
			Category: category,
			Label:    models.LookupCategory(category).Label,
			Count:    count,
		})
	}
	sort.Slice(summary.Categories, func(i, j int) bool {
		a, b := summary.Categories[i], summary.Categories[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Category < b.Category
	})

	if summary.Total > 0 {
		summary.SuccessRate = int(math.Round(float64(intervened) / float64(summary.Total) * 100))
	}
	return summary
}

// InterventionFilter narrows a list of flagged messages for display.
type InterventionFilter struct {
	Category string
	Query    string
	// ParticipantNames and GroupNames resolve ids for text matching.
	ParticipantNames map[string]string
	GroupNames       map[string]string
}

// FilterInterventions keeps flagged originals matching the category (when
// set) and whose body, participant name or group name contains the query,
// case-insensitively.
func FilterInterventions(messages []models.Message, filter InterventionFilter) []models.Message {
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	out := make([]models.Message, 0)
	for _, msg := range messages {
		if msg.IsResponse() || !msg.Flagged() {
			continue
		}
		if filter.Category != "" && filter.Category != "all" && msg.Category() != filter.Category {
			continue
		}
		if query != "" && !matchesQuery(msg, query, filter) {
			continue
		}
		out = append(out, msg)
	}
	return out
}

func matchesQuery(msg models.Message, query string, filter InterventionFilter) bool {
	if strings.Contains(strings.ToLower(msg.Body), query) {
		return true
	}
	if name := filter.ParticipantNames[msg.Sender()]; name != "" && strings.Contains(strings.ToLower(name), query) {
		return true
	}
	if name := filter.GroupNames[msg.GroupID]; name != "" && strings.Contains(strings.ToLower(name), query) {
		return true
	}
	return false
}
