package analytics

import (
	"fmt"
	"time"

	"flowmod/api/internal/models"
	"flowmod/api/internal/stats"
)

const (
	dailyBuckets  = 7
	lifecycleWeek = 7 * 24 * time.Hour
	lifecycleSpan = 4
)

// Input is a fully resolved pair of snapshots. Current and Previous hold the
// messages of Window's current and previous periods; Roster is the whole
// community roster; join dates decide which entries count as new members.
type Input struct {
	Window   Window
	Current  []models.Message
	Previous []models.Message
	Roster   []models.Participant
}

type HourBucket struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

type DayBucket struct {
	Date  string `json:"date"`
	Day   string `json:"day"`
	Count int    `json:"count"`
}

type WeekActivity struct {
	Week   string    `json:"week"`
	Start  time.Time `json:"start"`
	Joined int       `json:"joined"`
	Active int       `json:"active"`
}

// Report is the analytics view for one scope and window.
type Report struct {
	Window Window `json:"window"`

	TotalMessages        int     `json:"totalMessages"`
	PreviousMessages     int     `json:"previousMessages"`
	MessageGrowthRate    float64 `json:"messageGrowthRate"`
	ActiveMembers        int     `json:"activeMembers"`
	NewMembers           int     `json:"newMembers"`
	PreviousNewMembers   int     `json:"previousNewMembers"`
	MemberGrowthRate     float64 `json:"memberGrowthRate"`
	AvgMessagesPerMember float64 `json:"avgMessagesPerMember"`

	HourlyActivity []HourBucket `json:"hourlyActivity"`
	PeakHour       HourBucket   `json:"peakHour"`
	DailyActivity  []DayBucket  `json:"dailyActivity"`
	PeakDay        DayBucket    `json:"peakDay"`

	AvgMessageLength float64 `json:"avgMessageLength"`
	QuestionCount    int     `json:"questionCount"`
	QuestionRate     float64 `json:"questionRate"`
	LinkShareCount   int     `json:"linkShareCount"`
	EmojiUsage       int     `json:"emojiUsage"`

	MemberEngagement  stats.Distribution  `json:"memberEngagement"`
	SilentMembers     int                 `json:"silentMembers"`
	TopContributors   []stats.Contributor `json:"topContributors"`
	NewMemberActivity []WeekActivity      `json:"newMemberActivity"`
}

// GrowthRate is the percentage change from previous to current. A zero
// previous value yields 0, never an infinite rate.
func GrowthRate(current, previous int) float64 {
	if previous == 0 {
		return 0
	}
	return float64(current-previous) / float64(previous) * 100
}

// Compute derives the analytics report. Only member-channel messages are
// counted; bot responses never contribute to activity.
func Compute(in Input) Report {
	current := memberMessages(in.Current)
	previous := memberMessages(in.Previous)
	roster := uniqueRoster(in.Roster)

	report := Report{
		Window:           in.Window,
		TotalMessages:    len(current),
		PreviousMessages: len(previous),
	}
	report.MessageGrowthRate = GrowthRate(report.TotalMessages, report.PreviousMessages)

	perSender := make(map[string]int)
	senders := make([]string, 0)
	for _, msg := range current {
		id := msg.Sender()
		if id == "" {
			continue
		}
		if _, ok := perSender[id]; !ok {
			senders = append(senders, id)
		}
		perSender[id]++
	}
	report.ActiveMembers = len(perSender)
	if report.ActiveMembers > 0 {
		report.AvgMessagesPerMember = float64(report.TotalMessages) / float64(report.ActiveMembers)
	}

	for _, participant := range roster {
		switch {
		case in.Window.Contains(participant.JoinedAt):
			report.NewMembers++
		case in.Window.ContainsPrevious(participant.JoinedAt):
			report.PreviousNewMembers++
		}
	}
	report.MemberGrowthRate = GrowthRate(report.NewMembers, report.PreviousNewMembers)

	report.HourlyActivity, report.PeakHour = hourly(current)
	report.DailyActivity, report.PeakDay = daily(current, in.Window.End)
	contentSignals(&report, current)
	engagement(&report, roster, senders, perSender)
	report.NewMemberActivity = lifecycle(roster, perSender, in.Window.End)
	return report
}

func memberMessages(messages []models.Message) []models.Message {
	out := make([]models.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.SenderChannel != models.ChannelMember || msg.IsResponse() {
			continue
		}
		out = append(out, msg)
	}
	return out
}

func uniqueRoster(roster []models.Participant) []models.Participant {
	seen := make(map[string]struct{}, len(roster))
	out := make([]models.Participant, 0, len(roster))
	for _, participant := range roster {
		if _, dup := seen[participant.ID]; dup {
			continue
		}
		seen[participant.ID] = struct{}{}
		out = append(out, participant)
	}
	return out
}

// hourly buckets by the hour of each message's own timestamp. Ties for the
// peak go to the lowest hour.
func hourly(messages []models.Message) ([]HourBucket, HourBucket) {
	buckets := make([]HourBucket, 24)
	for hour := range buckets {
		buckets[hour].Hour = hour
	}
	for _, msg := range messages {
		buckets[msg.CreatedAt.Hour()].Count++
	}
	peak := HourBucket{}
	for _, bucket := range buckets {
		if bucket.Count > peak.Count {
			peak = bucket
		}
	}
	return buckets, peak
}

// daily covers the seven calendar days ending on now's date, in now's
// location, oldest first. Ties for the peak go to the most recent date.
func daily(messages []models.Message, now time.Time) ([]DayBucket, DayBucket) {
	loc := now.Location()
	counts := make(map[string]int)
	for _, msg := range messages {
		counts[msg.CreatedAt.In(loc).Format(time.DateOnly)]++
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	buckets := make([]DayBucket, 0, dailyBuckets)
	for i := dailyBuckets - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		key := day.Format(time.DateOnly)
		buckets = append(buckets, DayBucket{
			Date:  key,
			Day:   day.Weekday().String()[:3],
			Count: counts[key],
		})
	}

	peak := DayBucket{}
	for _, bucket := range buckets {
		if bucket.Count > 0 && bucket.Count >= peak.Count {
			peak = bucket
		}
	}
	return buckets, peak
}

func contentSignals(report *Report, messages []models.Message) {
	if len(messages) == 0 {
		return
	}
	totalLength := 0
	for _, msg := range messages {
		totalLength += Length(msg.Body)
		if IsQuestion(msg.Body) {
			report.QuestionCount++
		}
		if HasLink(msg.Body) {
			report.LinkShareCount++
		}
		if HasEmoji(msg.Body) {
			report.EmojiUsage++
		}
	}
	total := float64(len(messages))
	report.AvgMessageLength = float64(totalLength) / total
	report.QuestionRate = float64(report.QuestionCount) / total * 100
}

// engagement tiers every sender plus every roster participant, so silent
// members are the roster entries without current-window messages.
func engagement(report *Report, roster []models.Participant, senders []string, perSender map[string]int) {
	byID := make(map[string]models.Participant, len(roster))
	for _, participant := range roster {
		byID[participant.ID] = participant
	}

	entries := make([]stats.ParticipantStats, 0, len(roster)+len(senders))
	counts := make([]int, 0, len(roster)+len(senders))
	for _, participant := range roster {
		count := perSender[participant.ID]
		entries = append(entries, stats.ParticipantStats{Participant: participant, MessageCount: count, Engagement: stats.TierFor(count)})
		counts = append(counts, count)
	}
	for _, id := range senders {
		if _, onRoster := byID[id]; onRoster {
			continue
		}
		count := perSender[id]
		entries = append(entries, stats.ParticipantStats{Participant: models.Participant{ID: id}, MessageCount: count, Engagement: stats.TierFor(count)})
		counts = append(counts, count)
	}

	report.MemberEngagement = stats.Distribute(counts)
	report.SilentMembers = report.MemberEngagement.Silent
	report.TopContributors = stats.TopContributors(entries)
}

// lifecycle reports joiners for each of the four trailing weeks ending at
// now, oldest first, and how many of them posted in the current window.
func lifecycle(roster []models.Participant, perSender map[string]int, now time.Time) []WeekActivity {
	weeks := make([]WeekActivity, 0, lifecycleSpan)
	for i := lifecycleSpan - 1; i >= 0; i-- {
		end := now.Add(-time.Duration(i) * lifecycleWeek)
		start := end.Add(-lifecycleWeek)
		week := WeekActivity{Week: fmt.Sprintf("Week %d", lifecycleSpan-i), Start: start}
		for _, participant := range roster {
			if participant.JoinedAt.Before(start) || !participant.JoinedAt.Before(end) {
				continue
			}
			week.Joined++
			if perSender[participant.ID] > 0 {
				week.Active++
			}
		}
		weeks = append(weeks, week)
	}
	return weeks
}
