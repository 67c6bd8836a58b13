package stats

import (
	"sort"
	"time"

	"flowmod/api/internal/models"
	"flowmod/api/internal/threading"
)

const topContributorLimit = 5

// ParticipantStats are the counters shown next to each roster entry.
type ParticipantStats struct {
	Participant        models.Participant `json:"participant"`
	MessageCount       int                `json:"messageCount"`
	AssistedCount      int                `json:"assistedCount"`
	RespondedCount     int                `json:"respondedCount"`
	HasVerifiedChannel bool               `json:"hasVerifiedChannel"`
	Engagement         Tier               `json:"engagement"`
}

// Contributor is one entry of the top contributor list.
type Contributor struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	Messages      int    `json:"messages"`
	Engagement    Tier   `json:"engagement"`
}

// CommunityStats is the aggregate view for one community roster.
type CommunityStats struct {
	Participants    []ParticipantStats `json:"participants"`
	Engagement      Distribution       `json:"engagement"`
	SilentCount     int                `json:"silentCount"`
	TopContributors []Contributor      `json:"topContributors"`
}

// Aggregate computes per-participant counters from the originals of graph.
// Participants are reported in roster order; originals sent by someone who
// is not on the roster are ignored.
func Aggregate(roster []models.Participant, graph threading.Graph) CommunityStats {
	type counter struct {
		messages, assisted, responded int
	}
	counters := make(map[string]*counter, len(roster))
	for _, participant := range roster {
		counters[participant.ID] = &counter{}
	}

	for _, thread := range graph.Threads {
		c, ok := counters[thread.Original.Sender()]
		if !ok {
			continue
		}
		c.messages++
		if thread.Original.Intervened {
			c.assisted++
		}
		if len(thread.Responses) > 0 {
			c.responded++
		}
	}

	out := CommunityStats{
		Participants: make([]ParticipantStats, 0, len(roster)),
	}
	seen := make(map[string]struct{}, len(roster))
	counts := make([]int, 0, len(roster))
	for _, participant := range roster {
		if _, dup := seen[participant.ID]; dup {
			continue
		}
		seen[participant.ID] = struct{}{}
		c := counters[participant.ID]
		out.Participants = append(out.Participants, ParticipantStats{
			Participant:        participant,
			MessageCount:       c.messages,
			AssistedCount:      c.assisted,
			RespondedCount:     c.responded,
			HasVerifiedChannel: participant.HasVerifiedChannel(),
			Engagement:         TierFor(c.messages),
		})
		counts = append(counts, c.messages)
	}

	out.Engagement = Distribute(counts)
	out.SilentCount = out.Engagement.Silent
	out.TopContributors = TopContributors(out.Participants)
	return out
}

// TopContributors ranks participants by message count, earliest joiner first
// on ties, and keeps the top five. Participants without messages are never
// listed.
func TopContributors(participants []ParticipantStats) []Contributor {
	ranked := make([]ParticipantStats, 0, len(participants))
	for _, entry := range participants {
		if entry.MessageCount > 0 {
			ranked = append(ranked, entry)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.MessageCount != b.MessageCount {
			return a.MessageCount > b.MessageCount
		}
		if !a.Participant.JoinedAt.Equal(b.Participant.JoinedAt) {
			return joinedBefore(a.Participant.JoinedAt, b.Participant.JoinedAt)
		}
		return a.Participant.ID < b.Participant.ID
	})
	if len(ranked) > topContributorLimit {
		ranked = ranked[:topContributorLimit]
	}

	out := make([]Contributor, 0, len(ranked))
	for _, entry := range ranked {
		out = append(out, Contributor{
			ParticipantID: entry.Participant.ID,
			Name:          entry.Participant.Label(),
			Messages:      entry.MessageCount,
			Engagement:    TierFor(entry.MessageCount),
		})
	}
	return out
}

// joinedBefore orders unknown (zero) join dates after every known one.
func joinedBefore(a, b time.Time) bool {
	switch {
	case a.IsZero():
		return false
	case b.IsZero():
		return true
	default:
		return a.Before(b)
	}
}
