package search

import (
	"time"

	"flowmod/api/internal/models"
)

// Result is a single message hit returned to the caller.
type Result struct {
	ID                   string    `json:"id"`
	CommunityID          string    `json:"communityId"`
	GroupID              string    `json:"groupId"`
	ParticipantID        string    `json:"participantId,omitempty"`
	SenderChannel        string    `json:"senderChannel"`
	InterventionCategory string    `json:"interventionCategory,omitempty"`
	Snippet              string    `json:"snippet"`
	CreatedAt            time.Time `json:"createdAt"`
}

// Query describes a search request. CommunityID is always applied.
type Query struct {
	Text          string
	CommunityID   string
	GroupID       string
	Category      string
	SenderChannel string
	Limit         int
	Offset        int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Backend string   `json:"backend"`
}

// MessageRecord is the data we index for a message.
type MessageRecord struct {
	ID                   string `json:"id"`
	CommunityID          string `json:"communityId"`
	GroupID              string `json:"groupId"`
	ParticipantID        string `json:"participantId"`
	SenderChannel        string `json:"senderChannel"`
	InterventionCategory string `json:"interventionCategory"`
	Body                 string `json:"body"`
	CreatedAt            int64  `json:"createdAt"`
}

// RecordFor converts a stored message into its index record.
func RecordFor(msg models.Message) MessageRecord {
	return MessageRecord{
		ID:                   msg.ID,
		CommunityID:          msg.CommunityID,
		GroupID:              msg.GroupID,
		ParticipantID:        msg.Sender(),
		SenderChannel:        string(msg.SenderChannel),
		InterventionCategory: msg.Category(),
		Body:                 msg.Body,
		CreatedAt:            msg.CreatedAt.Unix(),
	}
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return 20
	}
	if q.Limit > 100 {
		return 100
	}
	return q.Limit
}

func (q Query) offset() int {
	if q.Offset < 0 {
		return 0
	}
	return q.Offset
}
