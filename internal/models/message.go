// Package models holds the canonical records exchanged between the store,
// the directory client and the derived-view engines.
package models

import "time"

// SenderChannel identifies who produced a message.
type SenderChannel string

const (
	ChannelMember       SenderChannel = "member"
	ChannelCommunityBot SenderChannel = "community-bot"
	ChannelPrivateBot   SenderChannel = "private-bot"
)

// Valid reports whether c is one of the known channels.
func (c SenderChannel) Valid() bool {
	switch c {
	case ChannelMember, ChannelCommunityBot, ChannelPrivateBot:
		return true
	}
	return false
}

// IsBot reports whether c is an automated channel.
func (c SenderChannel) IsBot() bool {
	return c == ChannelCommunityBot || c == ChannelPrivateBot
}

// Message is an immutable chat message. A message with RespondsToMessageID set
// is a response to the referenced original.
type Message struct {
	ID                   string        `json:"id"`
	CommunityID          string        `json:"communityId"`
	GroupID              string        `json:"groupId"`
	ParticipantID        *string       `json:"participantId,omitempty"`
	SenderChannel        SenderChannel `json:"senderChannel"`
	Body                 string        `json:"body"`
	CreatedAt            time.Time     `json:"createdAt"`
	InterventionCategory *string       `json:"interventionCategory,omitempty"`
	Intervened           bool          `json:"intervened"`
	RespondsToMessageID  *string       `json:"respondsToMessageId,omitempty"`
}

// IsResponse reports whether m was produced in reply to another message.
func (m Message) IsResponse() bool {
	return m.RespondsToMessageID != nil && *m.RespondsToMessageID != ""
}

// Sender returns the participant id or "" for automated senders.
func (m Message) Sender() string {
	if m.ParticipantID == nil {
		return ""
	}
	return *m.ParticipantID
}

// Category returns the intervention category or "".
func (m Message) Category() string {
	if m.InterventionCategory == nil {
		return ""
	}
	return *m.InterventionCategory
}

// Flagged reports whether a moderation category was attached to m.
func (m Message) Flagged() bool {
	return m.Category() != ""
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
