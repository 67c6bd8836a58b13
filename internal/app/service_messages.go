package app

import (
	"context"
	"strings"
	"time"

	"flowmod/api/internal/metrics"
	"flowmod/api/internal/models"
	"flowmod/api/internal/search"
	"flowmod/api/internal/threading"
	"flowmod/api/internal/util"
)

type AppendMessageInput struct {
	ID                   string     `json:"id"`
	GroupID              string     `json:"groupId"`
	ParticipantID        string     `json:"participantId"`
	SenderChannel        string     `json:"senderChannel"`
	Body                 string     `json:"body"`
	CreatedAt            *time.Time `json:"createdAt"`
	InterventionCategory string     `json:"interventionCategory"`
	Intervened           bool       `json:"intervened"`
	RespondsToMessageID  string     `json:"respondsToMessageId"`
}

// AppendMessage validates and stores one message. Responses must come from a
// bot channel, carry no moderation flags and follow an original of the same
// community.
func (s *Service) AppendMessage(ctx context.Context, communityID string, input AppendMessageInput) (models.Message, error) {
	if err := requireCommunity(communityID); err != nil {
		return models.Message{}, err
	}

	msg := models.Message{
		ID:                   strings.TrimSpace(input.ID),
		CommunityID:          communityID,
		GroupID:              strings.TrimSpace(input.GroupID),
		ParticipantID:        models.StringPtr(strings.TrimSpace(input.ParticipantID)),
		SenderChannel:        models.SenderChannel(strings.TrimSpace(input.SenderChannel)),
		Body:                 input.Body,
		InterventionCategory: models.StringPtr(strings.TrimSpace(input.InterventionCategory)),
		Intervened:           input.Intervened,
		RespondsToMessageID:  models.StringPtr(strings.TrimSpace(input.RespondsToMessageID)),
	}
	if msg.ID == "" {
		msg.ID = util.NewID("msg")
	}
	msg.CreatedAt = s.now().UTC()
	if input.CreatedAt != nil {
		msg.CreatedAt = input.CreatedAt.UTC()
	}

	if err := validateMessageShape(msg); err != nil {
		return models.Message{}, err
	}
	if err := s.checkMessageReferences(ctx, msg); err != nil {
		return models.Message{}, err
	}

	stored, err := s.store.AppendMessage(ctx, msg)
	if err != nil {
		return models.Message{}, err
	}
	metrics.MessagesIngested.WithLabelValues(string(stored.SenderChannel)).Inc()
	if s.search != nil {
		s.search.IndexMessage(stored)
	}
	return stored, nil
}

func validateMessageShape(msg models.Message) error {
	if msg.GroupID == "" {
		return validationError("groupId is required", nil)
	}
	if !msg.SenderChannel.Valid() {
		return validationError("senderChannel must be one of member, community-bot, private-bot", map[string]any{
			"senderChannel": string(msg.SenderChannel),
		})
	}
	if strings.TrimSpace(msg.Body) == "" {
		return validationError("body is required", nil)
	}
	if msg.SenderChannel == models.ChannelMember && msg.ParticipantID == nil {
		return validationError("participantId is required for member messages", nil)
	}
	if msg.SenderChannel.IsBot() && msg.ParticipantID != nil {
		return validationError("automated messages cannot carry a participantId", nil)
	}

	if !msg.IsResponse() {
		return nil
	}
	if !msg.SenderChannel.IsBot() {
		return validationError("responses must be sent by community-bot or private-bot", nil)
	}
	if msg.Intervened || msg.InterventionCategory != nil {
		return validationError("responses cannot be flagged", nil)
	}
	if *msg.RespondsToMessageID == msg.ID {
		return validationError("a message cannot respond to itself", nil)
	}
	return nil
}

func (s *Service) checkMessageReferences(ctx context.Context, msg models.Message) error {
	if _, err := s.store.GetGroup(ctx, msg.CommunityID, msg.GroupID); err != nil {
		if isNotFound(err) {
			return validationError("unknown group", map[string]any{"groupId": msg.GroupID})
		}
		return err
	}
	if msg.ParticipantID != nil {
		if _, err := s.store.GetParticipant(ctx, msg.CommunityID, *msg.ParticipantID); err != nil {
			if isNotFound(err) {
				return validationError("unknown participant", map[string]any{"participantId": *msg.ParticipantID})
			}
			return err
		}
	}
	if !msg.IsResponse() {
		return nil
	}

	original, err := s.store.GetMessage(ctx, msg.CommunityID, *msg.RespondsToMessageID)
	if err != nil {
		if isNotFound(err) {
			return validationError("respondsToMessageId does not reference a message in this community", map[string]any{
				"respondsToMessageId": *msg.RespondsToMessageID,
			})
		}
		return err
	}
	if original.IsResponse() {
		return validationError("responses must reference an original message", nil)
	}
	if msg.CreatedAt.Before(original.CreatedAt) {
		return validationError("a response cannot predate its original", nil)
	}
	return nil
}

// Search queries indexed messages of one community.
func (s *Service) Search(ctx context.Context, communityID string, query search.Query) (search.Response, error) {
	if err := requireCommunity(communityID); err != nil {
		return search.Response{}, err
	}
	query.CommunityID = communityID
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: query.Text}, nil
	}
	return s.search.Search(ctx, query), nil
}

// MessageThread returns the thread a message belongs to. A response id
// resolves to the thread of its original.
func (s *Service) MessageThread(ctx context.Context, communityID, messageID string) (threading.Thread, error) {
	if err := requireCommunity(communityID); err != nil {
		return threading.Thread{}, err
	}
	msg, err := s.store.GetMessage(ctx, communityID, messageID)
	if err != nil {
		if isNotFound(err) {
			return threading.Thread{}, notFound("MESSAGE_NOT_FOUND", "message not found")
		}
		return threading.Thread{}, err
	}
	if msg.IsResponse() {
		msg, err = s.store.GetMessage(ctx, communityID, *msg.RespondsToMessageID)
		if err != nil {
			if isNotFound(err) {
				return threading.Thread{}, notFound("MESSAGE_NOT_FOUND", "original message not found")
			}
			return threading.Thread{}, err
		}
	}

	responses, err := s.store.ListResponses(ctx, communityID, []string{msg.ID})
	if err != nil {
		return threading.Thread{}, err
	}
	thread, _ := threading.Build(append([]models.Message{msg}, responses...)).Lookup(msg.ID)
	return thread, nil
}
