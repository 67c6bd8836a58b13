package app

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"flowmod/api/internal/cache"
	"flowmod/api/internal/config"
	"flowmod/api/internal/directory"
	"flowmod/api/internal/models"
	"flowmod/api/internal/search"
	"flowmod/api/internal/store"
	"flowmod/api/internal/util"
)

type dataStore interface {
	Ping(context.Context) error

	AppendMessage(context.Context, models.Message) (models.Message, error)
	GetMessage(context.Context, string, string) (models.Message, error)
	ListMessages(context.Context, store.MessageFilter) ([]models.Message, error)
	ListResponses(context.Context, string, []string) ([]models.Message, error)

	CreateParticipant(context.Context, models.Participant) (models.Participant, error)
	GetParticipant(context.Context, string, string) (models.Participant, error)
	ListParticipants(context.Context, string) ([]models.Participant, error)
	SetVerifiedChannel(context.Context, string, string, *string) (models.Participant, error)

	CreateGroup(context.Context, models.Group) (models.Group, error)
	GetGroup(context.Context, string, string) (models.Group, error)
	ListGroups(context.Context, string) ([]models.Group, error)
	AssignGroup(context.Context, string, string, string) (models.Group, error)

	CreateMasterGroup(context.Context, models.MasterGroup) (models.MasterGroup, error)
	GetMasterGroup(context.Context, string, string) (models.MasterGroup, error)
	ListMasterGroups(context.Context, string) ([]models.MasterGroup, error)
}

type groupDirectory interface {
	Groups(context.Context, string) []models.ExternalGroupRecord
}

type viewCache interface {
	Get(context.Context, cache.Key, any) (bool, error)
	Set(context.Context, cache.Key, any) error
	Ping(context.Context) error
}

type messageSearch interface {
	Search(context.Context, search.Query) search.Response
	IndexMessage(models.Message)
}

type Service struct {
	cfg       config.Config
	store     dataStore
	directory groupDirectory
	cache     viewCache
	search    messageSearch
	logger    zerolog.Logger
	now       func() time.Time
}

func New(cfg config.Config, dataStore *store.PostgresStore, directoryClient *directory.Client, logger zerolog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		directory: directoryClient,
		logger:    logger.With().Str("component", "service").Logger(),
		now:       time.Now,
	}
}

// WithCache enables memoization of derived views.
func (s *Service) WithCache(viewStore *cache.RedisStore) *Service {
	if viewStore != nil {
		s.cache = viewStore
	}
	return s
}

// WithSearch enables message indexing and the search endpoint.
func (s *Service) WithSearch(searchService *search.Service) *Service {
	if searchService != nil {
		s.search = searchService
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ReadinessCheck is the outcome of probing one dependency.
type ReadinessCheck struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Ready probes Postgres and, when configured, Redis.
func (s *Service) Ready(ctx context.Context) (bool, map[string]ReadinessCheck) {
	checks := map[string]ReadinessCheck{"database": {Status: "ok"}}
	ready := true
	if err := s.store.Ping(ctx); err != nil {
		ready = false
		checks["database"] = ReadinessCheck{Status: "error", Error: err.Error()}
	}
	if s.cache != nil {
		checks["cache"] = ReadinessCheck{Status: "ok"}
		if err := s.cache.Ping(ctx); err != nil {
			ready = false
			checks["cache"] = ReadinessCheck{Status: "error", Error: err.Error()}
		}
	}
	return ready, checks
}

// cachedView returns the memoized view under key, building and storing it on
// a miss. Cache failures are logged and bypassed.
func cachedView[T any](ctx context.Context, s *Service, key cache.Key, build func(context.Context) (T, error)) (T, error) {
	if s.cache != nil {
		var hit T
		found, err := s.cache.Get(ctx, key, &hit)
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Str("view", key.View).Msg("view cache lookup failed")
		case found:
			return hit, nil
		}
	}

	view, err := build(ctx)
	if err != nil {
		return view, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, view); err != nil {
			s.logger.Warn().Err(err).Str("view", key.View).Msg("view cache store failed")
		}
	}
	return view, nil
}

func requireCommunity(communityID string) error {
	if strings.TrimSpace(communityID) == "" {
		return validationError("communityId is required", nil)
	}
	return nil
}

type CreateParticipantInput struct {
	DisplayName       string     `json:"displayName"`
	PublicChannelID   string     `json:"publicChannelId"`
	VerifiedChannelID string     `json:"verifiedChannelId"`
	JoinedAt          *time.Time `json:"joinedAt"`
}

func (s *Service) CreateParticipant(ctx context.Context, communityID string, input CreateParticipantInput) (models.Participant, error) {
	if err := requireCommunity(communityID); err != nil {
		return models.Participant{}, err
	}
	publicChannel := strings.TrimSpace(input.PublicChannelID)
	if publicChannel == "" {
		return models.Participant{}, validationError("publicChannelId is required", nil)
	}
	participant := models.Participant{
		ID:                util.NewID("prt"),
		CommunityID:       communityID,
		DisplayName:       strings.TrimSpace(input.DisplayName),
		PublicChannelID:   publicChannel,
		VerifiedChannelID: models.StringPtr(strings.TrimSpace(input.VerifiedChannelID)),
	}
	if input.JoinedAt != nil {
		participant.JoinedAt = input.JoinedAt.UTC()
	}
	return s.store.CreateParticipant(ctx, participant)
}

func (s *Service) ListParticipants(ctx context.Context, communityID string) ([]models.Participant, error) {
	if err := requireCommunity(communityID); err != nil {
		return nil, err
	}
	return s.store.ListParticipants(ctx, communityID)
}

// SetVerifiedChannel records the operator-entered handle. A blank value
// clears it, disabling private responses for the participant.
func (s *Service) SetVerifiedChannel(ctx context.Context, communityID, participantID, verifiedChannelID string) (models.Participant, error) {
	participant, err := s.store.SetVerifiedChannel(ctx, communityID, participantID, models.StringPtr(strings.TrimSpace(verifiedChannelID)))
	if isNotFound(err) {
		return models.Participant{}, notFound("PARTICIPANT_NOT_FOUND", "participant not found")
	}
	return participant, err
}

type CreateGroupInput struct {
	Name            string `json:"name"`
	ExternalGroupID string `json:"externalGroupId"`
	MasterGroupID   string `json:"masterGroupId"`
}

func (s *Service) CreateGroup(ctx context.Context, communityID string, input CreateGroupInput) (models.Group, error) {
	if err := requireCommunity(communityID); err != nil {
		return models.Group{}, err
	}
	name := strings.TrimSpace(input.Name)
	externalID := strings.TrimSpace(input.ExternalGroupID)
	if name == "" && externalID == "" {
		return models.Group{}, validationError("name or externalGroupId is required", nil)
	}
	group := models.Group{
		ID:              util.NewID("grp"),
		CommunityID:     communityID,
		Name:            models.StringPtr(name),
		ExternalGroupID: models.StringPtr(externalID),
		MasterGroupID:   models.StringPtr(strings.TrimSpace(input.MasterGroupID)),
	}
	return s.store.CreateGroup(ctx, group)
}

func (s *Service) ListGroups(ctx context.Context, communityID string) ([]models.Group, error) {
	if err := requireCommunity(communityID); err != nil {
		return nil, err
	}
	return s.store.ListGroups(ctx, communityID)
}

type CreateMasterGroupInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Service) CreateMasterGroup(ctx context.Context, communityID string, input CreateMasterGroupInput) (models.MasterGroup, error) {
	if err := requireCommunity(communityID); err != nil {
		return models.MasterGroup{}, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return models.MasterGroup{}, validationError("name is required", nil)
	}
	return s.store.CreateMasterGroup(ctx, models.MasterGroup{
		ID:          util.NewID("mg"),
		CommunityID: communityID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
	})
}

func (s *Service) ListMasterGroups(ctx context.Context, communityID string) ([]models.MasterGroup, error) {
	if err := requireCommunity(communityID); err != nil {
		return nil, err
	}
	return s.store.ListMasterGroups(ctx, communityID)
}

// AssignGroup moves a local group under a master group. Both must belong to
// the community.
func (s *Service) AssignGroup(ctx context.Context, communityID, masterGroupID, groupID string) (models.Group, error) {
	group, err := s.store.AssignGroup(ctx, communityID, masterGroupID, groupID)
	if isNotFound(err) {
		return models.Group{}, notFound("GROUP_NOT_FOUND", "group or master group not found")
	}
	return group, err
}
