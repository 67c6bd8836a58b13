package app

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"flowmod/api/internal/analytics"
	"flowmod/api/internal/cache"
	"flowmod/api/internal/models"
	"flowmod/api/internal/reconcile"
	"flowmod/api/internal/stats"
	"flowmod/api/internal/store"
	"flowmod/api/internal/threading"
)

func parseRange(raw string, fallback analytics.Preset) (analytics.Preset, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	preset, err := analytics.ParsePreset(raw)
	if err != nil {
		return "", validationError("range must be one of 7days, 30days, 90days, all", map[string]any{"range": raw})
	}
	return preset, nil
}

// scope is the set of local groups a master-group view covers.
type scope struct {
	master   models.MasterGroup
	groupIDs []string
}

func (s *Service) resolveScope(ctx context.Context, communityID, masterGroupID, groupID string) (scope, error) {
	master, err := s.store.GetMasterGroup(ctx, communityID, masterGroupID)
	if err != nil {
		if isNotFound(err) {
			return scope{}, notFound("MASTER_GROUP_NOT_FOUND", "master group not found")
		}
		return scope{}, err
	}
	out := scope{master: master, groupIDs: make([]string, 0, len(master.Groups))}
	for _, group := range master.Groups {
		if groupID == "" || group.ID == groupID {
			out.groupIDs = append(out.groupIDs, group.ID)
		}
	}
	if groupID != "" && len(out.groupIDs) == 0 {
		return scope{}, domainError(http.StatusNotFound, "GROUP_NOT_IN_SCOPE", "group is not a member of this master group", map[string]any{
			"groupId": groupID,
		})
	}
	return out, nil
}

func (sc scope) key() string {
	return sc.master.ID + "/" + strings.Join(sc.groupIDs, ",")
}

// threadSnapshot loads the originals matching filter plus every response to
// them, wherever the responses fall in time.
func (s *Service) threadSnapshot(ctx context.Context, filter store.MessageFilter) ([]models.Message, error) {
	filter.OriginalsOnly = true
	originals, err := s.store.ListMessages(ctx, filter)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(originals))
	for _, msg := range originals {
		ids = append(ids, msg.ID)
	}
	responses, err := s.store.ListResponses(ctx, filter.CommunityID, ids)
	if err != nil {
		return nil, err
	}
	return append(originals, responses...), nil
}

// scopedMessages lists messages of the scope's groups. An empty scope has no
// messages rather than every message of the community.
func (s *Service) scopedMessages(ctx context.Context, sc scope, filter store.MessageFilter) ([]models.Message, error) {
	if len(sc.groupIDs) == 0 {
		return []models.Message{}, nil
	}
	filter.CommunityID = sc.master.CommunityID
	filter.GroupIDs = sc.groupIDs
	return s.store.ListMessages(ctx, filter)
}

type ParticipantStatsView struct {
	Window analytics.Window `json:"window"`
	stats.CommunityStats
}

// ParticipantStats aggregates the community roster over a window. Without a
// range every stored message counts.
func (s *Service) ParticipantStats(ctx context.Context, communityID, rawRange string) (ParticipantStatsView, error) {
	if err := requireCommunity(communityID); err != nil {
		return ParticipantStatsView{}, err
	}
	preset, err := parseRange(rawRange, analytics.PresetAll)
	if err != nil {
		return ParticipantStatsView{}, err
	}
	window := analytics.WindowFor(preset, s.now())

	var (
		roster   []models.Participant
		messages []models.Message
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		roster, err = s.store.ListParticipants(gctx, communityID)
		return err
	})
	g.Go(func() error {
		var err error
		messages, err = s.threadSnapshot(gctx, store.MessageFilter{CommunityID: communityID, From: window.Start, To: window.End})
		return err
	})
	if err := g.Wait(); err != nil {
		return ParticipantStatsView{}, err
	}

	return ParticipantStatsView{
		Window:         window,
		CommunityStats: stats.Aggregate(roster, threading.Build(messages)),
	}, nil
}

type ParticipantThreadsView struct {
	Participant    models.Participant `json:"participant"`
	HasVerified    bool               `json:"hasVerifiedChannel"`
	Threads        []threading.Thread `json:"threads"`
	AssistedCount  int                `json:"assistedCount"`
	RespondedCount int                `json:"respondedCount"`
}

// ParticipantThreads lists every original a participant sent with the
// responses it drew.
func (s *Service) ParticipantThreads(ctx context.Context, communityID, participantID string) (ParticipantThreadsView, error) {
	participant, err := s.store.GetParticipant(ctx, communityID, participantID)
	if err != nil {
		if isNotFound(err) {
			return ParticipantThreadsView{}, notFound("PARTICIPANT_NOT_FOUND", "participant not found")
		}
		return ParticipantThreadsView{}, err
	}
	messages, err := s.threadSnapshot(ctx, store.MessageFilter{CommunityID: communityID, ParticipantID: participantID})
	if err != nil {
		return ParticipantThreadsView{}, err
	}

	view := ParticipantThreadsView{
		Participant: participant,
		HasVerified: participant.HasVerifiedChannel(),
		Threads:     threading.Build(messages).ByParticipant(participantID),
	}
	for _, thread := range view.Threads {
		if thread.Original.Intervened {
			view.AssistedCount++
		}
		if len(thread.Responses) > 0 {
			view.RespondedCount++
		}
	}
	return view, nil
}

// GroupOptions reconciles the directory listing with the local registry.
func (s *Service) GroupOptions(ctx context.Context, communityID string) ([]reconcile.Option, error) {
	if err := requireCommunity(communityID); err != nil {
		return nil, err
	}
	key := cache.Key{View: "group-options", CommunityID: communityID}
	return cachedView(ctx, s, key, func(ctx context.Context) ([]reconcile.Option, error) {
		var (
			external []models.ExternalGroupRecord
			local    []models.Group
			masters  []models.MasterGroup
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			external = s.directory.Groups(gctx, communityID)
			return nil
		})
		g.Go(func() error {
			var err error
			local, err = s.store.ListGroups(gctx, communityID)
			return err
		})
		g.Go(func() error {
			var err error
			masters, err = s.store.ListMasterGroups(gctx, communityID)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return reconcile.Options(external, local, masters), nil
	})
}

type ThreadQuery struct {
	MasterGroupID string
	GroupID       string
	FlaggedOnly   bool
	Range         string
}

type ThreadView struct {
	Window          analytics.Window                 `json:"window"`
	Threads         []threading.Thread               `json:"threads"`
	Dropped         int                              `json:"dropped"`
	Classifications map[threading.Classification]int `json:"classifications"`
}

// Threads builds the intervention threads of a master group, newest first.
func (s *Service) Threads(ctx context.Context, communityID string, query ThreadQuery) (ThreadView, error) {
	preset, err := parseRange(query.Range, analytics.PresetAll)
	if err != nil {
		return ThreadView{}, err
	}
	sc, err := s.resolveScope(ctx, communityID, query.MasterGroupID, query.GroupID)
	if err != nil {
		return ThreadView{}, err
	}
	window := analytics.WindowFor(preset, s.now())

	var messages []models.Message
	if len(sc.groupIDs) > 0 {
		messages, err = s.threadSnapshot(ctx, store.MessageFilter{
			CommunityID: communityID,
			GroupIDs:    sc.groupIDs,
			From:        window.Start,
			To:          window.End,
		})
		if err != nil {
			return ThreadView{}, err
		}
	}

	graph := threading.Build(messages)
	view := ThreadView{
		Window:          window,
		Threads:         graph.Threads,
		Dropped:         graph.Dropped,
		Classifications: make(map[threading.Classification]int),
	}
	if query.FlaggedOnly {
		view.Threads = graph.Flagged()
	}
	for _, thread := range view.Threads {
		view.Classifications[thread.Classification]++
	}
	return view, nil
}

// Analytics computes the windowed report for a master group, optionally
// narrowed to one member group.
func (s *Service) Analytics(ctx context.Context, communityID, masterGroupID, groupID, rawRange string) (analytics.Report, error) {
	preset, err := parseRange(rawRange, analytics.Preset30Days)
	if err != nil {
		return analytics.Report{}, err
	}
	sc, err := s.resolveScope(ctx, communityID, masterGroupID, groupID)
	if err != nil {
		return analytics.Report{}, err
	}
	window := analytics.WindowFor(preset, s.now())

	key := cache.Key{
		View:        "analytics",
		CommunityID: communityID,
		Scope:       sc.key(),
		Preset:      string(preset),
		Start:       window.Start,
		End:         window.End,
	}
	return cachedView(ctx, s, key, func(ctx context.Context) (analytics.Report, error) {
		input := analytics.Input{Window: window, Previous: []models.Message{}}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			input.Current, err = s.scopedMessages(gctx, sc, store.MessageFilter{From: window.Start, To: window.End})
			return err
		})
		if window.PreviousStart.Before(window.Start) {
			g.Go(func() error {
				var err error
				input.Previous, err = s.scopedMessages(gctx, sc, store.MessageFilter{From: window.PreviousStart, To: window.Start})
				return err
			})
		}
		g.Go(func() error {
			var err error
			input.Roster, err = s.store.ListParticipants(gctx, communityID)
			return err
		})
		if err := g.Wait(); err != nil {
			return analytics.Report{}, err
		}
		return analytics.Compute(input), nil
	})
}

type InterventionQuery struct {
	MasterGroupID string
	Range         string
	Category      string
	Query         string
}

type InterventionView struct {
	Window        analytics.Window          `json:"window"`
	Summary       stats.InterventionSummary `json:"summary"`
	Interventions []models.Message          `json:"interventions"`
	Categories    []models.CategoryInfo     `json:"categories"`
	Participants  map[string]string         `json:"participants"`
	Groups        map[string]string         `json:"groups"`
}

// Interventions summarises the flagged originals of a master group and
// returns those matching the category and text filters.
func (s *Service) Interventions(ctx context.Context, communityID string, query InterventionQuery) (InterventionView, error) {
	preset, err := parseRange(query.Range, analytics.PresetAll)
	if err != nil {
		return InterventionView{}, err
	}
	category := strings.TrimSpace(query.Category)
	if category == "all" {
		category = ""
	}
	sc, err := s.resolveScope(ctx, communityID, query.MasterGroupID, "")
	if err != nil {
		return InterventionView{}, err
	}
	now := s.now()
	window := analytics.WindowFor(preset, now)

	var (
		flagged []models.Message
		roster  []models.Participant
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		flagged, err = s.scopedMessages(gctx, sc, store.MessageFilter{From: window.Start, To: window.End, FlaggedOnly: true})
		return err
	})
	g.Go(func() error {
		var err error
		roster, err = s.store.ListParticipants(gctx, communityID)
		return err
	})
	if err := g.Wait(); err != nil {
		return InterventionView{}, err
	}

	participantNames := make(map[string]string, len(roster))
	for _, participant := range roster {
		participantNames[participant.ID] = participant.Label()
	}
	groupNames := make(map[string]string, len(sc.master.Groups))
	for _, group := range sc.master.Groups {
		groupNames[group.ID] = group.DisplayName()
	}

	return InterventionView{
		Window:  window,
		Summary: stats.SummarizeInterventions(flagged, now),
		Interventions: stats.FilterInterventions(flagged, stats.InterventionFilter{
			Category:         category,
			Query:            query.Query,
			ParticipantNames: participantNames,
			GroupNames:       groupNames,
		}),
		Categories:   models.Categories(),
		Participants: participantNames,
		Groups:       groupNames,
	}, nil
}
