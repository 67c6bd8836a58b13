package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"flowmod/api/internal/search"
	"flowmod/api/internal/store"
)

const maxBodyBytes = 1 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     zerolog.Logger
}

func NewHTTPServer(service *Service, corsOrigin string, logger zerolog.Logger) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, logger: logger}
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestMetrics)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins(s.corsOrigin),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ready", s.handleReady)

	r.Route("/api/communities/{communityID}", func(r chi.Router) {
		r.Use(noStore)

		r.Post("/messages", s.handleAppendMessage)
		r.Get("/messages/{messageID}/thread", s.handleMessageThread)
		r.Get("/search", s.handleSearch)

		r.Get("/participants", s.handleListParticipants)
		r.Post("/participants", s.handleCreateParticipant)
		r.Get("/participants/stats", s.handleParticipantStats)
		r.Put("/participants/{participantID}/verified-channel", s.handleSetVerifiedChannel)
		r.Get("/participants/{participantID}/threads", s.handleParticipantThreads)

		r.Get("/groups", s.handleListGroups)
		r.Post("/groups", s.handleCreateGroup)
		r.Get("/group-options", s.handleGroupOptions)

		r.Get("/master-groups", s.handleListMasterGroups)
		r.Post("/master-groups", s.handleCreateMasterGroup)
		r.Put("/master-groups/{masterGroupID}/groups/{groupID}", s.handleAssignGroup)
		r.Get("/master-groups/{masterGroupID}/threads", s.handleThreads)
		r.Get("/master-groups/{masterGroupID}/analytics", s.handleAnalytics)
		r.Get("/master-groups/{masterGroupID}/interventions", s.handleInterventions)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})
	return r
}

func corsOrigins(raw string) []string {
	origins := make([]string, 0)
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ready, checks := s.service.Ready(ctx)
	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, map[string]any{
		"ok":     ready,
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleAppendMessage(w http.ResponseWriter, r *http.Request) {
	var body AppendMessageInput
	if !s.decode(w, r, &body) {
		return
	}
	msg, err := s.service.AppendMessage(r.Context(), chi.URLParam(r, "communityID"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *HTTPServer) handleMessageThread(w http.ResponseWriter, r *http.Request) {
	thread, err := s.service.MessageThread(r.Context(), chi.URLParam(r, "communityID"), chi.URLParam(r, "messageID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := optionalInt(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", "limit must be an integer", nil)
		return
	}
	offset, err := optionalInt(q.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", "offset must be an integer", nil)
		return
	}
	resp, err := s.service.Search(r.Context(), chi.URLParam(r, "communityID"), search.Query{
		Text:          q.Get("q"),
		GroupID:       q.Get("groupId"),
		Category:      q.Get("category"),
		SenderChannel: q.Get("senderChannel"),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ListParticipants(r.Context(), chi.URLParam(r, "communityID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *HTTPServer) handleCreateParticipant(w http.ResponseWriter, r *http.Request) {
	var body CreateParticipantInput
	if !s.decode(w, r, &body) {
		return
	}
	participant, err := s.service.CreateParticipant(r.Context(), chi.URLParam(r, "communityID"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, participant)
}

func (s *HTTPServer) handleParticipantStats(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.ParticipantStats(r.Context(), chi.URLParam(r, "communityID"), r.URL.Query().Get("range"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleSetVerifiedChannel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		VerifiedChannelID string `json:"verifiedChannelId"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	participant, err := s.service.SetVerifiedChannel(r.Context(),
		chi.URLParam(r, "communityID"),
		chi.URLParam(r, "participantID"),
		body.VerifiedChannelID,
	)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, participant)
}

func (s *HTTPServer) handleParticipantThreads(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.ParticipantThreads(r.Context(), chi.URLParam(r, "communityID"), chi.URLParam(r, "participantID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleListGroups(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ListGroups(r.Context(), chi.URLParam(r, "communityID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *HTTPServer) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var body CreateGroupInput
	if !s.decode(w, r, &body) {
		return
	}
	group, err := s.service.CreateGroup(r.Context(), chi.URLParam(r, "communityID"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

func (s *HTTPServer) handleGroupOptions(w http.ResponseWriter, r *http.Request) {
	options, err := s.service.GroupOptions(r.Context(), chi.URLParam(r, "communityID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": options})
}

func (s *HTTPServer) handleListMasterGroups(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ListMasterGroups(r.Context(), chi.URLParam(r, "communityID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *HTTPServer) handleCreateMasterGroup(w http.ResponseWriter, r *http.Request) {
	var body CreateMasterGroupInput
	if !s.decode(w, r, &body) {
		return
	}
	mg, err := s.service.CreateMasterGroup(r.Context(), chi.URLParam(r, "communityID"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mg)
}

func (s *HTTPServer) handleAssignGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.service.AssignGroup(r.Context(),
		chi.URLParam(r, "communityID"),
		chi.URLParam(r, "masterGroupID"),
		chi.URLParam(r, "groupID"),
	)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *HTTPServer) handleThreads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	flaggedOnly := false
	if raw := q.Get("flagged"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_QUERY", "flagged must be a boolean", nil)
			return
		}
		flaggedOnly = parsed
	}
	view, err := s.service.Threads(r.Context(), chi.URLParam(r, "communityID"), ThreadQuery{
		MasterGroupID: chi.URLParam(r, "masterGroupID"),
		GroupID:       q.Get("groupId"),
		FlaggedOnly:   flaggedOnly,
		Range:         q.Get("range"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	report, err := s.service.Analytics(r.Context(),
		chi.URLParam(r, "communityID"),
		chi.URLParam(r, "masterGroupID"),
		q.Get("groupId"),
		q.Get("range"),
	)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *HTTPServer) handleInterventions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view, err := s.service.Interventions(r.Context(), chi.URLParam(r, "communityID"), InterventionQuery{
		MasterGroupID: chi.URLParam(r, "masterGroupID"),
		Range:         q.Get("range"),
		Category:      q.Get("category"),
		Query:         q.Get("q"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := decodeBody(w, r, target); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return false
	}
	return true
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
	} else if domainCode := errorCode(err); domainCode != "" {
		s.logger.Debug().Str("code", domainCode).Str("path", r.URL.Path).Msg("request rejected")
	}
	writeError(w, status, code, message, details)
}

func optionalInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, store.ErrConflict) {
		return http.StatusConflict, "CONFLICT", "Resource already exists", nil
	}
	if errors.Is(err, store.ErrInvalidReference) {
		return http.StatusUnprocessableEntity, "INVALID_REFERENCE", "Referenced resource does not exist", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
