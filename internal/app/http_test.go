package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"flowmod/api/internal/models"
	"flowmod/api/internal/store"
)

func newTestServer(fs *fakeStore, dir *fakeDirectory) http.Handler {
	return NewHTTPServer(newTestService(fs, dir), "*", zerolog.Nop()).Handler()
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response %q: %v", rr.Body.String(), err)
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	rr := doRequest(t, newTestServer(&fakeStore{}, nil), http.MethodGet, "/api/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ok := decodeResponse(t, rr)["ok"]; ok != true {
		t.Fatalf("expected ok=true, got %v", ok)
	}
}

func TestReadyEndpoint(t *testing.T) {
	healthy := doRequest(t, newTestServer(&fakeStore{}, nil), http.MethodGet, "/api/ready", nil)
	if healthy.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", healthy.Code)
	}
	if status := decodeResponse(t, healthy)["status"]; status != "ready" {
		t.Fatalf("expected ready, got %v", status)
	}

	fs := &fakeStore{pingFn: func(context.Context) error { return errors.New("connection refused") }}
	failing := doRequest(t, newTestServer(fs, nil), http.MethodGet, "/api/ready", nil)
	if failing.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", failing.Code)
	}
	payload := decodeResponse(t, failing)
	checks := payload["checks"].(map[string]any)
	database := checks["database"].(map[string]any)
	if database["status"] != "error" || database["error"] != "connection refused" {
		t.Fatalf("unexpected database check: %+v", database)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	handler := newTestServer(&fakeStore{}, nil)
	doRequest(t, handler, http.MethodGet, "/api/health", nil)

	rr := doRequest(t, handler, http.MethodGet, "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `flowmod_http_requests_total{method="GET",path="/api/health",status="200"}`) {
		t.Fatalf("expected labelled request counter in metrics output")
	}
}

func TestCreateParticipantEndpoint(t *testing.T) {
	var created models.Participant
	fs := &fakeStore{
		createParticipantFn: func(_ context.Context, p models.Participant) (models.Participant, error) {
			created = p
			return p, nil
		},
	}
	handler := newTestServer(fs, nil)

	rr := doRequest(t, handler, http.MethodPost, "/api/communities/org_1/participants", map[string]any{
		"displayName":     "Ana",
		"publicChannelId": "+4917000",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if created.CommunityID != "org_1" || created.PublicChannelID != "+4917000" {
		t.Fatalf("unexpected participant: %+v", created)
	}

	invalid := doRequest(t, handler, http.MethodPost, "/api/communities/org_1/participants", map[string]any{"displayName": "Ana"})
	if invalid.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", invalid.Code)
	}
	if code := decodeResponse(t, invalid)["code"]; code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", code)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/communities/org_1/messages", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	newTestServer(&fakeStore{}, nil).ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if code := decodeResponse(t, rr)["code"]; code != "INVALID_BODY" {
		t.Fatalf("expected INVALID_BODY, got %v", code)
	}
}

func TestStoreErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("insert group: %w", store.ErrConflict), http.StatusConflict, "CONFLICT"},
		{fmt.Errorf("insert group: %w", store.ErrInvalidReference), http.StatusUnprocessableEntity, "INVALID_REFERENCE"},
		{sql.ErrNoRows, http.StatusNotFound, "NOT_FOUND"},
		{errors.New("boom"), http.StatusInternalServerError, "SERVER_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			fs := &fakeStore{
				createGroupFn: func(context.Context, models.Group) (models.Group, error) {
					return models.Group{}, tc.err
				},
			}
			rr := doRequest(t, newTestServer(fs, nil), http.MethodPost, "/api/communities/org_1/groups", map[string]any{"name": "Runners"})
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			if code := decodeResponse(t, rr)["code"]; code != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, code)
			}
		})
	}
}

func TestThreadsEndpointQueryValidation(t *testing.T) {
	fs := &fakeStore{
		getMasterGroupFn: func(context.Context, string, string) (models.MasterGroup, error) {
			return masterGroup("mg_1", "g1"), nil
		},
	}
	handler := newTestServer(fs, nil)

	rr := doRequest(t, handler, http.MethodGet, "/api/communities/org_1/master-groups/mg_1/threads?flagged=maybe", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	rr = doRequest(t, handler, http.MethodGet, "/api/communities/org_1/master-groups/mg_1/threads?flagged=true&range=7days", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if threads, ok := decodeResponse(t, rr)["threads"].([]any); !ok || len(threads) != 0 {
		t.Fatalf("expected empty thread list, got %s", rr.Body.String())
	}
}

func TestAnalyticsEndpoint(t *testing.T) {
	fs := &fakeStore{
		getMasterGroupFn: func(_ context.Context, _ string, id string) (models.MasterGroup, error) {
			if id != "mg_1" {
				return models.MasterGroup{}, sql.ErrNoRows
			}
			return masterGroup("mg_1", "g1"), nil
		},
	}
	handler := newTestServer(fs, nil)

	rr := doRequest(t, handler, http.MethodGet, "/api/communities/org_1/master-groups/mg_1/analytics?range=90days", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	payload := decodeResponse(t, rr)
	if payload["messageGrowthRate"] != float64(0) {
		t.Fatalf("expected zero growth for empty windows, got %v", payload["messageGrowthRate"])
	}
	if hourly := payload["hourlyActivity"].([]any); len(hourly) != 24 {
		t.Fatalf("expected 24 hourly buckets, got %d", len(hourly))
	}

	missing := doRequest(t, handler, http.MethodGet, "/api/communities/org_1/master-groups/other/analytics", nil)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", missing.Code)
	}
	if code := decodeResponse(t, missing)["code"]; code != "MASTER_GROUP_NOT_FOUND" {
		t.Fatalf("expected MASTER_GROUP_NOT_FOUND, got %v", code)
	}
}

func TestGroupOptionsEndpointDegradesWithoutDirectory(t *testing.T) {
	name := "Walkers"
	fs := &fakeStore{
		listGroupsFn: func(context.Context, string) ([]models.Group, error) {
			return []models.Group{{ID: "L1", CommunityID: "org_1", Name: &name}}, nil
		},
	}
	rr := doRequest(t, newTestServer(fs, &fakeDirectory{}), http.MethodGet, "/api/communities/org_1/group-options", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	items := decodeResponse(t, rr)["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected one local-only option, got %v", items)
	}
	option := items[0].(map[string]any)
	if option["origin"] != "local-only" || option["id"] != "local-L1" {
		t.Fatalf("unexpected option: %+v", option)
	}
}

func TestAssignGroupEndpoint(t *testing.T) {
	fs := &fakeStore{
		assignGroupFn: func(_ context.Context, _, mgID, groupID string) (models.Group, error) {
			if groupID == "missing" {
				return models.Group{}, sql.ErrNoRows
			}
			return models.Group{ID: groupID, MasterGroupID: &mgID}, nil
		},
	}
	handler := newTestServer(fs, nil)

	rr := doRequest(t, handler, http.MethodPut, "/api/communities/org_1/master-groups/mg_1/groups/g1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := decodeResponse(t, rr)["masterGroupId"]; got != "mg_1" {
		t.Fatalf("expected masterGroupId mg_1, got %v", got)
	}

	rr = doRequest(t, handler, http.MethodPut, "/api/communities/org_1/master-groups/mg_1/groups/missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	rr := doRequest(t, newTestServer(&fakeStore{}, nil), http.MethodGet, "/api/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if code := decodeResponse(t, rr)["code"]; code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %v", code)
	}
}
