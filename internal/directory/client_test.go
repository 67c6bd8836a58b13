package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"flowmod/api/internal/models"
)

func newTestClient(url string, threshold int) *Client {
	return New(Config{
		BaseURL:          url,
		Token:            "secret",
		Timeout:          time.Second,
		BreakerThreshold: threshold,
		BreakerOpenFor:   time.Minute,
	}, zerolog.Nop())
}

func TestGroupsDecodesListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/groups" || r.URL.Query().Get("communityId") != "org 1" {
			t.Errorf("unexpected request: %s", r.URL.String())
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"groups":[{"id":42,"name":"Book Club","size":12},{"id":"g7","name":"Runners","size":3},{"id":null,"name":"ghost"}]}`))
	}))
	defer srv.Close()

	got := newTestClient(srv.URL, 3).Groups(context.Background(), "org 1")
	want := []models.ExternalGroupRecord{
		{ExternalGroupID: "42", Name: "Book Club", MemberCount: 12},
		{ExternalGroupID: "g7", Name: "Runners", MemberCount: 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected groups (-want +got):\n%s", diff)
	}
}

func TestGroupsDegradesToEmpty(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusBadGateway)
		},
		"unsuccessful": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"groups":[{"id":"g1","name":"x"}]}`))
		},
		"garbage": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()
			got := newTestClient(srv.URL, 5).Groups(context.Background(), "org_1")
			if got == nil || len(got) != 0 {
				t.Fatalf("expected empty non-nil list, got %#v", got)
			}
		})
	}
}

func TestGroupsUnconfigured(t *testing.T) {
	client := New(Config{}, zerolog.Nop())
	if client.Enabled() {
		t.Fatal("client without base url must be disabled")
	}
	if got := client.Groups(context.Background(), "org_1"); len(got) != 0 {
		t.Fatalf("expected empty list, got %+v", got)
	}
}

func TestGroupsBreakerOpens(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 2)
	for i := 0; i < 5; i++ {
		client.Groups(context.Background(), "org_1")
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected breaker to stop calls after 2 failures, got %d", got)
	}

	client.Groups(context.Background(), "org_2")
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("breaker must be per community, got %d calls", got)
	}
}

func TestBreakerRecovers(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerOptions{Threshold: 2, Window: time.Minute, OpenFor: 10 * time.Second})
	b.now = func() time.Time { return now }

	if b.Failure("k") {
		t.Fatal("first failure must not open")
	}
	if !b.Failure("k") {
		t.Fatal("second failure should open")
	}
	if b.Allow("k") {
		t.Fatal("open breaker allowed a call")
	}
	now = now.Add(11 * time.Second)
	if !b.Allow("k") {
		t.Fatal("breaker should half-open after OpenFor")
	}
	b.Success("k")
	if !b.Allow("k") {
		t.Fatal("success should reset the breaker")
	}
}
