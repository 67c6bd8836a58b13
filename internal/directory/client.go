// Package directory reads group listings from the external directory
// service. Every failure degrades to an empty listing.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"flowmod/api/internal/metrics"
	"flowmod/api/internal/models"
)

const maxBodyBytes = 4 << 20

var ErrUnavailable = errors.New("directory unavailable")

type Config struct {
	BaseURL          string
	Token            string
	Timeout          time.Duration
	BreakerThreshold int
	BreakerOpenFor   time.Duration
}

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	breaker *Breaker
	logger  zerolog.Logger
}

type groupsResponse struct {
	Success bool          `json:"success"`
	Groups  []remoteGroup `json:"groups"`
}

type remoteGroup struct {
	ID   remoteID `json:"id"`
	Name string   `json:"name"`
	Size int      `json:"size"`
}

// remoteID accepts both numeric and string group ids.
type remoteID string

func (id *remoteID) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*id = remoteID(text)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("group id: %w", err)
	}
	*id = remoteID(number.String())
	return nil
}

func New(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		baseURL: normalizeBaseURL(cfg.BaseURL),
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: NewBreaker(BreakerOptions{Threshold: cfg.BreakerThreshold, OpenFor: cfg.BreakerOpenFor}),
		logger:  logger.With().Str("component", "directory").Logger(),
	}
}

func normalizeBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "http://" + raw
	}
	return strings.TrimRight(raw, "/")
}

func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// Groups returns the directory's groups for a community. It never fails:
// an unconfigured client, an open breaker, a transport error, a non-2xx
// status or success=false all yield an empty list.
func (c *Client) Groups(ctx context.Context, communityID string) []models.ExternalGroupRecord {
	if !c.Enabled() {
		return []models.ExternalGroupRecord{}
	}
	if !c.breaker.Allow(communityID) {
		metrics.DirectoryFetches.WithLabelValues("open").Inc()
		return []models.ExternalGroupRecord{}
	}

	records, err := c.fetch(ctx, communityID)
	if err != nil {
		metrics.DirectoryFetches.WithLabelValues("error").Inc()
		if c.breaker.Failure(communityID) {
			c.logger.Warn().Str("community_id", communityID).Msg("directory breaker opened")
		}
		c.logger.Warn().Err(err).Str("community_id", communityID).Msg("directory lookup failed; continuing without external groups")
		return []models.ExternalGroupRecord{}
	}
	c.breaker.Success(communityID)
	metrics.DirectoryFetches.WithLabelValues("ok").Inc()
	return records
}

func (c *Client) fetch(ctx context.Context, communityID string) ([]models.ExternalGroupRecord, error) {
	endpoint := c.baseURL + "/api/groups?communityId=" + url.QueryEscape(communityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status=%d", ErrUnavailable, resp.StatusCode)
	}

	var payload groupsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode directory groups: %w", err)
	}
	if !payload.Success {
		return nil, fmt.Errorf("%w: success=false", ErrUnavailable)
	}

	records := make([]models.ExternalGroupRecord, 0, len(payload.Groups))
	for _, group := range payload.Groups {
		id := strings.TrimSpace(string(group.ID))
		if id == "" {
			continue
		}
		records = append(records, models.ExternalGroupRecord{
			ExternalGroupID: id,
			Name:            group.Name,
			MemberCount:     group.Size,
		})
	}
	return records, nil
}
