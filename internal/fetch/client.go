// Package fetch talks to the FAST Protocol community-activity API and
// converts its loosely-shaped payloads into validated domain records at
// a strict parse boundary.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"fastboard/internal/log"
)

const pageLimit = 200

// Client fetches entities, stats and per-entity user lists. All
// requests pass through a shared rate limiter so bursts of paginated
// calls stay polite toward the upstream API.
type Client struct {
	baseURL           string
	httpClient        *http.Client
	limiter           *rate.Limiter
	maxUsersPerEntity int
	logger            *log.Logger
}

// Stats is the aggregate view returned by the stats endpoint.
type Stats struct {
	UniqueUsers  int            `json:"uniqueUsers"`
	TotalRecords int            `json:"totalRecords"`
	ByEntity     map[string]int `json:"byEntity"`
}

// Options configures a Client.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RateDelay         time.Duration
	MaxUsersPerEntity int
	Logger            *log.Logger
}

// NewClient creates a FAST Protocol API client.
func NewClient(opts Options) *Client {
	limit := rate.Inf
	if opts.RateDelay > 0 {
		limit = rate.Every(opts.RateDelay)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Client{
		baseURL:           strings.TrimRight(opts.BaseURL, "/"),
		httpClient:        &http.Client{Timeout: opts.Timeout},
		limiter:           rate.NewLimiter(limit, 1),
		maxUsersPerEntity: opts.MaxUsersPerEntity,
		logger:            logger.WithComponent("fetch"),
	}
}

// Entities returns the list of collection names known to the API.
func (c *Client) Entities(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, "/api/user-community-activity/entities", nil)
	if err != nil {
		return nil, err
	}
	entities, err := decodeEntities(body)
	if err != nil {
		return nil, err
	}
	c.logger.InfoContext(ctx, "Fetched entity list", "count", len(entities))
	return entities, nil
}

// Stats returns the aggregate activity statistics.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	body, err := c.get(ctx, "/api/user-community-activity/stats", nil)
	if err != nil {
		return Stats{}, err
	}
	return decodeStats(body)
}

// EntityUsers returns the wallet addresses of users who claimed the
// given entity, following limit/offset pagination until a short page
// or the per-entity cap is reached.
func (c *Client) EntityUsers(ctx context.Context, entity string) ([]string, error) {
	var all []string
	offset := 0

	for {
		if c.maxUsersPerEntity > 0 && len(all) >= c.maxUsersPerEntity {
			break
		}

		params := url.Values{}
		params.Set("limit", strconv.Itoa(pageLimit))
		params.Set("offset", strconv.Itoa(offset))

		body, err := c.get(ctx, "/api/user-community-activity/entity/"+url.PathEscape(entity), params)
		if err != nil {
			return nil, err
		}

		addrs, err := decodeUsers(body)
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", entity, err)
		}
		if len(addrs) == 0 {
			break
		}
		all = append(all, addrs...)
		if len(addrs) < pageLimit {
			break
		}
		offset += pageLimit
	}

	if c.maxUsersPerEntity > 0 && len(all) > c.maxUsersPerEntity {
		all = all[:c.maxUsersPerEntity]
	}

	c.logger.InfoContext(ctx, "Fetched entity users", log.FieldEntity, entity, log.FieldWalletCount, len(all))
	return all, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	requestURL := c.baseURL + path
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", requestURL, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", requestURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", requestURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request %s: unexpected status %d", requestURL, resp.StatusCode)
	}
	return body, nil
}
