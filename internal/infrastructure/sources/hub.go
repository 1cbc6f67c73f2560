package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// HubConfig configures the companion hub service client. The hub fronts
// the platform's internal change feed and bulk product-info lookups.
type HubConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// Validate checks the configuration
func (c *HubConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("hub base URL is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("invalid hub base URL: %w", err)
	}
	return nil
}

// HubClient talks to the companion hub service.
type HubClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHubClient creates a hub client from configuration.
func NewHubClient(cfg *HubConfig) (*HubClient, error) {
	if cfg == nil {
		return nil, errors.New("hub configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &HubClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: newHTTPClient(time.Duration(cfg.TimeoutSeconds) * time.Second),
	}, nil
}

// namesSince fetches an id-to-value map from a since-filtered endpoint.
func (c *HubClient) mapSince(ctx context.Context, path string, since time.Time) (map[int64]string, error) {
	endpoint := c.baseURL + path
	if !since.IsZero() {
		endpoint += "?since=" + strconv.FormatInt(since.Unix(), 10)
	}

	var raw map[string]string
	if err := getJSON(ctx, c.httpClient, endpoint, nil, &raw); err != nil {
		return nil, err
	}

	out := make(map[int64]string, len(raw))
	for key, value := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil || value == "" {
			continue
		}
		out[id] = value
	}
	return out, nil
}

// AppNames returns titles changed since the given time (all titles when
// since is zero).
func (c *HubClient) AppNames(ctx context.Context, since time.Time) (map[int64]string, error) {
	return c.mapSince(ctx, "/appnames", since)
}

// AppTypes returns app types changed since the given time.
func (c *HubClient) AppTypes(ctx context.Context, since time.Time) (map[int64]string, error) {
	return c.mapSince(ctx, "/apptypes", since)
}

// AppChange is one entry in the hub change feed.
type AppChange struct {
	AppID      int64 `json:"appid"`
	NeedsToken bool  `json:"needs_token"`
}

// ChangeFeed is the hub's monotonic change feed snapshot.
type ChangeFeed struct {
	CurrentChangeNumber int64       `json:"current_change_number"`
	Apps                []AppChange `json:"apps"`
}

// Changes returns all app changes after the given change number together
// with the feed's current change number.
func (c *HubClient) Changes(ctx context.Context, sinceChangeNumber int64) (*ChangeFeed, error) {
	endpoint := fmt.Sprintf("%s/changes?since=%d", c.baseURL, sinceChangeNumber)

	var feed ChangeFeed
	if err := getJSON(ctx, c.httpClient, endpoint, nil, &feed); err != nil {
		return nil, err
	}
	return &feed, nil
}

// ProductInfo is the hub's normalized product-info document for one app.
type ProductInfo struct {
	AppID           int64    `json:"appid"`
	ChangeNumber    int64    `json:"changenumber"`
	Type            string   `json:"type"`
	Name            string   `json:"name"`
	ReleaseDate     int64    `json:"release_date"`
	Developers      []string `json:"developers"`
	Publishers      []string `json:"publishers"`
	CategoryIDs     []int64  `json:"categories"`
	TagIDs          []int64  `json:"tags"`
	Languages       []string `json:"languages"`
	OSList          string   `json:"oslist"`
	DeckCompat      string   `json:"deck_compatibility"`
	ParentAppID     int64    `json:"parent"`
	ExcludedFromLib bool     `json:"exfgls"`
	Free            bool     `json:"free"`
	Homepage        string   `json:"homepage"`
	DLCAppIDs       []int64  `json:"dlc"`
}

// maxProductInfoIDs is the hub's per-request identifier limit.
const maxProductInfoIDs = 100

// ProductInfos fetches product info for up to 100 apps in one call.
func (c *HubClient) ProductInfos(ctx context.Context, ids []int64) ([]ProductInfo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > maxProductInfoIDs {
		return nil, fmt.Errorf("at most %d ids per product info request, got %d", maxProductInfoIDs, len(ids))
	}

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	endpoint := c.baseURL + "/appinfo?ids=" + strings.Join(parts, ",")

	var infos []ProductInfo
	if err := getJSON(ctx, c.httpClient, endpoint, nil, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}
