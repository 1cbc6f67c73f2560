package sources

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Community feeds: third-party dumps that publish a single JSON document
// per fetch. Delta filtering against these feeds happens client-side in
// the processors.

// CardsConfig configures the trading-card dump client.
type CardsConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

const defaultCardsBaseURL = "https://data.steam.tools"

// CardsClient fetches the community trading-card set dump.
type CardsClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewCardsClient creates a cards client.
func NewCardsClient(cfg *CardsConfig) (*CardsClient, error) {
	if cfg == nil {
		return nil, errors.New("cards configuration is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultCardsBaseURL
	}
	return &CardsClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(time.Duration(cfg.TimeoutSeconds) * time.Second),
	}, nil
}

// CardSet is one trading-card set in the dump. The dump encodes numbers
// as strings inconsistently, hence json.Number.
type CardSet struct {
	AppID     json.Number `json:"appid"`
	TrueCount json.Number `json:"true_count"`
	Added     int64       `json:"added"`
}

// AppIDInt returns the set's app id, or 0 when unparseable.
func (s *CardSet) AppIDInt() int64 {
	id, err := strconv.ParseInt(s.AppID.String(), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// CardCount returns the number of cards in the set.
func (s *CardSet) CardCount() int64 {
	n, err := strconv.ParseInt(s.TrueCount.String(), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// SetData fetches the full card-set dump. The dump host checks the
// referer header.
func (c *CardsClient) SetData(ctx context.Context) ([]CardSet, error) {
	var payload struct {
		Sets []CardSet `json:"sets"`
	}
	headers := map[string]string{"Referer": "https://steam.tools/cards/"}
	if err := getJSON(ctx, c.httpClient, c.baseURL+"/data/set_data.json", headers, &payload); err != nil {
		return nil, err
	}
	return payload.Sets, nil
}

// TrackerConfig configures the delisting-tracker client.
type TrackerConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

const defaultTrackerBaseURL = "https://steam-tracker.com"

// TrackerClient fetches the delisted-apps dump.
type TrackerClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewTrackerClient creates a tracker client.
func NewTrackerClient(cfg *TrackerConfig) (*TrackerClient, error) {
	if cfg == nil {
		return nil, errors.New("tracker configuration is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultTrackerBaseURL
	}
	return &TrackerClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(time.Duration(cfg.TimeoutSeconds) * time.Second),
	}, nil
}

// RemovedApp is one delisted title.
type RemovedApp struct {
	AppID     json.Number `json:"appid"`
	ChangedAt string      `json:"changed_at"`
	Category  string      `json:"category"`
	Type      string      `json:"type"`
}

// AppIDInt returns the app id, or 0 when unparseable.
func (a *RemovedApp) AppIDInt() int64 {
	id, err := strconv.ParseInt(a.AppID.String(), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// RemovedApps fetches the full delisting dump.
func (c *TrackerClient) RemovedApps(ctx context.Context) ([]RemovedApp, error) {
	var payload struct {
		RemovedApps []RemovedApp `json:"removed_apps"`
	}
	if err := getJSON(ctx, c.httpClient, c.baseURL+"/api?action=GetAppListV3", nil, &payload); err != nil {
		return nil, err
	}
	return payload.RemovedApps, nil
}

// BarterConfig configures the trading-community client.
type BarterConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

const defaultBarterBaseURL = "https://bartervg.com"

// BarterClient fetches the trading community's tag listings.
type BarterClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewBarterClient creates a barter client.
func NewBarterClient(cfg *BarterConfig) (*BarterClient, error) {
	if cfg == nil {
		return nil, errors.New("barter configuration is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBarterBaseURL
	}
	return &BarterClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(time.Duration(cfg.TimeoutSeconds) * time.Second),
	}, nil
}

// plusOneTagID is the community tag for titles that count toward the
// storefront library total.
const plusOneTagID = 531

// PlusOneAppIDs fetches the ids carrying the plus-one tag.
func (c *BarterClient) PlusOneAppIDs(ctx context.Context) ([]int64, error) {
	endpoint := c.baseURL + "/browse/tag/" + strconv.Itoa(plusOneTagID) + "/json"

	var payload map[string]json.RawMessage
	if err := getJSON(ctx, c.httpClient, endpoint, nil, &payload); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(payload))
	for key := range payload {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
