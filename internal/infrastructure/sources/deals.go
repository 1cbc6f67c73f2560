package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DealsConfig configures the price-aggregator API client.
type DealsConfig struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
}

const defaultDealsBaseURL = "https://api.gg.deals/steamkeytrade"

// maxDealsIDs is the aggregator's per-request identifier limit.
const maxDealsIDs = 100

// DealsClient talks to the deals aggregator. All endpoints require an API
// key header; paginated endpoints return absolute next-page URLs that are
// followed until exhausted.
type DealsClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewDealsClient creates a deals client.
func NewDealsClient(cfg *DealsConfig) (*DealsClient, error) {
	if cfg == nil {
		return nil, errors.New("deals configuration is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultDealsBaseURL
	}
	return &DealsClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(time.Duration(cfg.TimeoutSeconds) * time.Second),
	}, nil
}

// HasAPIKey reports whether the aggregator is usable.
func (c *DealsClient) HasAPIKey() bool {
	return c.apiKey != ""
}

// FlexPrice tolerates the aggregator's price encodings: JSON string,
// number, or null. The empty string means absent.
type FlexPrice string

// UnmarshalJSON implements json.Unmarshaler
func (p *FlexPrice) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*p = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = FlexPrice(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = FlexPrice(n.String())
	return nil
}

// DealsPrices carries the aggregator's four price variants.
type DealsPrices struct {
	CurrentRetail      FlexPrice `json:"currentRetail"`
	CurrentKeyshops    FlexPrice `json:"currentKeyshops"`
	HistoricalRetail   FlexPrice `json:"historicalRetail"`
	HistoricalKeyshops FlexPrice `json:"historicalKeyshops"`
}

// DealsGame is a game row in the recently-changed-deals feed.
type DealsGame struct {
	SteamIDs []int64     `json:"steamIds"`
	Prices   DealsPrices `json:"prices"`
}

type dealsEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type dealsErrorData struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// getPage fetches one aggregator page. An "Invalid since" rejection is
// reported through the retryWithoutSince flag so the caller can restart
// the sweep unfiltered.
func (c *DealsClient) getPage(ctx context.Context, pageURL string, out any) (retryWithoutSince bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return false, err
	}

	if resp.StatusCode == http.StatusBadRequest {
		var envelope struct {
			Success bool           `json:"success"`
			Data    dealsErrorData `json:"data"`
		}
		if jsonErr := json.Unmarshal(body, &envelope); jsonErr == nil &&
			!envelope.Success &&
			envelope.Data.Code == http.StatusBadRequest &&
			strings.Contains(envelope.Data.Message, "Invalid since") {
			return true, fmt.Errorf("deals API rejected since parameter: %s", envelope.Data.Message)
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, &HTTPError{Status: resp.StatusCode, StatusText: resp.Status, URL: pageURL}
	}

	var envelope dealsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false, fmt.Errorf("decode %s: %w", pageURL, err)
	}
	if !envelope.Success || envelope.Data == nil {
		return false, fmt.Errorf("deals API returned an error payload: %s", string(envelope.Data))
	}
	return false, json.Unmarshal(envelope.Data, out)
}

func sinceParam(since time.Time) string {
	if since.IsZero() {
		return ""
	}
	return "?since=" + strconv.FormatInt(since.Unix(), 10)
}

// RecentlyChangedDeals walks the recently-changed-deals pages and returns
// games keyed by aggregator id. When the same key appears on multiple
// pages, the earliest page wins: it carries the freshest prices.
func (c *DealsClient) RecentlyChangedDeals(ctx context.Context, since time.Time) (map[string]DealsGame, error) {
	firstPage := c.baseURL + "/game/recently-changed-deals/" + sinceParam(since)
	all := make(map[string]DealsGame)
	retriedWithoutSince := false

	pageURL := firstPage
	for pageURL != "" {
		var page struct {
			Next  string               `json:"next"`
			Games map[string]DealsGame `json:"games"`
		}
		retryWithoutSince, err := c.getPage(ctx, pageURL, &page)
		if err != nil {
			if retryWithoutSince && !retriedWithoutSince {
				retriedWithoutSince = true
				pageURL = c.baseURL + "/game/recently-changed-deals/"
				continue
			}
			return nil, err
		}

		for key, game := range page.Games {
			if _, seen := all[key]; !seen {
				all[key] = game
			}
		}
		pageURL = page.Next
	}

	return all, nil
}

// DealsBundleGame is one game inside a bundle tier.
type DealsBundleGame struct {
	Title    string  `json:"title"`
	SteamIDs []int64 `json:"steamIds"`
}

// DealsTier is one price tier of a bundle.
type DealsTier struct {
	Price FlexPrice         `json:"price"`
	Games []DealsBundleGame `json:"games"`
}

// DealsBundle is one bundle in the aggregator's bundle index.
type DealsBundle struct {
	Title    string      `json:"title"`
	URL      string      `json:"url"`
	DateFrom string      `json:"dateFrom"`
	DateTo   string      `json:"dateTo"`
	Tiers    []DealsTier `json:"tiers"`
}

// BundleIndex walks the bundle index pages changed since the watermark.
func (c *DealsClient) BundleIndex(ctx context.Context, since time.Time) ([]DealsBundle, error) {
	var all []DealsBundle

	pageURL := c.baseURL + "/bundle/index/" + sinceParam(since)
	for pageURL != "" {
		var page struct {
			Next    string        `json:"next"`
			Bundles []DealsBundle `json:"bundles"`
		}
		if _, err := c.getPage(ctx, pageURL, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Bundles...)
		pageURL = page.Next
	}

	return all, nil
}

// DealsApp is the aggregator's per-app detail row. Entries can be null
// when the aggregator does not track the app.
type DealsApp struct {
	Title  string      `json:"title"`
	Prices DealsPrices `json:"prices"`
}

// ByAppIDs fetches aggregator details for up to 100 apps in one call.
func (c *DealsClient) ByAppIDs(ctx context.Context, ids []int64) (map[string]*DealsApp, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > maxDealsIDs {
		return nil, fmt.Errorf("at most %d ids per deals request, got %d", maxDealsIDs, len(ids))
	}

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	pageURL := c.baseURL + "/game/by-steam-app-id/?ids=" + strings.Join(parts, ",")

	apps := make(map[string]*DealsApp)
	if _, err := c.getPage(ctx, pageURL, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}
