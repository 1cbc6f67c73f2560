package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// StoreConfig configures the storefront API client.
type StoreConfig struct {
	APIKey         string
	WebAPIBaseURL  string // defaults to the public web API host
	StoreBaseURL   string // defaults to the public storefront host
	TimeoutSeconds int
}

const (
	defaultWebAPIBaseURL = "https://api.steampowered.com"
	defaultStoreBaseURL  = "https://store.steampowered.com"
)

// StoreClient talks to the storefront's web API and store-page endpoints.
type StoreClient struct {
	apiKey     string
	webAPIBase string
	storeBase  string
	httpClient *http.Client
}

// NewStoreClient creates a storefront client. The API key is only needed
// for the app-list endpoint; detail and review lookups are unauthenticated.
func NewStoreClient(cfg *StoreConfig) (*StoreClient, error) {
	if cfg == nil {
		return nil, errors.New("store configuration is required")
	}

	webAPIBase := cfg.WebAPIBaseURL
	if webAPIBase == "" {
		webAPIBase = defaultWebAPIBaseURL
	}
	storeBase := cfg.StoreBaseURL
	if storeBase == "" {
		storeBase = defaultStoreBaseURL
	}

	return &StoreClient{
		apiKey:     cfg.APIKey,
		webAPIBase: webAPIBase,
		storeBase:  storeBase,
		httpClient: newHTTPClient(time.Duration(cfg.TimeoutSeconds) * time.Second),
	}, nil
}

// HasAPIKey reports whether app-list sweeps are possible.
func (c *StoreClient) HasAPIKey() bool {
	return c.apiKey != ""
}

// AppListEntry is one row of the storefront app list.
type AppListEntry struct {
	AppID int64  `json:"appid"`
	Name  string `json:"name"`
}

// AppListPage is one cursor page of the storefront app list.
type AppListPage struct {
	Apps      []AppListEntry
	HaveMore  bool
	LastAppID int64
}

// AppList fetches one page of the full app list. Pass a zero
// modifiedSince for an unfiltered sweep and lastAppID of 0 for the first
// page.
func (c *StoreClient) AppList(ctx context.Context, modifiedSince time.Time, lastAppID int64) (*AppListPage, error) {
	if c.apiKey == "" {
		return nil, errors.New("store API key is not configured")
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("include_games", "true")
	params.Set("include_dlc", "true")
	params.Set("include_software", "true")
	params.Set("include_videos", "true")
	params.Set("include_hardware", "true")
	if !modifiedSince.IsZero() {
		params.Set("if_modified_since", strconv.FormatInt(modifiedSince.Unix(), 10))
	}
	if lastAppID > 0 {
		params.Set("last_appid", strconv.FormatInt(lastAppID, 10))
	}

	endpoint := c.webAPIBase + "/IStoreService/GetAppList/v1/?" + params.Encode()

	var payload struct {
		Response struct {
			Apps            []AppListEntry `json:"apps"`
			HaveMoreResults bool           `json:"have_more_results"`
			LastAppID       int64          `json:"last_appid"`
		} `json:"response"`
	}
	if err := getJSON(ctx, c.httpClient, endpoint, nil, &payload); err != nil {
		return nil, err
	}

	return &AppListPage{
		Apps:      payload.Response.Apps,
		HaveMore:  payload.Response.HaveMoreResults,
		LastAppID: payload.Response.LastAppID,
	}, nil
}

// StoreDetails is the storefront detail document for one app, reduced to
// the fields the pipeline consumes.
type StoreDetails struct {
	Type              string            `json:"type"`
	Name              string            `json:"name"`
	ShortDescription  string            `json:"short_description"`
	Developers        []string          `json:"developers"`
	Publishers        []string          `json:"publishers"`
	Website           string            `json:"website"`
	IsFree            bool              `json:"is_free"`
	SupportedLangs    string            `json:"supported_languages"`
	HeaderImage       string            `json:"header_image"`
	Platforms         map[string]bool   `json:"platforms"`
	Categories        []DescriptionItem `json:"categories"`
	Genres            []DescriptionItem `json:"genres"`
	Demos             []DemoRef         `json:"demos"`
	Screenshots       []Screenshot      `json:"screenshots"`
	Movies            []Movie           `json:"movies"`
	PriceOverview     *PriceOverview    `json:"price_overview"`
	Achievements      *AchievementCount `json:"achievements"`
	ReleaseDate       *ReleaseDate      `json:"release_date"`
	PackageGroups     []PackageGroup    `json:"package_groups"`
	FullgameReference *DemoRef          `json:"fullgame"`
}

// DescriptionItem is a category or genre row.
type DescriptionItem struct {
	Description string `json:"description"`
}

// DemoRef links a demo to its base title.
type DemoRef struct {
	AppID int64 `json:"appid"`
}

// Screenshot is one storefront screenshot.
type Screenshot struct {
	PathFull string `json:"path_full"`
}

// Movie is one storefront trailer.
type Movie struct {
	Webm struct {
		Max string `json:"max"`
	} `json:"webm"`
}

// PriceOverview carries storefront pricing in cents.
type PriceOverview struct {
	Initial int64 `json:"initial"`
	Final   int64 `json:"final"`
}

// AchievementCount is the storefront achievement total.
type AchievementCount struct {
	Total int64 `json:"total"`
}

// ReleaseDate is the storefront's free-text release date.
type ReleaseDate struct {
	Date string `json:"date"`
}

// PackageGroup lists purchase options; each sub is a storefront package.
type PackageGroup struct {
	Subs []PackageSub `json:"subs"`
}

// PackageSub is one purchasable package.
type PackageSub struct {
	PackageID  int64  `json:"packageid"`
	OptionText string `json:"option_text"`
}

// AppDetails fetches the storefront detail document for one app. A
// success=false payload yields an error, matching a delisted or hidden
// title.
func (c *StoreClient) AppDetails(ctx context.Context, appID int64) (*StoreDetails, error) {
	params := url.Values{}
	params.Set("appids", strconv.FormatInt(appID, 10))
	params.Set("cc", "us")
	params.Set("l", "english")
	endpoint := c.storeBase + "/api/appdetails?" + params.Encode()

	var payload map[string]struct {
		Success bool          `json:"success"`
		Data    *StoreDetails `json:"data"`
	}
	if err := getJSON(ctx, c.httpClient, endpoint, nil, &payload); err != nil {
		return nil, err
	}

	entry, ok := payload[strconv.FormatInt(appID, 10)]
	if !ok || !entry.Success || entry.Data == nil {
		return nil, fmt.Errorf("storefront returned no details for app %d", appID)
	}
	return entry.Data, nil
}

// ReviewSummary is the aggregate review count for one app.
type ReviewSummary struct {
	TotalPositive int64 `json:"total_positive"`
	TotalNegative int64 `json:"total_negative"`
}

// Reviews fetches the review summary for one app without paging through
// individual reviews.
func (c *StoreClient) Reviews(ctx context.Context, appID int64) (*ReviewSummary, error) {
	params := url.Values{}
	params.Set("json", "1")
	params.Set("review_type", "all")
	params.Set("purchase_type", "all")
	params.Set("filter_offtopic_activity", "0")
	params.Set("num_per_page", "0")
	params.Set("language", "all")
	endpoint := fmt.Sprintf("%s/appreviews/%d?%s", c.storeBase, appID, params.Encode())

	var payload struct {
		Success      int           `json:"success"`
		QuerySummary ReviewSummary `json:"query_summary"`
	}
	if err := getJSON(ctx, c.httpClient, endpoint, nil, &payload); err != nil {
		return nil, err
	}
	if payload.Success != 1 {
		return nil, fmt.Errorf("storefront review lookup failed for app %d", appID)
	}
	return &payload.QuerySummary, nil
}
