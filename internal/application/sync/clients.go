package sync

import (
	"context"
	"time"

	"github.com/tradeshelf/backend/internal/infrastructure/sources"
)

// Client ports consumed by the processors. The sources package provides
// the HTTP implementations; tests substitute fakes.

// HubAPI is the companion hub service: change feed, bulk product info,
// and the cheap title and type maps.
type HubAPI interface {
	AppNames(ctx context.Context, since time.Time) (map[int64]string, error)
	AppTypes(ctx context.Context, since time.Time) (map[int64]string, error)
	Changes(ctx context.Context, sinceChangeNumber int64) (*sources.ChangeFeed, error)
	ProductInfos(ctx context.Context, ids []int64) ([]sources.ProductInfo, error)
}

// StoreAPI is the storefront web API.
type StoreAPI interface {
	HasAPIKey() bool
	AppList(ctx context.Context, modifiedSince time.Time, lastAppID int64) (*sources.AppListPage, error)
	AppDetails(ctx context.Context, appID int64) (*sources.StoreDetails, error)
	Reviews(ctx context.Context, appID int64) (*sources.ReviewSummary, error)
}

// DealsAPI is the price aggregator.
type DealsAPI interface {
	HasAPIKey() bool
	RecentlyChangedDeals(ctx context.Context, since time.Time) (map[string]sources.DealsGame, error)
	BundleIndex(ctx context.Context, since time.Time) ([]sources.DealsBundle, error)
	ByAppIDs(ctx context.Context, ids []int64) (map[string]*sources.DealsApp, error)
}

// CardsAPI is the trading-card dump.
type CardsAPI interface {
	SetData(ctx context.Context) ([]sources.CardSet, error)
}

// TrackerAPI is the delisting tracker.
type TrackerAPI interface {
	RemovedApps(ctx context.Context) ([]sources.RemovedApp, error)
}

// BarterAPI is the trading community's tag listing.
type BarterAPI interface {
	PlusOneAppIDs(ctx context.Context) ([]int64, error)
}
