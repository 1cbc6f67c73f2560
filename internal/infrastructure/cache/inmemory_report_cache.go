package cache

import (
	"context"
	"sync"

	syncapp "github.com/tradeshelf/backend/internal/application/sync"
)

// InMemoryReportCache implements ReportCache using an in-memory map.
// This is suitable for single-instance deployments and testing.
type InMemoryReportCache struct {
	mu      sync.RWMutex
	reports map[string]*syncapp.RunReport
}

// NewInMemoryReportCache creates a new in-memory report cache.
func NewInMemoryReportCache() *InMemoryReportCache {
	return &InMemoryReportCache{reports: make(map[string]*syncapp.RunReport)}
}

// StoreReport saves the report as the latest of its kind.
func (c *InMemoryReportCache) StoreReport(_ context.Context, kind string, report *syncapp.RunReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports[kind] = report
	return nil
}

// LatestReport returns the newest stored report of the kind, or nil when
// none has been recorded yet.
func (c *InMemoryReportCache) LatestReport(_ context.Context, kind string) (*syncapp.RunReport, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reports[kind], nil
}

// Size returns the number of stored reports (for testing/monitoring)
func (c *InMemoryReportCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.reports)
}

// Ensure InMemoryReportCache implements ReportCache
var _ ReportCache = (*InMemoryReportCache)(nil)
