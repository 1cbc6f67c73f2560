package sources

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
)

// Category and tag ids in the hub's product info are numeric; the mapper
// needs their display names. A cached copy ships with the binary; the
// storefront exposes fresh tables for a forced refresh.

//go:embed assets/categories.json
var cachedCategories []byte

//go:embed assets/tags.json
var cachedTags []byte

type categoryRow struct {
	CategoryID int64  `json:"categoryid"`
	Name       string `json:"name"`
}

type tagRow struct {
	TagID int64  `json:"tagid"`
	Name  string `json:"name"`
}

// CachedCategories returns the bundled category id-to-name table.
func CachedCategories() (map[int64]string, error) {
	var rows []categoryRow
	if err := json.Unmarshal(cachedCategories, &rows); err != nil {
		return nil, fmt.Errorf("decode cached categories: %w", err)
	}
	out := make(map[int64]string, len(rows))
	for _, row := range rows {
		out[row.CategoryID] = row.Name
	}
	return out, nil
}

// CachedTags returns the bundled tag id-to-name table.
func CachedTags() (map[int64]string, error) {
	var rows []tagRow
	if err := json.Unmarshal(cachedTags, &rows); err != nil {
		return nil, fmt.Errorf("decode cached tags: %w", err)
	}
	out := make(map[int64]string, len(rows))
	for _, row := range rows {
		out[row.TagID] = row.Name
	}
	return out, nil
}

// StoreCategories fetches a fresh category table from the storefront.
func (c *StoreClient) StoreCategories(ctx context.Context) (map[int64]string, error) {
	params := url.Values{}
	params.Set("cc", "us")
	params.Set("l", "english")
	endpoint := c.storeBase + "/actions/ajaxgetstorecategories?" + params.Encode()

	var rows []categoryRow
	headers := map[string]string{"Referer": c.storeBase + "/"}
	if err := getJSON(ctx, c.httpClient, endpoint, headers, &rows); err != nil {
		return nil, err
	}

	out := make(map[int64]string, len(rows))
	for _, row := range rows {
		out[row.CategoryID] = row.Name
	}
	return out, nil
}

// StoreTags fetches a fresh tag table from the storefront.
func (c *StoreClient) StoreTags(ctx context.Context) (map[int64]string, error) {
	params := url.Values{}
	params.Set("cc", "us")
	params.Set("l", "english")
	endpoint := c.storeBase + "/actions/ajaxgetstoretags?" + params.Encode()

	var payload struct {
		Tags []tagRow `json:"tags"`
	}
	if err := getJSON(ctx, c.httpClient, endpoint, nil, &payload); err != nil {
		return nil, err
	}

	out := make(map[int64]string, len(payload.Tags))
	for _, row := range payload.Tags {
		out[row.TagID] = row.Name
	}
	return out, nil
}
