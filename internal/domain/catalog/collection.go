package catalog

import "github.com/google/uuid"

// Collection tables. Bundles from the deals feed become collections; tier
// ordering and app membership live in the two relation tables, both keyed
// by composite conflict keys.
const (
	CollectionTable         = "collections"
	CollectionAppTable      = "collection_apps"
	CollectionRelationTable = "collection_relations"
)

// Column names for the collections table.
const (
	CollectionFieldID          = "id"
	CollectionFieldTitle       = "title"
	CollectionFieldDescription = "description"
	CollectionFieldType        = "type"
	CollectionFieldPrivate     = "private"
	CollectionFieldLinks       = "links"
	CollectionFieldStartsAt    = "starts_at"
	CollectionFieldEndsAt      = "ends_at"
)

// Column names for collection_apps rows.
const (
	CollectionAppFieldCollectionID = "collection_id"
	CollectionAppFieldAppID        = "app_id"
	CollectionAppFieldSource       = "source"
)

// Column names for collection_relations rows.
const (
	CollectionRelationFieldCollectionID = "collection_id"
	CollectionRelationFieldParentID     = "parent_id"
)

// Collection types and membership sources.
const (
	CollectionTypeBundle  = "bundle"
	CollectionTypePackage = "steam-package"

	CollectionSourceSync = "sync"
)

// CollectionLink is an outbound reference attached to a collection.
type CollectionLink struct {
	Title string `json:"title"`
	Icon  string `json:"icon"`
	URL   string `json:"url"`
}

// NewCollectionID mints an identifier for a synced collection.
func NewCollectionID() string {
	return uuid.NewString()
}

// PackageCollectionID derives the stable identifier for a storefront
// package, so repeated syncs upsert the same row.
func PackageCollectionID(packageID int64) string {
	return "package-" + itoa(packageID)
}
