// Package catalog defines the shared vocabulary for catalog entities: the
// column names each sync source may populate, the partial Record shape the
// pipeline moves around, and the pure helpers (normalization, price
// resolution, parent-first ordering) used by every source processor.
package catalog

// AppTable is the relational table holding catalog titles.
const AppTable = "apps"

// Column names for the apps table. Source processors populate only the
// subset they know about; the upsert engine scopes each write to exactly
// the populated columns.
const (
	FieldID              = "id"
	FieldChangeNumber    = "change_number"
	FieldParentID        = "parent_id"
	FieldTitle           = "title"
	FieldType            = "type"
	FieldDescription     = "description"
	FieldDevelopers      = "developers"
	FieldPublishers      = "publishers"
	FieldTags            = "tags"
	FieldCategories      = "categories"
	FieldLanguages       = "languages"
	FieldPlatforms       = "platforms"
	FieldWebsite         = "website"
	FieldFree            = "free"
	FieldPlusOne         = "plus_one"
	FieldExcludedFromLib = "exfgls"
	FieldDeckCompat      = "steamdeck"
	FieldHeader          = "header"
	FieldScreenshots     = "screenshots"
	FieldVideos          = "videos"
	FieldPositiveReviews = "positive_reviews"
	FieldNegativeReviews = "negative_reviews"
	FieldCards           = "cards"
	FieldAchievements    = "achievements"
	FieldRetailPrice     = "retail_price"
	FieldDiscountedPrice = "discounted_price"
	FieldMarketPrice     = "market_price"
	FieldHistoricalLow   = "historical_low"
	FieldRemovedAs       = "removed_as"
	FieldRemovedAt       = "removed_at"
	FieldReleasedAt      = "released_at"
)

// App types as stored. The removals feed reports "Uncategorized" for items
// it could not classify; that maps to TypeUnknown.
const (
	TypeUnknown  = "unknown"
	TypeGame     = "game"
	TypeDLC      = "dlc"
	TypeDemo     = "demo"
	TypeSoftware = "software"
	TypeVideo    = "video"
	TypeHardware = "hardware"
	TypeMod      = "mod"
	TypeMusic    = "music"
	TypeTool     = "tool"
)
