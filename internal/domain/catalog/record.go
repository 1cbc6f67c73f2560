package catalog

import (
	"sort"
	"strconv"
	"strings"
)

// Record is a partial row destined for a single table: a mapping from
// column name to value, always carrying the entity identifier. Records
// from different sources for the same identifier are never merged in
// memory; the store's conflict-key upsert merges them field by field.
type Record map[string]any

// NewAppRecord starts a record for the apps table.
func NewAppRecord(appID int64) Record {
	return Record{FieldID: appID}
}

// Set assigns a field, dropping nil values so absent upstream data is
// omitted rather than written as NULL.
func (r Record) Set(field string, value any) Record {
	if value == nil {
		return r
	}
	r[field] = value
	return r
}

// AppID returns the apps-table identifier, or 0 when the record carries a
// non-integer key.
func (r Record) AppID() int64 {
	switch v := r[FieldID].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// ParentID returns the parent identifier and whether one is set.
func (r Record) ParentID() (int64, bool) {
	switch v := r[FieldParentID].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}

// Has reports whether the field is populated.
func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// Signature returns the sorted comma-joined set of populated field names.
// Records sharing a signature can be written in one statement whose
// on-conflict update list touches exactly those fields.
func (r Record) Signature() string {
	fields := make([]string, 0, len(r))
	for field := range r {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return strings.Join(fields, ",")
}

// Fields returns the populated field names in sorted order.
func (r Record) Fields() []string {
	fields := make([]string, 0, len(r))
	for field := range r {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// Key extracts the conflict-key tuple for dedupe comparisons.
func (r Record) Key(conflictKeys []string) string {
	parts := make([]string, len(conflictKeys))
	for i, k := range conflictKeys {
		parts[i] = anyToString(r[k])
	}
	return strings.Join(parts, "\x1f")
}

func anyToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return ""
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

// AppIDs extracts the app identifiers from a set of app records.
func AppIDs(records []Record) []int64 {
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		if id := r.AppID(); id != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// LinkChild marks an existing record in the batch as a child of parentID
// with the given type, or appends a minimal stub when the child is not in
// the batch yet. Returns the possibly-extended batch.
func LinkChild(records []Record, childID, parentID int64, childType string) []Record {
	for _, r := range records {
		if r.AppID() == childID {
			r[FieldParentID] = parentID
			r[FieldType] = childType
			return records
		}
	}
	stub := NewAppRecord(childID).
		Set(FieldParentID, parentID).
		Set(FieldType, childType)
	return append(records, stub)
}
