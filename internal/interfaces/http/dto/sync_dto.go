package dto

// RefreshRequest asks for a refresh run over queued identifiers.
// Count zero or absent means the server default.
type RefreshRequest struct {
	Count int `json:"count" binding:"omitempty,min=0"`
}

// StatusQuery selects which run report to return
type StatusQuery struct {
	Kind string `form:"kind" binding:"omitempty,oneof=sweep refresh"`
}
