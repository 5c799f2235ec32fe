package simpleasset

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AssetStatus is the domain type for asset lifecycle states.
type AssetStatus string

// Asset status constants (typed).
const (
	AssetStatusPending   AssetStatus = "PENDING"
	AssetStatusCompleted AssetStatus = "COMPLETED"
	AssetStatusFailed    AssetStatus = "FAILED"
)

// SortDirection orders query results by upload date.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// ParseSortDirection normalizes a caller-supplied direction. Anything other
// than ASC (case-insensitive) yields DESC.
func ParseSortDirection(s string) SortDirection {
	if strings.EqualFold(strings.TrimSpace(s), string(SortAsc)) {
		return SortAsc
	}
	return SortDesc
}

// Asset is the persisted metadata and status of one ingested file.
//
// Content is only carried until the storage operation has been issued; the
// record stores never persist it.
type Asset struct {
	ID          uuid.UUID   `json:"id"`
	Filename    string      `json:"filename"`
	Content     []byte      `json:"-"`
	ContentType string      `json:"content_type"`
	Size        int64       `json:"size"`
	URL         string      `json:"url,omitempty"`
	UploadDate  time.Time   `json:"upload_date"`
	Status      AssetStatus `json:"status"`
}

// Clone returns a deep copy of the asset.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	c := *a
	if a.Content != nil {
		c.Content = append([]byte(nil), a.Content...)
	}
	return &c
}

// IsTerminal reports whether the asset reached COMPLETED or FAILED.
func (a *Asset) IsTerminal() bool {
	return a.Status == AssetStatusCompleted || a.Status == AssetStatusFailed
}

// AssetFilter is a caller-supplied query. Nil or blank fields are ignored.
type AssetFilter struct {
	UploadDateStart *time.Time
	UploadDateEnd   *time.Time
	Filename        *string
	ContentType     *string
	Statuses        []AssetStatus
	SortDirection   SortDirection
}
