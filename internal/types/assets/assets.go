package assets

import (
	"math"
	"time"

	"github.com/princekumarofficial/catalog-service/internal/types/users"
)

// MediaRef points at an object held by the external blob store.
type MediaRef struct {
	ExternalID string `json:"externalId" bson:"external_id"`
	URL        string `json:"url" bson:"url"`
}

// Asset represents one uploaded video in the catalog.
type Asset struct {
	ID          string              `json:"id" bson:"_id"`
	OwnerID     string              `json:"ownerId" bson:"owner_id"`
	Owner       *users.OwnerSummary `json:"owner,omitempty" bson:"owner,omitempty"`
	VideoFile   MediaRef            `json:"videoFile" bson:"video_file"`
	Thumbnail   MediaRef            `json:"thumbnail" bson:"thumbnail"`
	Title       string              `json:"title" bson:"title"`
	Description string              `json:"description" bson:"description"`
	Duration    float64             `json:"duration" bson:"duration"`
	Views       int64               `json:"views" bson:"views"`
	IsPublished bool                `json:"isPublished" bson:"published"`
	CreatedAt   time.Time           `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time           `json:"updatedAt" bson:"updated_at"`

	// Score is the text relevance of the row for the query that produced it.
	Score float64 `json:"-" bson:"score,omitempty"`
}

// Detail is the single asset view with its engagement counters.
type Detail struct {
	Asset
	LikeCount    int64 `json:"likeCount"`
	CommentCount int64 `json:"commentCount"`
}

type EngagementKind string

const (
	EngagementLike    EngagementKind = "like"
	EngagementComment EngagementKind = "comment"
)

// Engagement is a like or comment row pointing at an asset.
type Engagement struct {
	ID        string         `json:"id" bson:"_id"`
	AssetID   string         `json:"assetId" bson:"asset_id"`
	OwnerID   string         `json:"ownerId" bson:"owner_id"`
	Kind      EngagementKind `json:"kind" bson:"kind"`
	Content   string         `json:"content,omitempty" bson:"content,omitempty"`
	CreatedAt time.Time      `json:"createdAt" bson:"created_at"`
}

// SortField is one of the fields a listing may be ordered by.
type SortField string

const (
	SortCreatedAt SortField = "createdAt"
	SortViews     SortField = "views"
	SortDuration  SortField = "duration"
	SortTitle     SortField = "title"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ListQuery is a normalized listing request. Page and Limit are already
// clamped and SortBy is always a member of the allow list.
type ListQuery struct {
	Page      int
	Limit     int
	Search    string
	SortBy    SortField
	SortOrder SortOrder

	// OwnerID restricts the listing to one owner when set.
	OwnerID string
	// IncludeUnpublished is only ever set for an owner listing their own assets.
	IncludeUnpublished bool
}

// Offset is the number of rows skipped before the requested page. It
// saturates at math.MaxInt instead of wrapping.
func (q ListQuery) Offset() int {
	if q.Page <= 1 || q.Limit <= 0 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return math.MaxInt
	}
	return (q.Page - 1) * q.Limit
}

// Page is the listing envelope returned to clients.
type Page struct {
	Items      []Asset `json:"items"`
	TotalCount int64   `json:"totalCount"`
	TotalPages int64   `json:"totalPages"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	HasNext    bool    `json:"hasNext"`
	HasPrev    bool    `json:"hasPrev"`
}

// NewPage assembles the envelope for items found by q out of total matches.
func NewPage(q ListQuery, items []Asset, total int64) *Page {
	if items == nil {
		items = []Asset{}
	}
	var pages int64
	if total > 0 {
		pages = (total + int64(q.Limit) - 1) / int64(q.Limit)
	}
	return &Page{
		Items:      items,
		TotalCount: total,
		TotalPages: pages,
		Page:       q.Page,
		Limit:      q.Limit,
		HasNext:    int64(q.Page) < pages,
		HasPrev:    q.Page > 1 && total > 0,
	}
}
