package storage

import (
	"context"
	"errors"

	"github.com/princekumarofficial/catalog-service/internal/types/assets"
	"github.com/princekumarofficial/catalog-service/internal/types/users"
)

// ErrNotFound is returned when the addressed asset or owner does not exist.
var ErrNotFound = errors.New("record not found")

// AssetChanges is a partial update. Nil fields are left untouched.
type AssetChanges struct {
	Title       *string
	Description *string
	VideoFile   *assets.MediaRef
	Thumbnail   *assets.MediaRef
	Duration    *float64
	IsPublished *bool
}

// Empty reports whether c would not change anything.
func (c AssetChanges) Empty() bool {
	return c.Title == nil && c.Description == nil && c.VideoFile == nil &&
		c.Thumbnail == nil && c.Duration == nil && c.IsPublished == nil
}

type AssetStore interface {
	CreateAsset(ctx context.Context, a *assets.Asset) error
	// GetAsset reads the bare record of truth, without owner projection.
	GetAsset(ctx context.Context, id string) (*assets.Asset, error)
	// GetAssetWithOwner reads the record with the owner summary resolved in the same query.
	GetAssetWithOwner(ctx context.Context, id string) (*assets.Asset, error)
	UpdateAsset(ctx context.Context, id string, changes AssetChanges) error
	DeleteAsset(ctx context.Context, id string) error
	// ListAssets returns one page of q and the total number of matches.
	ListAssets(ctx context.Context, q assets.ListQuery) ([]assets.Asset, int64, error)
	IncrementViews(ctx context.Context, id string) error
}

type EngagementStore interface {
	AddEngagement(ctx context.Context, e *assets.Engagement) error
	CountEngagement(ctx context.Context, assetID string, kind assets.EngagementKind) (int64, error)
	DeleteEngagement(ctx context.Context, assetID string) (int64, error)
}

type OwnerStore interface {
	CreateOwner(ctx context.Context, o *users.Owner) error
	GetOwner(ctx context.Context, id string) (*users.Owner, error)
	AppendWatchHistory(ctx context.Context, ownerID, assetID string) error
}

// Storage is the full catalog repository.
type Storage interface {
	AssetStore
	EngagementStore
	OwnerStore
}
