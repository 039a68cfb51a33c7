package catalog

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/princekumarofficial/catalog-service/internal/storage"
	"github.com/princekumarofficial/catalog-service/internal/tasks"
	"github.com/princekumarofficial/catalog-service/internal/types/assets"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxPage keeps the row offset of any accepted page inside int.
	MaxPage = math.MaxInt / MaxLimit
)

var sortFields = map[string]assets.SortField{
	string(assets.SortCreatedAt): assets.SortCreatedAt,
	string(assets.SortViews):     assets.SortViews,
	string(assets.SortDuration):  assets.SortDuration,
	string(assets.SortTitle):     assets.SortTitle,
}

// ParseListParams normalizes raw listing parameters. It never fails: bad
// numbers fall back to defaults, out of range values are clamped and an
// unknown sort field resets ordering to newest first.
func ParseListParams(page, limit, search, sortBy, sortOrder string) assets.ListQuery {
	q := assets.ListQuery{
		Page:      DefaultPage,
		Limit:     DefaultLimit,
		Search:    strings.TrimSpace(search),
		SortBy:    assets.SortCreatedAt,
		SortOrder: assets.SortDesc,
	}

	if n, err := strconv.Atoi(strings.TrimSpace(page)); err == nil || errors.Is(err, strconv.ErrRange) {
		q.Page = min(max(n, 1), MaxPage)
	}
	if n, err := strconv.Atoi(strings.TrimSpace(limit)); err == nil || errors.Is(err, strconv.ErrRange) {
		q.Limit = min(max(n, 1), MaxLimit)
	}

	field, ok := sortFields[sortBy]
	if !ok {
		return q
	}
	q.SortBy = field
	if strings.EqualFold(sortOrder, string(assets.SortAsc)) {
		q.SortOrder = assets.SortAsc
	}
	return q
}

// Engine answers catalog reads.
type Engine struct {
	store storage.Storage
	tasks tasks.Dispatcher
	log   *zap.Logger
}

func NewEngine(store storage.Storage, dispatcher tasks.Dispatcher, log *zap.Logger) *Engine {
	return &Engine{store: store, tasks: dispatcher, log: log}
}

// List returns one page of published assets.
func (e *Engine) List(ctx context.Context, q assets.ListQuery) (*assets.Page, error) {
	q.OwnerID = ""
	q.IncludeUnpublished = false
	return e.list(ctx, q)
}

// ListByOwner returns the assets of ownerID. Unpublished assets are included
// only when the owner is asking.
func (e *Engine) ListByOwner(ctx context.Context, ownerID, principalID string, q assets.ListQuery) (*assets.Page, error) {
	q.OwnerID = ownerID
	q.IncludeUnpublished = principalID != "" && principalID == ownerID
	return e.list(ctx, q)
}

func (e *Engine) list(ctx context.Context, q assets.ListQuery) (*assets.Page, error) {
	items, total, err := e.store.ListAssets(ctx, q)
	if err != nil {
		return nil, newError(KindPersistence, "failed to fetch assets", err)
	}
	return assets.NewPage(q, items, total), nil
}

// Get returns one asset with its engagement counters and records the view.
// The returned view count already includes this view; the stored counter
// catches up asynchronously.
func (e *Engine) Get(ctx context.Context, assetID, viewerID string) (*assets.Detail, error) {
	a, err := e.store.GetAssetWithOwner(ctx, assetID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newError(KindNotFound, "asset not found", err)
		}
		return nil, newError(KindPersistence, "failed to fetch asset", err)
	}
	if !a.IsPublished && (viewerID == "" || viewerID != a.OwnerID) {
		return nil, newError(KindNotFound, "asset not found", nil)
	}

	var likes, comments int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := e.store.CountEngagement(gctx, assetID, assets.EngagementLike)
		likes = n
		return err
	})
	g.Go(func() error {
		n, err := e.store.CountEngagement(gctx, assetID, assets.EngagementComment)
		comments = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, newError(KindPersistence, "failed to count engagement", err)
	}

	e.tasks.Dispatch(ctx, tasks.ViewRecorded(assetID, viewerID))

	a.Views++
	return &assets.Detail{Asset: *a, LikeCount: likes, CommentCount: comments}, nil
}
