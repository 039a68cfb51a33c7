// Package tasks carries the side effects that must never hold up or fail a
// response: view counting, watch history and cascade cleanup. Failures are
// logged by the executor and dropped.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/princekumarofficial/catalog-service/internal/storage"
)

type Kind string

const (
	KindViewRecorded Kind = "asset.viewed"
	KindAssetDeleted Kind = "asset.deleted"
)

type Task struct {
	Kind     Kind      `json:"kind"`
	AssetID  string    `json:"asset_id"`
	ViewerID string    `json:"viewer_id,omitempty"`
	IssuedAt time.Time `json:"issued_at"`
}

func ViewRecorded(assetID, viewerID string) Task {
	return Task{Kind: KindViewRecorded, AssetID: assetID, ViewerID: viewerID, IssuedAt: time.Now().UTC()}
}

func AssetDeleted(assetID string) Task {
	return Task{Kind: KindAssetDeleted, AssetID: assetID, IssuedAt: time.Now().UTC()}
}

// Dispatcher hands a task off for background execution. Dispatch returns
// promptly and never reports failure to the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, t Task)
}

// Handler executes tasks against the catalog repository.
type Handler struct {
	store storage.Storage
	log   *zap.Logger
}

func NewHandler(store storage.Storage, log *zap.Logger) *Handler {
	return &Handler{store: store, log: log}
}

func (h *Handler) Handle(ctx context.Context, t Task) error {
	switch t.Kind {
	case KindViewRecorded:
		var errs []error
		if err := h.store.IncrementViews(ctx, t.AssetID); err != nil {
			errs = append(errs, fmt.Errorf("increment views: %w", err))
		}
		if t.ViewerID != "" {
			if err := h.store.AppendWatchHistory(ctx, t.ViewerID, t.AssetID); err != nil {
				errs = append(errs, fmt.Errorf("append watch history: %w", err))
			}
		}
		return errors.Join(errs...)

	case KindAssetDeleted:
		n, err := h.store.DeleteEngagement(ctx, t.AssetID)
		if err != nil {
			return fmt.Errorf("delete engagement: %w", err)
		}
		h.log.Debug("engagement removed", zap.String("asset_id", t.AssetID), zap.Int64("rows", n))
		return nil
	}
	return fmt.Errorf("unknown task kind %q", t.Kind)
}

// run executes t and logs the outcome. It is the single place where task
// failures end up.
func run(ctx context.Context, h *Handler, log *zap.Logger, t Task) {
	if err := h.Handle(ctx, t); err != nil {
		log.Error("task failed",
			zap.String("kind", string(t.Kind)),
			zap.String("asset_id", t.AssetID),
			zap.Error(err))
	}
}
