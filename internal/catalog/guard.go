package catalog

import (
	"context"
	"errors"

	"github.com/princekumarofficial/catalog-service/internal/storage"
	"github.com/princekumarofficial/catalog-service/internal/types/assets"
)

// authorize loads the asset from the record of truth and checks that
// principalID owns it. It runs before any side effect of a mutation.
func authorize(ctx context.Context, store storage.AssetStore, assetID, principalID string) (*assets.Asset, error) {
	a, err := store.GetAsset(ctx, assetID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newError(KindNotFound, "asset not found", err)
		}
		return nil, newError(KindPersistence, "failed to load asset", err)
	}
	if principalID == "" || a.OwnerID != principalID {
		return nil, newError(KindForbidden, "only the owner may modify this asset", nil)
	}
	return a, nil
}
