// Package catalog holds the asset ingestion saga, the catalog query engine
// and the ownership guard shared by every mutation.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/princekumarofficial/catalog-service/internal/blobstore"
	"github.com/princekumarofficial/catalog-service/internal/storage"
	"github.com/princekumarofficial/catalog-service/internal/tasks"
	"github.com/princekumarofficial/catalog-service/internal/types/assets"
)

type CreateRequest struct {
	OwnerID     string
	Title       string
	Description string
	Published   bool
	Video       *blobstore.Payload
	Thumbnail   *blobstore.Payload
}

// UpdateRequest is a partial update. Nil fields keep their current value.
type UpdateRequest struct {
	AssetID     string
	PrincipalID string
	Title       *string
	Description *string
	Video       *blobstore.Payload
	Thumbnail   *blobstore.Payload
}

// Ingestor runs every mutation of the catalog. Uploads that cannot be
// committed to the repository are removed from the blob store again.
type Ingestor struct {
	store    storage.Storage
	blobs    blobstore.Store
	tasks    tasks.Dispatcher
	limits   Limits
	validate *validator.Validate
	log      *zap.Logger
}

func NewIngestor(store storage.Storage, blobs blobstore.Store, dispatcher tasks.Dispatcher, limits Limits, log *zap.Logger) *Ingestor {
	if limits.CompensationBudget <= 0 {
		limits.CompensationBudget = 30 * time.Second
	}
	return &Ingestor{
		store:    store,
		blobs:    blobs,
		tasks:    dispatcher,
		limits:   limits,
		validate: newValidator(),
		log:      log,
	}
}

// upload is one slot of a saga step. obj is set once the put succeeded.
type upload struct {
	slot    blobstore.Slot
	payload *blobstore.Payload
	obj     *blobstore.Object
}

func (u *upload) ref() *assets.MediaRef {
	return &assets.MediaRef{ExternalID: u.obj.ExternalID, URL: u.obj.URL}
}

// Create validates, uploads both payloads, then persists the record.
func (in *Ingestor) Create(ctx context.Context, req CreateRequest) (*assets.Asset, error) {
	defer in.release(req.Video, req.Thumbnail)

	meta := createMetadata{Title: *trimmed(&req.Title), Description: *trimmed(&req.Description)}
	if err := in.validateMetadata(meta); err != nil {
		return nil, err
	}
	if err := in.checkPayload(blobstore.SlotVideo, req.Video, true); err != nil {
		return nil, err
	}
	if err := in.checkPayload(blobstore.SlotThumbnail, req.Thumbnail, true); err != nil {
		return nil, err
	}

	video := &upload{slot: blobstore.SlotVideo, payload: req.Video}
	thumb := &upload{slot: blobstore.SlotThumbnail, payload: req.Thumbnail}
	if err := in.putAll(ctx, req.OwnerID, video, thumb); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	a := &assets.Asset{
		ID:          uuid.NewString(),
		OwnerID:     req.OwnerID,
		VideoFile:   *video.ref(),
		Thumbnail:   *thumb.ref(),
		Title:       meta.Title,
		Description: meta.Description,
		Duration:    video.obj.Duration,
		IsPublished: req.Published,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := in.store.CreateAsset(ctx, a); err != nil {
		in.compensate(ctx, "create failed", video, thumb)
		return nil, newError(KindPersistence, "failed to save asset", err)
	}

	created, err := in.store.GetAssetWithOwner(ctx, a.ID)
	if err != nil {
		in.log.Error("asset not readable after create",
			zap.String("asset_id", a.ID),
			zap.String("video", a.VideoFile.ExternalID),
			zap.String("thumbnail", a.Thumbnail.ExternalID),
			zap.Error(err))
		return nil, newError(KindAmbiguous, "asset was saved but could not be read back", err)
	}

	in.log.Info("asset created", zap.String("asset_id", created.ID), zap.String("owner_id", created.OwnerID))
	return created, nil
}

// Update applies the supplied fields. Replaced payloads are removed from the
// blob store only after the record points at the new ones.
func (in *Ingestor) Update(ctx context.Context, req UpdateRequest) (*assets.Asset, error) {
	defer in.release(req.Video, req.Thumbnail)

	meta := updateMetadata{Title: trimmed(req.Title), Description: trimmed(req.Description)}
	if meta.Title == nil && meta.Description == nil && req.Video == nil && req.Thumbnail == nil {
		return nil, newError(KindValidation, "nothing to update", nil)
	}
	if err := in.validateMetadata(meta); err != nil {
		return nil, err
	}
	if err := in.checkPayload(blobstore.SlotVideo, req.Video, false); err != nil {
		return nil, err
	}
	if err := in.checkPayload(blobstore.SlotThumbnail, req.Thumbnail, false); err != nil {
		return nil, err
	}

	current, err := authorize(ctx, in.store, req.AssetID, req.PrincipalID)
	if err != nil {
		return nil, err
	}

	var ups []*upload
	var video, thumb *upload
	if req.Video != nil {
		video = &upload{slot: blobstore.SlotVideo, payload: req.Video}
		ups = append(ups, video)
	}
	if req.Thumbnail != nil {
		thumb = &upload{slot: blobstore.SlotThumbnail, payload: req.Thumbnail}
		ups = append(ups, thumb)
	}
	if err := in.putAll(ctx, current.OwnerID, ups...); err != nil {
		return nil, err
	}

	changes := storage.AssetChanges{Title: meta.Title, Description: meta.Description}
	var replaced []string
	if video != nil {
		changes.VideoFile = video.ref()
		changes.Duration = &video.obj.Duration
		replaced = append(replaced, current.VideoFile.ExternalID)
	}
	if thumb != nil {
		changes.Thumbnail = thumb.ref()
		replaced = append(replaced, current.Thumbnail.ExternalID)
	}

	if err := in.store.UpdateAsset(ctx, req.AssetID, changes); err != nil {
		in.compensate(ctx, "update failed", ups...)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newError(KindNotFound, "asset not found", err)
		}
		return nil, newError(KindPersistence, "failed to update asset", err)
	}

	updated, rerr := in.store.GetAssetWithOwner(ctx, req.AssetID)
	in.discard(ctx, "replaced", replaced...)
	if rerr != nil {
		in.log.Error("asset not readable after update", zap.String("asset_id", req.AssetID), zap.Error(rerr))
		return nil, newError(KindAmbiguous, "asset was updated but could not be read back", rerr)
	}
	return updated, nil
}

// Delete removes the stored payloads, then the record, then hands the
// engagement cleanup to the task dispatcher. Once the guard passes the
// remaining steps run to completion even if the caller goes away.
func (in *Ingestor) Delete(ctx context.Context, assetID, principalID string) error {
	current, err := authorize(ctx, in.store, assetID, principalID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), in.limits.CompensationBudget)
	defer cancel()

	var g errgroup.Group
	for _, id := range []string{current.VideoFile.ExternalID, current.Thumbnail.ExternalID} {
		if id == "" {
			continue
		}
		g.Go(func() error {
			if err := in.blobs.Delete(ctx, id); err != nil {
				in.log.Warn("blob delete failed", zap.String("asset_id", assetID), zap.String("external_id", id), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := in.store.DeleteAsset(ctx, assetID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return newError(KindNotFound, "asset not found", err)
		}
		return newError(KindPersistence, "failed to delete asset", err)
	}

	in.tasks.Dispatch(ctx, tasks.AssetDeleted(assetID))
	in.log.Info("asset deleted", zap.String("asset_id", assetID))
	return nil
}

// SetPublished sets the publish flag, or flips it when published is nil.
func (in *Ingestor) SetPublished(ctx context.Context, assetID, principalID string, published *bool) (*assets.Asset, error) {
	current, err := authorize(ctx, in.store, assetID, principalID)
	if err != nil {
		return nil, err
	}

	next := !current.IsPublished
	if published != nil {
		next = *published
	}
	if err := in.store.UpdateAsset(ctx, assetID, storage.AssetChanges{IsPublished: &next}); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newError(KindNotFound, "asset not found", err)
		}
		return nil, newError(KindPersistence, "failed to update publish status", err)
	}

	updated, err := in.store.GetAssetWithOwner(ctx, assetID)
	if err != nil {
		return nil, newError(KindAmbiguous, "publish status was updated but could not be read back", err)
	}
	return updated, nil
}

// putAll uploads every slot concurrently and waits for all of them. If any
// slot fails, the ones that made it are removed again.
func (in *Ingestor) putAll(ctx context.Context, ownerID string, ups ...*upload) error {
	if len(ups) == 0 {
		return nil
	}

	var g errgroup.Group
	for _, u := range ups {
		g.Go(func() error {
			obj, err := in.blobs.Put(ctx, blobstore.PutInput{
				Key:     blobstore.ObjectKey(ownerID, u.slot, u.payload.ContentType),
				Payload: u.payload,
				Probe:   u.slot == blobstore.SlotVideo,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", u.slot, err)
			}
			u.obj = obj
			if u.slot == blobstore.SlotVideo && obj.Duration <= 0 {
				return fmt.Errorf("%s: no playable duration", u.slot)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		in.compensate(ctx, "upload failed", ups...)
		return newError(KindUpload, "failed to upload media", err)
	}
	return nil
}

// compensate removes the stored objects of every successful upload.
func (in *Ingestor) compensate(ctx context.Context, reason string, ups ...*upload) {
	var ids []string
	for _, u := range ups {
		if u != nil && u.obj != nil {
			ids = append(ids, u.obj.ExternalID)
		}
	}
	in.discard(ctx, reason, ids...)
}

// discard deletes objects on a context that survives caller cancellation.
// Failures are logged with the orphaned id and otherwise ignored.
func (in *Ingestor) discard(ctx context.Context, reason string, externalIDs ...string) {
	if len(externalIDs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), in.limits.CompensationBudget)
	defer cancel()

	for _, id := range externalIDs {
		if id == "" {
			continue
		}
		if err := in.blobs.Delete(ctx, id); err != nil {
			in.log.Error("orphaned blob",
				zap.String("reason", reason),
				zap.String("external_id", id),
				zap.Error(err))
		}
	}
}

func (in *Ingestor) release(payloads ...*blobstore.Payload) {
	for _, p := range payloads {
		if err := p.Release(); err != nil {
			in.log.Warn("failed to remove spooled payload", zap.String("path", p.Path), zap.Error(err))
		}
	}
}
