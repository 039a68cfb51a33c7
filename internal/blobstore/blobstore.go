// Package blobstore talks to the external object store that holds asset
// payloads. Implementations must treat Delete of a missing object as success.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"

	"github.com/google/uuid"
)

// Payload is a locally spooled upload waiting to be pushed to the store.
type Payload struct {
	Path        string
	Filename    string
	ContentType string
	Size        int64
}

// Release removes the local file backing p. Safe to call more than once.
func (p *Payload) Release() error {
	if p == nil || p.Path == "" {
		return nil
	}
	if err := os.Remove(p.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

type PutInput struct {
	Key     string
	Payload *Payload
	// Probe asks the store to measure the media duration of the payload.
	Probe bool
}

// Object is what the store hands back for a stored payload.
type Object struct {
	ExternalID string
	URL        string
	Duration   float64
}

type Store interface {
	// Put uploads in.Payload under in.Key. A failed Put has already issued a
	// best-effort removal of the key.
	Put(ctx context.Context, in PutInput) (*Object, error)
	// Delete removes the object. Missing objects are not an error.
	Delete(ctx context.Context, externalID string) error
}

// Slot names the two payload positions of an asset.
type Slot string

const (
	SlotVideo     Slot = "video"
	SlotThumbnail Slot = "thumbnail"
)

var fallbackExt = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"video/mp4":       ".mp4",
	"video/mpeg":      ".mpeg",
	"video/webm":      ".webm",
	"video/quicktime": ".mov",
}

// ObjectKey creates a unique object key for a payload of ownerID.
func ObjectKey(ownerID string, slot Slot, contentType string) string {
	ext, ok := fallbackExt[contentType]
	if !ok {
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	return fmt.Sprintf("users/%s/assets/%s/%s%s", ownerID, slot, uuid.New().String(), ext)
}
