package blobstore

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/princekumarofficial/catalog-service/internal/config"
)

type MinIOStore struct {
	client     *minio.Client
	bucketName string
	useSSL     bool
	prober     Prober
	log        *zap.Logger
}

// NewMinIOStore creates a MinIO backed store and makes sure the bucket exists.
func NewMinIOStore(ctx context.Context, cfg config.MinIO, prober Prober, log *zap.Logger) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	s := &MinIOStore{
		client:     client,
		bucketName: cfg.BucketName,
		useSSL:     cfg.UseSSL,
		prober:     prober,
		log:        log,
	}

	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return s, nil
}

// ensureBucket creates the bucket if it doesn't exist
func (s *MinIOStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

func (s *MinIOStore) Put(ctx context.Context, in PutInput) (*Object, error) {
	var duration float64
	if in.Probe {
		d, err := s.prober.Duration(ctx, in.Payload.Path)
		if err != nil {
			return nil, err
		}
		duration = d
	}

	f, err := os.Open(in.Payload.Path)
	if err != nil {
		return nil, errors.Wrap(err, "open payload")
	}
	defer f.Close()

	_, err = s.client.PutObject(ctx, s.bucketName, in.Key, f, in.Payload.Size, minio.PutObjectOptions{
		ContentType: in.Payload.ContentType,
	})
	if err != nil {
		// A failed multipart upload may still leave parts or an object
		// behind, so clear the key before reporting.
		if derr := s.Delete(context.WithoutCancel(ctx), in.Key); derr != nil {
			s.log.Warn("cleanup after failed put", zap.String("key", in.Key), zap.Error(derr))
		}
		return nil, errors.Wrapf(err, "put object %s", in.Key)
	}

	return &Object{
		ExternalID: in.Key,
		URL:        s.mediaURL(in.Key),
		Duration:   duration,
	}, nil
}

// mediaURL returns the public URL for accessing the object (if bucket is public)
func (s *MinIOStore) mediaURL(objectKey string) string {
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}

	endpoint := strings.TrimPrefix(s.client.EndpointURL().String(), scheme+"://")
	return fmt.Sprintf("%s://%s/%s/%s", scheme, endpoint, s.bucketName, objectKey)
}

func (s *MinIOStore) Delete(ctx context.Context, externalID string) error {
	err := s.client.RemoveObject(ctx, s.bucketName, externalID, minio.RemoveObjectOptions{})
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return errors.Wrapf(err, "remove object %s", externalID)
}
