package blobstore

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/princekumarofficial/catalog-service/internal/config"
)

type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	region   string
	endpoint string
	prober   Prober
	log      *zap.Logger
}

func NewS3Store(ctx context.Context, cfg config.S3, prober Prober, log *zap.Logger) (*S3Store, error) {
	awsConf, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Region))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsConf, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		region:   cfg.Region,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		prober:   prober,
		log:      log,
	}, nil
}

func (s *S3Store) Put(ctx context.Context, in PutInput) (*Object, error) {
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

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(in.Key),
		Body:        f,
		ContentType: aws.String(in.Payload.ContentType),
	})
	if err != nil {
		if derr := s.Delete(context.WithoutCancel(ctx), in.Key); derr != nil {
			s.log.Warn("cleanup after failed put", zap.String("key", in.Key), zap.Error(derr))
		}
		return nil, errors.Wrapf(err, "upload %s", in.Key)
	}

	return &Object{ExternalID: in.Key, URL: s.objectURL(in.Key), Duration: duration}, nil
}

func (s *S3Store) objectURL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, escaped)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, escaped)
}

// Delete relies on S3 answering 204 for keys that do not exist.
func (s *S3Store) Delete(ctx context.Context, externalID string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(externalID),
	})
	if err != nil {
		return errors.Wrapf(err, "delete %s", externalID)
	}
	return nil
}
