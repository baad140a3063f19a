// Package s3store implements artifact.Store on Amazon S3 or an S3-compatible
// object store.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"vidmerge/internal/artifact"
	"vidmerge/internal/config"
	"vidmerge/internal/fileutil"
	"vidmerge/internal/logging"
	"vidmerge/internal/services"
	"vidmerge/internal/videoid"
)

// API is the subset of *s3.Client the store uses.
type API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Options selects the bucket and optional key prefix.
type Options struct {
	Bucket string
	Prefix string
}

// Store is an S3-backed artifact.Store.
type Store struct {
	client API
	bucket string
	prefix string
	logger *slog.Logger
}

var (
	_ artifact.Store   = (*Store)(nil)
	_ artifact.Checker = (*Store)(nil)
)

const stageStore = "store"

// New wraps an existing client.
func New(client API, opts Options, logger *slog.Logger) *Store {
	return &Store{
		client: client,
		bucket: opts.Bucket,
		prefix: opts.Prefix,
		logger: logging.NewComponentLogger(logger, "s3_store"),
	}
}

// NewFromConfig loads AWS credentials from the default chain and builds a
// client honouring the configured region, endpoint and addressing style.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Store.S3Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Store.S3Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Store.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Store.S3Endpoint)
		}
		o.UsePathStyle = cfg.Store.S3UsePathStyle
	})
	return New(client, Options{Bucket: cfg.Store.S3Bucket, Prefix: cfg.Store.S3Prefix}, logger), nil
}

func (s *Store) key(tier artifact.Tier, id videoid.ID) string {
	if s.prefix == "" {
		return artifact.Key(tier, id)
	}
	return path.Join(s.prefix, artifact.Key(tier, id))
}

// Exists implements artifact.Store with HeadObject.
func (s *Store) Exists(ctx context.Context, tier artifact.Tier, id videoid.ID) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(tier, id)),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, services.Wrap(services.KindStorageUnavailable, stageStore, "exists", s.key(tier, id), err)
}

// Download implements artifact.Store, streaming the object body to dst.
func (s *Store) Download(ctx context.Context, tier artifact.Tier, id videoid.ID, dst string) error {
	key := s.key(tier, id)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return services.Wrap(services.KindNotFound, stageStore, "download", key, err)
		}
		return services.Wrap(services.KindStorageUnavailable, stageStore, "download", key, err)
	}
	defer out.Body.Close()

	sum, err := fileutil.WriteAtomic(dst, out.Body)
	if err != nil {
		return services.Wrap(services.KindStorageUnavailable, stageStore, "download", key, err)
	}
	if out.ContentLength != nil && *out.ContentLength != sum.Size {
		_ = os.Remove(dst)
		return services.Wrap(services.KindStorageUnavailable, stageStore, "download", key,
			fmt.Errorf("short read: expected %d bytes, got %d", *out.ContentLength, sum.Size))
	}
	logging.WithContext(ctx, s.logger).Debug("artifact downloaded",
		logging.String("key", key),
		logging.Int64("bytes", sum.Size),
	)
	return nil
}

// Upload implements artifact.Store. Non-MP4 sources are rejected before any
// bytes leave the host.
func (s *Store) Upload(ctx context.Context, src string, tier artifact.Tier, id videoid.ID) error {
	key := s.key(tier, id)
	if err := artifact.SniffFile(src); err != nil {
		return err
	}
	f, err := os.Open(src)
	if err != nil {
		return services.Wrap(services.KindStorageUnavailable, stageStore, "upload", key, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return services.Wrap(services.KindStorageUnavailable, stageStore, "upload", key, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(artifact.ContentType),
	})
	if err != nil {
		if isRejected(err) {
			return services.Wrap(services.KindInvalidArtifact, stageStore, "upload", key, err)
		}
		return services.Wrap(services.KindStorageUnavailable, stageStore, "upload", key, err)
	}
	logging.WithContext(ctx, s.logger).Debug("artifact uploaded",
		logging.String("key", key),
		logging.Int64("bytes", info.Size()),
	)
	return nil
}

// Check implements artifact.Checker with HeadBucket.
func (s *Store) Check(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("bucket %s: %w", s.bucket, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	var respErr *smithyhttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}

func isRejected(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "InvalidArgument", "BadDigest", "InvalidRequest", "EntityTooLarge", "InvalidDigest":
			return true
		}
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusBadRequest, http.StatusUnsupportedMediaType:
			return true
		}
	}
	return false
}
