// Package export stores bulk export files in S3-compatible storage.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"sellerdesk/internal/config"
	"sellerdesk/internal/domain/bulk"
)

// objectAPI is the part of the S3 client the store uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3Store implements bulk.Exporter. Objects stay private; downloads go
// through presigned GET links.
type S3Store struct {
	client  objectAPI
	presign func(ctx context.Context, key string, ttl time.Duration) (string, error)
	bucket  string
	ttl     time.Duration
	now     func() time.Time
}

var _ bulk.Exporter = (*S3Store)(nil)

// NewS3Store connects to the bucket from cfg, creating it when missing.
// A custom endpoint switches to path-style addressing for MinIO.
func NewS3Store(ctx context.Context, cfg config.S3Config) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	presigner := s3.NewPresignClient(client)

	store := &S3Store{
		client: client,
		presign: func(ctx context.Context, key string, ttl time.Duration) (string, error) {
			req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(cfg.Bucket),
				Key:    aws.String(key),
			}, s3.WithPresignExpires(ttl))
			if err != nil {
				return "", err
			}
			return req.URL, nil
		},
		bucket: cfg.Bucket,
		ttl:    cfg.PresignTTL,
		now:    time.Now,
	}
	if store.ttl <= 0 {
		store.ttl = 15 * time.Minute
	}

	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Upload implements bulk.Exporter.
func (s *S3Store) Upload(ctx context.Context, key, contentType string, body []byte) (*bulk.Upload, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(s.bucket),
		Key:                aws.String(key),
		Body:               bytes.NewReader(body),
		ContentType:        aws.String(contentType),
		ContentLength:      aws.Int64(int64(len(body))),
		ContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", path.Base(key))),
	})
	if err != nil {
		return nil, fmt.Errorf("put object %s: %w", key, err)
	}

	url, err := s.presign(ctx, key, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("presign %s: %w", key, err)
	}
	return &bulk.Upload{
		Key:       key,
		URL:       url,
		Size:      int64(len(body)),
		ExpiresAt: s.now().Add(s.ttl),
	}, nil
}
