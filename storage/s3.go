package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	appconfig "alquilercito/config"
	"alquilercito/feeds"
)

// S3API is the subset of the S3 client the feed store needs.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3FeedStore reads feed files from an S3-compatible bucket, for deployments
// where the scraper publishes to object storage instead of a repository.
type S3FeedStore struct {
	client S3API
	bucket string
	prefix string
	limit  int64
}

// NewS3FeedStore creates a store backed by a real S3 client.
func NewS3FeedStore(ctx context.Context, cfg appconfig.S3Config) (*S3FeedStore, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return NewS3FeedStoreWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

func NewS3FeedStoreWithClient(client S3API, bucket, prefix string) *S3FeedStore {
	return &S3FeedStore{client: client, bucket: bucket, prefix: prefix, limit: feeds.MaxFeedSize}
}

// Key returns the object key for a feed file.
func (s *S3FeedStore) Key(filename string) string {
	return s.prefix + filename
}

func (s *S3FeedStore) Fetch(ctx context.Context, filename string) (string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.Key(filename)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return "", &feeds.FetchError{Filename: filename, StatusCode: 404, Reason: "no such key " + s.Key(filename)}
		}
		return "", fmt.Errorf("get object %s: %w", s.Key(filename), err)
	}
	defer out.Body.Close()

	data, err := feeds.ReadAll(out.Body, s.limit)
	if err != nil {
		return "", fmt.Errorf("read object %s: %w", s.Key(filename), err)
	}
	return data, nil
}
