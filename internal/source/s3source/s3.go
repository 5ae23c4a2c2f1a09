// Package s3source fetches payloads from an AWS S3 (or S3-compatible)
// bucket.
package s3source

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/tartil-app/offlinecache/internal/codec"
	"github.com/tartil-app/offlinecache/internal/source"
	"github.com/tartil-app/offlinecache/internal/store"
)

// Compile-time checks.
var (
	_ source.Source = (*Source)(nil)
	_ source.Lister = (*Source)(nil)
)

// Source reads objects from an S3 bucket.
type Source struct {
	client *s3.Client
	bucket string
	prefix string
	codec  codec.Codec

	region   string
	endpoint string
}

// Option configures a Source.
type Option func(*Source)

// WithPrefix sets a key prefix for all objects.
func WithPrefix(prefix string) Option {
	return func(s *Source) { s.prefix = source.NormalizePrefix(prefix) }
}

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(s *Source) { s.region = region }
}

// WithEndpoint sets a custom endpoint (for S3-compatible services like
// MinIO). Path-style addressing is used.
func WithEndpoint(endpoint string) Option {
	return func(s *Source) { s.endpoint = endpoint }
}

// New creates an S3 source using the default AWS credential chain.
// The bucket must already exist.
func New(ctx context.Context, bucket string, c codec.Codec, opts ...Option) (*Source, error) {
	s := &Source{bucket: bucket, codec: c}
	for _, opt := range opts {
		opt(s)
	}

	var loadOpts []func(*config.LoadOptions) error
	if s.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(s.region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	s.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		if s.endpoint != "" {
			o.BaseEndpoint = aws.String(s.endpoint)
			o.UsePathStyle = true
		}
	})
	return s, nil
}

// Fetch downloads and decompresses the object for key.
func (s *Source) Fetch(ctx context.Context, key store.Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", source.ErrNotFound, key)
		}
		return nil, fmt.Errorf("fetching %s: %w", key, err)
	}
	defer result.Body.Close()

	data, err := codec.Decode(s.codec, result.Body)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", key, err)
	}
	return data, nil
}

// List pages through the bucket listing for kind. Objects outside the
// layout are skipped.
func (s *Source) List(ctx context.Context, kind store.Kind) iter.Seq2[store.Key, error] {
	return func(yield func(store.Key, error) bool) {
		p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(source.KindPrefix(s.prefix, kind)),
		})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				yield(store.Key{}, fmt.Errorf("listing objects: %w", err))
				return
			}
			for _, obj := range page.Contents {
				key, ok := source.ParseObjectKey(s.prefix, kind, aws.ToString(obj.Key), s.codec.Extension())
				if !ok {
					continue
				}
				if !yield(key, nil) {
					return
				}
			}
		}
	}
}

// Close releases resources.
func (s *Source) Close() error {
	// S3 client doesn't need explicit closing.
	return nil
}

func (s *Source) objectKey(key store.Key) string {
	return source.ObjectKey(s.prefix, key, s.codec.Extension())
}
