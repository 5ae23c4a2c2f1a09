// Package gcssource fetches payloads from a Google Cloud Storage bucket.
package gcssource

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/tartil-app/offlinecache/internal/codec"
	"github.com/tartil-app/offlinecache/internal/source"
	"github.com/tartil-app/offlinecache/internal/store"
)

// Compile-time checks.
var (
	_ source.Source = (*Source)(nil)
	_ source.Lister = (*Source)(nil)
)

// Source reads objects from a GCS bucket.
type Source struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
	codec  codec.Codec
}

// Option configures a Source.
type Option func(*Source)

// WithPrefix sets a key prefix for all objects.
func WithPrefix(prefix string) Option {
	return func(s *Source) { s.prefix = source.NormalizePrefix(prefix) }
}

// New creates a GCS source using application default credentials.
// The bucket must already exist.
func New(ctx context.Context, bucketName string, c codec.Codec, opts ...Option) (*Source, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}

	s := &Source{
		client: client,
		bucket: client.Bucket(bucketName),
		codec:  c,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewFromURL creates a source from a "gs://bucket/prefix" URL.
func NewFromURL(ctx context.Context, url string, c codec.Codec) (*Source, error) {
	bucket, prefix, err := ParseURL(url)
	if err != nil {
		return nil, err
	}
	return New(ctx, bucket, c, WithPrefix(prefix))
}

// ParseURL splits "gs://bucket/prefix" into bucket and normalized prefix.
func ParseURL(url string) (bucket, prefix string, err error) {
	path, ok := strings.CutPrefix(url, "gs://")
	if !ok {
		return "", "", fmt.Errorf("invalid GCS URL %q: must start with gs://", url)
	}
	bucket, prefix, _ = strings.Cut(path, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("invalid GCS URL %q: missing bucket name", url)
	}
	return bucket, source.NormalizePrefix(prefix), nil
}

// Fetch downloads and decompresses the object for key.
func (s *Source) Fetch(ctx context.Context, key store.Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reader, err := s.bucket.Object(s.objectKey(key)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", source.ErrNotFound, key)
		}
		return nil, fmt.Errorf("fetching %s: %w", key, err)
	}
	defer reader.Close()

	data, err := codec.Decode(s.codec, reader)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", key, err)
	}
	return data, nil
}

// List iterates the bucket listing for kind. Objects outside the layout are
// skipped.
func (s *Source) List(ctx context.Context, kind store.Kind) iter.Seq2[store.Key, error] {
	return func(yield func(store.Key, error) bool) {
		it := s.bucket.Objects(ctx, &storage.Query{Prefix: source.KindPrefix(s.prefix, kind)})
		for {
			attrs, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				yield(store.Key{}, fmt.Errorf("listing objects: %w", err))
				return
			}
			key, ok := source.ParseObjectKey(s.prefix, kind, attrs.Name, s.codec.Extension())
			if !ok {
				continue
			}
			if !yield(key, nil) {
				return
			}
		}
	}
}

// Close releases resources.
func (s *Source) Close() error {
	return s.client.Close()
}

func (s *Source) objectKey(key store.Key) string {
	return source.ObjectKey(s.prefix, key, s.codec.Extension())
}
