package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tartil-app/offlinecache"
	"github.com/tartil-app/offlinecache/internal/codec"
	"github.com/tartil-app/offlinecache/internal/codec/gzipcodec"
	"github.com/tartil-app/offlinecache/internal/codec/noopcodec"
	"github.com/tartil-app/offlinecache/internal/codec/zstdcodec"
	"github.com/tartil-app/offlinecache/internal/source"
	"github.com/tartil-app/offlinecache/internal/source/gcssource"
	"github.com/tartil-app/offlinecache/internal/source/s3source"
)

var prefetchCmd = &cobra.Command{
	Use:   "prefetch [KEY...]",
	Short: "Download records from a bucket into the cache",
	Long: `Download verses or recitations from a GCS or S3 bucket and cache them.

Records are named KEY args, or selected from the bucket listing with
--surah (optionally narrowed by --kind and --variant). Records already
cached are skipped. Prefetch refuses to run while offline and stops when
the cache is full.

Examples:
  # One surah of recitation by one reciter
  offlinecache prefetch --from gs://my-bucket/content --kind audio --variant alafasy --surah 36

  # Specific verses from S3-compatible storage
  offlinecache prefetch --from s3://content/v1 --endpoint http://localhost:9000 \
      verse/001/001/en.sahih verse/001/002/en.sahih`,
	RunE: runPrefetch,
}

var (
	prefetchFrom     string
	prefetchCodec    string
	prefetchKind     string
	prefetchVariant  string
	prefetchSurah    int
	prefetchRegion   string
	prefetchEndpoint string
)

func init() {
	prefetchCmd.Flags().StringVar(&prefetchFrom, "from", "", "bucket URL (gs://bucket/prefix or s3://bucket/prefix)")
	prefetchCmd.Flags().StringVar(&prefetchCodec, "codec", "zstd", "object compression: zstd, gzip, none")
	prefetchCmd.Flags().StringVar(&prefetchKind, "kind", "verse", "record kind to select with --surah: verse, audio")
	prefetchCmd.Flags().StringVar(&prefetchVariant, "variant", "", "translation or reciter to select with --surah")
	prefetchCmd.Flags().IntVar(&prefetchSurah, "surah", 0, "select every listed record of this surah")
	prefetchCmd.Flags().StringVar(&prefetchRegion, "region", "", "S3 region")
	prefetchCmd.Flags().StringVar(&prefetchEndpoint, "endpoint", "", "S3-compatible endpoint URL")
	prefetchCmd.Flags().IntVar(&concurrency, "concurrency", offlinecache.DefaultPrefetchConcurrency, "parallel downloads")
	_ = prefetchCmd.MarkFlagRequired("from")
	rootCmd.AddCommand(prefetchCmd)
}

func selectCodec(name string) (codec.Codec, error) {
	switch name {
	case "zstd":
		return zstdcodec.New(), nil
	case "gzip":
		return gzipcodec.New(), nil
	case "none":
		return noopcodec.New(), nil
	default:
		return nil, fmt.Errorf("unknown codec: %s", name)
	}
}

// openSource returns the bucket source and the address to probe for it.
func openSource(ctx context.Context, rawURL string, c codec.Codec) (source.Source, string, error) {
	switch {
	case strings.HasPrefix(rawURL, "gs://"):
		src, err := gcssource.NewFromURL(ctx, rawURL, c)
		return src, "storage.googleapis.com:443", err
	case strings.HasPrefix(rawURL, "s3://"):
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(rawURL, "s3://"), "/")
		if bucket == "" {
			return nil, "", fmt.Errorf("invalid S3 URL: %s", rawURL)
		}
		opts := []s3source.Option{s3source.WithPrefix(prefix)}
		if prefetchRegion != "" {
			opts = append(opts, s3source.WithRegion(prefetchRegion))
		}
		probe := "s3.amazonaws.com:443"
		if prefetchEndpoint != "" {
			opts = append(opts, s3source.WithEndpoint(prefetchEndpoint))
			probe = endpointAddress(prefetchEndpoint)
		}
		src, err := s3source.New(ctx, bucket, c, opts...)
		return src, probe, err
	default:
		return nil, "", fmt.Errorf("unsupported source URL: %s", rawURL)
	}
}

// endpointAddress turns an endpoint URL into host:port.
func endpointAddress(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	if u.Port() != "" {
		return u.Host
	}
	if u.Scheme == "http" {
		return u.Host + ":80"
	}
	return u.Host + ":443"
}

func runPrefetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var keys []offlinecache.Key
	for _, a := range args {
		k, err := offlinecache.ParseKey(a)
		if err != nil {
			return err
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 && prefetchSurah == 0 {
		return fmt.Errorf("nothing to prefetch; pass keys or --surah")
	}

	c, err := selectCodec(prefetchCodec)
	if err != nil {
		return err
	}
	src, defaultProbe, err := openSource(ctx, prefetchFrom, c)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer src.Close()

	if prefetchSurah > 0 {
		listed, err := listSurah(ctx, src)
		if err != nil {
			return err
		}
		keys = append(keys, listed...)
	}

	probe := probeAddr
	if probe == "" {
		probe = defaultProbe
	}
	s, err := openSession(ctx, probe)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Printf("Prefetching %d records from %s\n", len(keys), prefetchFrom)
	res, err := s.manager.Prefetch(ctx, src, keys)
	fmt.Printf("  Cached:  %d (%s)\n", res.Cached, offlinecache.FormatCacheSize(uint64(res.Bytes)))
	fmt.Printf("  Skipped: %d\n", res.Skipped)
	for _, k := range res.Missing {
		fmt.Printf("  MISSING: %s\n", k)
	}
	for _, k := range res.Failed {
		fmt.Printf("  FAILED:  %s\n", k)
	}
	switch {
	case errors.Is(err, offlinecache.ErrOffline):
		return fmt.Errorf("offline: %s is not reachable", probe)
	case errors.Is(err, offlinecache.ErrStorageFull):
		return fmt.Errorf("cache is full; raise --capacity or evict records")
	case err != nil:
		return err
	}
	fmt.Printf("Cache size: %s\n", offlinecache.FormatCacheSize(s.manager.Stats().Size))
	return nil
}

func listSurah(ctx context.Context, src source.Source) ([]offlinecache.Key, error) {
	lister, ok := src.(source.Lister)
	if !ok {
		return nil, fmt.Errorf("source cannot list objects; pass keys instead")
	}
	kind := offlinecache.KindVerse
	if prefetchKind == "audio" {
		kind = offlinecache.KindAudio
	} else if prefetchKind != "verse" {
		return nil, fmt.Errorf("unknown kind: %s", prefetchKind)
	}

	var keys []offlinecache.Key
	for k, err := range lister.List(ctx, kind) {
		if err != nil {
			return nil, fmt.Errorf("listing source: %w", err)
		}
		if k.Surah != prefetchSurah || (prefetchVariant != "" && k.Variant != prefetchVariant) {
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}
