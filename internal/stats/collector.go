// Package stats provides a unified interface for collecting metrics.
package stats

// Metric names used throughout the library.
const (
	// Manager metrics.
	MetricWrites        = "offlinecache_writes_total"
	MetricWriteFailures = "offlinecache_write_failures_total"
	MetricEvictions     = "offlinecache_evictions_total"
	MetricClears        = "offlinecache_clears_total"
	MetricCorruptReads  = "offlinecache_corrupt_reads_total"
	MetricStorageFull   = "offlinecache_storage_full_total"
	MetricDrift         = "offlinecache_drift_total"
	MetricWriteSeconds  = "offlinecache_write_seconds"

	// Gauges mirroring the current snapshot.
	MetricVerses    = "offlinecache_verses"
	MetricAudio     = "offlinecache_audio"
	MetricSizeBytes = "offlinecache_size_bytes"
	MetricReady     = "offlinecache_ready"
	MetricOnline    = "offlinecache_online"

	// Prefetch metrics.
	MetricFetches       = "offlinecache_source_fetches_total"
	MetricFetchFailures = "offlinecache_source_fetch_failures_total"

	// Read cache metrics.
	MetricCacheHits   = "offlinecache_cache_hits_total"
	MetricCacheMisses = "offlinecache_cache_misses_total"
	MetricCacheSize   = "offlinecache_cache_size"
)

var help = map[string]string{
	MetricWrites:        "Successful verse and audio writes.",
	MetricWriteFailures: "Writes that failed and were rolled back.",
	MetricEvictions:     "Entries removed by Evict.",
	MetricClears:        "Calls to Clear.",
	MetricCorruptReads:  "Reads that failed checksum verification.",
	MetricStorageFull:   "Writes rejected for lack of space.",
	MetricDrift:         "Verify runs that found accounting drift.",
	MetricWriteSeconds:  "Duration of store writes in seconds.",
	MetricVerses:        "Cached verse entries.",
	MetricAudio:         "Cached audio entries.",
	MetricSizeBytes:     "Total cached payload bytes.",
	MetricReady:         "1 when offline-ready, otherwise 0.",
	MetricOnline:        "1 when the network is reachable, otherwise 0.",
	MetricFetches:       "Payloads fetched from a remote source.",
	MetricFetchFailures: "Remote fetches that failed.",
	MetricCacheHits:     "Read cache hits.",
	MetricCacheMisses:   "Read cache misses.",
	MetricCacheSize:     "Entries held in the read cache.",
}

// Help returns the description of a metric, or the name itself if unknown.
func Help(name string) string {
	if h, ok := help[name]; ok {
		return h
	}
	return name
}

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}

// Bool converts a flag to a gauge value.
func Bool(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
