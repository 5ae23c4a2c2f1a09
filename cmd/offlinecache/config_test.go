package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyFileConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
data_dir = "/var/cache/quran"
capacity = 1073741824
shard = "fnv"
probe = "api.quran.com:443"
read_cache = 64
prefetch_concurrency = 8
verbose = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	fc, err := loadFileConfig(path)
	if err != nil {
		t.Fatalf("loadFileConfig() error = %v", err)
	}

	reset := func() {
		dataDir, capacity, probeAddr, readCache, concurrency, verbose = "./cache", 0, "", 0, 0, false
		shardLayout = "surah"
	}
	reset()
	t.Cleanup(reset)

	// Flags given on the command line win over the file.
	dataDir = "/tmp/override"
	applyFileConfig(fc, map[string]bool{"data-dir": true})

	if dataDir != "/tmp/override" {
		t.Errorf("dataDir = %q, want flag value", dataDir)
	}
	if capacity != 1<<30 {
		t.Errorf("capacity = %d, want %d", capacity, 1<<30)
	}
	if shardLayout != "fnv" {
		t.Errorf("shardLayout = %q, want %q", shardLayout, "fnv")
	}
	if probeAddr != "api.quran.com:443" {
		t.Errorf("probeAddr = %q", probeAddr)
	}
	if readCache != 64 || concurrency != 8 {
		t.Errorf("readCache = %d, concurrency = %d, want 64 and 8", readCache, concurrency)
	}
	if !verbose {
		t.Error("verbose = false, want true from file")
	}
}

func TestLoadFileConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("capacity = \"lots\""), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadFileConfig(path); err == nil {
		t.Error("loadFileConfig() with wrong type should return error")
	}
}

func TestEndpointAddress(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{"http://localhost:9000", "localhost:9000"},
		{"https://minio.example.com", "minio.example.com:443"},
		{"http://minio.local", "minio.local:80"},
		{"minio:9000", "minio:9000"},
	}
	for _, tt := range tests {
		if got := endpointAddress(tt.endpoint); got != tt.want {
			t.Errorf("endpointAddress(%q) = %q, want %q", tt.endpoint, got, tt.want)
		}
	}
}

func TestSelectCodec(t *testing.T) {
	for _, name := range []string{"zstd", "gzip", "none"} {
		if _, err := selectCodec(name); err != nil {
			t.Errorf("selectCodec(%q) error = %v", name, err)
		}
	}
	if _, err := selectCodec("brotli"); err == nil {
		t.Error("selectCodec(brotli) should return error")
	}
}
