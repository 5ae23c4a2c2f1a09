package main

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// fileConfig holds the settings that may come from a TOML file.
type fileConfig struct {
	DataDir     string `toml:"data_dir"`
	SQLite      string `toml:"sqlite"`
	Shard       string `toml:"shard"`
	Capacity    int64  `toml:"capacity"`
	Probe       string `toml:"probe"`
	ReadCache   int    `toml:"read_cache"`
	Concurrency int    `toml:"prefetch_concurrency"`
	Verbose     *bool  `toml:"verbose"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// defaultConfigPath returns ~/.offlinecache/config.toml, or "" if the home
// directory is unknown.
func defaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".offlinecache", "config.toml")
	}
	return ""
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// applyFileConfig copies file values into the global flags, skipping flags
// set on the command line.
func applyFileConfig(fc fileConfig, changed map[string]bool) {
	s := configSetter{changed: changed}
	s.setString("data-dir", fc.DataDir, &dataDir)
	s.setString("sqlite", fc.SQLite, &sqlitePath)
	s.setString("shard", fc.Shard, &shardLayout)
	s.setString("probe", fc.Probe, &probeAddr)
	s.setInt64("capacity", fc.Capacity, &capacity)
	s.setInt("read-cache", fc.ReadCache, &readCache)
	s.setInt("concurrency", fc.Concurrency, &concurrency)
	s.setBool("verbose", fc.Verbose, &verbose)
}

type configSetter struct {
	changed map[string]bool
}

func (s configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s configSetter) setInt64(flag string, value int64, dst *int64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}
