//go:build e2e

package offlinecache_test

import (
	"bufio"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/tartil-app/offlinecache"
)

type sampleVerse struct {
	Surah int    `json:"surah"`
	Ayah  int    `json:"ayah"`
	Text  string `json:"text"`
}

var builtinVerses = []sampleVerse{
	{1, 1, "In the name of Allah, the Entirely Merciful, the Especially Merciful."},
	{1, 2, "[All] praise is [due] to Allah, Lord of the worlds -"},
	{112, 1, "Say, He is Allah, [who is] One,"},
}

func TestE2E_CLI(t *testing.T) {
	verses := builtinVerses
	if sample, err := extractSample("./data/quran-en.sahih.jsonl.zst", 200); err == nil {
		verses = sample
	} else if !os.IsNotExist(err) {
		t.Fatalf("Error extracting sample: %v", err)
	}

	tmpDir := t.TempDir()
	dataDir := filepath.Join(tmpDir, "cache")
	run := func(args ...string) string {
		t.Helper()
		cmd := exec.Command("go", append([]string{"run", "./cmd/offlinecache", "--data-dir", dataDir}, args...)...)
		cmd.Stderr = os.Stderr
		out, err := cmd.Output()
		if err != nil {
			t.Fatalf("offlinecache %s: %v\n%s", strings.Join(args, " "), err, out)
		}
		return string(out)
	}

	// Step 1: cache verses and one recitation
	t.Logf("📦 Caching %d verses...", len(verses))
	start := time.Now()
	for _, v := range verses {
		run("put-verse", strconv.Itoa(v.Surah), strconv.Itoa(v.Ayah), "en.sahih", v.Text)
	}
	audio := filepath.Join(tmpDir, "001001.mp3")
	if err := os.WriteFile(audio, make([]byte, 5000), 0o644); err != nil {
		t.Fatal(err)
	}
	run("put-audio", "1", "1", "alafasy", audio)
	t.Logf("   Cached in %v", time.Since(start))

	// Step 2: stats survive the process exiting
	var stats struct {
		OfflineReady bool   `json:"offline_ready"`
		Verses       int    `json:"verses"`
		Audio        int    `json:"audio"`
		Size         string `json:"size"`
	}
	if err := json.Unmarshal([]byte(run("stats", "--json")), &stats); err != nil {
		t.Fatalf("decoding stats: %v", err)
	}
	t.Logf("📊 %d verses, %d audio, %s", stats.Verses, stats.Audio, stats.Size)
	if stats.Verses != len(verses) || stats.Audio != 1 || !stats.OfflineReady {
		t.Errorf("stats = %+v, want %d verses, 1 audio, ready", stats, len(verses))
	}

	// Step 3: read back and verify
	got := run("get", offlinecache.VerseKey(verses[0].Surah, verses[0].Ayah, "en.sahih").String())
	if strings.TrimSpace(got) != verses[0].Text {
		t.Errorf("get = %q, want %q", got, verses[0].Text)
	}
	run("verify", "--scrub")

	// Step 4: evict and clear
	run("evict", offlinecache.AudioKey(1, 1, "alafasy").String())
	if out := run("list", "audio"); strings.TrimSpace(out) != "" {
		t.Errorf("list audio after evict = %q, want empty", out)
	}
	run("clear")
	if err := json.Unmarshal([]byte(run("stats", "--json")), &stats); err != nil {
		t.Fatalf("decoding stats: %v", err)
	}
	if stats.Verses != 0 || stats.OfflineReady {
		t.Errorf("stats after clear = %+v", stats)
	}
}

// extractSample reads up to count verses from a zstd-compressed JSONL file.
func extractSample(source string, count int) ([]sampleVerse, error) {
	f, err := os.Open(source)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decoder, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	scanner := bufio.NewScanner(decoder)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var verses []sampleVerse
	for scanner.Scan() && len(verses) < count {
		var v sampleVerse
		if err := json.Unmarshal(scanner.Bytes(), &v); err != nil || v.Text == "" {
			continue
		}
		verses = append(verses, v)
	}
	return verses, scanner.Err()
}
