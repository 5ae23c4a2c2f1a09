package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tartil-app/offlinecache"
)

var putVerseCmd = &cobra.Command{
	Use:   "put-verse SURAH AYAH TRANSLATION TEXT",
	Short: "Cache the text of a verse",
	Long: `Cache the text of one verse in one translation.

Examples:
  offlinecache put-verse 112 1 en.sahih "Say, He is Allah, [who is] One"`,
	Args: cobra.ExactArgs(4),
	RunE: runPutVerse,
}

var putAudioCmd = &cobra.Command{
	Use:   "put-audio SURAH AYAH RECITER FILE",
	Short: "Cache the recitation of a verse from a file",
	Args:  cobra.ExactArgs(4),
	RunE:  runPutAudio,
}

var verseTranslationName string

func init() {
	putVerseCmd.Flags().StringVar(&verseTranslationName, "translation-name", "", "human-readable translation name")
	rootCmd.AddCommand(putVerseCmd)
	rootCmd.AddCommand(putAudioCmd)
}

func parseVerseRef(surah, ayah string) (int, int, error) {
	s, err := strconv.Atoi(surah)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid surah %q", surah)
	}
	a, err := strconv.Atoi(ayah)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid ayah %q", ayah)
	}
	return s, a, nil
}

func runPutVerse(cmd *cobra.Command, args []string) error {
	surah, ayah, err := parseVerseRef(args[0], args[1])
	if err != nil {
		return err
	}
	s, err := openSession(cmd.Context(), "")
	if err != nil {
		return err
	}
	defer s.Close()

	r := offlinecache.VerseRecord{
		Surah:         surah,
		Ayah:          ayah,
		TranslationID: args[2],
		Text:          args[3],
		Translation:   verseTranslationName,
	}
	if err := s.manager.CacheVerse(cmd.Context(), r); err != nil {
		return err
	}
	fmt.Printf("Cached %s\n", r.Key())
	return nil
}

func runPutAudio(cmd *cobra.Command, args []string) error {
	surah, ayah, err := parseVerseRef(args[0], args[1])
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[3])
	if err != nil {
		return fmt.Errorf("reading audio: %w", err)
	}
	s, err := openSession(cmd.Context(), "")
	if err != nil {
		return err
	}
	defer s.Close()

	r := offlinecache.AudioRecord{Surah: surah, Ayah: ayah, ReciterID: args[2], Data: data}
	if err := s.manager.CacheAudio(cmd.Context(), r); err != nil {
		return err
	}
	fmt.Printf("Cached %s (%s)\n", r.Key(), offlinecache.FormatCacheSize(uint64(r.Size())))
	return nil
}
