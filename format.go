package offlinecache

import (
	"fmt"
	"math"
)

var sizeUnits = [...]string{"B", "KB", "MB", "GB"}

// FormatCacheSize renders a byte count with 1024-based units, e.g. "0 B",
// "512 B", "1.5 KB", "5.5 KB", "1.0 MB". Values of a kilobyte or more are
// rounded to one decimal place; GB is the largest unit.
func FormatCacheSize(bytes uint64) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	}

	value := float64(bytes) / 1024
	unit := 1
	for value >= 1024 && unit < len(sizeUnits)-1 {
		value /= 1024
		unit++
	}

	// 1023.96 KB rounds to 1024.0 and belongs to the next unit.
	rounded := math.Round(value*10) / 10
	if rounded >= 1024 && unit < len(sizeUnits)-1 {
		rounded = math.Round(value/1024*10) / 10
		unit++
	}
	return fmt.Sprintf("%.1f %s", rounded, sizeUnits[unit])
}

// FormatSize is FormatCacheSize for signed sizes. Negative sizes are
// rejected with ErrInvalidArgument.
func FormatSize(bytes int64) (string, error) {
	if bytes < 0 {
		return "", fmt.Errorf("%w: negative size %d", ErrInvalidArgument, bytes)
	}
	return FormatCacheSize(uint64(bytes)), nil
}
