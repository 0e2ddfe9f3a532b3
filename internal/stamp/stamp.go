// Package stamp handles the timestamp convention of imported file names.
//
// The service replaces ':' with '-' in uploaded file names, so a file
// uploaded as "wallet-2024-01-01T09:00:00.csv" is listed as
// "wallet-2024-01-01T09-00-00.csv". Cutoff recovers the instant.
package stamp

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoCutoff is returned when a file name carries no recognizable timestamp.
var ErrNoCutoff = errors.New("no timestamp in file name")

const (
	dateLayout = "2006-01-02"
	nameLayout = "2006-01-02T15-04-05"
)

var timeLayouts = []string{"15:04:05", "15:04"}

// Cutoff parses the date-time embedded at the end of an imported file name.
// "import-2024-01-01T09-00-00.csv" -> 2024-01-01 09:00:00 UTC.
func Cutoff(fileName string) (time.Time, error) {
	stem := strings.TrimSuffix(fileName, filepath.Ext(fileName))

	t := strings.LastIndexByte(stem, 'T')
	if t < len(dateLayout) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrNoCutoff, fileName)
	}
	date := stem[t-len(dateLayout) : t]
	clock := strings.ReplaceAll(stem[t+1:], "-", ":")

	for _, layout := range timeLayouts {
		ts, err := time.Parse(dateLayout+"T"+layout, date+"T"+clock)
		if err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrNoCutoff, fileName)
}

// FileName returns base stamped with t in the form the service lists it,
// e.g. FileName("wallet.csv", t) = "wallet-2024-01-01T09-00-00.csv".
func FileName(base string, t time.Time) string {
	ext := filepath.Ext(base)
	if ext == "" {
		ext = ".csv"
	}
	stem := strings.TrimSuffix(filepath.Base(base), filepath.Ext(base))
	return fmt.Sprintf("%s-%s%s", stem, t.UTC().Format(nameLayout), ext)
}
