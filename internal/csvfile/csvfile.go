// Package csvfile holds the transaction export uploaded to the service.
//
// Rows are kept as raw lines: the service parses them after commit, the
// importer only needs line boundaries and each row's leading date-time.
package csvfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/cleared-dev/walletimport/internal/model"
)

// Header is the mandatory first row of a transaction file.
const Header = "date,note,amount,expense"

// PrefixLayout is the leading date-time of every data row. Rows compare as
// strings, so the export must use this sortable form.
const PrefixLayout = "2006-01-02T15:04"

// PrefixWidth is the number of leading characters compared against a cutoff.
const PrefixWidth = len(PrefixLayout)

// File is a transaction export. Rows[0] is always Header.
type File struct {
	Rows []string
}

// Load reads and validates the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", model.ErrFileMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse splits data into rows, dropping blank lines, and checks the header.
func Parse(data []byte) (*File, error) {
	text := strings.TrimPrefix(string(data), "\ufeff")

	var rows []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, line)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty file", model.ErrFileFormatInvalid)
	}
	if rows[0] != Header {
		return nil, fmt.Errorf("%w: header is %q, want %q", model.ErrFileFormatInvalid, rows[0], Header)
	}
	return &File{Rows: rows}, nil
}

// Len returns the number of rows including the header.
func (f *File) Len() int { return len(f.Rows) }

// Data returns the rows after the header.
func (f *File) Data() []string { return f.Rows[1:] }

// UpToDate reports whether the file holds nothing but its header.
func (f *File) UpToDate() bool { return len(f.Rows) <= 1 }

// Bytes renders the file for upload or rewrite.
func (f *File) Bytes() []byte {
	return []byte(strings.Join(f.Rows, "\n") + "\n")
}

// Save overwrites path with the file's content.
func (f *File) Save(path string) error {
	if err := os.WriteFile(path, f.Bytes(), 0o644); err != nil {
		return fmt.Errorf("rewriting %s: %w", path, err)
	}
	return nil
}

// DatePrefix returns the leading PrefixWidth characters of row.
func DatePrefix(row string) string {
	if len(row) < PrefixWidth {
		return row
	}
	return row[:PrefixWidth]
}

// CutoffKey renders cutoff at row precision. A cutoff with seconds rounds
// up to the next minute, so that a row minute compares >= the key exactly
// when it is not before the cutoff.
func CutoffKey(cutoff time.Time) string {
	cutoff = cutoff.UTC()
	key := cutoff.Truncate(time.Minute)
	if key.Before(cutoff) {
		key = key.Add(time.Minute)
	}
	return key.Format(PrefixLayout)
}

// Filter returns a new file holding the header and every row whose date
// prefix is >= the cutoff. f is left untouched.
func (f *File) Filter(cutoff time.Time) *File {
	key := CutoffKey(cutoff)
	out := &File{Rows: make([]string, 1, len(f.Rows))}
	out.Rows[0] = f.Rows[0]
	for _, row := range f.Data() {
		if DatePrefix(row) >= key {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}
