package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/walletimport/internal/model"
)

// Entry is one import run in the history log.
type Entry struct {
	Timestamp time.Time
	RunID     string
	File      string
	Outcome   model.Outcome
	ImportID  string
	Rows      int // data rows uploaded, header excluded
	Net       decimal.Decimal
	Error     string
}

// Header is the CSV header of the history log.
const Header = "timestamp,run_id,file,outcome,import_id,rows,net,error"

const (
	numFields   = 8
	colTime     = 0
	colRunID    = 1
	colFile     = 2
	colOutcome  = 3
	colImportID = 4
	colRows     = 5
	colNet      = 6
	colError    = 7
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTime] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colRunID] = e.RunID
	row[colFile] = e.File
	row[colOutcome] = string(e.Outcome)
	row[colImportID] = e.ImportID
	row[colRows] = strconv.Itoa(e.Rows)
	row[colNet] = e.Net.StringFixed(2)
	row[colError] = e.Error
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTime])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTime], err)
	}
	rows, err := strconv.Atoi(record[colRows])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing rows %q: %w", record[colRows], err)
	}
	net, err := decimal.NewFromString(record[colNet])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing net %q: %w", record[colNet], err)
	}

	return Entry{
		Timestamp: ts,
		RunID:     record[colRunID],
		File:      record[colFile],
		Outcome:   model.Outcome(record[colOutcome]),
		ImportID:  record[colImportID],
		Rows:      rows,
		Net:       net,
		Error:     record[colError],
	}, nil
}

// Append writes entries to the log at path, creating the file and header
// if needed.
func Append(path string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating history dir: %w", err)
	}

	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Read returns all entries of the log at path.
// Returns an empty slice if the file does not exist.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening history: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading history CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
