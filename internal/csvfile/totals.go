package csvfile

import (
	"encoding/csv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	numFields  = 4
	colAmount  = 2
	colExpense = 3
)

// Totals summarizes the amounts of a file's data rows.
type Totals struct {
	Rows    int
	Income  decimal.Decimal
	Expense decimal.Decimal
	Skipped int // rows whose amount or expense flag did not parse
}

// Net returns income minus expense.
func (t Totals) Net() decimal.Decimal {
	return t.Income.Sub(t.Expense)
}

// Totals sums the data rows. It is informational only: rows it cannot read
// are counted in Skipped and are still uploaded.
func (f *File) Totals() Totals {
	var t Totals
	for _, row := range f.Data() {
		t.Rows++
		rec, err := readRow(row)
		if err != nil {
			t.Skipped++
			continue
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(rec[colAmount]))
		if err != nil {
			t.Skipped++
			continue
		}
		switch strings.ToLower(strings.TrimSpace(rec[colExpense])) {
		case "true":
			t.Expense = t.Expense.Add(amount.Abs())
		case "false":
			t.Income = t.Income.Add(amount.Abs())
		default:
			t.Skipped++
		}
	}
	return t
}

func readRow(row string) ([]string, error) {
	cr := csv.NewReader(strings.NewReader(row))
	cr.FieldsPerRecord = numFields
	return cr.Read()
}
