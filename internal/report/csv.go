// Package report renders summary rows as the CSV stream written to stdout.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sync"

	"github.com/rxtech-lab/tickerwatch/internal/types"
	"github.com/rxtech-lab/tickerwatch/pkg/errors"
)

// Header is the first line of every report stream.
var Header = []string{"period start", "symbol", "price", "change %", "min", "max", "30d avg"}

// CSVWriter writes one row per report and flushes after each, so a consumer
// piping stdout sees rows as soon as they are produced.
type CSVWriter struct {
	mu            sync.Mutex
	w             *csv.Writer
	headerWritten bool
	rows          uint64
}

// NewCSVWriter creates a writer on out.
func NewCSVWriter(out io.Writer) *CSVWriter {
	return &CSVWriter{
		mu:            sync.Mutex{},
		w:             csv.NewWriter(out),
		headerWritten: false,
		rows:          0,
	}
}

// WriteHeader writes the header line. Only the first call writes.
func (w *CSVWriter) WriteHeader() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.writeHeaderLocked()
}

// Write appends one report row, writing the header first if needed.
func (w *CSVWriter) Write(r types.SummaryReport) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writeHeaderLocked(); err != nil {
		return err
	}

	if err := w.w.Write(FormatRecord(r)); err != nil {
		return errors.Wrapf(errors.ErrCodeStageFailed, err, "write report row for %s", r.Symbol)
	}

	w.w.Flush()

	if err := w.w.Error(); err != nil {
		return errors.Wrapf(errors.ErrCodeStageFailed, err, "flush report row for %s", r.Symbol)
	}

	w.rows++

	return nil
}

// Rows returns the number of report rows written.
func (w *CSVWriter) Rows() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.rows
}

func (w *CSVWriter) writeHeaderLocked() error {
	if w.headerWritten {
		return nil
	}

	if err := w.w.Write(Header); err != nil {
		return errors.Wrap(errors.ErrCodeStageFailed, "write report header", err)
	}

	w.w.Flush()

	if err := w.w.Error(); err != nil {
		return errors.Wrap(errors.ErrCodeStageFailed, "flush report header", err)
	}

	w.headerWritten = true

	return nil
}

// FormatRecord renders a report as CSV fields: prices with two decimals and a
// dollar sign, the change with three decimals and a percent sign.
func FormatRecord(r types.SummaryReport) []string {
	return []string{
		r.PeriodStart.Format(types.PeriodStartLayout),
		r.Symbol,
		fmt.Sprintf("$%.2f", r.Price),
		fmt.Sprintf("%.3f%%", r.PercentChange),
		fmt.Sprintf("$%.2f", r.Min),
		fmt.Sprintf("$%.2f", r.Max),
		fmt.Sprintf("$%.2f", r.TrailingAverage),
	}
}
