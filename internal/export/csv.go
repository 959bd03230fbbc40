package export

import (
	"context"
	"encoding/csv"
	"io"

	"fapiao/internal/domain"
)

// BOM is the UTF-8 byte-order mark, written ahead of CSV output for Excel
// compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter streams invoice records as CSV rows.
type CSVWriter struct {
	csv *csv.Writer
}

// NewCSVWriter creates a CSVWriter that writes to w. The caller is expected
// to have written BOM first when targeting Excel.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{csv: csv.NewWriter(w)}
}

// WriteHeader writes the column header row.
func (w *CSVWriter) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteRecords writes one row per invoice record.
func (w *CSVWriter) WriteRecords(records []domain.InvoiceRecord) error {
	for i := range records {
		if err := w.csv.Write(recordToRow(&records[i])); err != nil {
			return err
		}
	}
	return nil
}

// WriteBatch implements port.RecordSink for CSV output.
func (w *CSVWriter) WriteBatch(_ context.Context, result *domain.BatchResult) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}
	if err := w.WriteRecords(result.Records); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// Flush flushes the underlying csv.Writer buffer.
func (w *CSVWriter) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *CSVWriter) Error() error {
	return w.csv.Error()
}
