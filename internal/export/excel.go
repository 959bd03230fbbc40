package export

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"fapiao/internal/domain"
)

const (
	recordsSheet  = "Records"
	rawTextSheet  = "RawText"
	failuresSheet = "Failures"
)

// ExcelWriter writes a batch result as an xlsx workbook: one sheet of
// structured records, one raw-text dump for audit, one failure list.
type ExcelWriter struct {
	path string
}

func NewExcelWriter(path string) *ExcelWriter {
	return &ExcelWriter{path: path}
}

// WriteBatch implements port.RecordSink.
func (w *ExcelWriter) WriteBatch(_ context.Context, result *domain.BatchResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", recordsSheet); err != nil {
		return fmt.Errorf("renaming records sheet: %w", err)
	}
	if err := writeRecords(f, result.Records); err != nil {
		return err
	}
	if err := writeRawText(f, result); err != nil {
		return err
	}
	if err := writeFailures(f, result.Failures); err != nil {
		return err
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("saving workbook %s: %w", w.path, err)
	}
	return nil
}

func writeRecords(f *excelize.File, records []domain.InvoiceRecord) error {
	if err := writeRow(f, recordsSheet, 1, columns); err != nil {
		return err
	}
	for i := range records {
		if err := writeRow(f, recordsSheet, i+2, recordToRow(&records[i])); err != nil {
			return err
		}
	}
	return nil
}

func writeRawText(f *excelize.File, result *domain.BatchResult) error {
	if _, err := f.NewSheet(rawTextSheet); err != nil {
		return fmt.Errorf("creating sheet %s: %w", rawTextSheet, err)
	}
	if err := writeRow(f, rawTextSheet, 1, []string{"Source", "Text"}); err != nil {
		return err
	}
	row := 2
	// Iterate in record order so the dump lines up with the Records sheet;
	// failed documents have no raw text.
	for i := range result.Records {
		source := result.Records[i].SourcePath
		for _, line := range result.RawText[source] {
			if err := writeRow(f, rawTextSheet, row, []string{source, line}); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}

func writeFailures(f *excelize.File, failures []domain.DocumentFailure) error {
	if _, err := f.NewSheet(failuresSheet); err != nil {
		return fmt.Errorf("creating sheet %s: %w", failuresSheet, err)
	}
	if err := writeRow(f, failuresSheet, 1, []string{"Source", "Stage", "Kind", "Message"}); err != nil {
		return err
	}
	for i, fail := range failures {
		row := []string{fail.SourcePath, string(fail.Stage), string(fail.Kind), fail.Message}
		if err := writeRow(f, failuresSheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []string) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("writing %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}
