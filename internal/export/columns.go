// Package export serializes batch results to tabular storage: an xlsx
// workbook with records and a raw-text audit sheet, and CSV for spreadsheet
// import.
package export

import (
	"strconv"
	"strings"

	"fapiao/internal/domain"
)

// columns defines the record header row (14 columns).
var columns = []string{
	"Source",
	"File Name",
	"Buyer Name",
	"Buyer Tax ID",
	"Seller Name",
	"Seller Tax ID",
	"Invoice Code",
	"Invoice Number",
	"Check Code",
	"Invoice Date",
	"Total Amount",
	"Amount Excl. Tax",
	"Tax Rate",
	"Quality Flags",
}

// recordToRow converts one record to a 14-element string slice. Missing
// fields stay empty cells; the explicit markers live in the JSON surface, not
// the spreadsheet.
func recordToRow(rec *domain.InvoiceRecord) []string {
	row := make([]string, len(columns))
	row[0] = rec.SourcePath
	row[1] = rec.DisplayName
	row[2] = deref(rec.BuyerName)
	row[3] = deref(rec.BuyerTaxID)
	row[4] = deref(rec.SellerName)
	row[5] = deref(rec.SellerTaxID)
	row[6] = deref(rec.InvoiceCode)
	row[7] = deref(rec.InvoiceNumber)
	row[8] = deref(rec.CheckCode)
	row[9] = deref(rec.InvoiceDate)
	row[10] = formatMoney(rec.TotalAmount)
	row[11] = formatMoney(rec.AmountExclTax)
	row[12] = formatRate(rec.TaxRate)
	row[13] = formatFlags(rec.QualityFlags)
	return row
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatMoney(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func formatRate(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatFlags(flags []domain.QualityFlag) string {
	if len(flags) == 0 {
		return ""
	}
	parts := make([]string, len(flags))
	for i, f := range flags {
		parts[i] = string(f)
	}
	return strings.Join(parts, ";")
}
