// Package assemble merges per-field extraction candidates into one
// InvoiceRecord per document.
package assemble

import (
	"math"
	"net/url"
	"path/filepath"
	"sort"
	"strconv"

	"fapiao/internal/domain"
)

// amountTolerance is the relative tolerance of the cross-field amount check;
// toleranceFloor keeps it meaningful for very small invoices.
const (
	amountTolerance = 0.01
	toleranceFloor  = 0.01
)

// Assembler resolves candidates into final field values and attaches quality
// signals. It holds no per-document state and is safe for concurrent use.
type Assembler struct{}

func New() *Assembler { return &Assembler{} }

// Assemble produces the record for one document. A field with no surviving
// candidate is explicitly marked missing; that is a quality signal, not an
// error. The record always carries the source path.
func (a *Assembler) Assemble(sourcePath string, candidates map[domain.FieldKey][]domain.FieldCandidate) domain.InvoiceRecord {
	rec := domain.InvoiceRecord{
		SourcePath:  sourcePath,
		DisplayName: displayName(sourcePath),
	}

	for _, field := range domain.AllFields() {
		best, ok := pickBest(candidates[field])
		if !ok {
			rec.MissingFields = append(rec.MissingFields, field)
			continue
		}
		setField(&rec, field, best.Value)
	}

	a.checkAmountConsistency(&rec)
	return rec
}

// pickBest applies the resolution policy: lowest rank, then highest reported
// recognition confidence, then longest matched span. Slice order is the final
// tie-break so that repeated runs resolve identically.
func pickBest(cands []domain.FieldCandidate) (domain.FieldCandidate, bool) {
	if len(cands) == 0 {
		return domain.FieldCandidate{}, false
	}
	sorted := make([]domain.FieldCandidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Rank != sorted[j].Rank {
			return sorted[i].Rank < sorted[j].Rank
		}
		if sorted[i].Confidence != sorted[j].Confidence {
			return sorted[i].Confidence > sorted[j].Confidence
		}
		return sorted[i].SpanLength > sorted[j].SpanLength
	})
	return sorted[0], true
}

func setField(rec *domain.InvoiceRecord, field domain.FieldKey, value string) {
	switch field {
	case domain.FieldBuyerName:
		rec.BuyerName = &value
	case domain.FieldBuyerTaxID:
		rec.BuyerTaxID = &value
	case domain.FieldSellerName:
		rec.SellerName = &value
	case domain.FieldSellerTaxID:
		rec.SellerTaxID = &value
	case domain.FieldInvoiceCode:
		rec.InvoiceCode = &value
	case domain.FieldInvoiceNumber:
		rec.InvoiceNumber = &value
	case domain.FieldCheckCode:
		rec.CheckCode = &value
	case domain.FieldInvoiceDate:
		rec.InvoiceDate = &value
	case domain.FieldTotalAmount:
		setDecimal(&rec.TotalAmount, rec, field, value)
	case domain.FieldAmountExclTax:
		setDecimal(&rec.AmountExclTax, rec, field, value)
	case domain.FieldTaxRate:
		setDecimal(&rec.TaxRate, rec, field, value)
	}
}

// setDecimal parses a canonical decimal candidate. Extractors only emit
// parseable values; a failure here degrades to an explicit missing marker.
func setDecimal(dst **float64, rec *domain.InvoiceRecord, field domain.FieldKey, value string) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		rec.MissingFields = append(rec.MissingFields, field)
		return
	}
	*dst = &v
}

// checkAmountConsistency verifies excl × (1+rate) ≈ total when all three
// amounts are present. A mismatch is flagged, never rejected: downstream
// consumers decide whether to discard.
func (a *Assembler) checkAmountConsistency(rec *domain.InvoiceRecord) {
	if rec.TotalAmount == nil || rec.AmountExclTax == nil || rec.TaxRate == nil {
		return
	}
	expected := *rec.AmountExclTax * (1 + *rec.TaxRate)
	tol := math.Max(toleranceFloor, amountTolerance*(*rec.TotalAmount))
	if math.Abs(expected-*rec.TotalAmount) > tol {
		rec.QualityFlags = append(rec.QualityFlags, domain.QualityAmountMismatch)
	}
}

// displayName decodes URL-escaped filenames, which show up when invoices are
// downloaded straight from mail or WeChat attachments.
func displayName(sourcePath string) string {
	base := filepath.Base(sourcePath)
	if decoded, err := url.PathUnescape(base); err == nil {
		return decoded
	}
	return base
}
