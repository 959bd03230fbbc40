package domain

import (
	"time"

	"github.com/google/uuid"
)

// Bounds describes a rectangular text region in page pixel coordinates with
// the origin in the upper-left corner.
type Bounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RawPage is one rasterized PDF page. The PNG payload is owned by the pipeline
// run and dropped as soon as recognition for the document completes.
type RawPage struct {
	SourcePath string
	PageIndex  int
	PNG        []byte
}

// Fragment is one OCR-detected text span. Fragments carry no reading-order
// guarantee; extraction must not assume sequence.
type Fragment struct {
	Text       string  `json:"text"`
	Bounds     *Bounds `json:"bounds,omitempty"`
	Confidence float64 `json:"confidence"` // 0 when the engine reports none
}

// NormalizedLine is one cleaned fragment with its recognition confidence
// carried through normalization.
type NormalizedLine struct {
	Text       string
	Confidence float64
}

// NormalizedText is the cleaned, searchable form of a document's fragments.
// Derived per run, never persisted.
type NormalizedText struct {
	Lines []NormalizedLine
	Blob  string // newline-joined lines, for patterns spanning fragments
}

// FieldCandidate is a tentative extraction for one schema field. Lower rank
// means a stricter pattern matched; implausible values carry demoted ranks.
type FieldCandidate struct {
	Field      FieldKey
	Value      string // canonical form (decimal string for numeric fields)
	Rule       string
	Rank       int
	Confidence float64 // recognition confidence of the originating line
	SpanLength int     // rune length of the full matched span
}

// InvoiceRecord is the fixed-schema result for one document. Nil field values
// are explicit missing markers; SourcePath is always set.
type InvoiceRecord struct {
	SourcePath  string `json:"source_path"`
	DisplayName string `json:"display_name"`

	BuyerName     *string  `json:"buyer_name"`
	BuyerTaxID    *string  `json:"buyer_tax_id"`
	SellerName    *string  `json:"seller_name"`
	SellerTaxID   *string  `json:"seller_tax_id"`
	InvoiceCode   *string  `json:"invoice_code"`
	InvoiceNumber *string  `json:"invoice_number"`
	CheckCode     *string  `json:"check_code"`
	InvoiceDate   *string  `json:"invoice_date"` // YYYY-MM-DD
	TotalAmount   *float64 `json:"total_amount"`
	AmountExclTax *float64 `json:"amount_excl_tax"`
	TaxRate       *float64 `json:"tax_rate"` // fraction, e.g. 0.13

	MissingFields []FieldKey    `json:"missing_fields"`
	QualityFlags  []QualityFlag `json:"quality_flags,omitempty"`
}

// Missing reports whether the given field carries no extracted value.
func (r *InvoiceRecord) Missing(field FieldKey) bool {
	for _, f := range r.MissingFields {
		if f == field {
			return true
		}
	}
	return false
}

// Flagged reports whether the record carries the given quality flag.
func (r *InvoiceRecord) Flagged(flag QualityFlag) bool {
	for _, f := range r.QualityFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// DocumentFailure describes one document that reached the Failed state.
type DocumentFailure struct {
	SourcePath string        `json:"source_path"`
	Stage      DocumentStage `json:"stage"`
	Kind       FailureKind   `json:"kind"`
	Message    string        `json:"message"`
}

// BatchResult aggregates every terminal document of one run. Record order is
// unspecified; records are traceable through SourcePath.
type BatchResult struct {
	RunID      uuid.UUID           `json:"run_id"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Records    []InvoiceRecord     `json:"records"`
	Failures   []DocumentFailure   `json:"failures"`
	Warnings   []string            `json:"warnings,omitempty"`
	RawText    map[string][]string `json:"-"` // doc path -> normalized lines, for the audit dump
}

// Submitted returns the total number of documents that reached a terminal state.
func (b *BatchResult) Submitted() int {
	return len(b.Records) + len(b.Failures)
}
