// Package normalize cleans raw OCR fragments before pattern matching:
// whitespace collapse, full-width to half-width folding, and a small
// configurable table of domain OCR confusions.
package normalize

import (
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"fapiao/internal/domain"
)

// DefaultConfusions maps characters the recognizer commonly misreads on
// Chinese VAT invoices to their intended forms. 芈 is a frequent misread of
// the currency sign next to the amount-in-figures field.
func DefaultConfusions() map[string]string {
	return map[string]string{
		"芈": "¥",
		"￥": "¥",
		"：": ":",
	}
}

// Normalizer is a pure text cleaner. The zero value is not usable; construct
// with New.
type Normalizer struct {
	replacer *strings.Replacer
}

// New returns a Normalizer with the default confusion table.
func New() *Normalizer {
	return NewWithConfusions(DefaultConfusions())
}

// NewWithConfusions returns a Normalizer applying the given confusion table
// after Unicode normalization.
func NewWithConfusions(confusions map[string]string) *Normalizer {
	pairs := make([]string, 0, len(confusions)*2)
	for from, to := range confusions {
		pairs = append(pairs, from, to)
	}
	return &Normalizer{replacer: strings.NewReplacer(pairs...)}
}

// Line normalizes a single fragment text: NFKC composition, half-width
// folding of digits and punctuation, confusion replacement, and whitespace
// collapse. Always returns a value; empty input yields "".
func (n *Normalizer) Line(s string) string {
	s = norm.NFKC.String(s)
	s = width.Narrow.String(s)
	s = n.replacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// Document normalizes a document's fragment set. Input order is preserved but
// carries no meaning downstream; empty fragments are dropped.
func (n *Normalizer) Document(frags []domain.Fragment) domain.NormalizedText {
	lines := make([]domain.NormalizedLine, 0, len(frags))
	var blob strings.Builder
	for _, f := range frags {
		text := n.Line(f.Text)
		if text == "" {
			continue
		}
		if blob.Len() > 0 {
			blob.WriteByte('\n')
		}
		blob.WriteString(text)
		lines = append(lines, domain.NormalizedLine{Text: text, Confidence: f.Confidence})
	}
	return domain.NormalizedText{Lines: lines, Blob: blob.String()}
}
