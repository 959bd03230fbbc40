// Package extract recovers invoice schema fields from normalized OCR text.
// Extractors are independent and side-effect-free: each one scans the full
// fragment set with a ranked list of patterns and returns zero or more
// candidates for its single field. Absence of a candidate is the normal
// no-match outcome, never an error.
package extract

import (
	"regexp"
	"unicode/utf8"

	"fapiao/internal/domain"
)

// demoteOffset is added to a candidate's rank when its value is shaped
// suspiciously (wrong identifier length, implausible amount). Demoted
// candidates stay available for assembler-level fallback.
const demoteOffset = 10

// Extractor produces candidates for exactly one schema field.
type Extractor interface {
	Field() domain.FieldKey
	Extract(text domain.NormalizedText, frags []domain.Fragment) []domain.FieldCandidate
}

// All returns one extractor per schema field.
func All() []Extractor {
	return []Extractor{
		buyerNameExtractor(),
		sellerNameExtractor(),
		newTaxIDExtractor(domain.FieldBuyerTaxID),
		newTaxIDExtractor(domain.FieldSellerTaxID),
		invoiceCodeExtractor(),
		invoiceNumberExtractor(),
		checkCodeExtractor(),
		invoiceDateExtractor(),
		totalAmountExtractor(),
		amountExclTaxExtractor(),
		taxRateExtractor(),
	}
}

// Run executes every extractor over the document and returns candidates keyed
// by field. Fields with no match map to an empty slice.
func Run(text domain.NormalizedText, frags []domain.Fragment) map[domain.FieldKey][]domain.FieldCandidate {
	out := make(map[domain.FieldKey][]domain.FieldCandidate, len(domain.AllFields()))
	for _, field := range domain.AllFields() {
		out[field] = nil
	}
	for _, ex := range All() {
		out[ex.Field()] = ex.Extract(text, frags)
	}
	return out
}

// lineRule is one ranked pattern applied per normalized line.
type lineRule struct {
	name  string
	rank  int
	guard func(line string) bool                // optional precondition on the whole line
	re    *regexp.Regexp                        // submatch 1..n fed to post
	post  func(groups []string) (string, bool)  // canonicalize; false rejects the match
	// demote returns an extra rank offset for a canonical value, letting OCR-corrupted
	// but recoverable matches survive at lower priority.
	demote func(value string) int
}

// fieldExtractor runs a ranked rule list over every line. Lines are a bag:
// no positional assumption is made beyond regex-local context.
type fieldExtractor struct {
	field domain.FieldKey
	rules []lineRule
}

func (e *fieldExtractor) Field() domain.FieldKey { return e.field }

func (e *fieldExtractor) Extract(text domain.NormalizedText, _ []domain.Fragment) []domain.FieldCandidate {
	var out []domain.FieldCandidate
	for _, rule := range e.rules {
		for _, line := range text.Lines {
			if rule.guard != nil && !rule.guard(line.Text) {
				continue
			}
			m := rule.re.FindStringSubmatch(line.Text)
			if m == nil {
				continue
			}
			value, ok := rule.post(m)
			if !ok {
				continue
			}
			rank := rule.rank
			if rule.demote != nil {
				rank += rule.demote(value)
			}
			out = append(out, domain.FieldCandidate{
				Field:      e.field,
				Value:      value,
				Rule:       rule.name,
				Rank:       rank,
				Confidence: line.Confidence,
				SpanLength: utf8.RuneCountInString(m[0]),
			})
		}
	}
	return out
}

// group1 is the common post for single-capture rules.
func group1(groups []string) (string, bool) {
	if len(groups) < 2 || groups[1] == "" {
		return "", false
	}
	return groups[1], true
}
