package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"fapiao/internal/domain"
)

var reTaxIDValue = regexp.MustCompile(`([0-9A-Z]{10,25})`)

// taxIDLabels mark a line as carrying a taxpayer identifier.
var taxIDLabels = []string{"纳税人识别号", "统一社会信用代码"}

// validTaxIDLengths are the issued formats: 15-digit legacy registration
// numbers, 18-character unified social credit codes, and 20-digit pre-reform
// codes. 17 covers a single dropped character, still demoted.
func taxIDDemotion(v string) int {
	switch len(v) {
	case 15, 18, 20:
		return 0
	}
	return demoteOffset
}

// taxIDExtractor extracts the buyer or seller taxpayer ID. A labeled line
// mentioning the party (购/销) is a strict match; labeled lines without party
// context fall back to encounter order: the first unattributed ID belongs to
// the buyer and the second to the seller.
type taxIDExtractor struct {
	field domain.FieldKey
}

func newTaxIDExtractor(field domain.FieldKey) *taxIDExtractor {
	return &taxIDExtractor{field: field}
}

func (e *taxIDExtractor) Field() domain.FieldKey { return e.field }

func (e *taxIDExtractor) Extract(text domain.NormalizedText, _ []domain.Fragment) []domain.FieldCandidate {
	wantHint, otherHint := "购", "销"
	positional := 0 // index among unattributed labeled IDs that belongs to this party
	if e.field == domain.FieldSellerTaxID {
		wantHint, otherHint = "销", "购"
		positional = 1
	}

	var out []domain.FieldCandidate
	unattributed := 0
	for _, line := range text.Lines {
		if !hasTaxIDLabel(line.Text) {
			continue
		}
		m := reTaxIDValue.FindStringSubmatch(line.Text)
		if m == nil {
			continue
		}
		value := m[1]
		switch {
		case strings.Contains(line.Text, wantHint):
			out = append(out, domain.FieldCandidate{
				Field:      e.field,
				Value:      value,
				Rule:       "taxid.party_labeled",
				Rank:       taxIDDemotion(value),
				Confidence: line.Confidence,
				SpanLength: utf8.RuneCountInString(m[0]),
			})
		case strings.Contains(line.Text, otherHint):
			// belongs to the other party
		default:
			if unattributed == positional {
				out = append(out, domain.FieldCandidate{
					Field:      e.field,
					Value:      value,
					Rule:       "taxid.positional",
					Rank:       1 + taxIDDemotion(value),
					Confidence: line.Confidence,
					SpanLength: utf8.RuneCountInString(m[0]),
				})
			}
			unattributed++
		}
	}
	return out
}

func hasTaxIDLabel(line string) bool {
	for _, label := range taxIDLabels {
		if strings.Contains(line, label) {
			return true
		}
	}
	return false
}
