package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// maxPlausibleAmount bounds single-invoice amounts; values at or above it are
// demoted, not discarded, since a dropped separator can inflate a real value.
const maxPlausibleAmount = 1_000_000

var decimalShape = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// parseAmount cleans a matched money span (currency signs, thousands
// separators, stray whitespace) and returns the value with its canonical
// two-decimal form. A span that does not survive cleanup simply yields no
// candidate.
func parseAmount(raw string) (float64, string, bool) {
	s := strings.NewReplacer("¥", "", ",", "", " ", "").Replace(raw)
	s = strings.TrimSpace(s)
	if !decimalShape.MatchString(s) {
		return 0, "", false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, "", false
	}
	return v, strconv.FormatFloat(v, 'f', 2, 64), true
}

// amountDemotion demotes amounts outside the plausible invoice range.
func amountDemotion(canonical string) int {
	v, err := strconv.ParseFloat(canonical, 64)
	if err != nil || v >= maxPlausibleAmount {
		return demoteOffset
	}
	return 0
}

// parseRate converts a percent capture ("13") to a canonical fraction
// ("0.13"). Only open-interval (0,1) rates are accepted.
func parseRate(percent string) (string, bool) {
	p, err := strconv.ParseFloat(percent, 64)
	if err != nil {
		return "", false
	}
	r := p / 100
	if r <= 0 || r >= 1 {
		return "", false
	}
	return strconv.FormatFloat(r, 'f', -1, 64), true
}
