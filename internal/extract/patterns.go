package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fapiao/internal/domain"
)

// Rule sets for Chinese VAT invoice layouts. Normalization has already folded
// full-width digits/punctuation, so patterns match half-width forms only.

var (
	reNumberLabeled = regexp.MustCompile(`发票号码[:]?\s*([0-9]{8,20})`)
	reNumberBare20  = regexp.MustCompile(`^([0-9]{20})$`)

	reCodeLabeled = regexp.MustCompile(`发票代码[:]?\s*([0-9]{6,14})`)
	reCodeBare12  = regexp.MustCompile(`^([0-9]{12})$`)

	reCheckLabeled = regexp.MustCompile(`校验码[:]?\s*([0-9][0-9 ]{5,40})`)

	reDateLabeled = regexp.MustCompile(`开票日期[:]?\s*([0-9]{4})年([0-9]{1,2})月([0-9]{1,2})日?`)
	reDateBare    = regexp.MustCompile(`([0-9]{4})年([0-9]{1,2})月([0-9]{1,2})日?`)

	reNameLabeled = regexp.MustCompile(`名称[:]\s*(\S.*)`)
	reNameCompany = regexp.MustCompile(`名称[:]\s*(.+?公司)`)

	reTotalInWords = regexp.MustCompile(`小写[^0-9¥]*¥?\s*([0-9][0-9,]*\.?[0-9]*)`)
	reTotalSigned  = regexp.MustCompile(`¥\s*([0-9][0-9,]*\.[0-9]{2})`)
	reMoneyShape   = regexp.MustCompile(`([0-9][0-9,]*\.[0-9]{2})`)
	reExclLabeled  = regexp.MustCompile(`金额[:]\s*¥?\s*([0-9][0-9,]*\.?[0-9]*)`)

	reRateLabeled = regexp.MustCompile(`税率[^0-9]{0,6}([0-9]{1,2})%`)
	reRateBare    = regexp.MustCompile(`([0-9]{1,2})%`)
)

func contains(subs ...string) func(string) bool {
	return func(line string) bool {
		for _, s := range subs {
			if !strings.Contains(line, s) {
				return false
			}
		}
		return true
	}
}

func invoiceNumberExtractor() Extractor {
	return &fieldExtractor{
		field: domain.FieldInvoiceNumber,
		rules: []lineRule{
			{name: "number.labeled", rank: 0, re: reNumberLabeled, post: group1},
			// Fully-digitized invoices print the 20-digit number as a lone token.
			{name: "number.bare20", rank: 1, re: reNumberBare20, post: group1},
		},
	}
}

func invoiceCodeExtractor() Extractor {
	demote := func(v string) int {
		if len(v) == 10 || len(v) == 12 {
			return 0
		}
		return demoteOffset
	}
	return &fieldExtractor{
		field: domain.FieldInvoiceCode,
		rules: []lineRule{
			{name: "code.labeled", rank: 0, re: reCodeLabeled, post: group1, demote: demote},
			{name: "code.bare12", rank: 1, re: reCodeBare12, post: group1},
		},
	}
}

func checkCodeExtractor() Extractor {
	post := func(groups []string) (string, bool) {
		v := strings.ReplaceAll(groups[1], " ", "")
		if len(v) < 6 {
			return "", false
		}
		return v, true
	}
	demote := func(v string) int {
		if len(v) == 20 {
			return 0
		}
		return demoteOffset
	}
	return &fieldExtractor{
		field: domain.FieldCheckCode,
		rules: []lineRule{
			{name: "check.labeled", rank: 0, re: reCheckLabeled, post: post, demote: demote},
		},
	}
}

func dateFromGroups(groups []string) (string, bool) {
	year, _ := strconv.Atoi(groups[1])
	month, _ := strconv.Atoi(groups[2])
	day, _ := strconv.Atoi(groups[3])
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range components; a changed date means the
	// OCR digits were not a real calendar day.
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
}

func invoiceDateExtractor() Extractor {
	return &fieldExtractor{
		field: domain.FieldInvoiceDate,
		rules: []lineRule{
			{name: "date.labeled", rank: 0, re: reDateLabeled, post: dateFromGroups},
			{name: "date.bare", rank: 1, re: reDateBare, post: dateFromGroups},
		},
	}
}

func partyNamePost(groups []string) (string, bool) {
	v := strings.TrimSpace(groups[1])
	if len([]rune(v)) < 2 {
		return "", false
	}
	return v, true
}

// nameDemotion keeps implausible party names (no organization suffix) as
// fallback candidates only.
func nameDemotion(v string) int {
	if strings.Contains(v, "公司") {
		return 0
	}
	return demoteOffset
}

func buyerNameExtractor() Extractor {
	return &fieldExtractor{
		field: domain.FieldBuyerName,
		rules: []lineRule{
			{name: "buyer.labeled", rank: 0, guard: contains("购", "名称"), re: reNameLabeled, post: partyNamePost, demote: nameDemotion},
			// Fragment order is unstable, so a bare 名称: line cannot be attributed
			// to a party; keep it as a weak shared fallback.
			{name: "buyer.company", rank: 2, re: reNameCompany, post: partyNamePost},
		},
	}
}

func sellerNameExtractor() Extractor {
	return &fieldExtractor{
		field: domain.FieldSellerName,
		rules: []lineRule{
			{name: "seller.labeled", rank: 0, guard: contains("销", "名称"), re: reNameLabeled, post: partyNamePost, demote: nameDemotion},
			{name: "seller.company", rank: 2, re: reNameCompany, post: partyNamePost},
		},
	}
}

func amountPost(groups []string) (string, bool) {
	_, canonical, ok := parseAmount(groups[1])
	return canonical, ok
}

func totalAmountExtractor() Extractor {
	return &fieldExtractor{
		field: domain.FieldTotalAmount,
		rules: []lineRule{
			// 价税合计(大写)…(小写)¥113.00: the amount-in-figures next to the
			// amount-in-words block is the authoritative total.
			{name: "total.in_words", rank: 0, guard: contains("价税合计"), re: reTotalInWords, post: amountPost, demote: amountDemotion},
			{name: "total.small_figures", rank: 1, guard: contains("小写"), re: reTotalInWords, post: amountPost, demote: amountDemotion},
			{name: "total.currency_sign", rank: 2, re: reTotalSigned, post: amountPost, demote: amountDemotion},
		},
	}
}

func amountExclTaxExtractor() Extractor {
	notTotalLine := func(line string) bool {
		return strings.Contains(line, "金额") && strings.Contains(line, "税率") &&
			!strings.Contains(line, "价税合计")
	}
	return &fieldExtractor{
		field: domain.FieldAmountExclTax,
		rules: []lineRule{
			// Tabular row carrying both the 金额 and 税率 columns.
			{name: "excl.columns", rank: 0, guard: notTotalLine, re: reMoneyShape, post: amountPost, demote: amountDemotion},
			{name: "excl.labeled", rank: 1, guard: func(l string) bool { return !strings.Contains(l, "价税合计") }, re: reExclLabeled, post: amountPost, demote: amountDemotion},
		},
	}
}

func ratePost(groups []string) (string, bool) {
	return parseRate(groups[1])
}

func taxRateExtractor() Extractor {
	return &fieldExtractor{
		field: domain.FieldTaxRate,
		rules: []lineRule{
			{name: "rate.labeled", rank: 0, re: reRateLabeled, post: ratePost},
			{name: "rate.bare", rank: 1, re: reRateBare, post: ratePost},
		},
	}
}
