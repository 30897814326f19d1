package extractor

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/dvloznov/bankmail-ledger/internal/domain"
	"github.com/dvloznov/bankmail-ledger/internal/identity"
)

// DefaultDebitMerchant is recorded for Arabic debit notifications that do
// not name a counterparty.
const DefaultDebitMerchant = "Account Debit"

const (
	// merchantEnd bounds a lazy merchant capture: a connective word, a
	// currency or date token, punctuation, a line break or end of text.
	merchantEnd = `(?:\s+(?:on|for|dated|via|using|with|ref)\b|\s+` + latinCurrency + `\b|\s*` + arabicCurrency +
		`|\s+(?:بمبلغ|المبلغ|مبلغ|بقيمة|بتاريخ|التاريخ|تاريخ)|\s+\d{1,2}[/.-]\d|\s+\d{4}[/.-]\d|\s+(?:` + englishMonths + `)\b|[,;:\n]|\.(?:\s|$)|\s+-\s|$)`

	debitMarkers = `تم\s+خصم|تم\s+الخصم|خصم|سحب|مدين|حسم|المبلغ|مبلغ`
)

var (
	capitalizedRun = regexp.MustCompile(`\b[A-Z][A-Za-z0-9&'.-]*(?: [A-Z][A-Za-z0-9&'.-]*)*`)
	edgeTrim       = " \t\"'`*-_:#|()[]"
)

func merchantRules() []Rule[string] {
	return []Rule[string]{
		{Name: "purchase-at", Pattern: regexp.MustCompile(`(?i)\bpurchase\s+(?:at|from)\s+(.+?)` + merchantEnd)},
		{Name: "pos", Pattern: regexp.MustCompile(`(?i)\bPOS\b\s*(?:purchase|transaction|txn)?\s*(?:at\b|@|-)?\s*(.+?)` + merchantEnd)},
		{Name: "at", Pattern: regexp.MustCompile(`(?i)\bat\s+(.+?)` + merchantEnd)},
		{Name: "from", Pattern: regexp.MustCompile(`(?i)\bfrom\s+(.+?)` + merchantEnd)},
		{Name: "paid-to", Pattern: regexp.MustCompile(`(?i)\b(?:paid|payment|transfer(?:red)?)\s+to\s+(.+?)` + merchantEnd)},
		{Name: "arabic-at", Pattern: regexp.MustCompile(`(?:لدى|لدي|عند|في\s+متجر)\s+(.+?)` + merchantEnd)},
	}
}

// bindMerchantRules attaches the capture cleaner, which needs the stoplist,
// to rules that do not carry their own normalizer.
func bindMerchantRules(rules []Rule[string], stop map[string]struct{}) []Rule[string] {
	out := make([]Rule[string], len(rules))
	for i, r := range rules {
		if r.Normalize == nil {
			r.Normalize = func(g []string) (string, bool) {
				return cleanMerchant(g[1], stop)
			}
		}
		out[i] = r
	}
	return out
}

// cleanMerchant trims a raw capture and rejects values that cannot be a
// counterparty name.
func cleanMerchant(raw string, stop map[string]struct{}) (string, bool) {
	m := strings.Join(strings.Fields(raw), " ")
	m = strings.Trim(m, edgeTrim)
	if m == "" || !hasLetter(m) {
		return "", false
	}
	upper := strings.ToUpper(m)
	if strings.HasPrefix(upper, "YOUR ") || upper == "YOUR" {
		return "", false
	}
	if _, ok := stop[upper]; ok {
		return "", false
	}
	return strings.TrimSpace(identity.Truncate(m, domain.MaxMerchantLength)), true
}

// capitalizedMerchant returns the first capitalized multi-word or all-caps
// run that is not made only of stoplisted words. Stoplisted words at either
// edge of a run are dropped.
func capitalizedMerchant(text string, stop map[string]struct{}) (string, bool) {
	for _, run := range capitalizedRun.FindAllString(text, -1) {
		run = strings.Trim(run, edgeTrim)
		if _, ok := stop[strings.ToUpper(run)]; ok {
			continue
		}
		words := strings.Fields(run)
		for len(words) > 0 && isStopword(words[0], stop) {
			words = words[1:]
		}
		for len(words) > 0 && isStopword(words[len(words)-1], stop) {
			words = words[:len(words)-1]
		}
		if len(words) == 0 {
			continue
		}
		if len(words) == 1 && !isAllCaps(words[0]) {
			continue
		}
		if m, ok := cleanMerchant(strings.Join(words, " "), stop); ok {
			return m, true
		}
	}
	return "", false
}

func isStopword(w string, stop map[string]struct{}) bool {
	_, ok := stop[strings.ToUpper(strings.Trim(w, edgeTrim))]
	return ok
}

func isAllCaps(w string) bool {
	letters := 0
	for _, r := range w {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 2
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func defaultStoplist() map[string]struct{} {
	words := []string{
		// Generic banking terms
		"BANK", "FROM", "TO", "AT", "ON", "THE", "AMOUNT", "ACCOUNT", "ACC", "A/C", "CARD",
		"DEBIT", "CREDIT", "DEBITED", "CREDITED", "TRANSACTION", "TXN", "PURCHASE", "PAYMENT",
		"BALANCE", "AVAILABLE", "AVL", "BAL", "DATE", "TIME", "VALUE", "TOTAL", "DEAR",
		"CUSTOMER", "CLIENT", "ALERT", "NOTIFICATION", "SMS", "POS", "ATM", "REF",
		"REFERENCE", "NO", "NUMBER", "YOUR", "YOU", "HAS", "BEEN", "WAS", "IS", "FOR",
		"WITH", "USING", "AND", "OF", "IN", "THANK", "THANKS", "PLEASE", "CALL", "VISA",
		"MASTERCARD", "ENDING", "INFO", "SERVICE", "ONLINE", "E-COMMERCE", "ECOMMERCE",
		"TRANSFER", "CASH", "WITHDRAWAL",
		// Currencies
		"OMR", "RO", "R.O", "R.O.", "AED", "SAR", "QAR", "KWD", "BHD", "USD", "EUR", "GBP", "INR",
		// Omani and Gulf banks
		"BANK MUSCAT", "BANKMUSCAT", "MUSCAT", "NBO", "NATIONAL BANK OF OMAN", "BANK DHOFAR",
		"DHOFAR", "SOHAR", "SOHAR INTERNATIONAL", "AHLI", "AHLI BANK", "HSBC", "NIZWA",
		"BANK NIZWA", "OAB", "OMAN ARAB BANK", "ALIZZ", "EMIRATES NBD", "ADCB", "FAB",
		"OMAN", "SULTANATE",
	}
	stop := make(map[string]struct{}, len(words))
	for _, w := range words {
		stop[w] = struct{}{}
	}
	return stop
}
