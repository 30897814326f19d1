package dedup_test

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/bankmail-ledger/internal/dedup"
	"github.com/dvloznov/bankmail-ledger/internal/domain"
	"github.com/dvloznov/bankmail-ledger/internal/identity"
)

func tx(date civil.Date, amount, merchant string) domain.BankTransaction {
	t := domain.BankTransaction{
		Date:     date,
		Amount:   decimal.RequireFromString(amount),
		Merchant: merchant,
	}
	identity.Assign(&t)
	return t
}

var feb1 = civil.Date{Year: 2024, Month: 2, Day: 1}

func TestCheck_ExactID(t *testing.T) {
	existing := []domain.LedgerEntry{tx(feb1, "45.750", "CARREFOUR HYPERMARKET").Entry()}

	v := dedup.New().Check(tx(feb1, "45.75", "Carrefour-Hypermarket"), existing)
	if !v.Duplicate || v.Rule != dedup.RuleExact {
		t.Fatalf("verdict = %+v, want exact duplicate", v)
	}
	if v.Match == nil || v.Match.Merchant != "CARREFOUR HYPERMARKET" {
		t.Errorf("match = %+v", v.Match)
	}
}

func TestCheck_ExactIDRecomputedForLegacyRows(t *testing.T) {
	entry := tx(feb1, "10.000", "NOON").Entry()
	entry.TransactionID = ""

	if !dedup.New().IsDuplicate(tx(feb1, "10", "noon"), []domain.LedgerEntry{entry}) {
		t.Error("expected duplicate when stored row has no id")
	}
}

func TestCheck_FuzzyTypoAndTolerance(t *testing.T) {
	existing := []domain.LedgerEntry{tx(feb1, "45.750", "CARREFOUR HYPERMARKET").Entry()}
	candidate := tx(feb1, "45.751", "CARREFOUR HYPERMARKT")

	if candidate.TransactionID == existing[0].TransactionID {
		t.Fatal("ids should differ")
	}

	v := dedup.New().Check(candidate, existing)
	if !v.Duplicate || v.Rule != dedup.RuleFuzzy {
		t.Fatalf("verdict = %+v, want fuzzy duplicate", v)
	}

	strict := dedup.New(dedup.WithStrictLengthBound()).Check(candidate, existing)
	if strict.Duplicate {
		t.Error("strict length bound should skip edit distance for long names")
	}
}

func TestCheck_NotDuplicate(t *testing.T) {
	existing := []domain.LedgerEntry{tx(feb1, "45.750", "CARREFOUR HYPERMARKET").Entry()}

	tests := []struct {
		name      string
		candidate domain.BankTransaction
	}{
		{"different date", tx(civil.Date{Year: 2024, Month: 2, Day: 2}, "45.750", "CARREFOUR HYPERMARKET")},
		{"amount outside tolerance", tx(feb1, "45.752", "CARREFOUR HYPERMARKET")},
		{"different merchant", tx(feb1, "45.750", "LULU")},
	}

	d := dedup.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if v := d.Check(tt.candidate, existing); v.Duplicate {
				t.Errorf("unexpected duplicate via %s", v.Rule)
			}
		})
	}
}

func TestCheck_EmptySnapshot(t *testing.T) {
	if dedup.New().IsDuplicate(tx(feb1, "1", "A"), nil) {
		t.Error("nothing is a duplicate of an empty ledger")
	}
}

func TestCheck_SameTripleFromDifferentMessages(t *testing.T) {
	first := tx(feb1, "3.200", "SHELL OMAN")
	first.Description = "POS purchase"
	second := tx(feb1, "3.2", "Shell Oman")
	second.Description = "Card transaction alert"

	if first.TransactionID != second.TransactionID {
		t.Fatalf("ids differ: %q vs %q", first.TransactionID, second.TransactionID)
	}
	v := dedup.New().Check(second, []domain.LedgerEntry{first.Entry()})
	if !v.Duplicate || v.Rule != dedup.RuleExact {
		t.Errorf("verdict = %+v, want exact duplicate", v)
	}
}

func TestMerchantsSimilar(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical", "LULU", "LULU", true},
		{"cosmetic", "Lulu Hypermarket", "LULU-HYPERMARKET", true},
		{"contains", "SHELL", "SHELL OMAN AL KHUWAIR", true},
		{"distance two short", "ABCDEFGHIJ", "ABCDEFGHXY", true},
		{"distance three short", "ABCDEFGHIJ", "ABCDEFGXYZ", false},
		{"long typo banded", "CARREFOUR HYPERMARKET", "CARREFOUR HYPERMARKT", true},
		{"long different", "CARREFOUR HYPERMARKET", "LULU HYPERMARKET BAWSHAR", false},
		{"both empty", "", "", true},
		{"one empty", "", "SHELL", false},
		{"punctuation only", "***", "SHELL", false},
	}

	d := dedup.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.MerchantsSimilar(tt.a, tt.b); got != tt.want {
				t.Errorf("MerchantsSimilar(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if got := d.MerchantsSimilar(tt.b, tt.a); got != tt.want {
				t.Errorf("MerchantsSimilar(%q, %q) = %v, want %v (symmetry)", tt.b, tt.a, got, tt.want)
			}
		})
	}
}

func TestMerchantsSimilar_LengthBound(t *testing.T) {
	tests := []struct {
		name       string
		a, b       string
		wantBanded bool
		wantStrict bool
	}{
		{"short pair", "ABCDEFGHIJ", "ABCDEFGHXY", true, true},
		{"short and long", "ABCDEFGHIJ", "ABCDEFGHIXK", true, false},
		{"long typo", "CARREFOUR HYPERMARKET", "CARREFOUR HYPERMARKT", true, false},
		{"long contains", "CARREFOUR", "CARREFOUR HYPERMARKET", true, true},
		{"short and long far apart", "ABCDEFGHIJ", "ABCXYZGHIXK", false, false},
	}

	banded := dedup.New()
	strict := dedup.New(dedup.WithStrictLengthBound())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, pair := range [][2]string{{tt.a, tt.b}, {tt.b, tt.a}} {
				if got := banded.MerchantsSimilar(pair[0], pair[1]); got != tt.wantBanded {
					t.Errorf("banded MerchantsSimilar(%q, %q) = %v, want %v", pair[0], pair[1], got, tt.wantBanded)
				}
				if got := strict.MerchantsSimilar(pair[0], pair[1]); got != tt.wantStrict {
					t.Errorf("strict MerchantsSimilar(%q, %q) = %v, want %v", pair[0], pair[1], got, tt.wantStrict)
				}
			}
		})
	}
}

func TestOptions(t *testing.T) {
	d := dedup.New(dedup.WithMaxDistance(0), dedup.WithMaxFuzzyLength(4))
	if d.MerchantsSimilar("ABCD", "ABCE") {
		t.Error("distance 1 should fail with max distance 0")
	}

	loose := dedup.New(dedup.WithAmountTolerance(0.01))
	existing := []domain.LedgerEntry{tx(feb1, "5.000", "ACME").Entry()}
	if !loose.IsDuplicate(tx(feb1, "5.005", "ACME"), existing) {
		t.Error("expected duplicate within widened tolerance")
	}
}
