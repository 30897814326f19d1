package editdistance_test

import (
	"testing"

	"github.com/dvloznov/bankmail-ledger/internal/editdistance"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"both empty", "", "", 0},
		{"empty left", "", "ABC", 3},
		{"empty right", "ABC", "", 3},
		{"identical", "CARREFOUR", "CARREFOUR", 0},
		{"one substitution", "LULU", "LALU", 1},
		{"one deletion", "CARREFOURHYPERMARKET", "CARREFOURHYPERMARKT", 1},
		{"classic", "KITTEN", "SITTING", 3},
		{"arabic runes", "لولو", "لولوه", 1},
		{"disjoint", "ABC", "XYZ", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := editdistance.Levenshtein(tt.a, tt.b); got != tt.want {
				t.Errorf("Levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if got := editdistance.Levenshtein(tt.b, tt.a); got != tt.want {
				t.Errorf("Levenshtein(%q, %q) = %d, want %d (symmetry)", tt.b, tt.a, got, tt.want)
			}
		})
	}
}

func TestLevenshtein_SelfIsZero(t *testing.T) {
	for _, s := range []string{"", "A", "SHELL OMAN", "مطعم", "A1B2C3"} {
		if got := editdistance.Levenshtein(s, s); got != 0 {
			t.Errorf("Levenshtein(%q, %q) = %d, want 0", s, s, got)
		}
	}
}

func TestWithin(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		k    int
	}{
		{"empty", "", "", 0},
		{"equal", "NOON", "NOON", 0},
		{"distance one", "CARREFOURHYPERMARKET", "CARREFOURHYPERMARKT", 2},
		{"distance two", "ABCDEFGHIJKLMN", "ABXDEFGHIJKLYN", 2},
		{"distance three", "ABCDEFGHIJKLMN", "XBCDEFGHIJKLYZ", 2},
		{"length gap", "AB", "ABCDE", 2},
		{"classic", "KITTEN", "SITTING", 3},
		{"classic too tight", "KITTEN", "SITTING", 2},
		{"empty vs short", "", "AB", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := editdistance.Levenshtein(tt.a, tt.b) <= tt.k
			if got := editdistance.Within(tt.a, tt.b, tt.k); got != want {
				t.Errorf("Within(%q, %q, %d) = %v, want %v", tt.a, tt.b, tt.k, got, want)
			}
		})
	}
}

func TestWithin_NegativeBound(t *testing.T) {
	if editdistance.Within("A", "A", -1) {
		t.Error("expected false for negative bound")
	}
}
