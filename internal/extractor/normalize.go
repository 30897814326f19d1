package extractor

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	digitReplacer = strings.NewReplacer(
		// Arabic-Indic
		"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
		"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
		// Extended Arabic-Indic (Persian/Urdu)
		"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4",
		"۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
		// Separators
		"٫", ".", "٬", ",", "،", ",",
		// Bidi controls and zero-width marks
		"\u200e", "", "\u200f", "", "\u061c", "",
		"\u202a", "", "\u202b", "", "\u202c", "", "\u202d", "", "\u202e", "",
		"\u2066", "", "\u2067", "", "\u2068", "", "\u2069", "",
		"\u200b", "", "\ufeff", "",
		"\r\n", "\n", "\r", "\n",
	)

	horizontalSpace = regexp.MustCompile(`[\t\f\v\p{Zs}]+`)
	blankLines      = regexp.MustCompile(` ?\n[ \n]*`)
)

// Normalize prepares raw notification text for matching. It applies NFKC,
// maps Arabic digits and separators to ASCII, drops bidi marks and collapses
// whitespace. Line breaks survive as single '\n' since several patterns stop
// at the end of a line.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = digitReplacer.Replace(s)
	s = horizontalSpace.ReplaceAllString(s, " ")
	s = blankLines.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}
