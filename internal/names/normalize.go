// Package names canonicalizes free-text person names into comparable token
// strings. "Doe, Jane (she/her)", "jane  doe" and "Jane Q. Doe" all normalize
// to "doe jane".
package names

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var parentheticalRe = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)

// nicknames maps formal given names to the short form used for comparison.
// No value may itself be a key, otherwise Normalize stops being idempotent.
var nicknames = map[string]string{
	"steven":      "steve",
	"stephen":     "steve",
	"jonathan":    "jon",
	"johnathan":   "jon",
	"timothy":     "tim",
	"nathaniel":   "nate",
	"nathan":      "nate",
	"raymond":     "ray",
	"kimberly":    "kim",
	"kimberlyn":   "kim",
	"michael":     "mike",
	"christopher": "chris",
	"matthew":     "matt",
	"jennifer":    "jen",
	"katherine":   "kate",
	"catherine":   "kate",
	"elizabeth":   "liz",
	"william":     "will",
	"robert":      "rob",
	"daniel":      "dan",
	"benjamin":    "ben",
	"alexander":   "alex",
	"samuel":      "sam",
	"anthony":     "tony",
	"nicholas":    "nick",
	"joseph":      "joe",
	"patrick":     "pat",
	"rebecca":     "becca",
	"jessica":     "jess",
}

// Normalize returns the canonical comparison form of name. It never fails;
// empty or unusable input yields "".
func Normalize(name string) string {
	return strings.Join(Tokens(name), " ")
}

// Tokens returns the sorted canonical tokens of name.
func Tokens(name string) []string {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" {
		return nil
	}
	s = foldDiacritics(s)
	s = parentheticalRe.ReplaceAllString(s, " ")

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == ','
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tok := stripPunctuation(f)
		// single letters are middle initials
		if len([]rune(tok)) < 2 {
			continue
		}
		if short, ok := nicknames[tok]; ok {
			tok = short
		}
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	return tokens
}

// Equal reports whether two names normalize to the same non-empty form.
func Equal(a, b string) bool {
	na := Normalize(a)
	return na != "" && na == Normalize(b)
}

func stripPunctuation(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// foldDiacritics decomposes to NFD and drops combining marks.
func foldDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Key returns a slug of the normalized name suitable for use inside an id,
// e.g. "Doe, Jane" becomes "doe-jane".
func Key(name string) string {
	return strings.Join(Tokens(name), "-")
}
