package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldDiacritics decomposes to NFD, drops combining marks and recomposes,
// so "Nováková" folds to "Novakova".
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases s, strips diacritics and collapses whitespace.
// Roster keys and affiliation fragments must pass through the same
// normalization or matching silently produces false negatives.
func Normalize(s string) string {
	folded, _, err := transform.String(foldDiacritics, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// NameTokens splits a person name into normalized word tokens, dropping
// punctuation. "Nováková, J." yields ["novakova", "j"].
func NameTokens(s string) []string {
	return strings.FieldsFunc(Normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// NameKey builds the roster matching key for a display name, keeping
// token order (surname first in the roster's "Surname, Firstname" form).
func NameKey(fullName string) string {
	return strings.Join(NameTokens(fullName), " ")
}

// canonicalKey is NameKey with tokens sorted, used for order-independent
// exact lookups ("NOVAKOVA JANA" equals "Novakova, Jana").
func canonicalKey(s string) string {
	toks := NameTokens(s)
	for i := 1; i < len(toks); i++ {
		for j := i; j > 0 && toks[j] < toks[j-1]; j-- {
			toks[j], toks[j-1] = toks[j-1], toks[j]
		}
	}
	return strings.Join(toks, " ")
}
