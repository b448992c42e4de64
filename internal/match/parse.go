package match

import (
	"fmt"
	"regexp"
	"strings"
)

// WoS affiliation strings group authors in square brackets followed by the
// institution text: "[Novak, J.; Svoboda, P.] Tomas Bata Univ, ...; [...]".
var blockPattern = regexp.MustCompile(`\[([^\]]+)\]([^[]*)`)

// authorDelimiters split the bracketed author list into name fragments.
var authorDelimiters = regexp.MustCompile(`;|\n|\band\b`)

// Block is one author-group/institution pair from an affiliation string.
type Block struct {
	AuthorsRaw   string
	Authors      []string
	Affiliation  string
	IsUniversity bool
	Keyword      string
}

// ParseResult is the structured form of one raw affiliation string.
type ParseResult struct {
	Raw              string
	Blocks           []Block
	UniversityBlocks []Block
	Warnings         []string
	// Empty is true for blank input: nothing to parse, nothing to decide.
	Empty bool
}

// ParseAffiliation splits a raw WoS affiliation string into blocks and
// flags the ones whose institution text carries a university marker.
// Malformed input never fails: text without bracketed author groups falls
// back to a single authorless block with a warning, which downstream
// policy treats as potential escalation material rather than an error.
func ParseAffiliation(raw string, rules *Rules) ParseResult {
	result := ParseResult{Raw: raw}
	if strings.TrimSpace(raw) == "" {
		result.Empty = true
		return result
	}

	matches := blockPattern.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		result.Warnings = append(result.Warnings, "no author blocks found, fallback mode")
		isUni, kw := rules.HasMarker(raw)
		block := Block{Affiliation: strings.TrimSpace(raw), IsUniversity: isUni, Keyword: kw}
		result.Blocks = append(result.Blocks, block)
		if isUni {
			result.UniversityBlocks = append(result.UniversityBlocks, block)
		}
		return result
	}

	for _, m := range matches {
		authorsRaw := strings.TrimSpace(m[1])
		affiliation := strings.Trim(strings.TrimSpace(m[2]), "; \t")
		isUni, kw := rules.HasMarker(affiliation)
		block := Block{
			AuthorsRaw:   authorsRaw,
			Authors:      splitAuthors(authorsRaw),
			Affiliation:  affiliation,
			IsUniversity: isUni,
			Keyword:      kw,
		}
		result.Blocks = append(result.Blocks, block)
		if isUni {
			result.UniversityBlocks = append(result.UniversityBlocks, block)
		}
	}

	if len(result.UniversityBlocks) > 1 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("multiple university blocks (%d)", len(result.UniversityBlocks)))
	}
	return result
}

func splitAuthors(raw string) []string {
	parts := authorDelimiters.Split(raw, -1)
	authors := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			authors = append(authors, p)
		}
	}
	return authors
}
