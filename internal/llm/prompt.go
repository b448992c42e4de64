package llm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/utb-library/affiliation-cli/internal/match"
	"github.com/utb-library/affiliation-cli/internal/model"
)

const systemPrompt = `You resolve ambiguous author affiliations for a university publication catalogue.

You are given the raw affiliation text of one publication record, the author names from its metadata, and a list of candidate internal authors with their faculty and organisational unit.

Decide which of the candidate internal authors actually appear in the record, and which faculty the publication most likely belongs to.

Rules:
- Only return names that appear verbatim in the candidate list. Never invent names.
- Author name forms vary (surname-first, initials, missing diacritics). Match on the person, not the exact spelling.
- If the affiliation text names a faculty or department, prefer it over author-based inference.
- If you cannot tell, return an empty author list and a null faculty_guess with low confidence.

Respond with a single JSON object and nothing else:
{"internal_authors": ["<full name from the candidate list>", ...], "faculty_guess": "<faculty code>" | null, "confidence": <number between 0 and 1>, "notes": "<one short sentence>"}`

// PromptBuilder renders deterministic prompts for affiliation records.
// The same record, roster, and rules always produce the same prompt, so
// cached or replayed runs stay comparable.
type PromptBuilder struct {
	roster []model.InternalAuthor
	rules  *match.Rules
	slice  int
}

// NewPromptBuilder creates a builder over the internal roster. slice caps
// how many candidate authors each prompt carries.
func NewPromptBuilder(roster []model.InternalAuthor, rules *match.Rules, slice int) *PromptBuilder {
	if slice <= 0 {
		slice = 40
	}
	return &PromptBuilder{roster: roster, rules: rules, slice: slice}
}

// Build renders the prompt for one record.
func (b *PromptBuilder) Build(rec *model.AffiliationRecord) Prompt {
	var sb strings.Builder

	sb.WriteString("Affiliation text:\n")
	if len(rec.RawAffiliation) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, line := range rec.RawAffiliation {
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	// Scopus strings carry no author names but often name the department
	// more precisely than the WoS text.
	if len(rec.ScopusAffiliation) > 0 {
		sb.WriteString("\nScopus affiliation:\n")
		for _, line := range rec.ScopusAffiliation {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}

	if len(rec.DCAuthors) > 0 {
		sb.WriteString("\nRecord authors:\n")
		for _, a := range rec.DCAuthors {
			sb.WriteString("- ")
			sb.WriteString(a)
			sb.WriteString("\n")
		}
	}

	if len(rec.HeuristicAuthors) > 0 {
		sb.WriteString("\nAlready matched internal authors:\n")
		for _, a := range rec.HeuristicAuthors {
			sb.WriteString("- ")
			sb.WriteString(a)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\nCandidate internal authors:\n")
	for _, a := range b.candidates(rec) {
		sb.WriteString("- ")
		sb.WriteString(a.FullName)
		if a.Faculty != "" {
			fmt.Fprintf(&sb, " (%s", a.Faculty)
			if a.OU != "" {
				fmt.Fprintf(&sb, ", %s", a.OU)
			}
			sb.WriteString(")")
		}
		sb.WriteString("\n")
	}

	if len(b.rules.Faculties) > 0 {
		sb.WriteString("\nFaculty codes:\n")
		codes := make([]string, 0, len(b.rules.Faculties))
		for code := range b.rules.Faculties {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		for _, code := range codes {
			fmt.Fprintf(&sb, "- %s: %s\n", code, b.rules.Faculties[code])
		}
	}

	return Prompt{System: systemPrompt, User: sb.String()}
}

// candidates ranks the roster by name similarity to the record's author
// fragments and returns the top slice. Ties break on full name so the
// ordering is stable.
func (b *PromptBuilder) candidates(rec *model.AffiliationRecord) []model.InternalAuthor {
	fragments := b.recordFragments(rec)

	type scored struct {
		author model.InternalAuthor
		score  float64
	}
	ranked := make([]scored, 0, len(b.roster))
	for _, a := range b.roster {
		best := 0.0
		for _, frag := range fragments {
			if s := levenshtein.Similarity(frag, a.NameKey, nil); s > best {
				best = s
			}
		}
		ranked = append(ranked, scored{author: a, score: best})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].author.FullName < ranked[j].author.FullName
	})

	n := b.slice
	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]model.InternalAuthor, 0, n)
	for _, r := range ranked[:n] {
		out = append(out, r.author)
	}
	return out
}

// recordFragments collects normalized author name fragments from the raw
// affiliation blocks and the record's metadata authors.
func (b *PromptBuilder) recordFragments(rec *model.AffiliationRecord) []string {
	var frags []string
	for _, raw := range rec.RawAffiliation {
		parsed := match.ParseAffiliation(raw, b.rules)
		for _, block := range parsed.Blocks {
			for _, author := range block.Authors {
				if key := match.NameKey(author); key != "" {
					frags = append(frags, key)
				}
			}
		}
	}
	for _, author := range rec.DCAuthors {
		if key := match.NameKey(author); key != "" {
			frags = append(frags, key)
		}
	}
	return frags
}
