package match

import (
	"strings"

	"github.com/agext/levenshtein"

	"github.com/utb-library/affiliation-cli/internal/model"
)

// tokenConfidence is the fixed confidence assigned to token-subset
// matches, between exact (1.0) and the fuzzy threshold.
const tokenConfidence = 0.9

// Matcher resolves affiliation strings against the internal-author roster.
// It holds no mutable state after construction: Resolve is a pure function
// of its input, so re-runs after roster updates are safe and idempotent.
type Matcher struct {
	rules     *Rules
	threshold float64
	roster    []model.InternalAuthor
	exact     map[string]int // canonicalKey → roster index, first wins
}

// NewMatcher indexes the roster for matching. threshold is the minimum
// normalized similarity a fuzzy match must reach.
func NewMatcher(roster []model.InternalAuthor, rules *Rules, threshold float64) *Matcher {
	m := &Matcher{
		rules:     rules,
		threshold: threshold,
		roster:    roster,
		exact:     make(map[string]int, len(roster)),
	}
	for i, a := range roster {
		key := canonicalKey(a.NameKey)
		if _, ok := m.exact[key]; !ok {
			m.exact[key] = i
		}
	}
	return m
}

// Resolve parses one raw affiliation string and matches the authors of its
// university blocks against the roster.
func (m *Matcher) Resolve(raw string) model.MatchVerdict {
	return m.ResolveAll([]string{raw})
}

// ResolveAll resolves a record's full affiliation array into one merged
// verdict. Matched authors are deduplicated by name key in first-seen
// order; faculty candidates are the distinct faculties of the matches.
func (m *Matcher) ResolveAll(raws []string) model.MatchVerdict {
	var v model.MatchVerdict
	seen := make(map[string]bool)
	uniBlocks := 0

	for _, raw := range raws {
		parsed := ParseAffiliation(raw, m.rules)
		if parsed.Empty {
			continue
		}
		v.Warnings = append(v.Warnings, parsed.Warnings...)
		uniBlocks += len(parsed.UniversityBlocks)

		for _, block := range parsed.UniversityBlocks {
			v.Indicative = true
			m.recordTextEvidence(&v, block.Affiliation)

			for _, name := range block.Authors {
				key := canonicalKey(name)
				if key == "" || seen[key] {
					continue
				}
				seen[key] = true

				am, ok := m.matchFragment(name)
				if !ok {
					v.Unmatched = append(v.Unmatched, name)
					continue
				}
				v.Matches = append(v.Matches, am)
				if !containsString(v.FacultyCandidates, am.Author.Faculty) && am.Author.Faculty != "" {
					v.FacultyCandidates = append(v.FacultyCandidates, am.Author.Faculty)
				}
			}
		}
	}

	v.MultipleBlocks = uniBlocks > 1
	v.Ambiguous = m.isAmbiguous(&v)
	return v
}

// isAmbiguous applies the escalation conditions: indicative text with no
// resolved authors, unresolved university-block author fragments, matches
// spanning several faculties without department evidence picking one, or
// any match that only the fuzzy strategy produced.
func (m *Matcher) isAmbiguous(v *model.MatchVerdict) bool {
	if v.Indicative && len(v.Matches) == 0 {
		return true
	}
	if len(v.Unmatched) > 0 {
		return true
	}
	if len(v.FacultyCandidates) > 1 && !containsString(v.FacultyCandidates, v.TextFaculty) {
		return true
	}
	for _, am := range v.Matches {
		if am.Strategy == model.MatchFuzzy {
			return true
		}
	}
	return false
}

// recordTextEvidence folds faculty/OU evidence from one block's
// institution text into the verdict. Conflicting faculty evidence across
// blocks cancels out; it cannot disambiguate anything.
func (m *Matcher) recordTextEvidence(v *model.MatchVerdict, affiliation string) {
	faculty, ou := m.rules.ResolveFacultyOU(affiliation)
	if faculty != "" {
		switch v.TextFaculty {
		case "":
			v.TextFaculty = faculty
		case faculty:
		default:
			v.TextFaculty = ""
		}
	}
	if ou != "" && v.TextOU == "" {
		v.TextOU = ou
	}
}

// matchFragment tries the strategies strongest first. Once a strategy
// succeeds the weaker ones are not consulted for that fragment.
func (m *Matcher) matchFragment(name string) (model.AuthorMatch, bool) {
	if idx, ok := m.exact[canonicalKey(name)]; ok {
		return model.AuthorMatch{
			Input:      name,
			Author:     m.roster[idx],
			Confidence: 1.0,
			Strategy:   model.MatchExact,
		}, true
	}

	if idx, ok := m.tokenSubset(name); ok {
		return model.AuthorMatch{
			Input:      name,
			Author:     m.roster[idx],
			Confidence: tokenConfidence,
			Strategy:   model.MatchTokens,
		}, true
	}

	if idx, score, ok := m.fuzzy(name); ok {
		return model.AuthorMatch{
			Input:      name,
			Author:     m.roster[idx],
			Confidence: score,
			Strategy:   model.MatchFuzzy,
		}, true
	}

	return model.AuthorMatch{}, false
}

// tokenSubset matches a fragment whose tokens are all present in a roster
// key, order-independent, allowing initials: the surname (first key token)
// must appear in full and every other fragment token must equal a key
// token or be its single-letter initial. "Novakova J." matches the key
// "novakova jana".
func (m *Matcher) tokenSubset(name string) (int, bool) {
	candTokens := NameTokens(name)
	if len(candTokens) < 2 {
		return 0, false
	}

	for i, a := range m.roster {
		keyTokens := strings.Split(a.NameKey, " ")
		if len(keyTokens) == 0 || !containsString(candTokens, keyTokens[0]) {
			continue
		}
		if tokensSubsume(candTokens, keyTokens) {
			return i, true
		}
	}
	return 0, false
}

// tokensSubsume reports whether every candidate token is matched by a
// distinct key token, either verbatim or as an initial.
func tokensSubsume(cand, key []string) bool {
	used := make([]bool, len(key))
	for _, c := range cand {
		found := false
		for i, k := range key {
			if used[i] {
				continue
			}
			if c == k || (len(c) == 1 && strings.HasPrefix(k, c)) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// fuzzy scans the roster for the best normalized Levenshtein similarity
// over order-independent keys and accepts it at or above the threshold.
func (m *Matcher) fuzzy(name string) (int, float64, bool) {
	cand := canonicalKey(name)
	if cand == "" {
		return 0, 0, false
	}

	bestIdx, bestScore := -1, 0.0
	for i, a := range m.roster {
		score := levenshtein.Similarity(cand, canonicalKey(a.NameKey), nil)
		if score > bestScore {
			bestScore, bestIdx = score, i
		}
	}
	if bestIdx >= 0 && bestScore >= m.threshold {
		return bestIdx, bestScore, true
	}
	return 0, 0, false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
