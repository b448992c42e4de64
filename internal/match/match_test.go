package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utb-library/affiliation-cli/internal/model"
)

func testRoster() []model.InternalAuthor {
	names := []struct {
		full    string
		faculty string
		ou      string
	}{
		{"Nováková, Jana", "FAI", "Department of Informatics and Artificial Intelligence"},
		{"Svoboda, Petr", "FAI", "Department of Mathematics"},
		{"Dvořák, Tomáš", "FT", "Department of Polymer Engineering"},
		{"Černá, Lucie", "FT", "Department of Polymer Engineering"},
		{"Horák, Martin", "FAME", "Department of Economics"},
	}
	roster := make([]model.InternalAuthor, 0, len(names))
	for _, n := range names {
		roster = append(roster, model.InternalAuthor{
			FullName: n.full,
			NameKey:  NameKey(n.full),
			Faculty:  n.faculty,
			OU:       n.ou,
		})
	}
	return roster
}

func testMatcher() *Matcher {
	return NewMatcher(testRoster(), DefaultRules(), 0.85)
}

func TestMatcher_ExactMatch(t *testing.T) {
	m := testMatcher()

	v := m.Resolve("[Novakova, Jana] Tomas Bata Univ, Fac Appl Informat, Zlin, Czech Republic")

	require.Len(t, v.Matches, 1)
	assert.Equal(t, "Nováková, Jana", v.Matches[0].Author.FullName)
	assert.Equal(t, model.MatchExact, v.Matches[0].Strategy)
	assert.Equal(t, 1.0, v.Matches[0].Confidence)
	assert.False(t, v.Ambiguous)
}

func TestMatcher_ExactMatch_OrderIndependent(t *testing.T) {
	m := testMatcher()

	for _, form := range []string{
		"[Novakova, Jana] Tomas Bata Univ, Zlin",
		"[Jana Novakova] Tomas Bata Univ, Zlin",
		"[NOVAKOVA JANA] Tomas Bata Univ, Zlin",
	} {
		v := m.Resolve(form)
		require.Len(t, v.Matches, 1, form)
		assert.Equal(t, model.MatchExact, v.Matches[0].Strategy, form)
	}
}

func TestMatcher_TokenSubset_Initial(t *testing.T) {
	m := testMatcher()

	v := m.Resolve("[Novakova, J.] Tomas Bata Univ, Fac Appl Informat, Zlin")

	require.Len(t, v.Matches, 1)
	assert.Equal(t, "Nováková, Jana", v.Matches[0].Author.FullName)
	assert.Equal(t, model.MatchTokens, v.Matches[0].Strategy)
	assert.False(t, v.Ambiguous)
}

func TestMatcher_Fuzzy_Escalates(t *testing.T) {
	m := testMatcher()

	// Typo in the given name: only the fuzzy strategy can catch it.
	v := m.Resolve("[Novakova, Janna] Tomas Bata Univ, Zlin")

	require.Len(t, v.Matches, 1)
	assert.Equal(t, model.MatchFuzzy, v.Matches[0].Strategy)
	assert.GreaterOrEqual(t, v.Matches[0].Confidence, 0.85)
	assert.True(t, v.Ambiguous)
}

func TestMatcher_UnmatchedFragment_Escalates(t *testing.T) {
	m := testMatcher()

	v := m.Resolve("[Novakova, Jana; Zeleny, Bohumil] Tomas Bata Univ, Zlin")

	require.Len(t, v.Matches, 1)
	assert.Equal(t, []string{"Zeleny, Bohumil"}, v.Unmatched)
	assert.True(t, v.Ambiguous)
}

func TestMatcher_IndicativeWithoutMatches_Escalates(t *testing.T) {
	m := testMatcher()

	v := m.Resolve("Tomas Bata Univ, Fac Technol, Zlin, Czech Republic")

	assert.True(t, v.Indicative)
	assert.Empty(t, v.Matches)
	assert.True(t, v.Ambiguous)
}

func TestMatcher_TwoFaculties_NoTextEvidence_Escalates(t *testing.T) {
	m := testMatcher()

	v := m.Resolve("[Novakova, Jana; Dvorak, Tomas] Tomas Bata Univ, Zlin, Czech Republic")

	require.Len(t, v.Matches, 2)
	assert.ElementsMatch(t, []string{"FAI", "FT"}, v.FacultyCandidates)
	assert.True(t, v.Ambiguous)
}

func TestMatcher_TwoFaculties_TextEvidencePicksOne(t *testing.T) {
	m := testMatcher()

	v := m.Resolve("[Novakova, Jana; Dvorak, Tomas] Tomas Bata Univ, Dept Polymer Engn, Zlin")

	require.Len(t, v.Matches, 2)
	assert.Equal(t, "FT", v.TextFaculty)
	assert.False(t, v.Ambiguous)
}

func TestMatcher_ExternalOnly_NothingToDecide(t *testing.T) {
	m := testMatcher()

	v := m.Resolve("[Smith, A.] MIT, Cambridge, MA USA")

	assert.False(t, v.Indicative)
	assert.Empty(t, v.Matches)
	assert.Empty(t, v.Unmatched)
	assert.False(t, v.Ambiguous)
}

func TestMatcher_DeduplicatesAcrossElements(t *testing.T) {
	m := testMatcher()

	v := m.ResolveAll([]string{
		"[Novakova, Jana] Tomas Bata Univ, Zlin",
		"[Jana Novakova] Tomas Bata Univ, Fac Appl Informat, Zlin",
	})

	require.Len(t, v.Matches, 1)
	assert.True(t, v.MultipleBlocks)
}

func TestMatcher_Idempotent(t *testing.T) {
	m := testMatcher()
	raw := []string{"[Novakova, J.; Zeleny, B.] Tomas Bata Univ, Fac Appl Informat, Zlin"}

	first := m.ResolveAll(raw)
	second := m.ResolveAll(raw)

	assert.Equal(t, first, second)
}

func TestTokensSubsume(t *testing.T) {
	tests := []struct {
		cand []string
		key  []string
		want bool
	}{
		{[]string{"novakova", "j"}, []string{"novakova", "jana"}, true},
		{[]string{"novakova", "jana"}, []string{"novakova", "jana"}, true},
		{[]string{"jana", "novakova"}, []string{"novakova", "jana"}, true},
		{[]string{"novakova", "k"}, []string{"novakova", "jana"}, false},
		{[]string{"novakova", "j", "j"}, []string{"novakova", "jana"}, false},
		{[]string{"novak", "j"}, []string{"novakova", "jana"}, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tokensSubsume(tt.cand, tt.key), "%v vs %v", tt.cand, tt.key)
	}
}
