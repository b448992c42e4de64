package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAffiliation_Blocks(t *testing.T) {
	rules := DefaultRules()
	raw := "[Novak, J.; Svoboda, P.] Tomas Bata Univ, Fac Appl Informat, Zlin 76001, Czech Republic; [Smith, A.] MIT, Cambridge, MA USA"

	result := ParseAffiliation(raw, rules)

	require.Len(t, result.Blocks, 2)
	assert.False(t, result.Empty)

	uni := result.Blocks[0]
	assert.Equal(t, []string{"Novak, J.", "Svoboda, P."}, uni.Authors)
	assert.True(t, uni.IsUniversity)
	assert.Contains(t, uni.Affiliation, "Tomas Bata Univ")

	ext := result.Blocks[1]
	assert.Equal(t, []string{"Smith, A."}, ext.Authors)
	assert.False(t, ext.IsUniversity)

	require.Len(t, result.UniversityBlocks, 1)
	assert.Empty(t, result.Warnings)
}

func TestParseAffiliation_Empty(t *testing.T) {
	rules := DefaultRules()

	for _, raw := range []string{"", "   ", "\t\n"} {
		result := ParseAffiliation(raw, rules)
		assert.True(t, result.Empty)
		assert.Empty(t, result.Blocks)
	}
}

func TestParseAffiliation_NoBrackets_Fallback(t *testing.T) {
	rules := DefaultRules()

	result := ParseAffiliation("Tomas Bata Univ, Fac Technol, Zlin, Czech Republic", rules)

	require.Len(t, result.Blocks, 1)
	assert.Empty(t, result.Blocks[0].Authors)
	assert.True(t, result.Blocks[0].IsUniversity)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "fallback")
}

func TestParseAffiliation_NoBrackets_External(t *testing.T) {
	rules := DefaultRules()

	result := ParseAffiliation("Charles Univ, Prague, Czech Republic", rules)

	require.Len(t, result.Blocks, 1)
	assert.False(t, result.Blocks[0].IsUniversity)
	assert.Empty(t, result.UniversityBlocks)
}

func TestParseAffiliation_MultipleUniversityBlocks(t *testing.T) {
	rules := DefaultRules()
	raw := "[Novak, J.] Tomas Bata Univ, Fac Technol, Zlin; [Svoboda, P.] Tomas Bata Univ, Fac Appl Informat, Zlin"

	result := ParseAffiliation(raw, rules)

	require.Len(t, result.UniversityBlocks, 2)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "multiple university blocks")
}

func TestParseAffiliation_AndDelimiter(t *testing.T) {
	rules := DefaultRules()

	result := ParseAffiliation("[Novak, J. and Svoboda, P.] Tomas Bata Univ, Zlin", rules)

	require.Len(t, result.Blocks, 1)
	assert.Equal(t, []string{"Novak, J.", "Svoboda, P."}, result.Blocks[0].Authors)
}
