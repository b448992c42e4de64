package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResult_Valid(t *testing.T) {
	raw := `{"internal_authors": ["Nováková, Jana"], "faculty_guess": "FAI", "confidence": 0.92, "notes": "department named in text"}`

	result, err := ParseResult(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"Nováková, Jana"}, result.InternalAuthors)
	require.NotNil(t, result.FacultyGuess)
	assert.Equal(t, "FAI", *result.FacultyGuess)
	assert.Equal(t, 0.92, result.Confidence)
	assert.Equal(t, "department named in text", result.Notes)
}

func TestParseResult_FencedAndProse(t *testing.T) {
	raw := "Here is the result:\n```json\n{\"internal_authors\": [], \"faculty_guess\": null, \"confidence\": 0.1, \"notes\": \"\"}\n```\nLet me know if you need more."

	result, err := ParseResult(raw)
	require.NoError(t, err)

	assert.Empty(t, result.InternalAuthors)
	assert.Nil(t, result.FacultyGuess)
	assert.Equal(t, 0.1, result.Confidence)
}

func TestParseResult_NullFaculty(t *testing.T) {
	result, err := ParseResult(`{"internal_authors": ["Svoboda, Petr"], "faculty_guess": null, "confidence": 0.4, "notes": ""}`)
	require.NoError(t, err)
	assert.Nil(t, result.FacultyGuess)
}

func TestParseResult_EmptyFacultyStringBecomesNil(t *testing.T) {
	result, err := ParseResult(`{"internal_authors": [], "faculty_guess": "  ", "confidence": 0.2, "notes": "nothing matched"}`)
	require.NoError(t, err)
	assert.Nil(t, result.FacultyGuess)
}

func TestParseResult_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing confidence", `{"internal_authors": [], "faculty_guess": null, "notes": ""}`},
		{"missing internal_authors", `{"faculty_guess": "FT", "confidence": 0.9, "notes": ""}`},
		{"missing notes", `{"internal_authors": [], "faculty_guess": null, "confidence": 0.9}`},
		{"confidence above one", `{"internal_authors": [], "confidence": 1.5, "notes": ""}`},
		{"confidence negative", `{"internal_authors": [], "confidence": -0.1, "notes": ""}`},
		{"confidence as string", `{"internal_authors": [], "confidence": "high", "notes": ""}`},
		{"authors not strings", `{"internal_authors": [1, 2], "confidence": 0.5, "notes": ""}`},
		{"blank author name", `{"internal_authors": [" "], "confidence": 0.5, "notes": ""}`},
		{"not json", "the authors are Novakova and Svoboda"},
		{"empty", ""},
		{"array instead of object", `[{"confidence": 0.5}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseResult(tt.raw)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, IsValidationError(err), "expected validation error, got %v", err)
		})
	}
}
