package match

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/utb-library/affiliation-cli/internal/model"
)

func authorMatch(faculty, ou string) model.AuthorMatch {
	return model.AuthorMatch{
		Author: model.InternalAuthor{Faculty: faculty, OU: ou},
	}
}

func TestDecide_Ambiguous(t *testing.T) {
	d := Decide(model.MatchVerdict{Ambiguous: true, FacultyCandidates: []string{"FT"}})

	assert.True(t, d.NeedsLLM)
	assert.Empty(t, d.FacultyGuess)
	assert.Empty(t, d.OUGuess)
}

func TestDecide_NoCandidates(t *testing.T) {
	d := Decide(model.MatchVerdict{})

	assert.False(t, d.NeedsLLM)
	assert.Empty(t, d.FacultyGuess)
	assert.Empty(t, d.OUGuess)
}

func TestDecide_SingleFaculty_MajorityOU(t *testing.T) {
	v := model.MatchVerdict{
		FacultyCandidates: []string{"FT"},
		Matches: []model.AuthorMatch{
			authorMatch("FT", "Department of Polymer Engineering"),
			authorMatch("FT", "Department of Polymer Engineering"),
			authorMatch("FT", "Department of Chemistry"),
		},
	}

	d := Decide(v)

	assert.False(t, d.NeedsLLM)
	assert.Equal(t, "FT", d.FacultyGuess)
	assert.Equal(t, "Department of Polymer Engineering", d.OUGuess)
}

func TestDecide_OUTie_FallsBackToText(t *testing.T) {
	v := model.MatchVerdict{
		FacultyCandidates: []string{"FT"},
		TextOU:            "Department of Food Technology",
		Matches: []model.AuthorMatch{
			authorMatch("FT", "Department of Polymer Engineering"),
			authorMatch("FT", "Department of Chemistry"),
		},
	}

	d := Decide(v)

	assert.Equal(t, "FT", d.FacultyGuess)
	assert.Equal(t, "Department of Food Technology", d.OUGuess)
}

func TestDecide_OUTie_NoText_Empty(t *testing.T) {
	v := model.MatchVerdict{
		FacultyCandidates: []string{"FT"},
		Matches: []model.AuthorMatch{
			authorMatch("FT", "Department of Polymer Engineering"),
			authorMatch("FT", "Department of Chemistry"),
		},
	}

	d := Decide(v)

	assert.Equal(t, "FT", d.FacultyGuess)
	assert.Empty(t, d.OUGuess)
}

func TestDecide_MultiFaculty_TextPicksOne(t *testing.T) {
	v := model.MatchVerdict{
		FacultyCandidates: []string{"FAI", "FT"},
		TextFaculty:       "FT",
		Matches: []model.AuthorMatch{
			authorMatch("FAI", "Department of Mathematics"),
			authorMatch("FT", "Department of Polymer Engineering"),
		},
	}

	d := Decide(v)

	assert.False(t, d.NeedsLLM)
	assert.Equal(t, "FT", d.FacultyGuess)
	assert.Equal(t, "Department of Polymer Engineering", d.OUGuess)
}

func TestDecide_MultiFaculty_NoText_Escalates(t *testing.T) {
	v := model.MatchVerdict{
		FacultyCandidates: []string{"FAI", "FT"},
	}

	d := Decide(v)

	assert.True(t, d.NeedsLLM)
}

// Decide must be total: any combination of verdict fields yields a decision
// without panicking, and guesses are never set alongside an escalation.
func TestDecide_Total(t *testing.T) {
	candidateSets := [][]string{nil, {"FT"}, {"FAI", "FT"}}
	textFaculties := []string{"", "FT", "FMK"}
	for _, ambiguous := range []bool{false, true} {
		for _, cands := range candidateSets {
			for _, tf := range textFaculties {
				d := Decide(model.MatchVerdict{
					Ambiguous:         ambiguous,
					FacultyCandidates: cands,
					TextFaculty:       tf,
				})
				if d.NeedsLLM {
					assert.Empty(t, d.FacultyGuess)
					assert.Empty(t, d.OUGuess)
				}
			}
		}
	}
}
