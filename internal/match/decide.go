package match

import "github.com/utb-library/affiliation-cli/internal/model"

// Decision is the ambiguity policy's output for one verdict.
type Decision struct {
	NeedsLLM     bool
	FacultyGuess string
	OUGuess      string
}

// Decide maps a match verdict to a decision. The function is total: every
// verdict, including zero matches, maps to a defined decision.
//
// An unambiguous verdict with exactly one faculty candidate resolves to
// that faculty with the majority OU among its matched authors (tie or no
// OU on file → text-derived department, else empty). An ambiguous verdict
// defers entirely to the LLM stage, guesses left empty.
func Decide(v model.MatchVerdict) Decision {
	if v.Ambiguous {
		return Decision{NeedsLLM: true}
	}

	var faculty string
	switch len(v.FacultyCandidates) {
	case 0:
		// Nothing matched and nothing indicative: nothing to decide.
		return Decision{}
	case 1:
		faculty = v.FacultyCandidates[0]
	default:
		// Not ambiguous with several candidates means the department
		// evidence picked one of them.
		faculty = v.TextFaculty
		if faculty == "" {
			return Decision{NeedsLLM: true}
		}
	}

	ou := majorityOU(v.Matches, faculty)
	if ou == "" {
		ou = v.TextOU
	}
	return Decision{FacultyGuess: faculty, OUGuess: ou}
}

// majorityOU returns the plurality OU among matched authors of the given
// faculty, or "" on a tie or when no author carries an OU.
func majorityOU(matches []model.AuthorMatch, faculty string) string {
	counts := make(map[string]int)
	order := []string{}
	for _, am := range matches {
		if am.Author.Faculty != faculty || am.Author.OU == "" {
			continue
		}
		if _, seen := counts[am.Author.OU]; !seen {
			order = append(order, am.Author.OU)
		}
		counts[am.Author.OU]++
	}

	best, bestCount, tied := "", 0, false
	for _, ou := range order {
		switch {
		case counts[ou] > bestCount:
			best, bestCount, tied = ou, counts[ou], false
		case counts[ou] == bestCount:
			tied = true
		}
	}
	if tied || bestCount == 0 {
		return ""
	}
	return best
}
