package model

// InternalAuthor is one roster entry for a university author. The roster
// is loaded by the import command and read-only to the engine.
type InternalAuthor struct {
	// FullName is the display form, "Surname, Firstname", diacritics kept.
	FullName string
	// NameKey is the normalized matching key (lowercase, diacritics
	// stripped, punctuation removed, surname first). Unique per roster.
	NameKey string
	// Faculty is the short faculty code, e.g. "FT".
	Faculty string
	// OU is the department or institute name, may be empty.
	OU string
}

// MatchStrategy names the heuristic that produced an author match.
// Strategies are tried strongest first and the first hit wins.
type MatchStrategy string

const (
	MatchExact  MatchStrategy = "exact"
	MatchTokens MatchStrategy = "tokens"
	MatchFuzzy  MatchStrategy = "fuzzy"
)

// AuthorMatch pairs an affiliation name fragment with the roster entry it
// resolved to.
type AuthorMatch struct {
	Input      string
	Author     InternalAuthor
	Confidence float64
	Strategy   MatchStrategy
}

// MatchVerdict is the transient output of the heuristic matcher for one
// record. It is never persisted as its own entity; the ambiguity policy
// folds it into the record's engine-owned columns.
type MatchVerdict struct {
	// Matches holds matched authors deduplicated by NameKey in
	// first-seen order.
	Matches []AuthorMatch
	// FacultyCandidates are the distinct faculties of matched authors,
	// first-seen order.
	FacultyCandidates []string
	// Ambiguous marks the record for LLM escalation.
	Ambiguous bool

	// Unmatched are university-block author fragments no strategy
	// resolved. Carried for diagnostics and prompt context.
	Unmatched []string
	// Warnings are parser diagnostics (fallback mode, multiple blocks).
	Warnings []string
	// Indicative reports whether university-indicative tokens appear in
	// the affiliation text.
	Indicative bool
	// MultipleBlocks reports more than one university block in the text.
	MultipleBlocks bool

	// TextFaculty and TextOU are faculty/department evidence resolved
	// from the affiliation text itself, independent of author matches.
	TextFaculty string
	TextOU      string
}
