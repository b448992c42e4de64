package model

import "time"

// HeuristicStatus tracks whether the heuristic stage has handled a record.
type HeuristicStatus string

const (
	HeuristicNotProcessed HeuristicStatus = "not_processed"
	HeuristicProcessed    HeuristicStatus = "processed"
	HeuristicError        HeuristicStatus = "error"
)

// LLMStatus is the state of the LLM disambiguation stage for one record.
//
// The status forms a finite-state machine:
//
//	not_required → pending → processing → {processed, error}
//
// with a single backward edge, error → pending, taken only by the explicit
// reprocess-errors operation. The claim selects needs_llm records in
// not_required or pending, so not_required may also move straight to
// processing. All other transitions are rejected.
type LLMStatus string

const (
	LLMNotRequired LLMStatus = "not_required"
	LLMPending     LLMStatus = "pending"
	LLMProcessing  LLMStatus = "processing"
	LLMProcessed   LLMStatus = "processed"
	LLMError       LLMStatus = "error"
)

// llmTransitions enumerates the legal edges of the status machine.
var llmTransitions = map[LLMStatus][]LLMStatus{
	LLMNotRequired: {LLMPending, LLMProcessing},
	LLMPending:     {LLMProcessing, LLMNotRequired},
	LLMProcessing:  {LLMProcessed, LLMError},
	LLMError:       {LLMPending},
}

// CanTransition reports whether moving from s to next is a legal edge.
// Pending may fall back to not_required so a heuristic re-run can flip
// needs_llm before any LLM attempt has started.
func (s LLMStatus) CanTransition(next LLMStatus) bool {
	for _, t := range llmTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the stage will not touch the record again
// without operator action.
func (s LLMStatus) Terminal() bool {
	return s == LLMProcessed || s == LLMError
}

// Flags carries heuristic-stage diagnostics persisted alongside a record.
// They feed the status report and provide context to the LLM prompt.
type Flags struct {
	NoSourceData   bool     `json:"no_source_data,omitempty"`
	MatchedCount   int      `json:"matched_count"`
	Unmatched      []string `json:"unmatched,omitempty"`
	ParseWarnings  []string `json:"parse_warnings,omitempty"`
	MultipleBlocks bool     `json:"multiple_university_blocks,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// AffiliationRecord is one publication resource copied from the remote
// catalogue plus the engine-owned resolution columns.
//
// ResourceID, Handle, RawAffiliation, ScopusAffiliation and DCAuthors are
// immutable once bootstrapped. The heuristic stage owns HeuristicAuthors,
// FacultyGuess, OUGuess, NeedsLLM, HeuristicStatus, HeuristicVersion,
// HeuristicProcessedAt and Flags. The LLM stage owns LLMStatus, LLMResult,
// LLMError and LLMProcessedAt, and may overwrite the guesses when a
// validated result clears the acceptance threshold.
type AffiliationRecord struct {
	ResourceID int64
	Handle     string

	RawAffiliation []string
	// ScopusAffiliation holds the record's Scopus institutional strings.
	// They carry no author names, only department/faculty/institution
	// parts, and serve as extra context for the LLM prompt.
	ScopusAffiliation []string
	DCAuthors         []string

	HeuristicAuthors     []string
	FacultyGuess         string
	OUGuess              string
	NeedsLLM             bool
	HeuristicStatus      HeuristicStatus
	HeuristicVersion     string
	HeuristicProcessedAt *time.Time
	Flags                Flags

	LLMStatus      LLMStatus
	LLMResult      *LLMResult
	LLMError       string
	LLMProcessedAt *time.Time
}

// LLMResult is the validated structured payload produced by the LLM stage.
// It is persisted only when LLMStatus is processed; the two are kept in
// lockstep by the store (single atomic update per record).
type LLMResult struct {
	InternalAuthors []string `json:"internal_authors"`
	FacultyGuess    *string  `json:"faculty_guess"`
	Confidence      float64  `json:"confidence"`
	Notes           string   `json:"notes"`
}
