package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/utb-library/affiliation-cli/internal/config"
	"github.com/utb-library/affiliation-cli/internal/model"
)

// LLMSuccess carries everything a validated LLM result updates on a
// record. FacultyGuess/OUGuess are nil when the result's confidence is
// below the acceptance threshold, keeping the heuristic guesses in place.
type LLMSuccess struct {
	ResourceID   int64
	Result       *model.LLMResult
	ProcessedAt  time.Time
	FacultyGuess *string
	OUGuess      *string
}

// StatusReport aggregates per-status record counts for the status command.
type StatusReport struct {
	Total       int
	WithAuthors int
	NeedsLLM    int
	Heuristic   map[model.HeuristicStatus]int
	LLM         map[model.LLMStatus]int
}

// Store is the persistence contract consumed by the pipeline stages. Every
// save is atomic per record: either all engine-owned fields of that record
// update or none do, which keeps the llm_result ⇔ llm_status=processed
// invariant intact under concurrent or interrupted runs.
type Store interface {
	// Bootstrap
	UpsertRecords(ctx context.Context, recs []model.AffiliationRecord) (int, error)

	// Roster
	ReplaceRoster(ctx context.Context, authors []model.InternalAuthor) (int, error)
	LoadRoster(ctx context.Context) ([]model.InternalAuthor, error)

	// Heuristic stage
	CountHeuristicPending(ctx context.Context, reprocessErrors bool) (int, error)
	FetchHeuristicPending(ctx context.Context, reprocessErrors bool, limit int) ([]model.AffiliationRecord, error)
	SaveHeuristics(ctx context.Context, rec *model.AffiliationRecord) error

	// LLM stage
	CountLLMPending(ctx context.Context) (int, error)
	// ClaimLLMPending atomically flips up to limit eligible records
	// (needs_llm with status not_required or pending) to processing and
	// returns them. A record in processing is invisible to other workers
	// on the same store.
	ClaimLLMPending(ctx context.Context, limit int) ([]model.AffiliationRecord, error)
	SaveLLMSuccess(ctx context.Context, su LLMSuccess) error
	SaveLLMFailure(ctx context.Context, resourceID int64, reason string) error
	// ReprocessErrors flips error records back to pending. This is the
	// only path that makes an errored record eligible again.
	ReprocessErrors(ctx context.Context) (int, error)

	// Reporting / export
	StatusReport(ctx context.Context) (*StatusReport, error)
	FetchProcessed(ctx context.Context, includeAll bool) ([]model.AffiliationRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open constructs the store selected by configuration.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, nil)
	case "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
