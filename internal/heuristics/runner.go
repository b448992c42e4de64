// Package heuristics runs the deterministic matching stage over records
// copied from the remote catalogue.
package heuristics

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/utb-library/affiliation-cli/internal/match"
	"github.com/utb-library/affiliation-cli/internal/model"
	"github.com/utb-library/affiliation-cli/internal/store"
)

// Version tags every processed record so a later rule or roster change can
// find records resolved under older logic.
const Version = "2"

// Stats summarizes one heuristic run.
type Stats struct {
	Processed int
	Matched   int
	Escalated int
	Empty     int
}

// Runner applies the matcher and ambiguity policy to pending records in
// batches. Re-running is safe: the store refuses to disturb records whose
// LLM attempt already started.
type Runner struct {
	store     store.Store
	matcher   *match.Matcher
	batchSize int
}

// NewRunner wires a heuristic runner over the given store and matcher.
func NewRunner(st store.Store, matcher *match.Matcher, batchSize int) *Runner {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &Runner{store: st, matcher: matcher, batchSize: batchSize}
}

// Run processes up to limit pending records. limit <= 0 means everything.
// reprocessErrors additionally picks up records whose previous heuristic
// pass errored.
func (r *Runner) Run(ctx context.Context, limit int, reprocessErrors bool) (Stats, error) {
	pending, err := r.store.CountHeuristicPending(ctx, reprocessErrors)
	if err != nil {
		return Stats{}, err
	}
	if limit <= 0 || limit > pending {
		limit = pending
	}
	zap.L().Info("heuristic run starting", zap.Int("pending", pending), zap.Int("limit", limit))

	var stats Stats
	for stats.Processed < limit {
		n := r.batchSize
		if remaining := limit - stats.Processed; n > remaining {
			n = remaining
		}

		recs, err := r.store.FetchHeuristicPending(ctx, reprocessErrors, n)
		if err != nil {
			return stats, err
		}
		if len(recs) == 0 {
			break
		}

		for i := range recs {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			rec := &recs[i]
			r.processRecord(rec, &stats)
			if err := r.store.SaveHeuristics(ctx, rec); err != nil {
				return stats, err
			}
			stats.Processed++
		}
	}

	zap.L().Info("heuristic run finished",
		zap.Int("processed", stats.Processed),
		zap.Int("matched", stats.Matched),
		zap.Int("escalated", stats.Escalated),
		zap.Int("empty", stats.Empty),
	)
	return stats, nil
}

// processRecord resolves one record in place. It never fails: malformed
// input degrades to diagnostics on the record, not an error.
func (r *Runner) processRecord(rec *model.AffiliationRecord, stats *Stats) {
	now := time.Now().UTC()
	rec.HeuristicStatus = model.HeuristicProcessed
	rec.HeuristicVersion = Version
	rec.HeuristicProcessedAt = &now
	rec.Flags = model.Flags{}

	if emptyAffiliation(rec.RawAffiliation) {
		rec.Flags.NoSourceData = true
		rec.HeuristicAuthors = nil
		rec.FacultyGuess = ""
		rec.OUGuess = ""
		rec.NeedsLLM = false
		stats.Empty++
		return
	}

	verdict := r.matcher.ResolveAll(rec.RawAffiliation)
	decision := match.Decide(verdict)

	rec.HeuristicAuthors = matchedNames(verdict.Matches)
	rec.FacultyGuess = decision.FacultyGuess
	rec.OUGuess = decision.OUGuess
	rec.NeedsLLM = decision.NeedsLLM

	rec.Flags.MatchedCount = len(verdict.Matches)
	rec.Flags.Unmatched = verdict.Unmatched
	rec.Flags.ParseWarnings = verdict.Warnings
	rec.Flags.MultipleBlocks = verdict.MultipleBlocks

	if len(verdict.Matches) > 0 {
		stats.Matched++
	}
	if decision.NeedsLLM {
		stats.Escalated++
	}
}

func emptyAffiliation(raws []string) bool {
	for _, raw := range raws {
		if strings.TrimSpace(raw) != "" {
			return false
		}
	}
	return true
}

func matchedNames(matches []model.AuthorMatch) []string {
	if len(matches) == 0 {
		return nil
	}
	names := make([]string, 0, len(matches))
	for _, am := range matches {
		names = append(names, am.Author.FullName)
	}
	return names
}
