package llm

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/utb-library/affiliation-cli/internal/config"
	"github.com/utb-library/affiliation-cli/internal/match"
	"github.com/utb-library/affiliation-cli/internal/model"
	"github.com/utb-library/affiliation-cli/internal/resilience"
	"github.com/utb-library/affiliation-cli/internal/store"
)

// Stats summarizes one disambiguation run.
type Stats struct {
	Claimed   int
	Succeeded int64
	Failed    int64
}

// Runner drains the LLM work queue: claim a batch, resolve each record
// concurrently, persist every outcome. A record failure never aborts the
// batch; only store errors do.
type Runner struct {
	store    store.Store
	provider Provider
	builder  *PromptBuilder
	rules    *match.Rules
	byKey    map[string]model.InternalAuthor
	cfg      config.LLMConfig
	retry    resilience.RetryConfig
	limiter  *rate.Limiter
}

// NewRunner wires a runner over the given store, provider, and roster.
func NewRunner(st store.Store, provider Provider, roster []model.InternalAuthor, rules *match.Rules, cfg config.LLMConfig) *Runner {
	byKey := make(map[string]model.InternalAuthor, len(roster))
	for _, a := range roster {
		byKey[a.NameKey] = a
	}

	retry := resilience.DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}

	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 2
	}

	return &Runner{
		store:    st,
		provider: provider,
		builder:  NewPromptBuilder(roster, rules, cfg.RosterSlice),
		rules:    rules,
		byKey:    byKey,
		cfg:      cfg,
		retry:    retry,
		limiter:  rate.NewLimiter(rate.Limit(perSec), 1),
	}
}

// Run claims and resolves up to limit records. limit <= 0 means everything
// currently pending.
func (r *Runner) Run(ctx context.Context, limit int) (Stats, error) {
	runID := uuid.NewString()
	log := zap.L().With(zap.String("run_id", runID), zap.String("provider", r.provider.Name()))

	pending, err := r.store.CountLLMPending(ctx)
	if err != nil {
		return Stats{}, err
	}
	if limit <= 0 || limit > pending {
		limit = pending
	}
	log.Info("llm run starting", zap.Int("pending", pending), zap.Int("limit", limit))

	var stats Stats
	batchSize := r.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}
	concurrency := r.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	for stats.Claimed < limit {
		n := batchSize
		if remaining := limit - stats.Claimed; n > remaining {
			n = remaining
		}

		recs, err := r.store.ClaimLLMPending(ctx, n)
		if err != nil {
			return stats, err
		}
		if len(recs) == 0 {
			break
		}
		stats.Claimed += len(recs)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for i := range recs {
			rec := recs[i]
			g.Go(func() error {
				return r.processRecord(gctx, log, &rec, &stats)
			})
		}
		if err := g.Wait(); err != nil {
			return stats, err
		}
	}

	log.Info("llm run finished",
		zap.Int("claimed", stats.Claimed),
		zap.Int64("succeeded", stats.Succeeded),
		zap.Int64("failed", stats.Failed),
	)
	return stats, nil
}

// processRecord resolves one claimed record end to end. Provider and
// validation failures land in the error state; the returned error is
// reserved for store failures.
func (r *Runner) processRecord(ctx context.Context, log *zap.Logger, rec *model.AffiliationRecord, stats *Stats) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "llm: rate limiter")
	}

	prompt := r.builder.Build(rec)
	raw, err := resilience.DoVal(ctx, r.retry, func(ctx context.Context) (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout())
		defer cancel()
		return r.provider.Complete(callCtx, prompt)
	})
	if err != nil {
		return r.fail(ctx, log, stats, rec.ResourceID, "provider: "+err.Error())
	}

	result, err := ParseResult(raw)
	if err != nil {
		return r.fail(ctx, log, stats, rec.ResourceID, err.Error())
	}
	if err := r.validateFaculty(result); err != nil {
		return r.fail(ctx, log, stats, rec.ResourceID, err.Error())
	}

	result.InternalAuthors = r.canonicalAuthors(log, rec.ResourceID, result.InternalAuthors)

	su := store.LLMSuccess{
		ResourceID:  rec.ResourceID,
		Result:      result,
		ProcessedAt: time.Now().UTC(),
	}
	if result.Confidence >= r.cfg.AcceptanceThreshold && result.FacultyGuess != nil {
		su.FacultyGuess = result.FacultyGuess
		if ou := r.majorityOU(result.InternalAuthors, *result.FacultyGuess); ou != "" {
			su.OUGuess = &ou
		}
	}

	if err := r.store.SaveLLMSuccess(ctx, su); err != nil {
		return err
	}
	atomic.AddInt64(&stats.Succeeded, 1)
	return nil
}

func (r *Runner) fail(ctx context.Context, log *zap.Logger, stats *Stats, resourceID int64, reason string) error {
	log.Warn("llm record failed", zap.Int64("resource_id", resourceID), zap.String("reason", reason))
	if err := r.store.SaveLLMFailure(ctx, resourceID, reason); err != nil {
		return err
	}
	atomic.AddInt64(&stats.Failed, 1)
	return nil
}

// validateFaculty rejects faculty codes outside the configured rule set.
func (r *Runner) validateFaculty(result *model.LLMResult) error {
	if result.FacultyGuess == nil {
		return nil
	}
	if _, ok := r.rules.Faculties[*result.FacultyGuess]; !ok {
		return &ValidationError{Reason: "unknown faculty code " + *result.FacultyGuess}
	}
	return nil
}

// canonicalAuthors keeps only payload names present in the roster, mapped
// to their canonical full name. Unknown names are dropped, not fatal: the
// rest of the payload is still useful.
func (r *Runner) canonicalAuthors(log *zap.Logger, resourceID int64, names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		author, ok := r.byKey[match.NameKey(name)]
		if !ok {
			log.Warn("llm returned unknown author",
				zap.Int64("resource_id", resourceID),
				zap.String("name", name),
			)
			continue
		}
		if _, dup := seen[author.NameKey]; dup {
			continue
		}
		seen[author.NameKey] = struct{}{}
		out = append(out, author.FullName)
	}
	return out
}

// majorityOU picks the most common organisational unit among the given
// authors within faculty. Ties and empty sets yield "".
func (r *Runner) majorityOU(fullNames []string, faculty string) string {
	counts := make(map[string]int)
	for _, name := range fullNames {
		author, ok := r.byKey[match.NameKey(name)]
		if !ok || author.Faculty != faculty || author.OU == "" {
			continue
		}
		counts[author.OU]++
	}

	best, bestCount, tied := "", 0, false
	for ou, n := range counts {
		switch {
		case n > bestCount:
			best, bestCount, tied = ou, n, false
		case n == bestCount:
			tied = true
		}
	}
	if tied || bestCount == 0 {
		return ""
	}
	return best
}
