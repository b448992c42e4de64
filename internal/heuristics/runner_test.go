package heuristics

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/utb-library/affiliation-cli/internal/match"
	"github.com/utb-library/affiliation-cli/internal/model"
	"github.com/utb-library/affiliation-cli/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func testRoster() []model.InternalAuthor {
	roster := []model.InternalAuthor{
		{FullName: "Nováková, Jana", Faculty: "FAI", OU: "Department of Mathematics"},
		{FullName: "Dvořák, Tomáš", Faculty: "FT", OU: "Department of Polymer Engineering"},
	}
	for i := range roster {
		roster[i].NameKey = match.NameKey(roster[i].FullName)
	}
	return roster
}

func newRunner(t *testing.T) (*Runner, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "heuristics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	matcher := match.NewMatcher(testRoster(), match.DefaultRules(), 0.85)
	return NewRunner(st, matcher, 2), st
}

func fetchAll(t *testing.T, st store.Store) map[int64]model.AffiliationRecord {
	t.Helper()
	recs, err := st.FetchProcessed(context.Background(), true)
	require.NoError(t, err)
	byID := make(map[int64]model.AffiliationRecord, len(recs))
	for _, rec := range recs {
		byID[rec.ResourceID] = rec
	}
	return byID
}

func TestRunner_ResolvesAndEscalates(t *testing.T) {
	ctx := context.Background()
	runner, st := newRunner(t)

	_, err := st.UpsertRecords(ctx, []model.AffiliationRecord{
		// Clean exact match, single faculty.
		{ResourceID: 1, RawAffiliation: []string{"[Novakova, Jana] Tomas Bata Univ, Fac Appl Informat, Zlin"}},
		// Unknown author in a university block: escalate.
		{ResourceID: 2, RawAffiliation: []string{"[Zeleny, Bohumil] Tomas Bata Univ, Zlin"}},
		// External affiliation only: nothing to do.
		{ResourceID: 3, RawAffiliation: []string{"[Smith, A.] MIT, Cambridge, MA USA"}},
		// No affiliation at all.
		{ResourceID: 4},
	})
	require.NoError(t, err)

	stats, err := runner.Run(ctx, 0, false)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Processed)
	assert.Equal(t, 1, stats.Matched)
	assert.Equal(t, 1, stats.Escalated)
	assert.Equal(t, 1, stats.Empty)

	byID := fetchAll(t, st)

	matched := byID[1]
	assert.Equal(t, []string{"Nováková, Jana"}, matched.HeuristicAuthors)
	assert.Equal(t, "FAI", matched.FacultyGuess)
	assert.Equal(t, "Department of Mathematics", matched.OUGuess)
	assert.False(t, matched.NeedsLLM)
	assert.Equal(t, model.LLMNotRequired, matched.LLMStatus)
	assert.Equal(t, Version, matched.HeuristicVersion)
	assert.NotNil(t, matched.HeuristicProcessedAt)

	escalated := byID[2]
	assert.True(t, escalated.NeedsLLM)
	assert.Equal(t, model.LLMPending, escalated.LLMStatus)
	assert.Equal(t, []string{"Zeleny, Bohumil"}, escalated.Flags.Unmatched)
	assert.Empty(t, escalated.FacultyGuess)

	external := byID[3]
	assert.False(t, external.NeedsLLM)
	assert.Empty(t, external.HeuristicAuthors)
	assert.Equal(t, model.HeuristicProcessed, external.HeuristicStatus)

	empty := byID[4]
	assert.True(t, empty.Flags.NoSourceData)
	assert.False(t, empty.NeedsLLM)
	assert.Equal(t, model.HeuristicProcessed, empty.HeuristicStatus)
}

func TestRunner_LimitAndBatching(t *testing.T) {
	ctx := context.Background()
	runner, st := newRunner(t)

	var recs []model.AffiliationRecord
	for id := int64(1); id <= 5; id++ {
		recs = append(recs, model.AffiliationRecord{ResourceID: id, RawAffiliation: []string{"[Novakova, Jana] Tomas Bata Univ, Zlin"}})
	}
	_, err := st.UpsertRecords(ctx, recs)
	require.NoError(t, err)

	// Batch size 2 and limit 3 forces a partial final batch.
	stats, err := runner.Run(ctx, 3, false)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Processed)

	n, err := st.CountHeuristicPending(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// The rest on a second run.
	stats, err = runner.Run(ctx, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed)
}

func TestRunner_RerunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	runner, st := newRunner(t)

	_, err := st.UpsertRecords(ctx, []model.AffiliationRecord{
		{ResourceID: 1, RawAffiliation: []string{"[Novakova, Jana] Tomas Bata Univ, Fac Appl Informat, Zlin"}},
	})
	require.NoError(t, err)

	_, err = runner.Run(ctx, 0, false)
	require.NoError(t, err)
	first := fetchAll(t, st)[1]

	// Processed records are not pending anymore.
	stats, err := runner.Run(ctx, 0, false)
	require.NoError(t, err)
	assert.Zero(t, stats.Processed)

	second := fetchAll(t, st)[1]
	assert.Equal(t, first.HeuristicAuthors, second.HeuristicAuthors)
	assert.Equal(t, first.FacultyGuess, second.FacultyGuess)
	assert.Equal(t, first.NeedsLLM, second.NeedsLLM)
}
