package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/utb-library/affiliation-cli/internal/match"
	"github.com/utb-library/affiliation-cli/internal/model"
	"github.com/utb-library/affiliation-cli/internal/store"
)

// initStore opens the configured store and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// loadRules returns the embedded keyword tables, or the override file when
// one is configured.
func loadRules() (*match.Rules, error) {
	if cfg.Match.RulesPath == "" {
		return match.DefaultRules(), nil
	}
	return match.LoadRules(cfg.Match.RulesPath)
}

// loadRoster fetches the internal author roster and refuses to continue
// without one; matching against an empty roster would mark every record
// unmatched.
func loadRoster(ctx context.Context, st store.Store) ([]model.InternalAuthor, error) {
	roster, err := st.LoadRoster(ctx)
	if err != nil {
		return nil, err
	}
	if len(roster) == 0 {
		return nil, eris.New("roster is empty, run import-authors first")
	}
	return roster, nil
}
