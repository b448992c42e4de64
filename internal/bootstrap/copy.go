// Package bootstrap copies publication records from the remote catalogue
// database into the local resolution store.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/utb-library/affiliation-cli/internal/config"
	"github.com/utb-library/affiliation-cli/internal/model"
	"github.com/utb-library/affiliation-cli/internal/store"
)

// Stats summarizes one bootstrap copy.
type Stats struct {
	Fetched  int
	Inserted int
}

// Copy streams records from the remote catalogue table into the store in
// keyset-paginated batches. Existing local records are left untouched, so
// repeated runs only pick up catalogue additions.
func Copy(ctx context.Context, st store.Store, cfg config.RemoteConfig) (Stats, error) {
	if cfg.DatabaseURL == "" {
		return Stats{}, eris.New("bootstrap: remote database url not configured")
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return Stats{}, eris.Wrap(err, "bootstrap: connect remote")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return Stats{}, eris.Wrap(err, "bootstrap: ping remote")
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	query := fmt.Sprintf(
		`SELECT resource_id, handle, raw_affiliation, scopus_affiliation, dc_authors
		 FROM %s WHERE resource_id > $1 ORDER BY resource_id LIMIT $2`,
		cfg.Table,
	)

	var stats Stats
	lastID := int64(0)
	for cfg.Limit <= 0 || stats.Fetched < cfg.Limit {
		n := batchSize
		if cfg.Limit > 0 {
			if remaining := cfg.Limit - stats.Fetched; n > remaining {
				n = remaining
			}
		}

		recs, err := fetchBatch(ctx, pool, query, lastID, n)
		if err != nil {
			return stats, err
		}
		if len(recs) == 0 {
			break
		}
		stats.Fetched += len(recs)
		lastID = recs[len(recs)-1].ResourceID

		inserted, err := st.UpsertRecords(ctx, recs)
		if err != nil {
			return stats, err
		}
		stats.Inserted += inserted

		zap.L().Debug("bootstrap batch copied",
			zap.Int("fetched", len(recs)),
			zap.Int("inserted", inserted),
			zap.Int64("last_resource_id", lastID),
		)
	}

	zap.L().Info("bootstrap finished",
		zap.Int("fetched", stats.Fetched),
		zap.Int("inserted", stats.Inserted),
	)
	return stats, nil
}

// remoteQuerier is the slice of the remote pool fetchBatch needs; pgxmock
// satisfies it in tests.
type remoteQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func fetchBatch(ctx context.Context, pool remoteQuerier, query string, afterID int64, limit int) ([]model.AffiliationRecord, error) {
	rows, err := pool.Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "bootstrap: query remote")
	}
	defer rows.Close()

	var recs []model.AffiliationRecord
	for rows.Next() {
		var rec model.AffiliationRecord
		var handle *string
		if err := rows.Scan(&rec.ResourceID, &handle, &rec.RawAffiliation, &rec.ScopusAffiliation, &rec.DCAuthors); err != nil {
			return nil, eris.Wrap(err, "bootstrap: scan remote row")
		}
		if handle != nil {
			rec.Handle = *handle
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "bootstrap: remote rows")
}
