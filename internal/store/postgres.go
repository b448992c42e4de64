package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/utb-library/affiliation-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const recordColumns = `resource_id, handle, raw_affiliation, scopus_affiliation, dc_authors,
	heuristic_authors, faculty_guess, ou_guess, needs_llm,
	heuristic_status, heuristic_version, heuristic_processed_at, flags,
	llm_status, llm_result, llm_error, llm_processed_at`

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot per-record store operations.
var preparedStatements = map[string]string{
	"save_heuristics": saveHeuristicsSQL,
	"save_llm_ok":     saveLLMSuccessSQL,
	"save_llm_err":    saveLLMFailureSQL,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Tests inject pgxmock here.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS affiliation_records (
	resource_id            BIGINT PRIMARY KEY,
	handle                 TEXT,
	raw_affiliation        TEXT[],
	scopus_affiliation     TEXT[],
	dc_authors             TEXT[],
	heuristic_authors      TEXT[],
	faculty_guess          TEXT,
	ou_guess               TEXT,
	needs_llm              BOOLEAN NOT NULL DEFAULT FALSE,
	heuristic_status       TEXT NOT NULL DEFAULT 'not_processed',
	heuristic_version      TEXT,
	heuristic_processed_at TIMESTAMPTZ,
	flags                  JSONB NOT NULL DEFAULT '{}'::jsonb,
	llm_status             TEXT NOT NULL DEFAULT 'not_required',
	llm_result             JSONB,
	llm_error              TEXT,
	llm_processed_at       TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS internal_authors (
	name_key  TEXT PRIMARY KEY,
	full_name TEXT NOT NULL,
	faculty   TEXT,
	ou        TEXT
);

CREATE INDEX IF NOT EXISTS idx_records_heuristic_status ON affiliation_records(heuristic_status);
CREATE INDEX IF NOT EXISTS idx_records_needs_llm ON affiliation_records(needs_llm) WHERE needs_llm = TRUE;
CREATE INDEX IF NOT EXISTS idx_records_llm_status ON affiliation_records(llm_status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) UpsertRecords(ctx context.Context, recs []model.AffiliationRecord) (int, error) {
	inserted := 0
	for _, rec := range recs {
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO affiliation_records (resource_id, handle, raw_affiliation, scopus_affiliation, dc_authors)
			 VALUES ($1, $2, $3, $4, $5) ON CONFLICT (resource_id) DO NOTHING`,
			rec.ResourceID, rec.Handle, rec.RawAffiliation, rec.ScopusAffiliation, rec.DCAuthors,
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "postgres: upsert record %d", rec.ResourceID)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (s *PostgresStore) ReplaceRoster(ctx context.Context, authors []model.InternalAuthor) (int, error) {
	if _, err := s.pool.Exec(ctx, `TRUNCATE TABLE internal_authors`); err != nil {
		return 0, eris.Wrap(err, "postgres: truncate roster")
	}
	for _, a := range authors {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO internal_authors (name_key, full_name, faculty, ou) VALUES ($1, $2, $3, $4)`,
			a.NameKey, a.FullName, a.Faculty, a.OU,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: insert author %s", a.NameKey)
		}
	}
	return len(authors), nil
}

func (s *PostgresStore) LoadRoster(ctx context.Context) ([]model.InternalAuthor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name_key, full_name, faculty, ou FROM internal_authors ORDER BY name_key`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load roster")
	}
	defer rows.Close()

	var authors []model.InternalAuthor
	for rows.Next() {
		var a model.InternalAuthor
		if err := rows.Scan(&a.NameKey, &a.FullName, &a.Faculty, &a.OU); err != nil {
			return nil, eris.Wrap(err, "postgres: scan author")
		}
		authors = append(authors, a)
	}
	return authors, eris.Wrap(rows.Err(), "postgres: roster rows")
}

func heuristicStatuses(reprocessErrors bool) []string {
	statuses := []string{string(model.HeuristicNotProcessed)}
	if reprocessErrors {
		statuses = append(statuses, string(model.HeuristicError))
	}
	return statuses
}

func (s *PostgresStore) CountHeuristicPending(ctx context.Context, reprocessErrors bool) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM affiliation_records WHERE heuristic_status = ANY($1)`,
		heuristicStatuses(reprocessErrors),
	).Scan(&n)
	return n, eris.Wrap(err, "postgres: count heuristic pending")
}

func (s *PostgresStore) FetchHeuristicPending(ctx context.Context, reprocessErrors bool, limit int) ([]model.AffiliationRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM affiliation_records
		 WHERE heuristic_status = ANY($1) ORDER BY resource_id LIMIT $2`,
		heuristicStatuses(reprocessErrors), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: fetch heuristic pending")
	}
	defer rows.Close()
	return scanRecords(rows)
}

// saveHeuristicsSQL guards the LLM-owned columns: needs_llm and llm_status
// move only while no LLM attempt has started, so heuristic re-runs never
// corrupt processed or in-flight LLM state. One UPDATE keeps the save
// atomic per record.
const saveHeuristicsSQL = `
UPDATE affiliation_records SET
	heuristic_authors      = $2,
	faculty_guess          = CASE WHEN llm_status IN ('not_required','pending') THEN $3 ELSE faculty_guess END,
	ou_guess               = CASE WHEN llm_status IN ('not_required','pending') THEN $4 ELSE ou_guess END,
	needs_llm              = CASE WHEN llm_status IN ('not_required','pending') THEN $5 ELSE needs_llm END,
	llm_status             = CASE WHEN llm_status IN ('not_required','pending') THEN $6 ELSE llm_status END,
	heuristic_status       = $7,
	heuristic_version      = $8,
	heuristic_processed_at = $9,
	flags                  = $10
WHERE resource_id = $1`

func (s *PostgresStore) SaveHeuristics(ctx context.Context, rec *model.AffiliationRecord) error {
	flagsJSON, err := json.Marshal(rec.Flags)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal flags")
	}

	nextStatus := model.LLMNotRequired
	if rec.NeedsLLM {
		nextStatus = model.LLMPending
	}

	tag, err := s.pool.Exec(ctx, saveHeuristicsSQL,
		rec.ResourceID,
		rec.HeuristicAuthors,
		nullable(rec.FacultyGuess),
		nullable(rec.OUGuess),
		rec.NeedsLLM,
		string(nextStatus),
		string(rec.HeuristicStatus),
		rec.HeuristicVersion,
		rec.HeuristicProcessedAt,
		flagsJSON,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save heuristics %d", rec.ResourceID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: record not found: %d", rec.ResourceID)
	}
	return nil
}

func (s *PostgresStore) CountLLMPending(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM affiliation_records
		 WHERE needs_llm = TRUE AND llm_status IN ('not_required','pending')`,
	).Scan(&n)
	return n, eris.Wrap(err, "postgres: count llm pending")
}

func (s *PostgresStore) ClaimLLMPending(ctx context.Context, limit int) ([]model.AffiliationRecord, error) {
	rows, err := s.pool.Query(ctx,
		`UPDATE affiliation_records SET llm_status = 'processing'
		 WHERE resource_id IN (
			SELECT resource_id FROM affiliation_records
			WHERE needs_llm = TRUE AND llm_status IN ('not_required','pending')
			ORDER BY resource_id LIMIT $1
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+recordColumns,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: claim llm pending")
	}
	defer rows.Close()
	return scanRecords(rows)
}

const saveLLMSuccessSQL = `
UPDATE affiliation_records SET
	llm_status       = 'processed',
	llm_result       = $2,
	llm_error        = NULL,
	llm_processed_at = $3,
	faculty_guess    = COALESCE($4, faculty_guess),
	ou_guess         = COALESCE($5, ou_guess)
WHERE resource_id = $1 AND llm_status = 'processing'`

func (s *PostgresStore) SaveLLMSuccess(ctx context.Context, su LLMSuccess) error {
	resultJSON, err := json.Marshal(su.Result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal llm result")
	}

	tag, err := s.pool.Exec(ctx, saveLLMSuccessSQL,
		su.ResourceID, resultJSON, su.ProcessedAt, su.FacultyGuess, su.OUGuess)
	if err != nil {
		return eris.Wrapf(err, "postgres: save llm success %d", su.ResourceID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: record %d not in processing state", su.ResourceID)
	}
	return nil
}

const saveLLMFailureSQL = `
UPDATE affiliation_records SET
	llm_status = 'error',
	llm_result = NULL,
	llm_error  = $2
WHERE resource_id = $1 AND llm_status = 'processing'`

func (s *PostgresStore) SaveLLMFailure(ctx context.Context, resourceID int64, reason string) error {
	tag, err := s.pool.Exec(ctx, saveLLMFailureSQL, resourceID, reason)
	if err != nil {
		return eris.Wrapf(err, "postgres: save llm failure %d", resourceID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: record %d not in processing state", resourceID)
	}
	return nil
}

func (s *PostgresStore) ReprocessErrors(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE affiliation_records SET llm_status = 'pending', llm_error = NULL
		 WHERE needs_llm = TRUE AND llm_status = 'error'`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: reprocess errors")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) StatusReport(ctx context.Context) (*StatusReport, error) {
	report := &StatusReport{
		Heuristic: make(map[model.HeuristicStatus]int),
		LLM:       make(map[model.LLMStatus]int),
	}

	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE heuristic_authors IS NOT NULL AND array_length(heuristic_authors, 1) > 0),
		        COUNT(*) FILTER (WHERE needs_llm)
		 FROM affiliation_records`,
	).Scan(&report.Total, &report.WithAuthors, &report.NeedsLLM)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: status totals")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT heuristic_status, COUNT(*) FROM affiliation_records GROUP BY heuristic_status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: heuristic counts")
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan heuristic count")
		}
		report.Heuristic[model.HeuristicStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: heuristic count rows")
	}

	llmRows, err := s.pool.Query(ctx,
		`SELECT llm_status, COUNT(*) FROM affiliation_records WHERE needs_llm = TRUE GROUP BY llm_status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: llm counts")
	}
	defer llmRows.Close()
	for llmRows.Next() {
		var status string
		var n int
		if err := llmRows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan llm count")
		}
		report.LLM[model.LLMStatus(status)] = n
	}
	return report, eris.Wrap(llmRows.Err(), "postgres: llm count rows")
}

func (s *PostgresStore) FetchProcessed(ctx context.Context, includeAll bool) ([]model.AffiliationRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM affiliation_records`
	if !includeAll {
		query += ` WHERE needs_llm = TRUE AND llm_status = 'processed'`
	}
	query += ` ORDER BY resource_id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: fetch processed")
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows pgx.Rows) ([]model.AffiliationRecord, error) {
	var recs []model.AffiliationRecord
	for rows.Next() {
		var rec model.AffiliationRecord
		var handle, faculty, ou, version, llmErr *string
		var flagsJSON []byte
		var resultJSON *[]byte

		err := rows.Scan(
			&rec.ResourceID, &handle, &rec.RawAffiliation, &rec.ScopusAffiliation, &rec.DCAuthors,
			&rec.HeuristicAuthors, &faculty, &ou, &rec.NeedsLLM,
			&rec.HeuristicStatus, &version, &rec.HeuristicProcessedAt, &flagsJSON,
			&rec.LLMStatus, &resultJSON, &llmErr, &rec.LLMProcessedAt,
		)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}

		rec.Handle = deref(handle)
		rec.FacultyGuess = deref(faculty)
		rec.OUGuess = deref(ou)
		rec.HeuristicVersion = deref(version)
		rec.LLMError = deref(llmErr)

		if len(flagsJSON) > 0 {
			if err := json.Unmarshal(flagsJSON, &rec.Flags); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal flags")
			}
		}
		if resultJSON != nil && len(*resultJSON) > 0 {
			rec.LLMResult = &model.LLMResult{}
			if err := json.Unmarshal(*resultJSON, rec.LLMResult); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal llm result")
			}
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: record rows")
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
