package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/utb-library/affiliation-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Arrays and JSON
// payloads are stored as JSON text.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS affiliation_records (
	resource_id            INTEGER PRIMARY KEY,
	handle                 TEXT,
	raw_affiliation        TEXT,
	scopus_affiliation     TEXT,
	dc_authors             TEXT,
	heuristic_authors      TEXT,
	faculty_guess          TEXT,
	ou_guess               TEXT,
	needs_llm              INTEGER NOT NULL DEFAULT 0,
	heuristic_status       TEXT NOT NULL DEFAULT 'not_processed',
	heuristic_version      TEXT,
	heuristic_processed_at DATETIME,
	flags                  TEXT NOT NULL DEFAULT '{}',
	llm_status             TEXT NOT NULL DEFAULT 'not_required',
	llm_result             TEXT,
	llm_error              TEXT,
	llm_processed_at       DATETIME
);

CREATE TABLE IF NOT EXISTS internal_authors (
	name_key  TEXT PRIMARY KEY,
	full_name TEXT NOT NULL,
	faculty   TEXT,
	ou        TEXT
);

CREATE INDEX IF NOT EXISTS idx_records_heuristic_status ON affiliation_records(heuristic_status);
CREATE INDEX IF NOT EXISTS idx_records_needs_llm ON affiliation_records(needs_llm);
CREATE INDEX IF NOT EXISTS idx_records_llm_status ON affiliation_records(llm_status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertRecords(ctx context.Context, recs []model.AffiliationRecord) (int, error) {
	inserted := 0
	for _, rec := range recs {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO affiliation_records (resource_id, handle, raw_affiliation, scopus_affiliation, dc_authors)
			 VALUES (?, ?, ?, ?, ?) ON CONFLICT (resource_id) DO NOTHING`,
			rec.ResourceID, rec.Handle, marshalList(rec.RawAffiliation), marshalList(rec.ScopusAffiliation), marshalList(rec.DCAuthors),
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "sqlite: upsert record %d", rec.ResourceID)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	return inserted, nil
}

func (s *SQLiteStore) ReplaceRoster(ctx context.Context, authors []model.InternalAuthor) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin roster tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM internal_authors`); err != nil {
		return 0, eris.Wrap(err, "sqlite: clear roster")
	}
	for _, a := range authors {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO internal_authors (name_key, full_name, faculty, ou) VALUES (?, ?, ?, ?)`,
			a.NameKey, a.FullName, a.Faculty, a.OU,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert author %s", a.NameKey)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit roster")
	}
	return len(authors), nil
}

func (s *SQLiteStore) LoadRoster(ctx context.Context) ([]model.InternalAuthor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name_key, full_name, faculty, ou FROM internal_authors ORDER BY name_key`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load roster")
	}
	defer rows.Close()

	var authors []model.InternalAuthor
	for rows.Next() {
		var a model.InternalAuthor
		var faculty, ou sql.NullString
		if err := rows.Scan(&a.NameKey, &a.FullName, &faculty, &ou); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan author")
		}
		a.Faculty = faculty.String
		a.OU = ou.String
		authors = append(authors, a)
	}
	return authors, eris.Wrap(rows.Err(), "sqlite: roster rows")
}

func sqliteStatusSet(reprocessErrors bool) string {
	if reprocessErrors {
		return `('not_processed','error')`
	}
	return `('not_processed')`
}

func (s *SQLiteStore) CountHeuristicPending(ctx context.Context, reprocessErrors bool) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM affiliation_records WHERE heuristic_status IN `+sqliteStatusSet(reprocessErrors),
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count heuristic pending")
}

func (s *SQLiteStore) FetchHeuristicPending(ctx context.Context, reprocessErrors bool, limit int) ([]model.AffiliationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM affiliation_records
		 WHERE heuristic_status IN `+sqliteStatusSet(reprocessErrors)+`
		 ORDER BY resource_id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: fetch heuristic pending")
	}
	defer rows.Close()
	return scanSQLiteRecords(rows)
}

func (s *SQLiteStore) SaveHeuristics(ctx context.Context, rec *model.AffiliationRecord) error {
	flagsJSON, err := json.Marshal(rec.Flags)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal flags")
	}

	nextStatus := model.LLMNotRequired
	if rec.NeedsLLM {
		nextStatus = model.LLMPending
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE affiliation_records SET
			heuristic_authors      = :authors,
			faculty_guess          = CASE WHEN llm_status IN ('not_required','pending') THEN :faculty ELSE faculty_guess END,
			ou_guess               = CASE WHEN llm_status IN ('not_required','pending') THEN :ou ELSE ou_guess END,
			needs_llm              = CASE WHEN llm_status IN ('not_required','pending') THEN :needs ELSE needs_llm END,
			llm_status             = CASE WHEN llm_status IN ('not_required','pending') THEN :next ELSE llm_status END,
			heuristic_status       = :hstatus,
			heuristic_version      = :hversion,
			heuristic_processed_at = :hat,
			flags                  = :flags
		WHERE resource_id = :id`,
		sql.Named("authors", marshalList(rec.HeuristicAuthors)),
		sql.Named("faculty", nullString(rec.FacultyGuess)),
		sql.Named("ou", nullString(rec.OUGuess)),
		sql.Named("needs", rec.NeedsLLM),
		sql.Named("next", string(nextStatus)),
		sql.Named("hstatus", string(rec.HeuristicStatus)),
		sql.Named("hversion", rec.HeuristicVersion),
		sql.Named("hat", rec.HeuristicProcessedAt),
		sql.Named("flags", string(flagsJSON)),
		sql.Named("id", rec.ResourceID),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save heuristics %d", rec.ResourceID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("sqlite: record not found: %d", rec.ResourceID)
	}
	return nil
}

func (s *SQLiteStore) CountLLMPending(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM affiliation_records
		 WHERE needs_llm = 1 AND llm_status IN ('not_required','pending')`,
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count llm pending")
}

func (s *SQLiteStore) ClaimLLMPending(ctx context.Context, limit int) ([]model.AffiliationRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin claim tx")
	}
	defer tx.Rollback()

	idRows, err := tx.QueryContext(ctx,
		`SELECT resource_id FROM affiliation_records
		 WHERE needs_llm = 1 AND llm_status IN ('not_required','pending')
		 ORDER BY resource_id LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: select claimable")
	}
	var ids []any
	placeholders := make([]string, 0, limit)
	for idRows.Next() {
		var id int64
		if err := idRows.Scan(&id); err != nil {
			idRows.Close()
			return nil, eris.Wrap(err, "sqlite: scan claimable id")
		}
		ids = append(ids, id)
		placeholders = append(placeholders, "?")
	}
	if err := idRows.Err(); err != nil {
		idRows.Close()
		return nil, eris.Wrap(err, "sqlite: claimable rows")
	}
	idRows.Close()
	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	inClause := `(` + strings.Join(placeholders, ",") + `)`
	if _, err := tx.ExecContext(ctx,
		`UPDATE affiliation_records SET llm_status = 'processing' WHERE resource_id IN `+inClause,
		ids...,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: claim llm pending")
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM affiliation_records
		 WHERE resource_id IN `+inClause+` ORDER BY resource_id`, ids...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: fetch claimed")
	}
	recs, err := scanSQLiteRecords(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	return recs, eris.Wrap(tx.Commit(), "sqlite: commit claim")
}

func (s *SQLiteStore) SaveLLMSuccess(ctx context.Context, su LLMSuccess) error {
	resultJSON, err := json.Marshal(su.Result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal llm result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE affiliation_records SET
			llm_status       = 'processed',
			llm_result       = ?,
			llm_error        = NULL,
			llm_processed_at = ?,
			faculty_guess    = COALESCE(?, faculty_guess),
			ou_guess         = COALESCE(?, ou_guess)
		 WHERE resource_id = ? AND llm_status = 'processing'`,
		string(resultJSON), su.ProcessedAt, su.FacultyGuess, su.OUGuess, su.ResourceID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save llm success %d", su.ResourceID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("sqlite: record %d not in processing state", su.ResourceID)
	}
	return nil
}

func (s *SQLiteStore) SaveLLMFailure(ctx context.Context, resourceID int64, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE affiliation_records SET llm_status = 'error', llm_result = NULL, llm_error = ?
		 WHERE resource_id = ? AND llm_status = 'processing'`,
		reason, resourceID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save llm failure %d", resourceID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("sqlite: record %d not in processing state", resourceID)
	}
	return nil
}

func (s *SQLiteStore) ReprocessErrors(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE affiliation_records SET llm_status = 'pending', llm_error = NULL
		 WHERE needs_llm = 1 AND llm_status = 'error'`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: reprocess errors")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) StatusReport(ctx context.Context) (*StatusReport, error) {
	report := &StatusReport{
		Heuristic: make(map[model.HeuristicStatus]int),
		LLM:       make(map[model.LLMStatus]int),
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        SUM(CASE WHEN heuristic_authors IS NOT NULL AND heuristic_authors != '[]' AND heuristic_authors != '' THEN 1 ELSE 0 END),
		        SUM(CASE WHEN needs_llm = 1 THEN 1 ELSE 0 END)
		 FROM affiliation_records`,
	).Scan(&report.Total, &report.WithAuthors, &report.NeedsLLM)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: status totals")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT heuristic_status, COUNT(*) FROM affiliation_records GROUP BY heuristic_status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: heuristic counts")
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan heuristic count")
		}
		report.Heuristic[model.HeuristicStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: heuristic count rows")
	}

	llmRows, err := s.db.QueryContext(ctx,
		`SELECT llm_status, COUNT(*) FROM affiliation_records WHERE needs_llm = 1 GROUP BY llm_status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: llm counts")
	}
	defer llmRows.Close()
	for llmRows.Next() {
		var status string
		var n int
		if err := llmRows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan llm count")
		}
		report.LLM[model.LLMStatus(status)] = n
	}
	return report, eris.Wrap(llmRows.Err(), "sqlite: llm count rows")
}

func (s *SQLiteStore) FetchProcessed(ctx context.Context, includeAll bool) ([]model.AffiliationRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM affiliation_records`
	if !includeAll {
		query += ` WHERE needs_llm = 1 AND llm_status = 'processed'`
	}
	query += ` ORDER BY resource_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: fetch processed")
	}
	defer rows.Close()
	return scanSQLiteRecords(rows)
}

func scanSQLiteRecords(rows *sql.Rows) ([]model.AffiliationRecord, error) {
	var recs []model.AffiliationRecord
	for rows.Next() {
		var rec model.AffiliationRecord
		var handle, rawAff, scopusAff, dcAuthors, hAuthors, faculty, ou, version, flagsJSON, resultJSON, llmErr sql.NullString
		var hAt, llmAt sql.NullTime

		err := rows.Scan(
			&rec.ResourceID, &handle, &rawAff, &scopusAff, &dcAuthors,
			&hAuthors, &faculty, &ou, &rec.NeedsLLM,
			&rec.HeuristicStatus, &version, &hAt, &flagsJSON,
			&rec.LLMStatus, &resultJSON, &llmErr, &llmAt,
		)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}

		rec.Handle = handle.String
		rec.FacultyGuess = faculty.String
		rec.OUGuess = ou.String
		rec.HeuristicVersion = version.String
		rec.LLMError = llmErr.String
		rec.RawAffiliation = unmarshalList(rawAff.String)
		rec.ScopusAffiliation = unmarshalList(scopusAff.String)
		rec.DCAuthors = unmarshalList(dcAuthors.String)
		rec.HeuristicAuthors = unmarshalList(hAuthors.String)
		if hAt.Valid {
			t := hAt.Time
			rec.HeuristicProcessedAt = &t
		}
		if llmAt.Valid {
			t := llmAt.Time
			rec.LLMProcessedAt = &t
		}
		if flagsJSON.Valid && flagsJSON.String != "" {
			if err := json.Unmarshal([]byte(flagsJSON.String), &rec.Flags); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal flags")
			}
		}
		if resultJSON.Valid && resultJSON.String != "" {
			rec.LLMResult = &model.LLMResult{}
			if err := json.Unmarshal([]byte(resultJSON.String), rec.LLMResult); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal llm result")
			}
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: record rows")
}

func marshalList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func unmarshalList(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}

var _ Store = (*SQLiteStore)(nil)
var _ Store = (*PostgresStore)(nil)
