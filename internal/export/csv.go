// Package export writes resolved records to CSV for review by catalogue
// staff.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/utb-library/affiliation-cli/internal/model"
)

var header = []string{
	"resource_id",
	"handle",
	"heuristic_authors",
	"raw_affiliation",
	"llm_status",
	"faculty_guess",
	"ou_guess",
	"llm_confidence",
	"llm_notes",
	"llm_authors",
	"llm_processed_at",
}

// WriteCSV renders records as CSV. Multi-valued fields are joined with "|"
// so the file stays one row per record.
func WriteCSV(w io.Writer, recs []model.AffiliationRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "export: write header")
	}

	for i := range recs {
		if err := cw.Write(recordRow(&recs[i])); err != nil {
			return eris.Wrapf(err, "export: write record %d", recs[i].ResourceID)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush")
}

func recordRow(rec *model.AffiliationRecord) []string {
	var confidence, notes, llmAuthors, processedAt string
	if rec.LLMResult != nil {
		confidence = strconv.FormatFloat(rec.LLMResult.Confidence, 'f', 2, 64)
		notes = rec.LLMResult.Notes
		llmAuthors = strings.Join(rec.LLMResult.InternalAuthors, "|")
	}
	if rec.LLMProcessedAt != nil {
		processedAt = rec.LLMProcessedAt.UTC().Format(time.RFC3339)
	}

	return []string{
		fmt.Sprintf("%d", rec.ResourceID),
		rec.Handle,
		strings.Join(rec.HeuristicAuthors, "|"),
		strings.Join(rec.RawAffiliation, "|"),
		string(rec.LLMStatus),
		rec.FacultyGuess,
		rec.OUGuess,
		confidence,
		notes,
		llmAuthors,
		processedAt,
	}
}
