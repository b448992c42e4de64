// Package roster imports the internal author roster from CSV or XLSX files.
package roster

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/utb-library/affiliation-cli/internal/match"
	"github.com/utb-library/affiliation-cli/internal/model"
)

// ReadCSV parses a semicolon-delimited roster file with a header row.
// Expected columns: full_name;faculty;ou.
func ReadCSV(r io.Reader) ([]model.InternalAuthor, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	var rows [][]string
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "roster: read csv row")
		}
		if first {
			first = false
			continue
		}
		rows = append(rows, record)
	}

	return buildAuthors(rows)
}

// ReadCSVFile opens and parses a roster CSV file.
func ReadCSVFile(path string) ([]model.InternalAuthor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "roster: open csv file")
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadXLSXFile parses the first sheet of an XLSX roster file. The first row
// is treated as a header.
func ReadXLSXFile(path string) ([]model.InternalAuthor, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "roster: open xlsx file")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("roster: xlsx file has no sheets")
	}

	var rows [][]string
	for i, row := range f.Sheets[0].Rows {
		if i == 0 {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}

	return buildAuthors(rows)
}

// buildAuthors normalizes and deduplicates parsed rows. Rows with an empty
// name are skipped; rows whose normalized key repeats keep the first
// occurrence.
func buildAuthors(rows [][]string) ([]model.InternalAuthor, error) {
	authors := make([]model.InternalAuthor, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	skipped := 0

	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		fullName := strings.TrimSpace(row[0])
		if fullName == "" {
			skipped++
			continue
		}

		a := model.InternalAuthor{
			FullName: fullName,
			NameKey:  match.NameKey(fullName),
		}
		if len(row) > 1 {
			a.Faculty = strings.TrimSpace(row[1])
		}
		if len(row) > 2 {
			a.OU = strings.TrimSpace(row[2])
		}

		if a.NameKey == "" {
			skipped++
			continue
		}
		if _, dup := seen[a.NameKey]; dup {
			skipped++
			continue
		}
		seen[a.NameKey] = struct{}{}
		authors = append(authors, a)
	}

	if skipped > 0 {
		zap.L().Info("roster rows skipped", zap.Int("skipped", skipped), zap.Int("kept", len(authors)))
	}
	if len(authors) == 0 {
		return nil, eris.New("roster: no usable rows")
	}

	return authors, nil
}
