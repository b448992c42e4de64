package roster

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestReadCSV(t *testing.T) {
	input := strings.Join([]string{
		"full_name;faculty;ou",
		"Nováková, Jana;FAI;Department of Informatics and Artificial Intelligence",
		"Dvořák, Tomáš;FT;Department of Polymer Engineering",
		"Horák, Martin;FAME;",
	}, "\n")

	authors, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, authors, 3)

	assert.Equal(t, "Nováková, Jana", authors[0].FullName)
	assert.Equal(t, "novakova jana", authors[0].NameKey)
	assert.Equal(t, "FAI", authors[0].Faculty)
	assert.Equal(t, "Department of Informatics and Artificial Intelligence", authors[0].OU)
	assert.Empty(t, authors[2].OU)
}

func TestReadCSV_DeduplicatesByNameKey(t *testing.T) {
	input := strings.Join([]string{
		"full_name;faculty;ou",
		"Nováková, Jana;FAI;Department of Mathematics",
		"NOVAKOVA JANA;FT;Department of Chemistry",
	}, "\n")

	authors, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, authors, 1)

	// First occurrence wins.
	assert.Equal(t, "FAI", authors[0].Faculty)
}

func TestReadCSV_SkipsBlankNames(t *testing.T) {
	input := strings.Join([]string{
		"full_name;faculty;ou",
		";FAI;",
		"   ;FT;",
		"Svoboda, Petr;FAI;Department of Mathematics",
	}, "\n")

	authors, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, authors, 1)
	assert.Equal(t, "Svoboda, Petr", authors[0].FullName)
}

func TestReadCSV_NoUsableRows(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("full_name;faculty;ou\n"))
	assert.Error(t, err)
}

func TestReadXLSXFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.xlsx")

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("roster")
	require.NoError(t, err)
	for _, row := range [][]string{
		{"full_name", "faculty", "ou"},
		{"Nováková, Jana", "FAI", "Department of Mathematics"},
		{"Dvořák, Tomáš", "FT", ""},
	} {
		r := sheet.AddRow()
		for _, cell := range row {
			r.AddCell().SetString(cell)
		}
	}
	require.NoError(t, f.Save(path))

	authors, err := ReadXLSXFile(path)
	require.NoError(t, err)
	require.Len(t, authors, 2)
	assert.Equal(t, "novakova jana", authors[0].NameKey)
	assert.Equal(t, "FT", authors[1].Faculty)
}

func TestReadXLSXFile_Missing(t *testing.T) {
	_, err := ReadXLSXFile(filepath.Join(t.TempDir(), "absent.xlsx"))
	assert.Error(t, err)
}
