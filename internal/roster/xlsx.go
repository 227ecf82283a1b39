// Package roster imports HCP registry rows and objective segment scores from
// spreadsheet files supplied by data vendors.
package roster

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// sheet holds a parsed worksheet: a normalized header and its data rows.
type sheet struct {
	header map[string]int
	rows   [][]string
}

// readSheet loads the first worksheet of an XLSX file. The first row is the
// header; names are matched case-insensitively with spaces treated as
// underscores.
func readSheet(path string) (*sheet, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "roster: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("roster: xlsx has no sheets")
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = strings.TrimSpace(cell.String())
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 {
		return nil, eris.New("roster: xlsx sheet is empty")
	}

	header := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		key := strings.ReplaceAll(strings.ToLower(name), " ", "_")
		if key != "" {
			header[key] = i
		}
	}
	return &sheet{header: header, rows: rows[1:]}, nil
}

// requireColumns verifies the header carries every named column.
func (s *sheet) requireColumns(names ...string) error {
	for _, name := range names {
		if _, ok := s.header[name]; !ok {
			return eris.Errorf("roster: missing column %q", name)
		}
	}
	return nil
}

// cell returns the named column of a row, or "" when absent.
func (s *sheet) cell(row []string, name string) string {
	idx, ok := s.header[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}
