package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// NullMarker is the literal written in place of empty cells so that
// "no value" is never confused with a zero-length valid value.
const NullMarker = "NULL"

// Table is an ordered grid of string cells under a named header.
// every row has exactly len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

var separatorSpacing = regexp.MustCompile(`\s*,\s*`)

// ParseCSV reads a raw gradebook download. It tolerates the quirks the
// portal is known to produce: inconsistent spacing around commas, a
// "Points Possible" metadata row directly under the header, quoted
// blank cells and a trailing unnamed column from a stray separator.
// Blank cells come out as NullMarker.
func ParseCSV(r io.Reader) (Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Table{}, err
	}

	lines := strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = separatorSpacing.ReplaceAllString(line, ",")
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(lines, "\n")))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return Table{}, err
	}
	if len(records) == 0 {
		return Table{}, fmt.Errorf("no header row")
	}

	header := records[0]
	keep := []int{}
	columns := []string{}
	for i, name := range header {
		name = strings.Trim(strings.TrimSpace(name), `"`)
		if name == "" {
			continue
		}
		keep = append(keep, i)
		columns = append(columns, name)
	}
	if len(columns) == 0 {
		return Table{}, fmt.Errorf("no named columns")
	}

	rows := [][]string{}
	for i, record := range records[1:] {
		if i == 0 && isMetadataRow(record) {
			continue
		}
		row := make([]string, len(keep))
		for j, src := range keep {
			cell := ""
			if src < len(record) {
				cell = strings.TrimSpace(record[src])
			}
			if cell == "" {
				cell = NullMarker
			}
			row[j] = cell
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return Table{}, fmt.Errorf("no data rows")
	}

	return Table{Columns: columns, Rows: rows}, nil
}

func ParseCSVFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, err
	}
	defer f.Close()
	return ParseCSV(f)
}

// the portal emits a per-column "points possible" row under the
// header; it is metadata, not a student record.
func isMetadataRow(record []string) bool {
	for _, cell := range record {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		return strings.EqualFold(cell, "Points Possible")
	}
	return false
}

// InsertColumn prepends a constant-valued column at the given index.
func (t *Table) InsertColumn(index int, name, value string) {
	if index < 0 || index > len(t.Columns) {
		index = len(t.Columns)
	}
	t.Columns = append(t.Columns[:index], append([]string{name}, t.Columns[index:]...)...)
	for i, row := range t.Rows {
		t.Rows[i] = append(row[:index], append([]string{value}, row[index:]...)...)
	}
}

func (t Table) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	err := writer.Write(t.Columns)
	if err != nil {
		return err
	}
	for _, row := range t.Rows {
		err = writer.Write(row)
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func (t Table) WriteCSVFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return t.WriteCSV(f)
}
