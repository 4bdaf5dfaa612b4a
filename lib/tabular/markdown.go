package tabular

import (
	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderMarkdown renders the full table as a markdown grid.
func (t Table) RenderMarkdown() string {
	w := table.NewWriter()

	header := table.Row{}
	for _, c := range t.Columns {
		header = append(header, c)
	}
	w.AppendHeader(header)

	for _, row := range t.Rows {
		cells := table.Row{}
		for _, c := range row {
			cells = append(cells, c)
		}
		w.AppendRow(cells)
	}

	return w.RenderMarkdown()
}
