package tabular

import (
	"math"
	"strconv"
)

type ColumnStats struct {
	Column string
	Mean   float64
	Min    float64
	Max    float64
	StdDev float64
	// Count is the number of non-null numeric cells.
	Count int
}

// NumericSummary computes per-column statistics over every column not
// listed in skip. Columns without a single numeric value are omitted.
func (t Table) NumericSummary(skip ...string) []ColumnStats {
	skipped := map[string]bool{}
	for _, s := range skip {
		skipped[s] = true
	}

	out := []ColumnStats{}
	for col, name := range t.Columns {
		if skipped[name] {
			continue
		}

		values := []float64{}
		for _, row := range t.Rows {
			cell := row[col]
			if cell == NullMarker {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				continue
			}
			values = append(values, v)
		}
		if len(values) == 0 {
			continue
		}

		stats := ColumnStats{
			Column: name,
			Min:    values[0],
			Max:    values[0],
			Count:  len(values),
		}
		sum := 0.0
		for _, v := range values {
			sum += v
			stats.Min = math.Min(stats.Min, v)
			stats.Max = math.Max(stats.Max, v)
		}
		stats.Mean = sum / float64(len(values))

		if len(values) > 1 {
			variance := 0.0
			for _, v := range values {
				variance += (v - stats.Mean) * (v - stats.Mean)
			}
			stats.StdDev = math.Sqrt(variance / float64(len(values)-1))
		}

		out = append(out, stats)
	}
	return out
}
