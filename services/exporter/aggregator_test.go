package exporter

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAggregatorConcurrentAppends(t *testing.T) {
	agg := NewAggregator()

	workers := 8
	perWorker := 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				agg.Append(ExportOutcome{
					CourseId: fmt.Sprintf("%d-%d", w, i),
					Success:  i%2 == 0,
				})
			}
		}(w)
	}
	wg.Wait()

	report := agg.Snapshot()
	require.Equal(t, workers*perWorker, report.Total)
	require.Len(t, report.Courses, report.Total)
	require.Equal(t, report.Total, report.Successful+report.Failed)
	require.Equal(t, 8*13, report.Successful)

	seen := map[string]bool{}
	for _, o := range report.Courses {
		require.False(t, seen[o.CourseId], o.CourseId)
		seen[o.CourseId] = true
	}
}

func TestAggregatorSnapshotIsIndependent(t *testing.T) {
	agg := NewAggregator()
	agg.Append(ExportOutcome{CourseId: "a", Success: true})

	first := agg.Snapshot()
	first.Courses[0].CourseId = "mutated"

	second := agg.Snapshot()
	require.Equal(t, "a", second.Courses[0].CourseId)
}

func TestAggregatorPartialSnapshots(t *testing.T) {
	agg := NewAggregator()

	require.Equal(t, 0, agg.Snapshot().Total)

	agg.Append(ExportOutcome{CourseId: "a", Success: true})
	mid := agg.Snapshot()
	require.Equal(t, 1, mid.Total)
	require.Equal(t, 1, mid.Successful)
	require.Equal(t, 0, mid.Failed)

	agg.Append(ExportOutcome{CourseId: "b", Error: "Login failed"})
	final := agg.Snapshot()
	require.Equal(t, 2, final.Total)
	require.Equal(t, 1, final.Successful)
	require.Equal(t, 1, final.Failed)

	// the earlier snapshot is unaffected
	require.Equal(t, 1, mid.Total)
}
