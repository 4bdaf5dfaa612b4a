package exporter

import (
	"sync"
	"time"
)

// Aggregator folds outcomes arriving concurrently from many worker
// slots into one consistent report. Append is the only mutation; all
// counts are derived from the outcome list at snapshot time so they
// can never drift from it.
type Aggregator struct {
	mu       sync.Mutex
	outcomes []ExportOutcome
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

func (a *Aggregator) Append(outcome ExportOutcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.outcomes = append(a.outcomes, outcome)
}

// Snapshot returns an internally-consistent report of everything
// appended so far. Outcome order is completion order, not submission
// order.
func (a *Aggregator) Snapshot() ExportReport {
	a.mu.Lock()
	defer a.mu.Unlock()

	report := ExportReport{
		Total:       len(a.outcomes),
		Courses:     make([]ExportOutcome, len(a.outcomes)),
		GeneratedAt: time.Now(),
	}
	copy(report.Courses, a.outcomes)

	for _, o := range a.outcomes {
		if o.Success {
			report.Successful++
		} else {
			report.Failed++
		}
	}
	return report
}
