package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/converge-sh/converge/internal/ir"
)

// buildReport aggregates per-resource results into the run report. Results
// appear in execution order. The run is a Success only when every selected
// resource converged; Failed or Skipped resources make it a Failure.
func buildReport(g *Graph, run *runState, started time.Time) *ir.Report {
	report := &ir.Report{
		RunID:   uuid.NewString(),
		Started: started,
		Elapsed: time.Since(started),
		Status:  ir.RunSuccess,
	}

	for _, ref := range g.Order() {
		run.mu.Lock()
		res, ok := run.results[ref]
		run.mu.Unlock()
		if !ok {
			continue
		}
		report.Results = append(report.Results, *res)
		switch res.Outcome {
		case ir.OutcomeUnchanged:
			report.Unchanged++
		case ir.OutcomeChanged:
			report.Changed++
		case ir.OutcomeFailed:
			report.Failed++
		case ir.OutcomeSkipped:
			report.Skipped++
		}
	}

	if report.Failed > 0 || report.Skipped > 0 {
		report.Status = ir.RunFailure
	}
	return report
}
