package cli

import (
	"fmt"

	"github.com/converge-sh/converge/internal/engine"
	"github.com/converge-sh/converge/internal/ir"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
)

// renderEvent prints one progress line per resource transition.
func renderEvent(ev engine.Event) {
	switch ev.Status {
	case "completed":
		switch ev.Outcome {
		case ir.OutcomeChanged:
			fmt.Printf("%s~ %s: changed%s (%s)\n", colorYellow, ev.Ref, colorReset, ev.Duration.Round(1e6))
		default:
			fmt.Printf("  %s: unchanged\n", ev.Ref)
		}
	case "refreshed":
		fmt.Printf("%s↻ %s: refreshed%s\n", colorYellow, ev.Ref, colorReset)
	case "failed":
		fmt.Printf("%s✗ %s: failed: %v%s\n", colorRed, ev.Ref, ev.Err, colorReset)
	case "skipped":
		fmt.Printf("%s- %s: skipped%s\n", colorYellow, ev.Ref, colorReset)
	}
}

// renderReport prints the final summary.
func renderReport(report *ir.Report) {
	fmt.Println()
	status := colorGreen + "Success" + colorReset
	if report.Status != ir.RunSuccess {
		status = colorRed + "Failure" + colorReset
	}
	fmt.Printf("Run %s: %s in %s\n", report.RunID, status, report.Elapsed.Round(1e6))
	fmt.Printf("Resources: %d unchanged, %d changed, %d failed, %d skipped.\n",
		report.Unchanged, report.Changed, report.Failed, report.Skipped)

	for _, res := range report.Results {
		switch res.Outcome {
		case ir.OutcomeFailed:
			fmt.Printf("%s  %s: %v%s\n", colorRed, res.Ref, res.Err, colorReset)
		case ir.OutcomeSkipped:
			fmt.Printf("%s  %s: %s%s\n", colorYellow, res.Ref, res.Reason, colorReset)
		}
	}
}
