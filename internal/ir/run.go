package ir

import "time"

// Outcome is the terminal state of one resource within a run.
// Unchanged and Changed are converged; Failed and Skipped are not.
type Outcome string

const (
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeChanged   Outcome = "changed"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// Converged reports whether the outcome represents a resource that matches
// its declared state.
func (o Outcome) Converged() bool {
	return o == OutcomeUnchanged || o == OutcomeChanged
}

// Result is the recorded outcome for one resource. Err is set only for
// Failed; Reason is set for Skipped (names the failed dependency).
type Result struct {
	Ref       Ref
	Outcome   Outcome
	Err       error
	Reason    string
	Refreshed bool
	Duration  time.Duration
}

// RunStatus is the whole-run verdict surfaced to the caller.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailure RunStatus = "failure"
)

// Report aggregates per-resource results for one convergence run.
type Report struct {
	RunID     string
	Status    RunStatus
	Started   time.Time
	Elapsed   time.Duration
	Unchanged int
	Changed   int
	Failed    int
	Skipped   int
	Results   []Result
}

// FailedRefs returns the ids of resources that failed, in run order.
func (r *Report) FailedRefs() []Ref {
	var refs []Ref
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			refs = append(refs, res.Ref)
		}
	}
	return refs
}

// SkippedRefs returns the ids of resources skipped because of an upstream
// failure, in run order.
func (r *Report) SkippedRefs() []Ref {
	var refs []Ref
	for _, res := range r.Results {
		if res.Outcome == OutcomeSkipped {
			refs = append(refs, res.Ref)
		}
	}
	return refs
}
