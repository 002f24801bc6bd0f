package mutation

import "time"

// Metrics receives coordinator measurements. All methods must be safe for concurrent use.
type Metrics interface {
	ObserveLockWait(d time.Duration)
	CountBulk(outcome string)
}

const (
	OutcomeApplied  = "applied"
	OutcomeNoop     = "noop"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

type nopMetrics struct{}

func (nopMetrics) ObserveLockWait(time.Duration) {}
func (nopMetrics) CountBulk(string)              {}
