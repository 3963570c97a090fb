package llm

import (
	"time"

	"github.com/go-logr/logr"
)

// Attempt describes one dispatch attempt. Observers receive one per attempt,
// successful or not.
type Attempt struct {
	RequestID string
	Provider  string
	Model     string
	Number    int // 1-based within the Generate call
	Success   bool
	Reason    Reason // empty on success
	Elapsed   time.Duration
}

// AttemptObserver is the side-effect hook for dashboards and logs.
// Implementations must be safe for concurrent use and must not block.
type AttemptObserver interface {
	ObserveAttempt(Attempt)
}

// ObserverFunc adapts a function to AttemptObserver.
type ObserverFunc func(Attempt)

// ObserveAttempt implements AttemptObserver.
func (f ObserverFunc) ObserveAttempt(a Attempt) { f(a) }

// MultiObserver fans an attempt out to every observer in order.
type MultiObserver []AttemptObserver

// ObserveAttempt implements AttemptObserver.
func (m MultiObserver) ObserveAttempt(a Attempt) {
	for _, o := range m {
		if o != nil {
			o.ObserveAttempt(a)
		}
	}
}

// LogObserver writes each attempt to a logr.Logger.
type LogObserver struct {
	Log logr.Logger
}

// ObserveAttempt implements AttemptObserver.
func (o LogObserver) ObserveAttempt(a Attempt) {
	kv := []interface{}{
		"requestID", a.RequestID,
		"provider", a.Provider,
		"model", a.Model,
		"attempt", a.Number,
		"elapsed", a.Elapsed,
	}
	if a.Success {
		o.Log.V(1).Info("attempt succeeded", kv...)
		return
	}
	o.Log.Info("attempt failed", append(kv, "reason", string(a.Reason))...)
}

type nopObserver struct{}

func (nopObserver) ObserveAttempt(Attempt) {}
