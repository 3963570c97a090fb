package llm

import (
	"context"
	"time"
)

type callResult struct {
	text string
	err  error
}

// raceTimeout runs call and returns whichever settles first: the call, the
// timer, or ctx. The losing call is abandoned; its result lands in a buffered
// channel and is dropped. callCtx is cancelled once the race is decided, but
// correctness never depends on the backend honouring that.
func raceTimeout(ctx context.Context, provider string, timeout time.Duration, call func(context.Context) (string, error)) (string, error) {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		text, err := call(callCtx)
		done <- callResult{text: text, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.text, r.err
	case <-timer.C:
		return "", &TimeoutError{Provider: provider, After: timeout}
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
