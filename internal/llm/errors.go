package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Terminal errors returned by Router.Generate. Match with errors.Is.
var (
	// ErrNoProviderAvailable means every provider was excluded or unhealthy
	// before any dispatch was attempted.
	ErrNoProviderAvailable = errors.New("no provider available")

	// ErrAllProvidersFailed means the retry budget ran out.
	ErrAllProvidersFailed = errors.New("all providers failed")

	// ErrTimeout matches any *TimeoutError.
	ErrTimeout = errors.New("provider call timed out")
)

// Reason classifies why a dispatch attempt failed.
type Reason string

const (
	ReasonTimeout   Reason = "timeout"
	ReasonTransport Reason = "transport"
	// ReasonCancelled marks an attempt cut short by the caller's own context;
	// it says nothing about the provider.
	ReasonCancelled Reason = "cancelled"
)

// TransportError is a protocol-level failure from a backend: bad status,
// malformed body, refused connection.
type TransportError struct {
	Provider   string
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError reports a call that did not settle within its budget.
type TimeoutError struct {
	Provider string
	After    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider %s: no response within %s", e.Provider, e.After)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// DispatchFailure records one failed attempt inside a Generate call.
type DispatchFailure struct {
	Provider string
	Reason   Reason
	Err      error
}

func (f *DispatchFailure) Error() string {
	return fmt.Sprintf("%s (%s): %v", f.Provider, f.Reason, f.Err)
}

func (f *DispatchFailure) Unwrap() error { return f.Err }

// newDispatchFailure classifies err for provider.
func newDispatchFailure(provider string, err error) *DispatchFailure {
	reason := ReasonTransport
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		reason = ReasonTimeout
	}
	return &DispatchFailure{Provider: provider, Reason: reason, Err: err}
}

// NoProviderError is returned when selection finds no usable provider.
type NoProviderError struct {
	// Evaluated lists the candidates that were probed and found unhealthy, in order.
	Evaluated []string
	// Excluded lists the providers ruled out by earlier failures in the same call.
	Excluded []string
}

func (e *NoProviderError) Error() string {
	var b strings.Builder
	b.WriteString(ErrNoProviderAvailable.Error())
	if len(e.Evaluated) > 0 {
		fmt.Fprintf(&b, " (unhealthy: %s)", strings.Join(e.Evaluated, ", "))
	}
	if len(e.Excluded) > 0 {
		fmt.Fprintf(&b, " (excluded: %s)", strings.Join(e.Excluded, ", "))
	}
	return b.String()
}

func (e *NoProviderError) Is(target error) bool { return target == ErrNoProviderAvailable }

// AllProvidersFailedError is returned when no attempt succeeded within the retry
// budget or the caller's deadline.
type AllProvidersFailedError struct {
	Failures []*DispatchFailure
	// Last is the error that ended the loop: the final dispatch failure, a
	// NoProviderError once the remaining providers ran out, or the context error.
	Last error
}

func (e *AllProvidersFailedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s after %d attempt(s)", ErrAllProvidersFailed, len(e.Failures))
	for _, f := range e.Failures {
		b.WriteString("; ")
		b.WriteString(f.Error())
	}
	if e.Last != nil && (len(e.Failures) == 0 || e.Last != error(e.Failures[len(e.Failures)-1])) {
		fmt.Fprintf(&b, "; stopped: %v", e.Last)
	}
	return b.String()
}

func (e *AllProvidersFailedError) Is(target error) bool { return target == ErrAllProvidersFailed }

func (e *AllProvidersFailedError) Unwrap() error { return e.Last }

// Tried returns the provider ids attempted, in order.
func (e *AllProvidersFailedError) Tried() []string {
	ids := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = f.Provider
	}
	return ids
}
