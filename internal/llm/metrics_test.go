package llm

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := NewPrometheusObserver(reg)
	if err != nil {
		t.Fatalf("NewPrometheusObserver() error = %v", err)
	}

	obs.ObserveAttempt(Attempt{Provider: "openai", Success: true, Elapsed: 200 * time.Millisecond})
	obs.ObserveAttempt(Attempt{Provider: "openai", Reason: ReasonTimeout, Elapsed: 30 * time.Second})
	obs.ObserveAttempt(Attempt{Provider: "groq", Reason: ReasonTransport, Elapsed: time.Second})

	if got := testutil.ToFloat64(obs.attempts.WithLabelValues("openai", "success")); got != 1 {
		t.Errorf("openai success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(obs.attempts.WithLabelValues("openai", "timeout")); got != 1 {
		t.Errorf("openai timeout = %v, want 1", got)
	}
	if got := testutil.ToFloat64(obs.attempts.WithLabelValues("groq", "transport")); got != 1 {
		t.Errorf("groq transport = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(obs.duration); n != 2 {
		t.Errorf("duration series = %d, want 2", n)
	}

	if _, err := NewPrometheusObserver(reg); err == nil {
		t.Error("registering twice on one registry should fail")
	}
}

func TestMultiObserver(t *testing.T) {
	var got []string
	m := MultiObserver{
		ObserverFunc(func(a Attempt) { got = append(got, "first:"+a.Provider) }),
		nil,
		ObserverFunc(func(a Attempt) { got = append(got, "second:"+a.Provider) }),
	}
	m.ObserveAttempt(Attempt{Provider: "ollama"})
	if len(got) != 2 || got[0] != "first:ollama" || got[1] != "second:ollama" {
		t.Errorf("observed = %v", got)
	}
}
