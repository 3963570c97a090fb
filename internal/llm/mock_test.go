package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMockBackend(t *testing.T) {
	m := NewMockBackend()
	ctx := context.Background()

	if got, _ := m.Generate(ctx, Request{Prompt: "Reply with 'pong' only. PING"}); got != "pong" {
		t.Errorf("ping prompt = %q", got)
	}
	if got, _ := m.Generate(ctx, Request{Prompt: "anything else"}); got != "This is a canned response from the mock provider." {
		t.Errorf("default prompt = %q", got)
	}

	m.SetResponse("Weather", "sunny")
	if got, _ := m.Generate(ctx, Request{Prompt: "what's the weather"}); got != "sunny" {
		t.Errorf("custom response = %q", got)
	}

	m.SetError(errors.New("boom"))
	if _, err := m.Generate(ctx, Request{Prompt: "x"}); err == nil {
		t.Error("SetError did not take effect")
	}
	m.SetError(nil)

	if m.CallCount() != 4 {
		t.Errorf("CallCount() = %d, want 4", m.CallCount())
	}
}

func TestMockBackend_FirstRegisteredKeyWins(t *testing.T) {
	m := NewMockBackend()
	m.SetResponse("alpha", "first")
	m.SetResponse("beta", "second")
	m.SetResponse("default", "nothing matched")
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		if got, _ := m.Generate(ctx, Request{Prompt: "beta then alpha, plus a summary"}); got != "Summary: the request was handled by the offline mock provider." {
			t.Fatalf("run %d: Generate() = %q; built-in keys come first", i, got)
		}
		if got, _ := m.Generate(ctx, Request{Prompt: "beta then alpha"}); got != "first" {
			t.Fatalf("run %d: Generate() = %q, want first", i, got)
		}
	}

	m.SetResponse("alpha", "replaced")
	if got, _ := m.Generate(ctx, Request{Prompt: "beta then alpha"}); got != "replaced" {
		t.Errorf("re-registered key = %q, want replaced in place", got)
	}
	if got, _ := m.Generate(ctx, Request{Prompt: "gamma"}); got != "nothing matched" {
		t.Errorf("fallback = %q", got)
	}
}

func TestMockBackend_DelayHonoursContext(t *testing.T) {
	m := NewMockBackend()
	m.SetDelay(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := m.Generate(ctx, Request{Prompt: "x"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Generate() error = %v, want deadline exceeded", err)
	}
}
