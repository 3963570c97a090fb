package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Request is the provider-neutral text-generation call every Backend accepts.
type Request struct {
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// Backend turns a Request into text for one provider.
//
// Implementations make exactly one outbound call per Generate and never retry;
// retry policy belongs to the Router. Hard transport or protocol failures are
// returned as *TransportError. Soft outcomes (refusals, content filtering, empty
// completions) are returned as text, possibly empty.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// QualityTier ranks output quality. Lower values are better, so an ascending
// sort puts QualityHighest first.
type QualityTier int

const (
	QualityHighest QualityTier = iota
	QualityHigh
	QualityMedium
	QualityLow
)

var qualityNames = []string{"highest", "high", "medium", "low"}

func (q QualityTier) String() string {
	if q < 0 || int(q) >= len(qualityNames) {
		return fmt.Sprintf("QualityTier(%d)", int(q))
	}
	return qualityNames[q]
}

// MarshalText renders the tier by name in JSON payloads.
func (q QualityTier) MarshalText() ([]byte, error) { return []byte(q.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (q *QualityTier) UnmarshalText(text []byte) error {
	parsed, err := ParseQualityTier(string(text))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// ParseQualityTier parses "highest", "high", "medium" or "low".
func ParseQualityTier(s string) (QualityTier, error) {
	for i, name := range qualityNames {
		if strings.EqualFold(s, name) {
			return QualityTier(i), nil
		}
	}
	return 0, fmt.Errorf("unknown quality tier %q; supported: %s", s, strings.Join(qualityNames, ", "))
}

// CostTier ranks price, cheapest first.
type CostTier int

const (
	CostFree CostTier = iota
	CostLow
	CostMedium
	CostHigh
)

var costNames = []string{"free", "low", "medium", "high"}

func (c CostTier) String() string {
	if c < 0 || int(c) >= len(costNames) {
		return fmt.Sprintf("CostTier(%d)", int(c))
	}
	return costNames[c]
}

// MarshalText renders the tier by name in JSON payloads.
func (c CostTier) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *CostTier) UnmarshalText(text []byte) error {
	parsed, err := ParseCostTier(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCostTier parses "free", "low", "medium" or "high".
func ParseCostTier(s string) (CostTier, error) {
	for i, name := range costNames {
		if strings.EqualFold(s, name) {
			return CostTier(i), nil
		}
	}
	return 0, fmt.Errorf("unknown cost tier %q; supported: %s", s, strings.Join(costNames, ", "))
}

// Descriptor is the static definition of one provider. It is created once at
// startup and never mutated.
type Descriptor struct {
	ID        string
	Family    string
	Model     string
	Timeout   time.Duration // per-call timeout; also the latency proxy for PreferSpeed
	MaxTokens int           // output token ceiling
	Quality   QualityTier
	Cost      CostTier
}
