package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
)

// fakeHealth answers health from a fixed map and records the evaluation order.
type fakeHealth struct {
	healthy   map[string]bool
	evaluated []string
}

func (f *fakeHealth) IsHealthy(_ context.Context, d Descriptor) bool {
	f.evaluated = append(f.evaluated, d.ID)
	return f.healthy[d.ID]
}

func testTable(t *testing.T) *Table {
	t.Helper()
	table, err := NewTable(
		Descriptor{ID: "balanced", Timeout: 15 * time.Second, Quality: QualityHigh},
		Descriptor{ID: "quick", Timeout: 5 * time.Second, Quality: QualityMedium},
		Descriptor{ID: "premium", Timeout: 30 * time.Second, Quality: QualityHighest},
		Descriptor{ID: "tiny", Timeout: 5 * time.Second, Quality: QualityLow},
	)
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	return table
}

func TestSelector_Order(t *testing.T) {
	s := NewSelector(testTable(t), &fakeHealth{}, logr.Discard())

	tests := []struct {
		name string
		pref Preference
		want string
	}{
		{"table order", Preference{}, "balanced,quick,premium,tiny"},
		{"speed, ties keep table order", Preference{PreferSpeed: true}, "quick,tiny,balanced,premium"},
		{"quality", Preference{PreferQuality: true}, "premium,balanced,quick,tiny"},
		{"speed wins over quality", Preference{PreferSpeed: true, PreferQuality: true}, "quick,tiny,balanced,premium"},
		{"exclusions", Preference{PreferQuality: true, Excluded: map[string]struct{}{"premium": {}, "quick": {}}}, "balanced,tiny"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := strings.Join(ids(s.Order(tt.pref)), ","); got != tt.want {
				t.Errorf("Order() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSelector_Select_FirstHealthyWins(t *testing.T) {
	health := &fakeHealth{healthy: map[string]bool{"balanced": true, "tiny": true}}
	s := NewSelector(testTable(t), health, logr.Discard())

	d, err := s.Select(context.Background(), Preference{PreferSpeed: true})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if d.ID != "tiny" {
		t.Errorf("Select() = %s, want tiny", d.ID)
	}
	if got := strings.Join(health.evaluated, ","); got != "quick,tiny" {
		t.Errorf("evaluated = %s; selection must stop at the first healthy candidate", got)
	}
}

func TestSelector_Select_HighestQualityHealthy(t *testing.T) {
	health := &fakeHealth{healthy: map[string]bool{"balanced": true, "quick": true, "premium": true, "tiny": true}}
	s := NewSelector(testTable(t), health, logr.Discard())

	d, err := s.Select(context.Background(), Preference{PreferQuality: true})
	if err != nil || d.ID != "premium" {
		t.Errorf("Select() = %s, %v; want premium", d.ID, err)
	}
}

func TestSelector_Select_NoProvider(t *testing.T) {
	health := &fakeHealth{healthy: map[string]bool{"premium": true}}
	s := NewSelector(testTable(t), health, logr.Discard())

	pref := Preference{}
	pref.Exclude("premium")
	_, err := s.Select(context.Background(), pref)
	if !errors.Is(err, ErrNoProviderAvailable) {
		t.Fatalf("Select() error = %v, want ErrNoProviderAvailable", err)
	}

	var np *NoProviderError
	if !errors.As(err, &np) {
		t.Fatalf("error is %T", err)
	}
	if strings.Join(np.Evaluated, ",") != "balanced,quick,tiny" || strings.Join(np.Excluded, ",") != "premium" {
		t.Errorf("NoProviderError = %+v", np)
	}
	if !strings.Contains(err.Error(), "excluded: premium") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestPreference_Exclude(t *testing.T) {
	var p Preference
	if p.IsExcluded("a") {
		t.Error("zero Preference excludes nothing")
	}
	p.Exclude("a")
	p.Exclude("a")
	if !p.IsExcluded("a") || len(p.Excluded) != 1 {
		t.Errorf("Excluded = %v", p.Excluded)
	}
}
