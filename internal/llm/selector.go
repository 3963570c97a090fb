package llm

import (
	"context"
	"sort"

	"github.com/go-logr/logr"
)

// HealthChecker reports whether a provider may currently be dispatched to.
type HealthChecker interface {
	IsHealthy(ctx context.Context, d Descriptor) bool
}

// Preference steers selection for one Generate call.
type Preference struct {
	PreferSpeed   bool
	PreferQuality bool
	// Excluded holds provider ids ruled out for the rest of the call.
	Excluded map[string]struct{}
}

// Exclude adds id to the exclusion set.
func (p *Preference) Exclude(id string) {
	if p.Excluded == nil {
		p.Excluded = make(map[string]struct{})
	}
	p.Excluded[id] = struct{}{}
}

// IsExcluded reports whether id is in the exclusion set.
func (p Preference) IsExcluded(id string) bool {
	_, ok := p.Excluded[id]
	return ok
}

// Selector picks the first healthy provider under a Preference. Candidates are
// probed one at a time in order; an earlier healthy candidate always wins.
type Selector struct {
	table  *Table
	health HealthChecker
	log    logr.Logger
}

// NewSelector creates a Selector.
func NewSelector(table *Table, health HealthChecker, log logr.Logger) *Selector {
	return &Selector{table: table, health: health, log: log}
}

// Order returns the non-excluded providers in the order Select evaluates them:
// ascending timeout when speed is preferred, otherwise best quality tier first
// when quality is preferred, otherwise table order. Sorts are stable, so ties
// keep table order.
func (s *Selector) Order(p Preference) []Descriptor {
	all := s.table.List()
	candidates := all[:0]
	for _, d := range all {
		if !p.IsExcluded(d.ID) {
			candidates = append(candidates, d)
		}
	}

	switch {
	case p.PreferSpeed:
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Timeout < candidates[j].Timeout
		})
	case p.PreferQuality:
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Quality < candidates[j].Quality
		})
	}
	return candidates
}

// Select returns the first healthy provider in Order, or a *NoProviderError.
func (s *Selector) Select(ctx context.Context, p Preference) (Descriptor, error) {
	var unhealthy []string
	for _, d := range s.Order(p) {
		if s.health.IsHealthy(ctx, d) {
			return d, nil
		}
		s.log.V(1).Info("skipping unhealthy provider", "provider", d.ID)
		unhealthy = append(unhealthy, d.ID)
	}

	excluded := make([]string, 0, len(p.Excluded))
	for _, id := range s.table.IDs() {
		if p.IsExcluded(id) {
			excluded = append(excluded, id)
		}
	}
	return Descriptor{}, &NoProviderError{Evaluated: unhealthy, Excluded: excluded}
}
