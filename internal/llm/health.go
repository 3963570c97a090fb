package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/singleflight"

	"airouter/internal/cache"
)

const (
	// DefaultHealthTTL bounds how often a provider is probed.
	DefaultHealthTTL = 5 * time.Minute
	// DefaultProbeTimeout is deliberately shorter than any provider call timeout.
	DefaultProbeTimeout = 3 * time.Second

	probePrompt     = "Hi"
	probeMaxTokens  = 10
	healthKeyPrefix = "health:"
)

// HealthRecord is the last probe outcome for one provider.
type HealthRecord struct {
	Provider  string    `json:"provider"`
	Healthy   bool      `json:"healthy"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Monitor answers "is this provider usable right now" from a TTL-bounded
// record, probing the backend when the record is missing or stale.
//
// Records live in a cache.Cache and are overwritten last-writer-wins. Expiry is
// judged at read time from CheckedAt, so no background sweeper is needed.
// Concurrent probes of the same provider within one process are collapsed.
type Monitor struct {
	backends     map[string]Backend
	store        cache.Cache
	ttl          time.Duration
	probeTimeout time.Duration
	probes       singleflight.Group
	now          func() time.Time
	log          logr.Logger
}

// NewMonitor creates a Monitor. Zero ttl or probeTimeout select the defaults.
func NewMonitor(backends map[string]Backend, store cache.Cache, ttl, probeTimeout time.Duration, log logr.Logger) *Monitor {
	if ttl <= 0 {
		ttl = DefaultHealthTTL
	}
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	if store == nil {
		store = cache.NewMemoryCache()
	}
	return &Monitor{
		backends:     backends,
		store:        store,
		ttl:          ttl,
		probeTimeout: probeTimeout,
		now:          time.Now,
		log:          log,
	}
}

// IsHealthy reports whether d may be dispatched to. A fresh record is answered
// from cache; otherwise one probe is issued and its outcome recorded.
//
// The probe is shared by every concurrent caller and runs detached from any
// single caller's context, bounded only by the probe timeout. A caller whose
// ctx ends first gets false; the probe still completes and is recorded for the
// others.
func (m *Monitor) IsHealthy(ctx context.Context, d Descriptor) bool {
	if rec, ok := m.Snapshot(ctx, d.ID); ok && m.now().Sub(rec.CheckedAt) < m.ttl {
		return rec.Healthy
	}

	probeCtx := context.WithoutCancel(ctx)
	ch := m.probes.DoChan(d.ID, func() (interface{}, error) {
		return m.probe(probeCtx, d), nil
	})
	select {
	case res := <-ch:
		return res.Val.(bool)
	case <-ctx.Done():
		return false
	}
}

// Snapshot returns the stored record for id regardless of age.
func (m *Monitor) Snapshot(ctx context.Context, id string) (HealthRecord, bool) {
	raw, found, err := m.store.Get(ctx, healthKeyPrefix+id)
	if err != nil {
		m.log.Error(err, "health record read failed; treating as unknown", "provider", id)
		return HealthRecord{}, false
	}
	if !found {
		return HealthRecord{}, false
	}
	var rec HealthRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		m.log.Error(err, "health record is corrupt; treating as unknown", "provider", id)
		return HealthRecord{}, false
	}
	return rec, true
}

func (m *Monitor) probe(ctx context.Context, d Descriptor) bool {
	backend, ok := m.backends[d.ID]
	if !ok {
		m.record(ctx, d.ID, false)
		return false
	}

	start := m.now()
	_, err := raceTimeout(ctx, d.ID, m.probeTimeout, func(c context.Context) (string, error) {
		return backend.Generate(c, Request{Prompt: probePrompt, MaxTokens: probeMaxTokens})
	})
	healthy := err == nil
	if healthy {
		m.log.V(1).Info("health probe passed", "provider", d.ID, "latency", m.now().Sub(start))
	} else {
		m.log.Info("health probe failed", "provider", d.ID, "error", err.Error())
	}
	m.record(ctx, d.ID, healthy)
	return healthy
}

func (m *Monitor) record(ctx context.Context, id string, healthy bool) {
	raw, err := json.Marshal(HealthRecord{Provider: id, Healthy: healthy, CheckedAt: m.now()})
	if err != nil {
		m.log.Error(err, "encode health record", "provider", id)
		return
	}
	if err := m.store.Set(ctx, healthKeyPrefix+id, raw, 0); err != nil {
		m.log.Error(err, "health record write failed", "provider", id)
	}
}
