package llm

// factory.go builds a Router from the application configuration.
//
// Only providers that are explicitly configured (enabled, and holding a
// credential when their family needs one) enter the routing table. The rest are
// left out entirely rather than registered as permanently unhealthy.

import (
	"fmt"
	"sort"

	"airouter/internal/config"
)

// NewRouterFromConfig builds the provider table and backends from cfg and wraps
// them in a Router. opts supplies the cache, observer and logger; routing
// tunables from cfg.Routing take precedence over opts.
func NewRouterFromConfig(cfg *config.Config, opts RouterOptions) (*Router, error) {
	var descriptors []Descriptor
	backends := make(map[string]Backend)

	for _, pcfg := range cfg.Providers {
		if !pcfg.Configured() {
			opts.Logger.Info("provider not configured; leaving it out of the routing table",
				"provider", pcfg.ID, "family", pcfg.Family)
			continue
		}
		b, err := buildBackend(pcfg)
		if err != nil {
			return nil, fmt.Errorf("llm factory: provider %q: %w", pcfg.ID, err)
		}
		d, err := descriptorFromConfig(pcfg)
		if err != nil {
			return nil, fmt.Errorf("llm factory: provider %q: %w", pcfg.ID, err)
		}
		descriptors = append(descriptors, d)
		backends[d.ID] = b
	}

	if len(descriptors) == 0 {
		return nil, fmt.Errorf("llm factory: no configured providers")
	}

	table, err := NewTable(descriptors...)
	if err != nil {
		return nil, fmt.Errorf("llm factory: %w", err)
	}

	opts.MaxRetries = cfg.Routing.MaxRetries
	opts.Backoff = cfg.Routing.Backoff.Std()
	if opts.Backoff == 0 {
		// An explicit "0s" in the file means no pause, not the default.
		opts.Backoff = -1
	}
	opts.HealthTTL = cfg.Routing.HealthTTL.Std()
	opts.ProbeTimeout = cfg.Routing.ProbeTimeout.Std()
	return NewRouter(table, backends, opts)
}

// descriptorFromConfig maps a provider entry to a Descriptor. Empty tiers
// default to medium.
func descriptorFromConfig(p config.ProviderConfig) (Descriptor, error) {
	if p.Quality == "" {
		p.Quality = QualityMedium.String()
	}
	if p.Cost == "" {
		p.Cost = CostMedium.String()
	}
	quality, err := ParseQualityTier(p.Quality)
	if err != nil {
		return Descriptor{}, err
	}
	cost, err := ParseCostTier(p.Cost)
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{
		ID:        p.ID,
		Family:    p.Family,
		Model:     p.Model,
		Timeout:   p.Timeout.Std(),
		MaxTokens: p.MaxTokens,
		Quality:   quality,
		Cost:      cost,
	}, nil
}

// buildBackend instantiates the adapter for a provider's family.
func buildBackend(p config.ProviderConfig) (Backend, error) {
	switch p.Family {
	case "openai":
		return NewOpenAIBackend(p.ID, p.APIKey, p.Model, p.BaseURL), nil

	case "anthropic":
		return NewAnthropicBackend(p.ID, p.APIKey, p.Model, p.BaseURL), nil

	case "ollama":
		return NewOllamaBackend(p.ID, p.Model, p.BaseURL), nil

	case "mock":
		return NewMockBackend(), nil
	}

	if b, ok := NewCompatBackend(p.Family, p.ID, p.APIKey, p.Model, p.BaseURL); ok {
		return b, nil
	}
	return nil, fmt.Errorf("unknown provider family %q; supported: %v", p.Family, SupportedFamilies())
}

// SupportedFamilies lists the provider families buildBackend understands.
func SupportedFamilies() []string {
	families := []string{"openai", "anthropic", "ollama", "mock"}
	for f := range compatBaseURLs {
		families = append(families, f)
	}
	sort.Strings(families)
	return families
}
