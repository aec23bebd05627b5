// Package catalog holds the static table of invokable models and filters it by
// the provider credentials configured for the process.
package catalog

import (
	"sort"
)

// Credentials records which providers have a configured API key. Only the
// presence matters here; the values stay with the invocation layer.
type Credentials map[Provider]bool

func model(provider Provider, name string, tier Tier, in, out float64, ctx, maxOut int, thinking bool, caps ...Capability) Model {
	return Model{
		ID:               string(provider) + ":" + name,
		Provider:         provider,
		Name:             name,
		Tier:             tier,
		Capabilities:     NewCapabilitySet(caps...),
		InputCostPer1K:   in,
		OutputCostPer1K:  out,
		MaxContextTokens: ctx,
		MaxOutputTokens:  maxOut,
		SupportsThinking: thinking,
	}
}

// Default returns the built-in model table.
func Default() []Model {
	return []Model{
		model(ProviderAnthropic, "claude-3-7-sonnet-20250219", TierPremium, 0.003, 0.015, 200_000, 64_000, true,
			CapBasic, CapStructuredOutput, CapThinking, CapCreative, CapCodeGeneration, CapDetailed),
		model(ProviderAnthropic, "claude-3-5-sonnet-20241022", TierStandard, 0.003, 0.015, 200_000, 8_192, false,
			CapBasic, CapStructuredOutput, CapCreative, CapCodeGeneration, CapDetailed),
		model(ProviderAnthropic, "claude-3-5-haiku-20241022", TierEconomy, 0.0008, 0.004, 200_000, 8_192, false,
			CapBasic, CapStructuredOutput, CapConcise),
		model(ProviderOpenAI, "o3-mini", TierSpecialized, 0.0011, 0.0044, 200_000, 100_000, true,
			CapBasic, CapStructuredOutput, CapThinking, CapCodeGeneration, CapDetailed),
		model(ProviderOpenAI, "gpt-4o", TierPremium, 0.0025, 0.01, 128_000, 16_384, false,
			CapBasic, CapStructuredOutput, CapCreative, CapCodeGeneration, CapDetailed),
		model(ProviderOpenAI, "gpt-4o-mini", TierEconomy, 0.00015, 0.0006, 128_000, 16_384, false,
			CapBasic, CapStructuredOutput, CapConcise),
		model(ProviderGoogle, "gemini-2.5-pro", TierPremium, 0.00125, 0.01, 1_048_576, 65_536, true,
			CapBasic, CapStructuredOutput, CapThinking, CapCreative, CapCodeGeneration, CapDetailed),
		model(ProviderGoogle, "gemini-2.5-flash", TierStandard, 0.0003, 0.0025, 1_048_576, 65_536, true,
			CapBasic, CapStructuredOutput, CapThinking, CapConcise, CapDetailed),
		model(ProviderGoogle, "gemini-2.0-flash-lite", TierEconomy, 0.000075, 0.0003, 1_048_576, 8_192, false,
			CapBasic, CapStructuredOutput, CapConcise),
	}
}

// Registry is the immutable catalog plus the credential set it was built with.
type Registry struct {
	models      map[string]Model
	credentials Credentials
}

// NewRegistry builds a registry over the given models. A nil model slice uses
// Default.
func NewRegistry(models []Model, creds Credentials) *Registry {
	if models == nil {
		models = Default()
	}

	r := &Registry{
		models:      make(map[string]Model, len(models)),
		credentials: make(Credentials, len(creds)),
	}
	for _, m := range models {
		r.models[m.ID] = m
	}
	for p, ok := range creds {
		r.credentials[p] = ok
	}

	return r
}

// Available returns the models whose provider has a configured credential.
// The result is empty when no provider is configured; callers treat that as
// fatal.
func (r *Registry) Available() map[string]Model {
	out := make(map[string]Model)
	for id, m := range r.models {
		if r.credentials[m.Provider] {
			out[id] = m
		}
	}
	return out
}

// All returns a copy of the full catalog.
func (r *Registry) All() map[string]Model {
	out := make(map[string]Model, len(r.models))
	for id, m := range r.models {
		out[id] = m
	}
	return out
}

// Lookup returns a model from the full catalog, available or not.
func (r *Registry) Lookup(id string) (Model, bool) {
	m, ok := r.models[id]
	return m, ok
}

// Configured reports whether the provider has a credential.
func (r *Registry) Configured(p Provider) bool {
	return r.credentials[p]
}

// Sorted returns models ordered by id.
func Sorted(models map[string]Model) []Model {
	out := make([]Model, 0, len(models))
	for _, m := range models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
