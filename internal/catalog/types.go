package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Provider names an LLM vendor.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGoogle    Provider = "google"
)

// Providers lists every supported provider in a stable order.
var Providers = []Provider{ProviderAnthropic, ProviderOpenAI, ProviderGoogle}

// ParseProvider validates a free-form provider name.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderAnthropic, ProviderOpenAI, ProviderGoogle:
		return p, nil
	default:
		return "", fmt.Errorf("unknown provider %q", s)
	}
}

// Tier is a coarse cost/capability bucket.
type Tier string

const (
	TierEconomy     Tier = "economy"
	TierStandard    Tier = "standard"
	TierPremium     Tier = "premium"
	TierSpecialized Tier = "specialized"
)

// ParseTier validates a free-form tier name.
func ParseTier(s string) (Tier, error) {
	switch t := Tier(strings.ToLower(strings.TrimSpace(s))); t {
	case TierEconomy, TierStandard, TierPremium, TierSpecialized:
		return t, nil
	default:
		return "", fmt.Errorf("unknown tier %q", s)
	}
}

// Capability is a named feature a model supports.
type Capability string

const (
	CapBasic            Capability = "basic"
	CapStructuredOutput Capability = "structured_output"
	CapThinking         Capability = "thinking"
	CapCreative         Capability = "creative"
	CapCodeGeneration   Capability = "code_generation"
	CapConcise          Capability = "concise"
	CapDetailed         Capability = "detailed"
)

// CapabilitySet is an unordered set of capabilities.
type CapabilitySet map[Capability]struct{}

// NewCapabilitySet builds a set from the given capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

// Has reports whether c is in the set.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Superset reports whether s contains every capability of other.
func (s CapabilitySet) Superset(other CapabilitySet) bool {
	for c := range other {
		if !s.Has(c) {
			return false
		}
	}
	return true
}

// Len returns the number of capabilities.
func (s CapabilitySet) Len() int { return len(s) }

// Clone returns an independent copy.
func (s CapabilitySet) Clone() CapabilitySet {
	out := make(CapabilitySet, len(s))
	for c := range s {
		out[c] = struct{}{}
	}
	return out
}

// Add inserts the capabilities into the set.
func (s CapabilitySet) Add(caps ...Capability) {
	for _, c := range caps {
		s[c] = struct{}{}
	}
}

// Strings returns the sorted capability names, mostly for logging.
func (s CapabilitySet) Strings() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, string(c))
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted list.
func (s CapabilitySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

// Model describes one invokable model. Values are never mutated after the
// catalog is built.
type Model struct {
	ID               string
	Provider         Provider
	Name             string
	Tier             Tier
	Capabilities     CapabilitySet
	InputCostPer1K   float64
	OutputCostPer1K  float64
	MaxContextTokens int
	MaxOutputTokens  int
	SupportsThinking bool
}

// ProviderOf returns the provider part of a provider-qualified model id.
func ProviderOf(modelID string) Provider {
	provider, _, found := strings.Cut(modelID, ":")
	if !found {
		return ""
	}
	return Provider(provider)
}

// NameOf returns the vendor model name of a provider-qualified id.
func NameOf(modelID string) string {
	_, name, found := strings.Cut(modelID, ":")
	if !found {
		return modelID
	}
	return name
}
