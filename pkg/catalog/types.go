// Package catalog loads and validates the declarative model/action/routing
// catalog and answers chain lookups for the router.
package catalog

// Capability is a boolean model attribute declared in the catalog.
type Capability string

// Known capabilities.
const (
	CapabilityVision           Capability = "vision"
	CapabilityStructuredOutput Capability = "structured_output"
	CapabilityLongContext      Capability = "long_context"
)

// CostPer1K holds per-1000-token pricing for a model.
type CostPer1K struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// ModelConfig describes one model entry from the catalog.
type ModelConfig struct {
	ModelID      string       `yaml:"-"`
	Provider     string       `yaml:"provider"`
	Capabilities []Capability `yaml:"capabilities"`
	MaxContext   int          `yaml:"max_context"`
	CostPer1K    CostPer1K    `yaml:"cost_per_1k"`
}

// HasCapability reports whether the model declares the given capability.
func (m ModelConfig) HasCapability(c Capability) bool {
	for _, have := range m.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// EstimateCost computes the USD cost of a call from token counts using the
// model's declared rates.
func (m ModelConfig) EstimateCost(tokensIn, tokensOut int) float64 {
	return float64(tokensIn)*m.CostPer1K.Input/1000 + float64(tokensOut)*m.CostPer1K.Output/1000
}

// ActionConfig describes one named LLM task.
type ActionConfig struct {
	Name        string       `yaml:"-"`
	Description string       `yaml:"description"`
	Requires    []Capability `yaml:"requires"`
}

// DefaultStrategy is the strategy every routed action must declare and the
// router's cross-strategy fallback target.
const DefaultStrategy = "default"

// catalogFile mirrors the YAML layout of the catalog file.
type catalogFile struct {
	Models  map[string]ModelConfig         `yaml:"models"`
	Actions map[string]ActionConfig        `yaml:"actions"`
	Routing map[string]map[string][]string `yaml:"routing"`
}
