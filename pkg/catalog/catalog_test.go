package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validCatalog = `
models:
  m_a:
    provider: p_a
    capabilities: [structured_output]
    max_context: 100000
    cost_per_1k:
      input: 0.001
      output: 0.002
  m_b:
    provider: p_b
    capabilities: [structured_output, vision]
    max_context: 200000
    cost_per_1k:
      input: 0.003
      output: 0.015
actions:
  a:
    description: test action
    requires: [structured_output]
routing:
  a:
    default: [m_a]
    quality: [m_b, m_a]
`

func TestParse_ValidCatalog(t *testing.T) {
	reg, err := Parse([]byte(validCatalog))
	require.NoError(t, err)

	stats := reg.Stats()
	assert.Equal(t, 2, stats.Models)
	assert.Equal(t, 1, stats.Actions)
	assert.Equal(t, 1, stats.Routes)

	model, ok := reg.Model("m_b")
	require.True(t, ok)
	assert.Equal(t, "p_b", model.Provider)
	assert.True(t, model.HasCapability(CapabilityVision))
	assert.False(t, model.HasCapability(CapabilityLongContext))
}

func TestParse_ChainOrder(t *testing.T) {
	reg, err := Parse([]byte(validCatalog))
	require.NoError(t, err)

	chain, err := reg.Chain("a", "quality")
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "m_b", chain[0].ModelID)
	assert.Equal(t, "m_a", chain[1].ModelID)
}

func TestParse_UnknownStrategyFallsBackToDefault(t *testing.T) {
	reg, err := Parse([]byte(validCatalog))
	require.NoError(t, err)

	chain, err := reg.Chain("a", "experimental")
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, "m_a", chain[0].ModelID)
	assert.False(t, reg.HasStrategy("a", "experimental"))
	assert.True(t, reg.HasStrategy("a", "quality"))
}

func TestParse_UnknownAction(t *testing.T) {
	reg, err := Parse([]byte(validCatalog))
	require.NoError(t, err)

	_, err = reg.Chain("nope", "default")
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = reg.Strategies("nope")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestParse_Strategies(t *testing.T) {
	reg, err := Parse([]byte(validCatalog))
	require.NoError(t, err)

	strategies, err := reg.Strategies("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "quality"}, strategies)
}

func TestEstimateCost(t *testing.T) {
	m := ModelConfig{CostPer1K: CostPer1K{Input: 0.001, Output: 0.002}}
	assert.InDelta(t, 0.002, m.EstimateCost(1000, 500), 1e-9)
	assert.Zero(t, m.EstimateCost(0, 0))
}

func TestParse_MissingCapabilityFailsLoad(t *testing.T) {
	catalog := `
models:
  M:
    provider: p
    capabilities: [structured_output]
    max_context: 1000
    cost_per_1k: {input: 0.001, output: 0.002}
actions:
  a:
    description: needs vision
    requires: [vision]
routing:
  a:
    default: [M]
`
	_, err := Parse([]byte(catalog))
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "lacks required capabilities")
	assert.Contains(t, err.Error(), `"M"`)
	assert.Contains(t, err.Error(), "vision")
}

func TestParse_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		catalog string
		want    string
	}{
		{
			name: "missing default strategy",
			catalog: `
models:
  m: {provider: p, capabilities: [vision], max_context: 1, cost_per_1k: {input: 0, output: 0}}
actions:
  a: {description: d, requires: [vision]}
routing:
  a:
    quality: [m]
`,
			want: `action "a" does not declare a "default" strategy`,
		},
		{
			name: "empty chain",
			catalog: `
models:
  m: {provider: p, capabilities: [], max_context: 1, cost_per_1k: {input: 0, output: 0}}
actions:
  a: {description: d, requires: []}
routing:
  a:
    default: []
`,
			want: "empty chain",
		},
		{
			name: "undeclared model",
			catalog: `
models: {}
actions:
  a: {description: d, requires: []}
routing:
  a:
    default: [ghost]
`,
			want: `undeclared model "ghost"`,
		},
		{
			name: "undeclared action",
			catalog: `
models:
  m: {provider: p, capabilities: [], max_context: 1, cost_per_1k: {input: 0, output: 0}}
actions: {}
routing:
  a:
    default: [m]
`,
			want: `undeclared action "a"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.catalog))
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_AllOffendersEnumerated(t *testing.T) {
	catalog := `
models: {}
actions:
  a: {description: d, requires: []}
routing:
  a:
    default: []
  b:
    quality: [ghost]
`
	_, err := Parse([]byte(catalog))
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	// Empty chain, undeclared action b, b's missing default, b's ghost model.
	assert.GreaterOrEqual(t, len(ve.Problems), 4)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("models: ["))
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/catalog.yaml")
	assert.ErrorIs(t, err, ErrCatalogNotFound)
}
