package catalog

import (
	"fmt"
	"sort"
)

// validator checks catalog consistency. Unlike request-time errors, problems
// here accumulate so a single startup failure reports every offender.
type validator struct {
	reg      *Registry
	problems []string
}

func newValidator(reg *Registry) *validator {
	return &validator{reg: reg}
}

func (v *validator) validateAll() error {
	v.validateRoutedActionsDeclared()
	v.validateChains()
	v.validateDefaultStrategies()

	if len(v.problems) > 0 {
		sort.Strings(v.problems)
		return &ValidationError{Problems: v.problems}
	}
	return nil
}

func (v *validator) addf(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

// validateRoutedActionsDeclared checks every routed action exists in actions.
func (v *validator) validateRoutedActionsDeclared() {
	for action := range v.reg.routing {
		if _, ok := v.reg.actions[action]; !ok {
			v.addf("routing references undeclared action %q", action)
		}
	}
}

// validateChains checks that chains are non-empty, reference declared models,
// and that every model in a chain covers the action's required capabilities.
func (v *validator) validateChains() {
	for action, strategies := range v.reg.routing {
		required := v.reg.actions[action].Requires

		for strategy, chain := range strategies {
			if len(chain) == 0 {
				v.addf("action %q strategy %q has an empty chain", action, strategy)
				continue
			}
			for _, modelID := range chain {
				model, ok := v.reg.models[modelID]
				if !ok {
					v.addf("action %q strategy %q references undeclared model %q", action, strategy, modelID)
					continue
				}
				for _, capability := range required {
					if !model.HasCapability(capability) {
						v.addf("model %q in action %q strategy %q lacks required capabilities: missing %q",
							modelID, action, strategy, capability)
					}
				}
			}
		}
	}
}

// validateDefaultStrategies checks every routed action declares a default
// strategy, which is the router's cross-strategy fallback target.
func (v *validator) validateDefaultStrategies() {
	for action, strategies := range v.reg.routing {
		if _, ok := strategies[DefaultStrategy]; !ok {
			v.addf("action %q does not declare a %q strategy", action, DefaultStrategy)
		}
	}
}
