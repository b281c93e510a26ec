package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads, parses, and validates the catalog file. A validation failure is
// fatal to the caller and enumerates every offender at once.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrCatalogNotFound, path)
		}
		return nil, err
	}
	return Parse(data)
}

// Parse builds a Registry from raw catalog YAML.
func Parse(data []byte) (*Registry, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	// Back-fill map keys into the configs so they carry their own names.
	for id, m := range file.Models {
		m.ModelID = id
		file.Models[id] = m
	}
	for name, a := range file.Actions {
		a.Name = name
		file.Actions[name] = a
	}

	reg := &Registry{
		models:  file.Models,
		actions: file.Actions,
		routing: file.Routing,
	}
	if reg.models == nil {
		reg.models = map[string]ModelConfig{}
	}
	if reg.actions == nil {
		reg.actions = map[string]ActionConfig{}
	}
	if reg.routing == nil {
		reg.routing = map[string]map[string][]string{}
	}

	if err := newValidator(reg).validateAll(); err != nil {
		return nil, err
	}
	return reg, nil
}
