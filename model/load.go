package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load parses a model definition from YAML and validates it.
func Load(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("model: parse definition: %w", err)
	}
	if err := Validate(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadFile reads and parses a model definition file.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("model: read definition: %w", err)
	}
	return Load(data)
}

// Validate checks a definition for inconsistencies the resolver cannot
// recover from at request time.
func Validate(def *Definition) error {
	if def.Name == "" {
		return fmt.Errorf("model: definition has no name")
	}
	seen := make(map[string]bool)
	for _, e := range def.Elements {
		if e.Field == "" {
			continue // tolerated, the introspector skips them
		}
		if seen[e.Field] {
			return fmt.Errorf("model: %s: duplicate element field %q", def.Name, e.Field)
		}
		seen[e.Field] = true
		if e.Owner && e.JoinField == "" {
			return fmt.Errorf("model: %s: owner element %q has no joinField", def.Name, e.Field)
		}
		if e.DefaultEnum != "" {
			if _, ok := def.Enums[e.DefaultEnum]; !ok {
				return fmt.Errorf("model: %s: element %q references unknown enum %q", def.Name, e.Field, e.DefaultEnum)
			}
		}
	}
	for _, f := range def.Forms {
		if f.Form == "" {
			return fmt.Errorf("model: %s: form has no name", def.Name)
		}
		for _, o := range f.Outcomes {
			if o.Type == "" {
				return fmt.Errorf("model: %s: form %q has an unnamed outcome", def.Name, f.Form)
			}
			for field := range o.State {
				if !seen[field] {
					return fmt.Errorf("model: %s: outcome %s/%s forces unknown field %q", def.Name, f.Form, o.Type, field)
				}
			}
		}
	}
	return nil
}
