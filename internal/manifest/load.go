package manifest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Conventional recipe filename at the project root.
const DefaultFilename = "kiln.yaml"

// Reads and parses a recipe file.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading recipe: %w", err)
	}

	recipe, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return recipe, nil
}

// Parses recipe YAML and validates the result.
//
// Unknown fields are rejected so that typos in step names surface as parse
// errors instead of silently dropped steps.
func Parse(data []byte) (*Recipe, error) {
	var recipe Recipe
	if err := yaml.UnmarshalStrict(data, &recipe); err != nil {
		return nil, fmt.Errorf("parsing recipe: %w", err)
	}

	if err := recipe.Validate(); err != nil {
		return nil, err
	}

	return &recipe, nil
}
