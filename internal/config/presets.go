package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Preset is a reusable refinement request: a named instruction plus an
// optional delivery style hint.
type Preset struct {
	Name        string `yaml:"name"`
	Instruction string `yaml:"instruction"`
	Style       string `yaml:"style,omitempty"`
}

// DefaultPresets returns the built-in refinement presets used when no
// presets file is configured.
func DefaultPresets() []Preset {
	return []Preset{
		{Name: "shorter", Instruction: "Make this line shorter while keeping the meaning"},
		{Name: "natural", Instruction: "Rephrase this line so it sounds like natural spoken dialogue"},
		{Name: "formal", Instruction: "Rewrite this line in a more formal register", Style: "formal"},
		{Name: "dramatic", Instruction: "Give this line more emotional weight", Style: "dramatic"},
	}
}

// LoadPresets reads refinement presets from a YAML file. An empty path
// returns the built-in defaults.
func LoadPresets(path string) ([]Preset, error) {
	if path == "" {
		return DefaultPresets(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load presets: %w", err)
	}

	var presets []Preset
	if err := yaml.Unmarshal(data, &presets); err != nil {
		return nil, fmt.Errorf("failed to parse presets: %w", err)
	}

	for i, p := range presets {
		if p.Name == "" {
			return nil, fmt.Errorf("preset %d has no name", i)
		}
		if p.Instruction == "" {
			return nil, fmt.Errorf("preset %q has no instruction", p.Name)
		}
	}
	return presets, nil
}
