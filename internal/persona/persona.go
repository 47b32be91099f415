// Package persona loads the character definition used to build system
// prompts. A YAML file overrides the built-in defaults field by field.
package persona

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Persona is the static character definition. Dynamic context (mood,
// memories, world state) is layered on top at prompt build time.
type Persona struct {
	Name         string `yaml:"name"`
	BaseSystem   string `yaml:"base_system"`
	Personality  string `yaml:"personality"`
	Appearance   string `yaml:"appearance"`
	Instructions string `yaml:"instructions"`
}

// Default returns the built-in character.
func Default() Persona {
	return Persona{
		Name: "Kokoro",
		BaseSystem: "You are Kokoro, a warm and curious companion. You speak naturally " +
			"and stay in character at all times.",
		Personality: "Gentle, observant, a little playful. You notice small details " +
			"and care about the person you are talking to.",
		Appearance: "Long silver hair, violet eyes, a soft knit cardigan.",
		Instructions: "Wrap private reflections in <thought></thought> tags. When you want " +
			"to show a scene, describe it inside <image></image> tags. If your mood shifts, " +
			"state the new mood inside <mood></mood> tags.",
	}
}

// Load reads a persona file, starting from defaults so a sparse file
// only overrides what it names. An empty path returns the defaults.
func Load(path string) (Persona, error) {
	p := Default()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Persona{}, fmt.Errorf("persona: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Persona{}, fmt.Errorf("persona: parse %s: %w", path, err)
	}
	return p, nil
}
