package seed

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yml
var presetsYAML []byte

// Preset describes a named seeding profile.
type Preset struct {
	Description string `yaml:"description"`
	Users       int    `yaml:"users"`
	Flats       int    `yaml:"flats"`
	Clean       bool   `yaml:"clean"`
}

type presetFile struct {
	Presets map[string]Preset `yaml:"presets"`
}

// LoadPresets parses the embedded preset definitions.
func LoadPresets() (map[string]Preset, error) {
	var file presetFile
	if err := yaml.Unmarshal(presetsYAML, &file); err != nil {
		return nil, fmt.Errorf("parsing presets: %w", err)
	}
	return file.Presets, nil
}

// PresetNames returns the available preset names, sorted.
func PresetNames() []string {
	presets, err := LoadPresets()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyPreset runs the seeder with the named preset's parameters.
func (s *Seeder) ApplyPreset(name string) error {
	presets, err := LoadPresets()
	if err != nil {
		return err
	}
	preset, ok := presets[name]
	if !ok {
		return fmt.Errorf("unknown preset %q (available: %v)", name, PresetNames())
	}

	if preset.Clean {
		if err := s.ClearAll(); err != nil {
			return err
		}
	}
	return s.Run(preset.Users, preset.Flats)
}
