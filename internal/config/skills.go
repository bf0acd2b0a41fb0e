package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SkillManifestEntry is one skill's descriptive metadata from skills.yaml.
// It carries no handler logic - only what an Agent Card displays.
type SkillManifestEntry struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Categories  []string `yaml:"categories"`
}

// SkillsManifest is the parsed shape of <home>/skills.yaml.
type SkillsManifest struct {
	Skills []SkillManifestEntry `yaml:"skills"`
}

// SkillsManifestPath returns the path to skills.yaml within homeDir.
func SkillsManifestPath(homeDir string) string {
	return filepath.Join(homeDir, "skills.yaml")
}

// LoadSkillsManifest reads skills.yaml from homeDir. A missing file is
// not an error - agents without a manifest just keep the descriptions
// their skills registered with.
func LoadSkillsManifest(homeDir string) (SkillsManifest, error) {
	var manifest SkillsManifest
	data, err := os.ReadFile(SkillsManifestPath(homeDir))
	if err != nil {
		if os.IsNotExist(err) {
			return manifest, nil
		}
		return manifest, fmt.Errorf("read skills.yaml: %w", err)
	}
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return manifest, fmt.Errorf("parse skills.yaml: %w", err)
	}
	return manifest, nil
}
