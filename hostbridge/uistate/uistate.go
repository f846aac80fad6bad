// Package uistate persists the small set of UI preferences spec §6 names
// but leaves unspecified in storage mechanism: panel layout and the recent
// files list. Grounded on the teacher's yaml-backed config load/save idiom
// (cli/internal/config/config.go's Load/Save pair).
package uistate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const maxRecentFiles = 10

// State is the persisted shape, one YAML document per user.
type State struct {
	SidebarCollapsed bool     `yaml:"sidebarCollapsed"`
	RunnerCollapsed  bool     `yaml:"runnerCollapsed"`
	StepsPanelWidth  int      `yaml:"stepsPanelWidth,omitempty"`
	StepsPanelHeight int      `yaml:"stepsPanelHeight,omitempty"`
	RecentFiles      []string `yaml:"recentFiles,omitempty"`
}

// Load reads State from path. A missing file yields the zero State rather
// than an error, since first launch has nothing to load yet.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read UI state from %q: %w", path, err)
	}
	var s State
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse UI state: %w", err)
	}
	return &s, nil
}

// Save writes s to path as YAML.
func (s *State) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal UI state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write UI state to %q: %w", path, err)
	}
	return nil
}

// TouchRecentFile moves path to the front of RecentFiles, deduplicating and
// capping the list at maxRecentFiles.
func (s *State) TouchRecentFile(path string) {
	out := make([]string, 0, maxRecentFiles)
	out = append(out, path)
	for _, p := range s.RecentFiles {
		if p == path {
			continue
		}
		out = append(out, p)
	}
	if len(out) > maxRecentFiles {
		out = out[:maxRecentFiles]
	}
	s.RecentFiles = out
}
