package installer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// InstallState records what earlier runs installed so an interrupted batch
// can resume where it stopped.
type InstallState struct {
	LastUpdated       time.Time       `json:"last_updated"`
	InstalledTools    map[string]bool `json:"installed_tools"`
	InstalledSoftware map[string]bool `json:"installed_software"`

	path string
}

func newInstallState(path string) *InstallState {
	return &InstallState{
		LastUpdated:       time.Now(),
		InstalledTools:    make(map[string]bool),
		InstalledSoftware: make(map[string]bool),
		path:              path,
	}
}

// LoadState reads path. An empty path gives a state that is never written.
func LoadState(path string) (*InstallState, error) {
	if path == "" {
		return newInstallState(""), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return newInstallState(path), nil
		}
		return newInstallState(path), err
	}

	var state InstallState
	if err := json.Unmarshal(data, &state); err != nil {
		return newInstallState(path), err
	}
	state.path = path

	if state.InstalledTools == nil {
		state.InstalledTools = make(map[string]bool)
	}
	if state.InstalledSoftware == nil {
		state.InstalledSoftware = make(map[string]bool)
	}

	return &state, nil
}

func (s *InstallState) save() error {
	if s.path == "" {
		return nil
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	s.LastUpdated = time.Now()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

func (s *InstallState) markTool(id string) error {
	s.InstalledTools[id] = true
	return s.save()
}

func (s *InstallState) markSoftware(id string) error {
	s.InstalledSoftware[id] = true
	return s.save()
}

func (s *InstallState) IsToolInstalled(id string) bool {
	return s.InstalledTools[id]
}

func (s *InstallState) IsSoftwareInstalled(id string) bool {
	return s.InstalledSoftware[id]
}
