package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/mitchellh/go-homedir"

	"github.com/openbootdotdev/devenv/internal/software"
	"github.com/openbootdotdev/devenv/internal/state"
)

// AppName names the per-user directories.
const AppName = "dev-env-helper"

const (
	SettingsFileName     = "settings.toml"
	InstallStateFileName = "install_state.json"
)

// Dirs holds the application's per-user directories.
type Dirs struct {
	Config string
	Cache  string
	State  string
}

// DefaultDirs resolves the directories from the XDG base directory
// variables. Call xdg.Reload first when those variables changed at runtime.
func DefaultDirs() Dirs {
	return Dirs{
		Config: filepath.Join(xdg.ConfigHome, AppName),
		Cache:  filepath.Join(xdg.CacheHome, AppName),
		State:  filepath.Join(xdg.StateHome, AppName),
	}
}

func (d Dirs) SettingsFile() string { return filepath.Join(d.Config, SettingsFileName) }
func (d Dirs) CustomTemplates() string { return filepath.Join(d.Config, "custom-templates") }
func (d Dirs) SoftwareOverride() string { return filepath.Join(d.Config, software.OverrideFileName) }
func (d Dirs) StateFile() string { return filepath.Join(d.State, state.FileName) }
func (d Dirs) InstallStateFile() string { return filepath.Join(d.State, InstallStateFileName) }
func (d Dirs) ReleaseCache() string { return filepath.Join(d.Cache, "github-releases") }
func (d Dirs) LogDir() string { return d.State }

// DownloadDir is the configured download path, else the user's XDG
// download directory, else ~/Downloads.
func DownloadDir(s Settings) string {
	if s.DownloadPath != "" {
		return expand(s.DownloadPath)
	}
	if xdg.UserDirs.Download != "" {
		return xdg.UserDirs.Download
	}
	home, err := homedir.Dir()
	if err != nil {
		return "Downloads"
	}
	return filepath.Join(home, "Downloads")
}
