package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/openbootdotdev/devenv/internal/brew"
	"github.com/openbootdotdev/devenv/internal/config"
	"github.com/openbootdotdev/devenv/internal/system"
	"github.com/openbootdotdev/devenv/internal/ui"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check system health and diagnose issues",
	Long: `Run diagnostic checks on the environment devenv depends on.

Checks performed:
- Homebrew installation and health
- Xcode Command Line Tools (macOS)
- Config, cache and state directories
- Settings file, download directory, editor and proxy
- GitHub token for release lookups`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDoctor(cmd.Context(), cmd.OutOrStdout())
	},
}

type checkResult struct {
	name    string
	status  string
	message string
}

func runDoctor(ctx context.Context, w io.Writer) error {
	fmt.Fprintln(w)
	ui.Header("devenv doctor")
	fmt.Fprintln(w)

	var results []checkResult
	var issues int

	results = append(results, checkHomebrew(ctx)...)
	results = append(results, checkXcode()...)
	results = append(results, checkDirectories(cur.dirs)...)
	results = append(results, checkSettings(cur.settings, cur.settingsErr)...)

	for _, r := range results {
		switch r.status {
		case "ok":
			fmt.Fprintf(w, "  %s %s\n", ui.Green("✓"), r.name)
		case "warn":
			fmt.Fprintf(w, "  %s %s: %s\n", ui.Yellow("!"), r.name, r.message)
			issues++
		case "error":
			fmt.Fprintf(w, "  %s %s: %s\n", ui.Red("✗"), r.name, r.message)
			issues++
		case "info":
			fmt.Fprintf(w, "  %s %s: %s\n", ui.Cyan("i"), r.name, r.message)
		}
	}

	if brew.IsInstalled() {
		suggestions, _ := brew.DoctorDiagnose(ctx)
		if len(suggestions) > 0 {
			fmt.Fprintln(w)
			ui.Info("Suggested fixes:")
			for _, s := range suggestions {
				fmt.Fprintf(w, "    %s\n", s)
			}
		}
	}

	fmt.Fprintln(w)
	if issues == 0 {
		ui.Success("All checks passed! Your environment is healthy.")
	} else {
		ui.Muted(fmt.Sprintf("Found %d issue(s). Run 'devenv settings' to review the configuration.", issues))
	}
	fmt.Fprintln(w)
	return nil
}

func checkHomebrew(ctx context.Context) []checkResult {
	if _, err := exec.LookPath("brew"); err != nil {
		return []checkResult{{
			name:    "Homebrew",
			status:  "warn",
			message: "not installed (brew install methods are unavailable)",
		}}
	}
	results := []checkResult{{name: "Homebrew installed", status: "ok"}}

	output, err := exec.CommandContext(ctx, "brew", "--version").Output()
	if err != nil || len(output) == 0 {
		results = append(results, checkResult{
			name:    "Homebrew health",
			status:  "warn",
			message: "run 'brew doctor' for details",
		})
	}
	return results
}

func checkXcode() []checkResult {
	if !system.IsMacOS() {
		return nil
	}
	if !system.IsXcodeCliInstalled() {
		return []checkResult{{
			name:    "Xcode Command Line Tools",
			status:  "error",
			message: "not installed (run 'xcode-select --install')",
		}}
	}
	return []checkResult{{name: "Xcode Command Line Tools", status: "ok"}}
}

func checkDirectories(dirs config.Dirs) []checkResult {
	var results []checkResult
	for _, d := range []struct{ name, path string }{
		{"Config directory", dirs.Config},
		{"Cache directory", dirs.Cache},
		{"State directory", dirs.State},
	} {
		info, err := os.Stat(d.path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			results = append(results, checkResult{name: d.name, status: "info", message: d.path + " (created on first use)"})
		case err != nil:
			results = append(results, checkResult{name: d.name, status: "error", message: err.Error()})
		case !info.IsDir():
			results = append(results, checkResult{name: d.name, status: "error", message: d.path + " is not a directory"})
		case !writable(d.path):
			results = append(results, checkResult{name: d.name, status: "error", message: d.path + " is not writable"})
		default:
			results = append(results, checkResult{name: d.name, status: "ok"})
		}
	}
	return results
}

func writable(dir string) bool {
	f, err := os.CreateTemp(dir, ".devenv-doctor-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	_ = os.Remove(name)
	return true
}

func checkSettings(s config.Settings, loadErr error) []checkResult {
	if loadErr != nil {
		return []checkResult{{name: "Settings", status: "error", message: loadErr.Error()}}
	}
	results := []checkResult{{name: "Settings loaded", status: "ok"}}

	if err := config.ValidateDownloadPath(config.DownloadDir(s)); err != nil {
		results = append(results, checkResult{name: "Download directory", status: "warn", message: err.Error()})
	} else {
		results = append(results, checkResult{name: "Download directory", status: "ok"})
	}

	if s.DefaultEditor != "" {
		if err := config.ValidateEditorPath(s.DefaultEditor); err != nil {
			results = append(results, checkResult{name: "Editor", status: "warn", message: err.Error()})
		} else {
			results = append(results, checkResult{name: "Editor " + filepath.Base(s.DefaultEditor), status: "ok"})
		}
	}

	if s.Proxy.Enabled {
		if err := config.ValidateProxyURL(s.Proxy.URL, s.Proxy.Type); err != nil {
			results = append(results, checkResult{name: "Proxy", status: "error", message: err.Error()})
		} else {
			name, _, _ := s.Proxy.EnvVar()
			results = append(results, checkResult{name: fmt.Sprintf("Proxy (%s)", name), status: "ok"})
		}
	}

	if s.GitHubToken == "" {
		results = append(results, checkResult{
			name:    "GitHub token",
			status:  "info",
			message: "not set (GitHub release lookups are rate limited; see github_token)",
		})
	} else {
		results = append(results, checkResult{name: "GitHub token", status: "ok"})
	}
	return results
}
