package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/openbootdotdev/devenv/internal/brew"
	"github.com/openbootdotdev/devenv/internal/logging"
	"github.com/openbootdotdev/devenv/internal/software"
	"github.com/openbootdotdev/devenv/internal/tools"
)

// chooseMethod picks the first install method this machine can run. Brew
// methods are passed over when brew is missing.
func chooseMethod(t tools.Template) (tools.InstallMethod, error) {
	if len(t.InstallMethods) == 0 {
		return tools.InstallMethod{}, fmt.Errorf("no install method defined for %s", t.ID)
	}

	brewMissing := false
	for _, m := range t.InstallMethods {
		switch m.Type {
		case tools.MethodBrew:
			if !brew.IsInstalled() {
				brewMissing = true
				continue
			}
			return m, nil
		case tools.MethodScript:
			if len(m.ScriptCommands) > 0 {
				return m, nil
			}
		case tools.MethodDMG:
			if m.DMGURL != "" {
				return m, nil
			}
		}
	}
	if brewMissing {
		return tools.InstallMethod{}, brew.ErrNotInstalled
	}
	return tools.InstallMethod{}, fmt.Errorf("no supported install method for %s", t.ID)
}

func install(ctx context.Context, t tools.Template, m tools.InstallMethod, opts Options) error {
	switch m.Type {
	case tools.MethodBrew:
		return installBrew(ctx, t, m, opts.Env)
	case tools.MethodScript:
		return runScript(ctx, m.ScriptCommands, opts)
	case tools.MethodDMG:
		_, err := downloadAndOpen(ctx, m.DMGURL, opts)
		return err
	}
	return fmt.Errorf("unknown install method %q", m.Type)
}

func installBrew(ctx context.Context, t tools.Template, m tools.InstallMethod, env []string) error {
	if m.BrewTap != "" {
		if err := brew.Tap(ctx, m.BrewTap, env...); err != nil {
			return err
		}
	}
	switch {
	case m.BrewCaskName != "":
		// Several builtins name formulae here, so fall back to a formula.
		return brew.InstallSmart(ctx, m.BrewCaskName, env...)
	case m.BrewFormulaName != "":
		return brew.InstallFormula(ctx, m.BrewFormulaName, env...)
	default:
		return brew.InstallSmart(ctx, t.Executable, env...)
	}
}

func runScript(ctx context.Context, commands []string, opts Options) error {
	out := opts.output()
	for i, command := range commands {
		logging.LogCommand("sh", []string{"-c", command})
		fmt.Fprintf(out, "[%d/%d] %s\n", i+1, len(commands), command)

		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		cmd.Env = append(os.Environ(), opts.Env...)
		cmd.Stdout = out
		cmd.Stderr = out
		if err := cmd.Run(); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return fmt.Errorf("Command failed with exit code %d: %s", exitErr.ExitCode(), command)
			}
			return fmt.Errorf("failed to run command %q: %w", command, err)
		}
	}
	return nil
}

// downloadAndOpen fetches url into the download directory and hands it to
// `open`, which mounts disk images and unpacks archives in Finder.
func downloadAndOpen(ctx context.Context, url string, opts Options) (string, error) {
	if opts.DownloadDir == "" {
		return "", errors.New("no download directory configured")
	}
	path, err := software.Download(ctx, url, opts.DownloadDir, nil)
	if err != nil {
		return "", err
	}
	if err := exec.CommandContext(ctx, "open", path).Run(); err != nil {
		return path, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return path, nil
}
