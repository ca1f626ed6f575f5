package brew

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/openbootdotdev/devenv/internal/logging"
)

var ErrNotInstalled = errors.New("Homebrew not found. Please install from https://brew.sh")

// retryDelay is the pause before retrying a transient failure.
var retryDelay = 2 * time.Second

const maxAttempts = 2

// InstallError describes a failed brew invocation with a short reason.
type InstallError struct {
	Package string
	Reason  string
	Err     error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("failed to install %s: %s", e.Package, e.Reason)
}

func (e *InstallError) Unwrap() error { return e.Err }

func IsInstalled() bool {
	_, err := exec.LookPath("brew")
	return err == nil
}

// Available returns ErrNotInstalled when brew is not on PATH.
func Available() error {
	if !IsInstalled() {
		return ErrNotInstalled
	}
	return nil
}

func brewInstallCmd(ctx context.Context, env []string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "brew", args...)
	cmd.Env = append(os.Environ(), "HOMEBREW_NO_AUTO_UPDATE=1")
	cmd.Env = append(cmd.Env, env...)
	return cmd
}

func run(ctx context.Context, pkg string, env []string, args ...string) error {
	if err := Available(); err != nil {
		return err
	}
	log := logging.GetLogger("brew")

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		logging.LogCommand("brew", args)
		cmd := brewInstallCmd(ctx, env, args...)
		output, err := cmd.CombinedOutput()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		reason := parseBrewError(string(output))
		lastErr = &InstallError{Package: pkg, Reason: reason, Err: err}
		if !isRetryableError(reason) || attempt == maxAttempts {
			break
		}
		log.Info().Str("package", pkg).Str("reason", reason).Msg("retrying brew command")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return lastErr
}

func InstallFormula(ctx context.Context, name string, env ...string) error {
	return run(ctx, name, env, "install", name)
}

func InstallCask(ctx context.Context, name string, env ...string) error {
	return run(ctx, name, env, "install", "--cask", name)
}

// InstallSmart tries the name as a cask first and falls back to a formula.
func InstallSmart(ctx context.Context, name string, env ...string) error {
	if err := InstallCask(ctx, name, env...); err != nil {
		if errors.Is(err, ErrNotInstalled) || ctx.Err() != nil {
			return err
		}
		return InstallFormula(ctx, name, env...)
	}
	return nil
}

func Tap(ctx context.Context, tap string, env ...string) error {
	return run(ctx, tap, env, "tap", tap)
}

func ListCasks(ctx context.Context) (map[string]bool, error) {
	return list(ctx, "--cask")
}

func ListFormulae(ctx context.Context) (map[string]bool, error) {
	return list(ctx, "--formula")
}

func list(ctx context.Context, kind string) (map[string]bool, error) {
	if err := Available(); err != nil {
		return nil, err
	}
	output, err := exec.CommandContext(ctx, "brew", "list", kind, "-1").Output()
	if err != nil {
		return nil, fmt.Errorf("brew list %s: %w", kind, err)
	}
	names := make(map[string]bool)
	scanner := bufio.NewScanner(strings.NewReader(string(output)))
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			names[name] = true
		}
	}
	return names, nil
}

// DoctorDiagnose runs `brew doctor` and maps known warnings to suggested fixes.
func DoctorDiagnose(ctx context.Context) ([]string, error) {
	if err := Available(); err != nil {
		return nil, err
	}
	output, err := exec.CommandContext(ctx, "brew", "doctor").CombinedOutput()
	outStr := string(output)
	if err != nil && !strings.Contains(outStr, "Warning") {
		return nil, fmt.Errorf("brew doctor: %w", err)
	}
	if strings.Contains(outStr, "Your system is ready to brew") {
		return nil, nil
	}

	var suggestions []string
	add := func(s string) {
		for _, existing := range suggestions {
			if existing == s {
				return
			}
		}
		suggestions = append(suggestions, s)
	}

	lower := strings.ToLower(outStr)
	if strings.Contains(lower, "unbrewed header files") {
		add("Run: sudo rm -rf /usr/local/include")
	}
	if strings.Contains(lower, "unbrewed dylibs") {
		add("Run: brew doctor --list-checks and review linked libraries")
	}
	if strings.Contains(lower, "not a full clone") {
		add("Run: brew untap homebrew/core homebrew/cask")
	}
	if strings.Contains(lower, "origin remote") || strings.Contains(lower, "uncommitted modifications") {
		add("Run: brew update-reset")
	}
	if strings.Contains(lower, "xcode") || strings.Contains(lower, "command line tools") {
		add("Run: xcode-select --install")
	}
	if strings.Contains(lower, "broken symlinks") {
		add("Run: brew cleanup --prune=all")
	}
	if strings.Contains(lower, "permission") {
		add("Run: sudo chown -R $(whoami) $(brew --prefix)/*")
	}
	if len(suggestions) == 0 && strings.Contains(outStr, "Warning") {
		add("Run: brew doctor (to see full diagnostic output)")
	}
	return suggestions, nil
}

// parseBrewError reduces brew output to a short, user-facing reason.
// An empty result means the output is not an error.
func parseBrewError(output string) string {
	lower := strings.ToLower(output)

	switch {
	case strings.Contains(lower, "already installed"):
		return ""
	case strings.Contains(lower, "no available formula") || strings.Contains(lower, "no formulae or casks found") ||
		strings.Contains(lower, "no cask with this name"):
		return "package not found"
	case strings.Contains(lower, "no internet") || strings.Contains(lower, "could not resolve host"):
		return "no internet connection"
	case strings.Contains(lower, "connection refused"):
		return "connection refused"
	case strings.Contains(lower, "timed out"):
		return "connection timed out"
	case strings.Contains(lower, "permission denied"):
		return "permission denied"
	case strings.Contains(lower, "disk full") || strings.Contains(lower, "no space left"):
		return "disk full"
	case strings.Contains(lower, "sha256 mismatch"):
		return "download corrupted"
	case strings.Contains(lower, "depends on") || strings.Contains(lower, "dependency"):
		return "dependency error"
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Error:") {
			if len(line) > 60 {
				return line[:60] + "..."
			}
			return line
		}
	}
	return "unknown error"
}

func isRetryableError(reason string) bool {
	lower := strings.ToLower(reason)
	for _, s := range []string{
		"connection timed out",
		"connection refused",
		"no internet connection",
		"download corrupted",
		"already running",
		"cannot download",
		"signature mismatch",
	} {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
