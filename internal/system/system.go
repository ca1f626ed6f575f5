package system

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/openbootdotdev/devenv/internal/logging"
)

func IsMacOS() bool {
	return runtime.GOOS == "darwin"
}

// IsXcodeCliInstalled reports whether xcode-select points at a developer
// directory. Homebrew needs the command line tools on macOS.
func IsXcodeCliInstalled() bool {
	return exec.Command("xcode-select", "-p").Run() == nil
}

// HasTTY reports whether a controlling terminal can be opened for prompts,
// even when stdin or stdout are redirected.
func HasTTY() bool {
	f, err := os.Open("/dev/tty")
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// Hostname returns the machine name recorded in exports, or "unknown".
func Hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "unknown"
	}
	return name
}

// OpenCommand returns the command that hands target to the desktop's default
// handler. editor, when set, names the application to use instead.
func OpenCommand(target, editor string) (string, []string) {
	switch {
	case editor != "" && IsMacOS():
		return "open", []string{"-a", editor, target}
	case editor != "":
		return editor, []string{target}
	case IsMacOS():
		return "open", []string{target}
	}
	return "xdg-open", []string{target}
}

// Open starts the handler for target without waiting for it to exit.
func Open(target, editor string) error {
	if editor != "" {
		if _, err := os.Stat(editor); err != nil {
			return fmt.Errorf("Editor not found: %s", editor)
		}
	}
	name, args := OpenCommand(target, editor)
	logging.LogCommand(name, args)

	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		if editor != "" {
			return fmt.Errorf("Failed to open file with editor: %w", err)
		}
		return fmt.Errorf("Failed to open file: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
