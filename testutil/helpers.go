package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// FakeExecutable writes script as an executable named name into a temporary
// directory and puts that directory first on PATH for the rest of the test.
// It returns the directory so several fakes can share it.
func FakeExecutable(t *testing.T, name, script string) string {
	t.Helper()
	dir := t.TempDir()
	WriteExecutable(t, dir, name, script)
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return dir
}

// WriteExecutable writes an executable script into dir without touching PATH.
func WriteExecutable(t *testing.T, dir, name, script string) string {
	t.Helper()
	if !strings.HasPrefix(script, "#!") {
		script = "#!/bin/sh\n" + script
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("failed to write fake %s: %v", name, err)
	}
	return path
}

// baseUtilities are linked into isolated PATHs so shell scripts keep working
// without exposing the host's developer tools.
var baseUtilities = []string{"sh", "cat", "env", "ls", "mkdir", "rm", "sleep"}

// IsolatedPATH replaces PATH with a fresh temporary directory for fakes,
// followed by a directory linking only baseUtilities from the host.
func IsolatedPATH(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	base := t.TempDir()
	for _, name := range baseUtilities {
		src, err := exec.LookPath(name)
		if err != nil {
			continue
		}
		if err := os.Symlink(src, filepath.Join(base, name)); err != nil {
			t.Fatalf("failed to link %s: %v", name, err)
		}
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+base)
	return dir
}

// IsolatedHome points HOME and the XDG base directories at a temporary directory.
func IsolatedHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(home, ".cache"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(home, ".local", "state"))
	return home
}
