package brew

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbootdotdev/devenv/testutil"
)

// setupFakeBrew installs a fake brew that appends its arguments and any
// HTTP_PROXY value to a log file, then runs script.
func setupFakeBrew(t *testing.T, script string) string {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "brew.log")
	testutil.FakeExecutable(t, "brew", "#!/bin/sh\n"+
		"echo \"$* proxy=$HTTP_PROXY noupdate=$HOMEBREW_NO_AUTO_UPDATE\" >> "+logPath+"\n"+
		script)
	return logPath
}

func readLog(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestAvailable_NoBrew(t *testing.T) {
	testutil.IsolatedPATH(t)
	err := Available()
	assert.ErrorIs(t, err, ErrNotInstalled)
	assert.Equal(t, "Homebrew not found. Please install from https://brew.sh", err.Error())
}

func TestInstallFormula_PassesEnv(t *testing.T) {
	logPath := setupFakeBrew(t, "exit 0\n")

	err := InstallFormula(context.Background(), "fish", "HTTP_PROXY=http://127.0.0.1:7890")
	require.NoError(t, err)

	lines := readLog(t, logPath)
	require.Len(t, lines, 1)
	assert.Equal(t, "install fish proxy=http://127.0.0.1:7890 noupdate=1", lines[0])
}

func TestInstallCask_Failure(t *testing.T) {
	setupFakeBrew(t, "echo 'Error: No available formula with the name \"nope\"'\nexit 1\n")

	err := InstallCask(context.Background(), "nope")
	require.Error(t, err)

	var installErr *InstallError
	require.True(t, errors.As(err, &installErr))
	assert.Equal(t, "nope", installErr.Package)
	assert.Equal(t, "package not found", installErr.Reason)
	assert.Equal(t, "failed to install nope: package not found", err.Error())
}

func TestInstallSmart_FallsBackToFormula(t *testing.T) {
	logPath := setupFakeBrew(t, "if [ \"$2\" = \"--cask\" ]; then\n"+
		"  echo 'Error: No cask with this name'\n"+
		"  exit 1\n"+
		"fi\n"+
		"exit 0\n")

	err := InstallSmart(context.Background(), "node")
	require.NoError(t, err)

	lines := readLog(t, logPath)
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "install --cask node"))
	assert.True(t, strings.HasPrefix(lines[1], "install node"))
}

func TestInstallSmart_CaskSucceeds(t *testing.T) {
	logPath := setupFakeBrew(t, "exit 0\n")

	require.NoError(t, InstallSmart(context.Background(), "wezterm"))
	assert.Len(t, readLog(t, logPath), 1)
}

func TestInstall_RetriesTransientFailure(t *testing.T) {
	old := retryDelay
	retryDelay = time.Millisecond
	t.Cleanup(func() { retryDelay = old })

	logPath := setupFakeBrew(t, "echo 'Error: The request timed out'\nexit 1\n")

	err := InstallFormula(context.Background(), "tmux")
	require.Error(t, err)
	assert.Len(t, readLog(t, logPath), maxAttempts)
}

func TestTap(t *testing.T) {
	logPath := setupFakeBrew(t, "exit 0\n")

	require.NoError(t, Tap(context.Background(), "nikitabobko/tap"))
	lines := readLog(t, logPath)
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "tap nikitabobko/tap"))
}

func TestListCasksAndFormulae(t *testing.T) {
	setupFakeBrew(t, "if [ \"$1\" = \"list\" ] && [ \"$2\" = \"--formula\" ]; then\n"+
		"  echo git\n"+
		"  echo curl\n"+
		"  exit 0\n"+
		"fi\n"+
		"if [ \"$1\" = \"list\" ] && [ \"$2\" = \"--cask\" ]; then\n"+
		"  echo firefox\n"+
		"  echo\n"+
		"  echo wezterm\n"+
		"  exit 0\n"+
		"fi\n"+
		"exit 0\n")

	formulae, err := ListFormulae(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"git": true, "curl": true}, formulae)

	casks, err := ListCasks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"firefox": true, "wezterm": true}, casks)
}

func TestListCasks_Failure(t *testing.T) {
	setupFakeBrew(t, "exit 1\n")
	_, err := ListCasks(context.Background())
	assert.Error(t, err)
}

func TestDoctorDiagnose_Suggestions(t *testing.T) {
	setupFakeBrew(t, "if [ \"$1\" = \"doctor\" ]; then\n"+
		"  echo 'Warning: unbrewed header files were found'\n"+
		"  echo 'Warning: broken symlinks detected'\n"+
		"  exit 0\n"+
		"fi\n"+
		"exit 0\n")

	suggestions, err := DoctorDiagnose(context.Background())
	require.NoError(t, err)
	assert.Contains(t, suggestions, "Run: sudo rm -rf /usr/local/include")
	assert.Contains(t, suggestions, "Run: brew cleanup --prune=all")
}

func TestDoctorDiagnose_ReadyToBrew(t *testing.T) {
	setupFakeBrew(t, "if [ \"$1\" = \"doctor\" ]; then\n  echo 'Your system is ready to brew.'\n  exit 0\nfi\nexit 0\n")
	suggestions, err := DoctorDiagnose(context.Background())
	require.NoError(t, err)
	assert.Nil(t, suggestions)
}

func TestDoctorDiagnose_Failure(t *testing.T) {
	setupFakeBrew(t, "if [ \"$1\" = \"doctor\" ]; then\n  exit 1\nfi\nexit 0\n")
	_, err := DoctorDiagnose(context.Background())
	assert.Error(t, err)
}

func TestDoctorDiagnose_MultipleWarnings(t *testing.T) {
	setupFakeBrew(t, "if [ \"$1\" = \"doctor\" ]; then\n"+
		"  echo 'Warning: Unbrewed dylibs were found in /usr/local/lib'\n"+
		"  echo 'Warning: Your Homebrew/homebrew/core tap is not a full clone'\n"+
		"  echo 'Warning: Git origin remote mismatch'\n"+
		"  echo 'Warning: Uncommitted modifications to Homebrew'\n"+
		"  echo 'Warning: outdated Xcode command line tools'\n"+
		"  echo 'Warning: Broken symlinks were found'\n"+
		"  echo 'Warning: permission issues'\n"+
		"  exit 0\n"+
		"fi\n"+
		"exit 0\n")
	suggestions, err := DoctorDiagnose(context.Background())
	require.NoError(t, err)
	assert.Contains(t, suggestions, "Run: brew doctor --list-checks and review linked libraries")
	assert.Contains(t, suggestions, "Run: brew untap homebrew/core homebrew/cask")
	assert.Contains(t, suggestions, "Run: brew update-reset")
	assert.Contains(t, suggestions, "Run: xcode-select --install")
	assert.Contains(t, suggestions, "Run: brew cleanup --prune=all")
	assert.Contains(t, suggestions, "Run: sudo chown -R $(whoami) $(brew --prefix)/*")
}

func TestDoctorDiagnose_UnknownWarnings(t *testing.T) {
	setupFakeBrew(t, "if [ \"$1\" = \"doctor\" ]; then\n"+
		"  echo 'Warning: Some unknown issue'\n"+
		"  exit 0\n"+
		"fi\n"+
		"exit 0\n")
	suggestions, err := DoctorDiagnose(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Run: brew doctor (to see full diagnostic output)"}, suggestions)
}

func TestBrewInstallCmd_SetsNoAutoUpdate(t *testing.T) {
	cmd := brewInstallCmd(context.Background(), []string{"HTTPS_PROXY=https://proxy:8080"}, "install", "git")
	assert.Equal(t, []string{"brew", "install", "git"}, cmd.Args)
	assert.Contains(t, cmd.Env, "HOMEBREW_NO_AUTO_UPDATE=1")
	assert.Contains(t, cmd.Env, "HTTPS_PROXY=https://proxy:8080")
}
