package installer

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbootdotdev/devenv/internal/brew"
	"github.com/openbootdotdev/devenv/internal/software"
	"github.com/openbootdotdev/devenv/internal/tools"
	"github.com/openbootdotdev/devenv/testutil"
)

// fakeBrew puts a brew on an isolated PATH that logs its arguments and
// fails for any argument listed in failFor.
func fakeBrew(t *testing.T, failFor ...string) (binDir, logPath string) {
	t.Helper()
	binDir = testutil.IsolatedPATH(t)
	logPath = filepath.Join(t.TempDir(), "brew.log")

	var script strings.Builder
	script.WriteString("echo \"$*\" >> " + logPath + "\n")
	for _, name := range failFor {
		script.WriteString("case \"$*\" in *\"" + name + "\"*) echo 'Error: No available formula with the name \"" + name + "\"' >&2; exit 1;; esac\n")
	}
	script.WriteString("exit 0\n")
	testutil.WriteExecutable(t, binDir, "brew", script.String())
	return binDir, logPath
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func template(id string, methods []tools.InstallMethod, deps ...string) tools.Template {
	return tools.Template{
		ID: id, Name: id, Executable: id, VersionCommand: "--version",
		VersionParser: tools.ParserStdout, InstallMethods: methods, Dependencies: deps,
	}
}

type recordingReporter struct {
	started  []string
	finished []StepResult
}

func (r *recordingReporter) StepStarted(_, _ int, step Step, _ string) {
	r.started = append(r.started, step.ID())
}

func (r *recordingReporter) StepFinished(_, _ int, res StepResult) {
	r.finished = append(r.finished, res)
}

func TestBuildPlan(t *testing.T) {
	builtins := tools.MustBuiltins().All()

	plan, err := BuildPlan([]string{"uv"}, builtins, map[string]bool{})
	require.NoError(t, err)
	assert.Equal(t, []string{"python", "uv"}, plan.IDs())
	assert.True(t, plan.Steps[0].Dependency)
	assert.False(t, plan.Steps[1].Dependency)
	assert.True(t, plan.HasDependencies())

	plan, err = BuildPlan([]string{"uv"}, builtins, map[string]bool{"python": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"uv"}, plan.IDs())
	assert.False(t, plan.HasDependencies())

	_, err = BuildPlan([]string{"nope"}, builtins, nil)
	assert.EqualError(t, err, "unknown tool ID: nope")
}

func TestRun_InstallsInOrderAndRecordsState(t *testing.T) {
	_, logPath := fakeBrew(t)
	statePath := filepath.Join(t.TempDir(), "install_state.json")

	templates := []tools.Template{
		template("base", []tools.InstallMethod{{Type: tools.MethodBrew, BrewTap: "acme/tap", BrewFormulaName: "acme-base"}}),
		template("app", []tools.InstallMethod{{Type: tools.MethodBrew, BrewCaskName: "app"}}, "base"),
	}
	plan, err := BuildPlan([]string{"app"}, templates, nil)
	require.NoError(t, err)

	rep := &recordingReporter{}
	res, err := Run(context.Background(), plan, Options{
		StatePath: statePath,
		Reporter:  rep,
		Env:       []string{"HTTP_PROXY=http://127.0.0.1:1"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 2, res.Count(StatusInstalled))
	assert.Equal(t, []string{"base", "app"}, rep.started)

	assert.Equal(t, []string{
		"tap acme/tap",
		"install acme-base",
		"install --cask app",
	}, readLines(t, logPath))

	state, err := LoadState(statePath)
	require.NoError(t, err)
	assert.True(t, state.IsToolInstalled("base"))
	assert.True(t, state.IsToolInstalled("app"))

	res, err = Run(context.Background(), plan, Options{StatePath: statePath})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count(StatusSkipped))
	assert.Len(t, readLines(t, logPath), 3, "recorded tools are not reinstalled")

	_, err = Run(context.Background(), plan, Options{StatePath: statePath, Force: true})
	require.NoError(t, err)
	assert.Len(t, readLines(t, logPath), 6)
}

func TestRun_CaskFallsBackToFormula(t *testing.T) {
	_, logPath := fakeBrew(t, "--cask node")
	plan := &Plan{Steps: []Step{{Template: template("node", []tools.InstallMethod{{Type: tools.MethodBrew, BrewCaskName: "node"}})}}}

	_, err := Run(context.Background(), plan, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"install --cask node", "install node"}, readLines(t, logPath))
}

func TestRun_FirstFailureStops(t *testing.T) {
	fakeBrew(t, "broken")
	templates := []tools.Template{
		template("broken", []tools.InstallMethod{{Type: tools.MethodBrew, BrewFormulaName: "broken"}}),
		template("after", []tools.InstallMethod{{Type: tools.MethodBrew, BrewFormulaName: "after"}}, "broken"),
	}
	plan, err := BuildPlan([]string{"after"}, templates, nil)
	require.NoError(t, err)

	rep := &recordingReporter{}
	res, err := Run(context.Background(), plan, Options{Reporter: rep})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to install broken")
	var ie *brew.InstallError
	assert.ErrorAs(t, err, &ie)

	require.Len(t, res.Steps, 2)
	assert.Equal(t, StatusFailed, res.Steps[0].Status)
	assert.Equal(t, StatusNotRun, res.Steps[1].Status)
	assert.Len(t, rep.finished, 2)
	assert.Equal(t, []string{"broken"}, rep.started)
}

func TestRun_DryRun(t *testing.T) {
	_, logPath := fakeBrew(t)
	plan := &Plan{Steps: []Step{
		{Template: template("fish", []tools.InstallMethod{{Type: tools.MethodBrew, BrewFormulaName: "fish"}})},
		{Template: template("tool", []tools.InstallMethod{{Type: tools.MethodScript, ScriptCommands: []string{"echo one", "echo two"}}})},
		{Template: template("done", []tools.InstallMethod{{Type: tools.MethodBrew}}), Installed: true},
	}}

	res, err := Run(context.Background(), plan, Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, StatusPlanned, res.Steps[0].Status)
	assert.Equal(t, "brew install fish", res.Steps[0].Description)
	assert.Equal(t, "echo one && echo two", res.Steps[1].Description)
	assert.Equal(t, StatusSkipped, res.Steps[2].Status)
	assert.Nil(t, readLines(t, logPath))
}

func TestRun_Script(t *testing.T) {
	testutil.IsolatedPATH(t)
	marker := filepath.Join(t.TempDir(), "marker")
	var out bytes.Buffer

	plan := &Plan{Steps: []Step{{Template: template("claude", []tools.InstallMethod{
		{Type: tools.MethodBrew, BrewFormulaName: "claude"},
		{Type: tools.MethodScript, ScriptCommands: []string{"echo $DEVENV_TEST > " + marker, "echo hello"}},
	})}}}

	_, err := Run(context.Background(), plan, Options{Output: &out, Env: []string{"DEVENV_TEST=written"}})
	require.NoError(t, err)

	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, "written\n", string(data))
	assert.Contains(t, out.String(), "[2/2] echo hello")
	assert.Contains(t, out.String(), "hello\n")
}

func TestRun_ScriptFailure(t *testing.T) {
	testutil.IsolatedPATH(t)
	plan := &Plan{Steps: []Step{{Template: template("bad", []tools.InstallMethod{
		{Type: tools.MethodScript, ScriptCommands: []string{"exit 3"}},
	})}}}

	_, err := Run(context.Background(), plan, Options{})
	assert.EqualError(t, err, "failed to install bad: Command failed with exit code 3: exit 3")
}

func TestRun_NoUsableMethod(t *testing.T) {
	testutil.IsolatedPATH(t)

	plan := &Plan{Steps: []Step{{Template: template("fish", []tools.InstallMethod{{Type: tools.MethodBrew, BrewFormulaName: "fish"}})}}}
	_, err := Run(context.Background(), plan, Options{})
	assert.ErrorIs(t, err, brew.ErrNotInstalled)

	plan = &Plan{Steps: []Step{{Template: template("bare", nil)}}}
	_, err = Run(context.Background(), plan, Options{})
	assert.EqualError(t, err, "no install method defined for bare")
}

func TestRun_DMG(t *testing.T) {
	bin := testutil.IsolatedPATH(t)
	openLog := filepath.Join(t.TempDir(), "open.log")
	testutil.WriteExecutable(t, bin, "open", "echo \"$1\" >> "+openLog+"\n")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("dmg"))
	}))
	t.Cleanup(srv.Close)

	downloads := t.TempDir()
	plan := &Plan{Steps: []Step{{Template: template("app", []tools.InstallMethod{{Type: tools.MethodDMG, DMGURL: srv.URL + "/App.dmg"}})}}}
	_, err := Run(context.Background(), plan, Options{DownloadDir: downloads})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(downloads, "App.dmg"))
	assert.Equal(t, []string{filepath.Join(downloads, "App.dmg")}, readLines(t, openLog))
}

type fakeReleases struct {
	release *software.Release
	err     error
}

func (f *fakeReleases) Latest(context.Context, string, string, string) (*software.Release, error) {
	return f.release, f.err
}

func TestInstallSoftware(t *testing.T) {
	t.Run("brew cask", func(t *testing.T) {
		_, logPath := fakeBrew(t)
		statePath := filepath.Join(t.TempDir(), "install_state.json")
		rec := software.Recommendation{ID: "vscode", InstallMethods: []software.InstallMethod{{Type: software.MethodBrew, Cask: "visual-studio-code"}}}

		res, err := InstallSoftware(context.Background(), rec, nil, Options{StatePath: statePath})
		require.NoError(t, err)
		assert.Equal(t, software.MethodBrew, res.Method)
		assert.Equal(t, []string{"install --cask visual-studio-code"}, readLines(t, logPath))

		st, err := LoadState(statePath)
		require.NoError(t, err)
		assert.True(t, st.IsSoftwareInstalled("vscode"))
	})

	t.Run("github release without brew", func(t *testing.T) {
		bin := testutil.IsolatedPATH(t)
		testutil.WriteExecutable(t, bin, "open", "exit 0\n")
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("zip"))
		}))
		t.Cleanup(srv.Close)

		rec := software.Recommendation{ID: "github-cli", InstallMethods: []software.InstallMethod{
			{Type: software.MethodBrew, Cask: "gh"},
			{Type: software.MethodGitHub, Owner: "cli", Repo: "cli", AssetPattern: "zip$"},
		}}
		releases := &fakeReleases{release: &software.Release{TagName: "v1", Assets: []software.ReleaseAsset{
			{Name: "gh.zip", BrowserDownloadURL: srv.URL + "/gh.zip"},
		}}}

		downloads := t.TempDir()
		res, err := InstallSoftware(context.Background(), rec, releases, Options{DownloadDir: downloads})
		require.NoError(t, err)
		assert.Equal(t, software.MethodGitHub, res.Method)
		assert.Equal(t, filepath.Join(downloads, "gh.zip"), res.Path)
	})

	t.Run("dry run", func(t *testing.T) {
		testutil.IsolatedPATH(t)
		rec := software.Recommendation{ID: "chrome", InstallMethods: []software.InstallMethod{{Type: software.MethodWebsite, URL: "https://www.google.com/chrome/"}}}
		res, err := InstallSoftware(context.Background(), rec, nil, Options{DryRun: true})
		require.NoError(t, err)
		assert.Equal(t, "open https://www.google.com/chrome/", res.Description)
	})

	t.Run("brew only but missing", func(t *testing.T) {
		testutil.IsolatedPATH(t)
		rec := software.Recommendation{ID: "iterm2", InstallMethods: []software.InstallMethod{{Type: software.MethodBrew, Cask: "iterm2"}}}
		_, err := InstallSoftware(context.Background(), rec, nil, Options{})
		assert.ErrorIs(t, err, brew.ErrNotInstalled)
	})
}
