package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/openbootdotdev/devenv/internal/config"
	"github.com/openbootdotdev/devenv/internal/installer"
	"github.com/openbootdotdev/devenv/internal/logging"
	"github.com/openbootdotdev/devenv/internal/software"
	"github.com/openbootdotdev/devenv/internal/state"
	"github.com/openbootdotdev/devenv/internal/tools"
	"github.com/openbootdotdev/devenv/internal/ui"
)

// app carries what every command needs. It is built once per invocation in
// the root command's PersistentPreRunE.
type app struct {
	dirs     config.Dirs
	settings config.Settings
	state    state.Store
	catalog  *tools.Catalog
	now      func() time.Time

	// settingsErr is kept so commands that only read settings can still run
	// with defaults while `settings` and `doctor` report the problem.
	settingsErr error
}

func newApp(dirs config.Dirs) (*app, error) {
	a := &app{dirs: dirs, now: time.Now}

	a.settings, a.settingsErr = config.LoadSettings(dirs.SettingsFile())
	if a.settingsErr != nil {
		logging.GetLogger("cli").Warn().Err(a.settingsErr).Msg("using default settings")
		a.settings = config.DefaultSettings()
	}

	st, err := state.OpenFile(dirs.StateFile())
	if err != nil {
		return nil, err
	}
	a.state = st

	builtins, err := tools.Builtins()
	if err != nil {
		return nil, err
	}
	a.catalog = tools.NewCatalog(builtins, tools.NewStore(dirs.CustomTemplates()))
	return a, nil
}

// detect runs tool detection. The progress line goes to stderr so stdout
// stays clean for --json.
func (a *app) detect(ctx context.Context, templates []tools.Template, showProgress bool) ([]tools.Detection, error) {
	d := tools.NewDetector()
	if showProgress {
		p := ui.NewScanProgress(len(templates))
		d.OnDetected = p.Done
		defer p.Finish()
	}
	return d.DetectAll(ctx, templates)
}

func (a *app) detectAll(ctx context.Context, showProgress bool) ([]tools.Template, []tools.Detection, error) {
	templates, err := a.catalog.ListTemplates(ctx)
	if err != nil {
		return nil, nil, err
	}
	dets, err := a.detect(ctx, templates, showProgress)
	if err != nil {
		return nil, nil, err
	}
	return templates, dets, nil
}

func (a *app) softwareCatalog() (*software.Catalog, error) {
	return software.LoadCatalog(a.dirs.SoftwareOverride())
}

// detectSoftware returns the catalog entries with their installed flag set.
func (a *app) detectSoftware(ctx context.Context) ([]software.Recommendation, error) {
	cat, err := a.softwareCatalog()
	if err != nil {
		return nil, err
	}
	return software.NewDetector().Detect(ctx, cat.Software), nil
}

func (a *app) releases() *software.ReleaseClient {
	rc := software.NewReleaseClient(a.dirs.ReleaseCache(), a.settings.GitHubToken)
	rc.HTTP = &http.Client{Timeout: 30 * time.Second, Transport: a.settings.Proxy.Transport()}
	return rc
}

func (a *app) installOptions(force bool) installer.Options {
	return installer.Options{
		DryRun:      dryRun,
		Force:       force,
		Env:         a.settings.Proxy.Env(),
		DownloadDir: config.DownloadDir(a.settings),
		StatePath:   a.dirs.InstallStateFile(),
	}
}

// runPlan runs plan with a progress renderer suited to the terminal.
func (a *app) runPlan(ctx context.Context, plan *installer.Plan, force bool) (*installer.Result, error) {
	opts := a.installOptions(force)

	if dryRun || !ui.Interactive() {
		opts.Reporter = ui.LineReporter{W: os.Stdout}
		opts.Output = os.Stdout
		return installer.Run(ctx, plan, opts)
	}

	progress := ui.NewStickyProgress(len(plan.Steps))
	opts.Reporter = progress
	opts.Output = ui.NewScrollWriter(progress)
	progress.Start()
	res, err := installer.Run(ctx, plan, opts)
	progress.Finish()
	ui.Muted("  " + progress.Summary())
	if err != nil {
		printResultErrors(os.Stderr, res)
	}
	return res, err
}

func printResultErrors(w io.Writer, res *installer.Result) {
	if res == nil {
		return
	}
	for _, s := range res.Steps {
		if s.Status == installer.StatusFailed {
			fmt.Fprintf(w, "  %s %s: %v\n", ui.Red("✗"), s.Step.ID(), s.Err)
		}
	}
}
