package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/openbootdotdev/devenv/internal/deps"
	"github.com/openbootdotdev/devenv/internal/logging"
	"github.com/openbootdotdev/devenv/internal/tools"
)

var ErrUserCancelled = errors.New("user cancelled")

// Step is one tool to install. Dependency is true for tools that were not
// requested but are needed by one that was.
type Step struct {
	Template   tools.Template
	Dependency bool
	Installed  bool
}

func (s Step) ID() string { return s.Template.ID }

type Plan struct {
	Steps []Step
}

// BuildPlan adds the missing dependencies of targets and orders everything
// so dependencies come first.
func BuildPlan(targets []string, templates []tools.Template, installed map[string]bool) (*Plan, error) {
	closure, err := deps.Closure(targets, templates, installed)
	if err != nil {
		return nil, err
	}
	order, err := deps.ResolveOrder(closure, templates)
	if err != nil {
		return nil, err
	}

	requested := make(map[string]bool, len(targets))
	for _, id := range targets {
		requested[id] = true
	}
	byID := tools.IndexByID(templates)

	plan := &Plan{Steps: make([]Step, 0, len(order))}
	for _, id := range order {
		plan.Steps = append(plan.Steps, Step{
			Template:   byID[id],
			Dependency: !requested[id],
			Installed:  installed[id],
		})
	}
	return plan, nil
}

func (p *Plan) HasDependencies() bool {
	for _, s := range p.Steps {
		if s.Dependency {
			return true
		}
	}
	return false
}

func (p *Plan) IDs() []string {
	ids := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		ids[i] = s.ID()
	}
	return ids
}

type Status string

const (
	StatusInstalled Status = "installed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusNotRun    Status = "not run"
	StatusPlanned   Status = "planned"
)

type StepResult struct {
	Step        Step
	Status      Status
	Description string
	Err         error
}

type Result struct {
	RunID string
	Steps []StepResult
}

// Err returns the first step failure.
func (r *Result) Err() error {
	for _, s := range r.Steps {
		if s.Status == StatusFailed {
			return s.Err
		}
	}
	return nil
}

func (r *Result) Count(status Status) int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == status {
			n++
		}
	}
	return n
}

// Reporter receives progress while a plan runs.
type Reporter interface {
	StepStarted(index, total int, step Step, description string)
	StepFinished(index, total int, res StepResult)
}

type nopReporter struct{}

func (nopReporter) StepStarted(int, int, Step, string) {}
func (nopReporter) StepFinished(int, int, StepResult) {}

type Options struct {
	DryRun bool
	// Force reinstalls tools that are detected or recorded as installed.
	Force       bool
	Env         []string
	DownloadDir string
	StatePath   string
	Reporter    Reporter
	// Output receives the output of script commands.
	Output io.Writer
}

func (o Options) reporter() Reporter {
	if o.Reporter == nil {
		return nopReporter{}
	}
	return o.Reporter
}

func (o Options) output() io.Writer {
	if o.Output == nil {
		return io.Discard
	}
	return o.Output
}

// Run installs the plan's steps in order. The first failure stops the run;
// the steps after it are reported as not run.
func Run(ctx context.Context, plan *Plan, opts Options) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	log := logging.GetLogger("installer").With().Str("run", res.RunID).Logger()
	rep := opts.reporter()

	state, err := LoadState(opts.StatePath)
	if err != nil {
		log.Warn().Err(err).Msg("ignoring unreadable install state")
	}

	total := len(plan.Steps)
	var failed bool
	for i, step := range plan.Steps {
		sr := StepResult{Step: step}

		if failed {
			sr.Status = StatusNotRun
			res.Steps = append(res.Steps, sr)
			rep.StepFinished(i, total, sr)
			continue
		}

		if !opts.Force && (step.Installed || state.IsToolInstalled(step.ID())) {
			sr.Status = StatusSkipped
			sr.Description = "already installed"
			res.Steps = append(res.Steps, sr)
			rep.StepFinished(i, total, sr)
			continue
		}

		method, err := chooseMethod(step.Template)
		if err != nil {
			sr.Status, sr.Err = StatusFailed, err
			failed = true
			res.Steps = append(res.Steps, sr)
			rep.StepFinished(i, total, sr)
			continue
		}
		sr.Description = describe(step.Template, method)
		rep.StepStarted(i, total, step, sr.Description)

		if opts.DryRun {
			sr.Status = StatusPlanned
			res.Steps = append(res.Steps, sr)
			rep.StepFinished(i, total, sr)
			continue
		}

		log.Info().Str("tool", step.ID()).Str("method", method.Type).Msg("installing")
		if err := install(ctx, step.Template, method, opts); err != nil {
			sr.Status = StatusFailed
			sr.Err = fmt.Errorf("failed to install %s: %w", step.ID(), err)
			failed = true
		} else {
			sr.Status = StatusInstalled
			if err := state.markTool(step.ID()); err != nil {
				log.Warn().Err(err).Msg("failed to record install state")
			}
		}
		res.Steps = append(res.Steps, sr)
		rep.StepFinished(i, total, sr)
	}

	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	return res, res.Err()
}

// describe is the one-line summary shown for a step in previews and dry runs.
func describe(t tools.Template, m tools.InstallMethod) string {
	switch m.Type {
	case tools.MethodBrew:
		var parts []string
		if m.BrewTap != "" {
			parts = append(parts, "brew tap "+m.BrewTap)
		}
		switch {
		case m.BrewCaskName != "":
			parts = append(parts, "brew install --cask "+m.BrewCaskName+" (or formula)")
		case m.BrewFormulaName != "":
			parts = append(parts, "brew install "+m.BrewFormulaName)
		default:
			parts = append(parts, "brew install "+t.Executable)
		}
		return strings.Join(parts, " && ")
	case tools.MethodScript:
		return strings.Join(m.ScriptCommands, " && ")
	case tools.MethodDMG:
		return "download and open " + m.DMGURL
	}
	return m.Type
}
