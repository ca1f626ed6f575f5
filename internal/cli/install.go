package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openbootdotdev/devenv/internal/installer"
	"github.com/openbootdotdev/devenv/internal/tools"
	"github.com/openbootdotdev/devenv/internal/ui"
)

var installCmd = &cobra.Command{
	Use:   "install <id>...",
	Short: "Install tools and their missing dependencies",
	Long: `Install one or more tools by template id.

Missing dependencies are added automatically and everything is installed in
dependency order. Each tool uses its first install method that works on this
machine: Homebrew, a shell script, or a downloaded disk image.

Tools recorded as installed by an earlier run are skipped, so an interrupted
install can simply be started again.`,
	Example: `  # Install uv (and python, which it needs)
  devenv install uv

  # Show what would run
  devenv install aerospace --dry-run

  # Reinstall even if already present
  devenv install fish --force`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		force, _ := cmd.Flags().GetBool("force")
		err := runInstall(cmd, args, yes, force)
		if errors.Is(err, installer.ErrUserCancelled) {
			return nil
		}
		return err
	},
}

func init() {
	installCmd.Flags().SortFlags = false
	installCmd.Flags().BoolP("yes", "y", false, "do not ask before installing dependencies")
	installCmd.Flags().Bool("force", false, "reinstall tools that are already installed")
}

func runInstall(cmd *cobra.Command, ids []string, yes, force bool) error {
	ctx := cmd.Context()
	templates, dets, err := cur.detectAll(ctx, true)
	if err != nil {
		return err
	}
	return installTools(ctx, ids, templates, tools.InstalledSet(dets), yes, force)
}

func installTools(ctx context.Context, ids []string, templates []tools.Template, installed map[string]bool, yes, force bool) error {
	plan, err := installer.BuildPlan(ids, templates, installed)
	if err != nil {
		return err
	}

	pending := 0
	for _, s := range plan.Steps {
		if force || !s.Installed {
			pending++
		}
	}
	if pending == 0 {
		ui.Success("Everything is already installed")
		return nil
	}

	fmt.Println()
	ui.Header("Install plan")
	for i, s := range plan.Steps {
		note := ""
		switch {
		case s.Installed && !force:
			note = " (installed)"
		case s.Dependency:
			note = " (dependency)"
		}
		fmt.Printf("  %d. %s%s\n", i+1, s.Template.Name, note)
	}
	fmt.Println()

	if plan.HasDependencies() && !yes && !dryRun {
		ok, err := ui.Confirm(fmt.Sprintf("Install %d tools, including dependencies?", pending), true)
		if errors.Is(err, ui.ErrNoTerminal) {
			return err
		}
		if err != nil || !ok {
			return installer.ErrUserCancelled
		}
	}

	res, err := cur.runPlan(ctx, plan, force)
	if err != nil {
		return err
	}

	fmt.Println()
	if dryRun {
		ui.Muted(fmt.Sprintf("Dry run: %d steps planned, nothing was installed", res.Count(installer.StatusPlanned)))
		return nil
	}
	ui.Success(fmt.Sprintf("Installed %d tools", res.Count(installer.StatusInstalled)))
	return nil
}
