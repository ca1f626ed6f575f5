package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/openbootdotdev/devenv/internal/installer"
	"github.com/openbootdotdev/devenv/internal/snapshot"
	"github.com/openbootdotdev/devenv/internal/software"
	"github.com/openbootdotdev/devenv/internal/state"
	"github.com/openbootdotdev/devenv/internal/tools"
	"github.com/openbootdotdev/devenv/internal/ui"
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Show or install what is missing from the last import",
	Long: `List the tools and applications of the most recently imported environment,
split into installed and missing on this machine.

The imported environment is kept for 24 hours after 'devenv import'.`,
	Example: `  devenv restore
  devenv restore --install
  devenv restore --clear`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts restoreOptions
		opts.install, _ = cmd.Flags().GetBool("install")
		opts.clear, _ = cmd.Flags().GetBool("clear")
		opts.yes, _ = cmd.Flags().GetBool("yes")

		opts.showInstalled = true
		switch {
		case cmd.Flags().Changed("show-installed"):
			show, _ := cmd.Flags().GetBool("show-installed")
			rememberHideInstalled(!show)
			opts.showInstalled = show
		case cmd.Flags().Changed("hide-installed"):
			hide, _ := cmd.Flags().GetBool("hide-installed")
			rememberHideInstalled(hide)
			opts.showInstalled = !hide
		default:
			if nav, err := state.LoadNavigation(cur.state); err == nil {
				opts.showInstalled = !nav.HideInstalled
			}
		}
		err := runRestore(cmd.Context(), cmd.OutOrStdout(), opts)
		if errors.Is(err, installer.ErrUserCancelled) {
			return nil
		}
		return err
	},
}

func init() {
	restoreCmd.Flags().Bool("install", false, "install the missing tools and applications")
	restoreCmd.Flags().Bool("clear", false, "forget the imported environment")
	restoreCmd.Flags().Bool("show-installed", true, "also list installed items (remembered)")
	restoreCmd.Flags().Bool("hide-installed", false, "only list missing items (remembered)")
	restoreCmd.MarkFlagsMutuallyExclusive("show-installed", "hide-installed")
	restoreCmd.Flags().BoolP("yes", "y", false, "do not ask before installing dependencies")
}

type restoreOptions struct {
	showInstalled bool
	install       bool
	clear         bool
	yes           bool
}

func runRestore(ctx context.Context, w io.Writer, opts restoreOptions) error {
	if opts.clear {
		if err := snapshot.ClearRestore(cur.state); err != nil {
			return err
		}
		ui.Success("Cleared the imported environment")
		return nil
	}

	rec, err := snapshot.LoadRestore(cur.state, cur.now())
	if err != nil {
		return err
	}
	if rec == nil {
		fmt.Fprintln(w, "Nothing to restore. Import an environment with 'devenv import <file>'.")
		return nil
	}

	templates, dets, err := cur.detectAll(ctx, true)
	if err != nil {
		return err
	}
	items, err := cur.detectSoftware(ctx)
	if err != nil {
		return err
	}
	softwareInstalled := make(map[string]bool, len(items))
	for _, it := range items {
		softwareInstalled[it.ID] = it.Installed
	}

	names := tools.IndexByID(templates)
	plan := snapshot.RestoreItems(rec.Data, dets, softwareInstalled, func(id string) string {
		if t, ok := names[id]; ok {
			return t.Name
		}
		return id
	})

	printRestorePlan(w, rec, plan, opts.showInstalled)

	if !opts.install || len(plan.Missing) == 0 {
		return nil
	}
	return installMissing(ctx, plan, templates, tools.InstalledSet(dets), items, opts.yes)
}

func printRestorePlan(w io.Writer, rec *snapshot.RestoreRecord, plan snapshot.RestorePlan, showInstalled bool) {
	source := rec.Data.Hostname
	if source == "" {
		source = "an imported environment"
	}
	fmt.Fprintf(w, "\n  Restoring %s (imported %s)\n", source, rec.Timestamp.Local().Format("2006-01-02 15:04"))

	if len(plan.Missing) > 0 {
		fmt.Fprintf(w, "\n  Missing (%d)\n", len(plan.Missing))
		for _, item := range plan.Missing {
			fmt.Fprintf(w, "    %s  %s\n", ui.Check(false, item.Name), ui.Cyan(string(item.Kind)))
		}
	}
	if showInstalled && len(plan.Installed) > 0 {
		fmt.Fprintf(w, "\n  Installed (%d)\n", len(plan.Installed))
		for _, item := range plan.Installed {
			fmt.Fprintf(w, "    %s  %s\n", ui.Check(true, item.Name), ui.Cyan(string(item.Kind)))
		}
	}
	fmt.Fprintln(w)
	if len(plan.Missing) == 0 {
		fmt.Fprintln(w, "  Everything from the imported environment is installed.")
		return
	}
	fmt.Fprintf(w, "  %d missing, %d installed\n", len(plan.Missing), len(plan.Installed))
}

func installMissing(ctx context.Context, plan snapshot.RestorePlan, templates []tools.Template, installed map[string]bool, items []software.Recommendation, yes bool) error {
	known := tools.IndexByID(templates)
	var toolIDs []string
	for _, id := range plan.MissingIDs(snapshot.RestoreTool) {
		if _, ok := known[id]; !ok {
			ui.Warn(fmt.Sprintf("Skipping %s: no template with this id", id))
			continue
		}
		toolIDs = append(toolIDs, id)
	}

	var errs []error
	if len(toolIDs) > 0 {
		if err := installTools(ctx, toolIDs, templates, installed, yes, false); err != nil {
			if errors.Is(err, installer.ErrUserCancelled) {
				return err
			}
			errs = append(errs, err)
		}
	}

	recs := make(map[string]software.Recommendation, len(items))
	for _, it := range items {
		recs[it.ID] = it
	}
	for _, item := range plan.Missing {
		if item.Kind != snapshot.RestoreSoftware {
			continue
		}
		rec, ok := recs[item.ID]
		if !ok && item.Software != nil {
			rec = *item.Software
		}
		res, err := installer.InstallSoftware(ctx, rec, cur.releases(), cur.installOptions(false))
		if err != nil {
			ui.Error(fmt.Sprintf("%s: %v", rec.Name, err))
			errs = append(errs, fmt.Errorf("%s: %w", rec.ID, err))
			continue
		}
		if dryRun {
			ui.Muted("Would run: " + res.Description)
			continue
		}
		ui.Success(rec.Name + ": " + res.Description)
	}
	return errors.Join(errs...)
}
