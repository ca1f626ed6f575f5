package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/openbootdotdev/devenv/internal/installer"
	"github.com/openbootdotdev/devenv/internal/software"
	"github.com/openbootdotdev/devenv/internal/state"
	"github.com/openbootdotdev/devenv/internal/ui"
)

var softwareCmd = &cobra.Command{
	Use:   "software",
	Short: "Browse and install recommended desktop software",
	Long: `Recommended desktop applications grouped by category.

The catalog is built in. A software-recommendations.yaml file in the config
directory replaces it.`,
}

var softwareListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recommended software with install status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		asJSON, _ := cmd.Flags().GetBool("json")
		onlyInstalled, _ := cmd.Flags().GetBool("installed")
		hide := false
		if cmd.Flags().Changed("hide-installed") {
			hide, _ = cmd.Flags().GetBool("hide-installed")
			rememberHideInstalled(hide)
		} else if nav, err := state.LoadNavigation(cur.state); err == nil {
			hide = nav.HideInstalled
		}
		return runSoftwareList(cmd.Context(), cmd.OutOrStdout(), softwareFilter{category: category, hideInstalled: hide, onlyInstalled: onlyInstalled}, asJSON)
	},
}

var softwareSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Fuzzy search the software catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := cur.softwareCatalog()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		results := cat.Search(args[0])
		if len(results) == 0 {
			fmt.Fprintf(w, "No software matches %q.\n", args[0])
			return nil
		}
		for _, r := range results {
			fmt.Fprintf(w, "  %-20s %-28s %s\n", r.ID, r.Name, ui.Cyan(cat.CategoryName(r.Category)))
		}
		return nil
	},
}

var softwareInstallCmd = &cobra.Command{
	Use:   "install <id>",
	Short: "Install a recommended application",
	Long: `Install an application with Homebrew when it is available. Otherwise the
latest GitHub release asset is downloaded and opened, or the vendor website
is opened in the browser.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := cur.softwareCatalog()
		if err != nil {
			return err
		}
		rec, ok := cat.Get(args[0])
		if !ok {
			return fmt.Errorf("unknown software ID: %s", args[0])
		}

		res, err := installer.InstallSoftware(cmd.Context(), rec, cur.releases(), cur.installOptions(false))
		if err != nil {
			return err
		}
		switch {
		case dryRun:
			ui.Muted("Would run: " + res.Description)
		case res.Path != "":
			ui.Success(fmt.Sprintf("Downloaded %s to %s", rec.Name, res.Path))
		case res.Method == software.MethodWebsite:
			ui.Info("Opened the download page for " + rec.Name)
		default:
			ui.Success("Installed " + rec.Name)
		}
		return nil
	},
}

func init() {
	softwareListCmd.Flags().String("category", "", "only show one category")
	softwareListCmd.Flags().Bool("installed", false, "only show installed applications")
	softwareListCmd.Flags().Bool("hide-installed", false, "hide installed applications (remembered)")
	softwareListCmd.Flags().Bool("json", false, "print the list as JSON")

	softwareCmd.AddCommand(softwareListCmd)
	softwareCmd.AddCommand(softwareSearchCmd)
	softwareCmd.AddCommand(softwareInstallCmd)
}

func rememberHideInstalled(hide bool) {
	nav, err := state.LoadNavigation(cur.state)
	if err != nil {
		return
	}
	nav.HideInstalled = hide
	_ = state.SaveNavigation(cur.state, nav)
}

type softwareFilter struct {
	category      string
	hideInstalled bool
	onlyInstalled bool
}

func (f softwareFilter) keep(r software.Recommendation) bool {
	if f.category != "" && r.Category != f.category {
		return false
	}
	if f.hideInstalled && r.Installed {
		return false
	}
	return !f.onlyInstalled || r.Installed
}

func runSoftwareList(ctx context.Context, w io.Writer, filter softwareFilter, asJSON bool) error {
	cat, err := cur.softwareCatalog()
	if err != nil {
		return err
	}
	items := software.NewDetector().Detect(ctx, cat.Software)

	if asJSON {
		shown := make([]software.Recommendation, 0, len(items))
		for _, it := range items {
			if filter.keep(it) {
				shown = append(shown, it)
			}
		}
		data, err := json.MarshalIndent(shown, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal software: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	byID := make(map[string]software.Recommendation, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	for _, c := range cat.Categories {
		var lines []string
		for _, r := range cat.ByCategory(c.ID) {
			r = byID[r.ID]
			if !filter.keep(r) {
				continue
			}
			lines = append(lines, fmt.Sprintf("    %s", ui.Check(r.Installed, fmt.Sprintf("%-26s %s", r.Name, r.Description))))
		}
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n  %s %s\n", c.Emoji, c.Name)
		for _, l := range lines {
			fmt.Fprintln(w, l)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %d of %d applications installed\n", len(software.Installed(items)), len(items))
	return nil
}
