package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openbootdotdev/devenv/internal/config"
	"github.com/openbootdotdev/devenv/internal/installer"
	"github.com/openbootdotdev/devenv/internal/logging"
	"github.com/openbootdotdev/devenv/internal/state"
	"github.com/openbootdotdev/devenv/internal/ui"
)

var (
	version = "dev"

	verbose int
	dryRun  bool

	cur       *app
	logCloser io.Closer

	// dirsFunc is replaced in tests.
	dirsFunc = config.DefaultDirs
)

var rootCmd = &cobra.Command{
	Use:   "devenv",
	Short: "Detect, install and share your developer tools",
	Long: `devenv - developer environment helper

Detects command-line tools and desktop apps on this machine, installs missing
ones in dependency order through Homebrew, scripts or disk images, and
exports the environment to JSON so it can be imported on another machine.`,
	Example: `  # Pick a view (tools, software, dependencies, restore)
  devenv

  # Install a tool and anything it depends on
  devenv install uv

  # Export this machine and import it elsewhere
  devenv export
  devenv import ~/Downloads/dev-env-2026-10-18.json`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if v := os.Getenv("DEVENV_VERBOSE"); v != "" && !cmd.Flags().Changed("verbose") {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid DEVENV_VERBOSE %q: %w", v, err)
			}
			verbose = n
		}
		if v := os.Getenv("DEVENV_DRY_RUN"); v != "" && !cmd.Flags().Changed("dry-run") {
			dryRun = isTruthy(v)
		}

		dirs := dirsFunc()
		logCloser = logging.SetupLogger(verbose, dirs.LogDir())

		a, err := newApp(dirs)
		if err != nil {
			return err
		}
		cur = a
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		err := runViewPicker(cmd)
		if errors.Is(err, installer.ErrUserCancelled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase log verbosity (-v info, -vv debug, -vvv trace)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "preview changes without installing")

	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(templatesCmd)
	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(softwareCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.SetUsageTemplate(usageTemplate)
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// runViewPicker asks which view to open, defaulting to the last one used.
// Without a terminal the last view is shown directly.
func runViewPicker(cmd *cobra.Command) error {
	nav, err := state.LoadNavigation(cur.state)
	if err != nil {
		return err
	}

	view := nav.ActiveView
	if ui.Interactive() {
		options := make([]string, len(state.Views))
		for i, v := range state.Views {
			options[i] = string(v)
		}
		picked, err := ui.SelectOption("What do you want to see?", options, string(nav.ActiveView))
		if err != nil {
			return installer.ErrUserCancelled
		}
		view = state.View(picked)
	}

	nav.ActiveView = view
	if err := state.SaveNavigation(cur.state, nav); err != nil {
		logging.GetLogger("cli").Warn().Err(err).Msg("failed to save navigation state")
	}

	ctx := cmd.Context()
	switch view {
	case state.ViewSoftware:
		return runSoftwareList(ctx, cmd.OutOrStdout(), softwareFilter{hideInstalled: nav.HideInstalled}, false)
	case state.ViewDeps:
		return runDepsOverview(ctx, cmd.OutOrStdout())
	case state.ViewRestore:
		return runRestore(ctx, cmd.OutOrStdout(), restoreOptions{showInstalled: !nav.HideInstalled})
	default:
		return runTools(ctx, cmd.OutOrStdout(), false)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "devenv v%s\n", version)
	},
}

const usageTemplate = `Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}

Commands:{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasHelpSubCommands}}

Additional help topics:{{range .Commands}}{{if .IsAdditionalHelpTopicCommand}}
  {{rpad .CommandPath .CommandPathPadding}} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`

func Execute() error {
	err := rootCmd.Execute()
	if errors.Is(err, installer.ErrUserCancelled) {
		return nil
	}
	return err
}
