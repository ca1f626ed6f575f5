package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/openbootdotdev/devenv/internal/system"
	"github.com/openbootdotdev/devenv/internal/tools"
	"github.com/openbootdotdev/devenv/internal/ui"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Show which developer tools are installed",
	Long: `Detect every builtin and custom tool template on this machine.

Each tool is looked up on PATH and its version command is run. Config files
listed by the template are checked for existence and readability.`,
	Example: `  devenv tools
  devenv tools --json > tools.json
  devenv tools config ~/.config/fish/config.fish
  devenv tools open ~/.tmux.conf`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return runTools(cmd.Context(), cmd.OutOrStdout(), asJSON)
	},
}

var toolsConfigCmd = &cobra.Command{
	Use:   "config <path>",
	Short: "Print a tool config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := tools.ReadConfigFile(args[0])
		if err != nil {
			return err
		}
		_, err = io.WriteString(cmd.OutOrStdout(), content)
		return err
	},
}

var toolsOpenCmd = &cobra.Command{
	Use:   "open <path>",
	Short: "Open a tool config file in your editor",
	Long: `Open a config file with the editor from settings (default_editor), or
with the system default application when no editor is set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := tools.ExpandPath(args[0])
		if err := system.Open(path, cur.settings.DefaultEditor); err != nil {
			return err
		}
		ui.Success("Opened " + path)
		return nil
	},
}

func init() {
	toolsCmd.Flags().Bool("json", false, "print detection results as JSON")
	toolsCmd.AddCommand(toolsConfigCmd)
	toolsCmd.AddCommand(toolsOpenCmd)
}

func runTools(ctx context.Context, w io.Writer, asJSON bool) error {
	templates, dets, err := cur.detectAll(ctx, !asJSON)
	if err != nil {
		return err
	}

	if asJSON {
		data, err := json.MarshalIndent(dets, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal detections: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	printDetections(w, templates, dets)
	return nil
}

func printDetections(w io.Writer, templates []tools.Template, dets []tools.Detection) {
	installed := 0
	fmt.Fprintln(w)
	for i, t := range templates {
		d := dets[i]
		if d.Installed {
			installed++
		}

		line := fmt.Sprintf("%-20s", t.Name)
		if d.Installed {
			detail := d.Version
			if detail == "" {
				detail = "version unknown"
			}
			line += " " + ui.Cyan(detail) + "  " + d.ExecutablePath
		} else {
			line += " not installed"
		}
		fmt.Fprintf(w, "  %s\n", ui.Check(d.Installed, line))

		for _, cf := range d.ConfigFiles {
			if !cf.Exists {
				continue
			}
			mark := "config"
			if !cf.CanRead {
				mark = "config (unreadable)"
			}
			fmt.Fprintf(w, "      %s %s\n", mark, cf.Path)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %d of %d tools installed\n", installed, len(templates))
}
