package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openbootdotdev/devenv/internal/config"
	"github.com/openbootdotdev/devenv/internal/ui"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change settings",
	Long: `Settings are stored as TOML in the config directory. Every key can also be
set through the environment, for example DEVENV_PROXY_URL for proxy.url.

Keys: ` + strings.Join(config.SettingKeys(), ", "),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printSettings(cmd.OutOrStdout())
	},
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printSettings(cmd.OutOrStdout())
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: `Change one setting and save it. The new settings are validated first:
the download path must be a writable directory, the editor must exist, and
an enabled proxy needs a URL matching its type.

Pass an empty value to unset a key.`,
	Example: `  devenv settings set download_path ~/Downloads
  devenv settings set proxy.type socks5
  devenv settings set proxy.url socks5://127.0.0.1:1080
  devenv settings set proxy.enabled true`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cur.settingsErr != nil {
			ui.Warn("Current settings could not be loaded, starting from defaults")
		}
		s := cur.settings
		if err := s.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := config.SaveSettings(cur.dirs.SettingsFile(), s); err != nil {
			return err
		}
		cur.settings, cur.settingsErr = s.Normalize(), nil
		ui.Success(fmt.Sprintf("Saved %s", args[0]))
		return nil
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ResetSettings(cur.dirs.SettingsFile()); err != nil {
			return err
		}
		cur.settings, cur.settingsErr = config.DefaultSettings(), nil
		ui.Success("Settings reset to defaults")
		return nil
	},
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the settings file location",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), cur.dirs.SettingsFile())
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsResetCmd)
	settingsCmd.AddCommand(settingsPathCmd)
}

func printSettings(w io.Writer) error {
	if cur.settingsErr != nil {
		return cur.settingsErr
	}
	s := cur.settings
	token := ""
	if s.GitHubToken != "" {
		token = "(set)"
	}
	rows := [][2]string{
		{"download_path", orDefault(s.DownloadPath, config.DownloadDir(s))},
		{"default_editor", orDefault(s.DefaultEditor, "system default")},
		{"github_token", orDefault(token, "not set")},
		{"proxy.enabled", fmt.Sprintf("%t", s.Proxy.Enabled)},
		{"proxy.type", string(s.Proxy.Type)},
		{"proxy.url", orDefault(s.Proxy.URL, "not set")},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "  %-16s %s\n", r[0], r[1])
	}
	return nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
