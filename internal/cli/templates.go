package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openbootdotdev/devenv/internal/tools"
	"github.com/openbootdotdev/devenv/internal/ui"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage tool templates",
	Long: `List the builtin and custom tool templates, add custom templates from
JSON files, and remove custom templates.

Custom templates are stored one JSON file per template in the config
directory. Builtin templates cannot be replaced or removed.`,
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tool templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, _ := cmd.Flags().GetString("filter")
		asJSON, _ := cmd.Flags().GetBool("json")

		templates, err := cur.catalog.ListTemplates(cmd.Context())
		if err != nil {
			return err
		}
		templates = tools.Search(templates, filter)

		w := cmd.OutOrStdout()
		if asJSON {
			data, err := json.MarshalIndent(templates, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal templates: %w", err)
			}
			fmt.Fprintln(w, string(data))
			return nil
		}

		if len(templates) == 0 {
			fmt.Fprintln(w, "No templates match.")
			return nil
		}
		for _, t := range templates {
			kind := "custom"
			if cur.catalog.IsBuiltin(t.ID) {
				kind = "builtin"
			}
			line := fmt.Sprintf("  %-18s %-22s %s", t.ID, t.Name, ui.Cyan(kind))
			if len(t.Dependencies) > 0 {
				line += "  needs " + strings.Join(t.Dependencies, ", ")
			}
			fmt.Fprintln(w, line)
		}
		return nil
	},
}

var templatesAddCmd = &cobra.Command{
	Use:   "add <file.json>",
	Short: "Add or replace a custom template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		var t tools.Template
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("invalid template JSON: %w", err)
		}
		if t.VersionParser == "" {
			t.VersionParser = tools.ParserStdout
		}
		if err := cur.catalog.SaveTemplate(t); err != nil {
			return err
		}
		ui.Success(fmt.Sprintf("Saved template '%s'", t.ID))
		return nil
	},
}

var templatesRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Remove a custom template",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cur.catalog.DeleteTemplate(args[0]); err != nil {
			return err
		}
		ui.Success(fmt.Sprintf("Removed template '%s'", args[0]))
		return nil
	},
}

func init() {
	templatesListCmd.Flags().String("filter", "", "fuzzy filter on id, name and category")
	templatesListCmd.Flags().Bool("json", false, "print templates as JSON")

	templatesCmd.AddCommand(templatesListCmd)
	templatesCmd.AddCommand(templatesAddCmd)
	templatesCmd.AddCommand(templatesRemoveCmd)
}
