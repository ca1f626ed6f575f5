package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/openbootdotdev/devenv/internal/snapshot"
	"github.com/openbootdotdev/devenv/internal/ui"
)

var importCmd = &cobra.Command{
	Use:   "import <file|url>",
	Short: "Import an exported environment",
	Long: `Validate an exported environment, migrate it to the current schema and
save its custom templates.

Custom templates whose id already exists locally are conflicts. Each conflict
is skipped, overwrites the local template, or is saved under a new id. Pick
one strategy for all of them with --strategy, or choose per template in the
interactive resolver.

The imported document is remembered for 24 hours; 'devenv restore' lists the
tools and applications from it that are missing on this machine.`,
	Example: `  devenv import dev-env-2026-01-15.json
  devenv import https://example.com/team-env.json --yes
  devenv import env.json --strategy overwrite`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		strategy, _ := cmd.Flags().GetString("strategy")
		return runImport(cmd.Context(), args[0], yes, strategy)
	},
}

func init() {
	importCmd.Flags().BoolP("yes", "y", false, "import without asking")
	importCmd.Flags().String("strategy", "", "strategy for every conflict: skip, overwrite or rename")
}

// stderr-only styles so stdout stays clean when piping
var (
	importTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e")).Bold(true)
	importMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	importBoldStyle  = lipgloss.NewStyle().Bold(true)
)

func runImport(ctx context.Context, source string, yes bool, strategyFlag string) error {
	var strategy snapshot.MergeStrategy
	if strategyFlag != "" {
		s, err := snapshot.ParseStrategy(strategyFlag)
		if err != nil {
			return err
		}
		strategy = s
	}

	im := snapshot.NewImporter(cur.catalog, snapshot.NewStorePersister(cur.catalog, cur.state))
	preview, err := previewSource(ctx, im, source)
	if err != nil {
		return err
	}
	showImportPreview(os.Stderr, preview)

	if preview.Resolution.HasConflicts() {
		var chosen []snapshot.TemplateConflict
		switch {
		case strategy != "":
			for _, c := range preview.Resolution.Conflicts {
				c.Strategy, c.NewName = strategy, ""
				chosen = append(chosen, c)
			}
		case !yes && ui.Interactive():
			resolved, confirmed, err := ui.RunConflictResolver(preview.Resolution.Conflicts)
			if err != nil {
				return err
			}
			if !confirmed {
				im.CancelPreview()
				fmt.Fprintln(os.Stderr, importMutedStyle.Render("Import cancelled."))
				return nil
			}
			chosen = resolved
		default:
			ui.Muted("  Conflicting templates are skipped. Use --strategy to change this.")
		}
		if err := applyResolution(ctx, im, chosen); err != nil {
			im.CancelPreview()
			return err
		}
	}

	if !yes && !dryRun {
		ok, err := ui.Confirm("Import this environment?", true)
		if errors.Is(err, ui.ErrNoTerminal) {
			im.CancelPreview()
			return err
		}
		if err != nil || !ok {
			im.CancelPreview()
			fmt.Fprintln(os.Stderr, importMutedStyle.Render("Import cancelled."))
			return nil
		}
	}
	if dryRun {
		im.CancelPreview()
		fmt.Fprintln(os.Stderr, importMutedStyle.Render("Dry run, nothing was imported."))
		return nil
	}

	res, err := im.ConfirmImport(ctx)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		ui.Warn(w)
	}
	ui.Success(fmt.Sprintf("Imported %d tools, %d applications and %d custom templates",
		len(res.Document.Tools), len(res.Document.Software), len(res.Document.CustomTemplates)))
	fmt.Fprintf(os.Stderr, "  %s\n", importMutedStyle.Render("Run 'devenv restore' to install what is missing."))
	return nil
}

// applyResolution records the chosen strategies on the pending preview.
// Renames without a new id get one that is free locally and in this import.
func applyResolution(ctx context.Context, im *snapshot.Importer, chosen []snapshot.TemplateConflict) error {
	if len(chosen) == 0 {
		return nil
	}
	taken, err := im.TakenIDs(ctx)
	if err != nil {
		return err
	}
	for _, c := range snapshot.FillRenameIDs(chosen, taken) {
		im.UpdateConflictStrategy(c.Imported.ID, c.Strategy, c.NewName)
	}
	return nil
}

func previewSource(ctx context.Context, im *snapshot.Importer, source string) (*snapshot.Preview, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		return im.PreviewFile(ctx, source)
	}
	data, err := downloadExport(ctx, source)
	if err != nil {
		return nil, err
	}
	return im.PreviewBytes(ctx, source, data)
}

func downloadExport(ctx context.Context, url string) ([]byte, error) {
	fmt.Fprintf(os.Stderr, "  Downloading environment from %s...\n", url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("download environment: %w", err)
	}
	client := &http.Client{Timeout: 30 * time.Second, Transport: cur.settings.Proxy.Transport()}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download environment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download environment: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read environment response: %w", err)
	}
	return data, nil
}

func showImportPreview(w io.Writer, p *snapshot.Preview) {
	doc := p.Document
	installed := 0
	for _, t := range doc.Tools {
		if t.Installed {
			installed++
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, importTitleStyle.Render("=== Importing Environment ==="))
	fmt.Fprintf(w, "  %s %s\n", importBoldStyle.Render("Source:"), p.Source)
	if doc.Hostname != "" {
		fmt.Fprintf(w, "  %s %s\n", importBoldStyle.Render("Host:"), doc.Hostname)
	}
	fmt.Fprintf(w, "  %s %s (schema %s)\n", importBoldStyle.Render("Exported:"), doc.ExportedAt, doc.SchemaVersion)
	fmt.Fprintf(w, "  %s %d (%d installed there)\n", importBoldStyle.Render("Tools:"), len(doc.Tools), installed)
	fmt.Fprintf(w, "  %s %d\n", importBoldStyle.Render("Applications:"), len(doc.Software))
	fmt.Fprintf(w, "  %s %d\n", importBoldStyle.Render("Custom templates:"), len(doc.CustomTemplates))

	for _, warning := range p.Warnings {
		fmt.Fprintf(w, "  %s %s\n", ui.Yellow("!"), warning)
	}

	if p.Resolution.HasConflicts() {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  %s\n", importBoldStyle.Render(fmt.Sprintf("%d template conflicts:", len(p.Resolution.Conflicts))))
		for _, c := range p.Resolution.Conflicts {
			fmt.Fprintf(w, "    %s %s\n", ui.Yellow("~"), c.Imported.ID)
			if verbose > 0 {
				for _, line := range strings.Split(strings.TrimRight(snapshot.ConflictDiff(c), "\n"), "\n") {
					fmt.Fprintf(w, "      %s\n", importMutedStyle.Render(line))
				}
			}
		}
	}
	fmt.Fprintln(w)
}
