package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/openbootdotdev/devenv/internal/config"
	"github.com/openbootdotdev/devenv/internal/snapshot"
	"github.com/openbootdotdev/devenv/internal/software"
	"github.com/openbootdotdev/devenv/internal/system"
	"github.com/openbootdotdev/devenv/internal/tools"
	"github.com/openbootdotdev/devenv/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export detected tools and software to JSON",
	Long: `Detect every tool and recommended application and write the result to
dev-env-YYYY-MM-DD.json in the download directory.

The file can be imported on another machine with 'devenv import'.`,
	Example: `  devenv export
  devenv export --with-custom
  devenv export --stdout > my-env.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		withCustom, _ := cmd.Flags().GetBool("with-custom")
		toStdout, _ := cmd.Flags().GetBool("stdout")
		return runExport(cmd.Context(), cmd.OutOrStdout(), withCustom, toStdout)
	},
}

func init() {
	exportCmd.Flags().Bool("with-custom", false, "include custom tool templates")
	exportCmd.Flags().Bool("stdout", false, "write JSON to stdout instead of a file")
}

// writerExporter prints the document instead of saving it.
type writerExporter struct {
	w io.Writer
}

func (e writerExporter) SaveExport(_ context.Context, doc *snapshot.EnvironmentExport) (string, error) {
	data, err := snapshot.Marshal(doc)
	if err != nil {
		return "", err
	}
	if _, err := e.w.Write(data); err != nil {
		return "", err
	}
	return "stdout", nil
}

// customTemplatesExporter adds custom templates before handing off.
type customTemplatesExporter struct {
	next      snapshot.Exporter
	templates []tools.Template
}

func (e customTemplatesExporter) SaveExport(ctx context.Context, doc *snapshot.EnvironmentExport) (string, error) {
	doc.CustomTemplates = append([]tools.Template{}, e.templates...)
	return e.next.SaveExport(ctx, doc)
}

func runExport(ctx context.Context, w io.Writer, withCustom, toStdout bool) error {
	_, dets, err := cur.detectAll(ctx, !toStdout)
	if err != nil {
		return err
	}
	items, err := cur.detectSoftware(ctx)
	if err != nil {
		return err
	}

	var saver snapshot.Exporter = snapshot.NewFileExporter(config.DownloadDir(cur.settings))
	if toStdout {
		saver = writerExporter{w: w}
	}
	if withCustom {
		customs, err := cur.catalog.CustomTemplates()
		if err != nil {
			return err
		}
		saver = customTemplatesExporter{next: saver, templates: customs}
	}

	doc, path, err := snapshot.AssembleAndExport(ctx, dets, software.Installed(items), system.Hostname(), cur.now(), saver)
	if err != nil {
		return err
	}
	if toStdout {
		return nil
	}

	installed := len(tools.InstalledSet(dets))
	ui.Success("Environment exported")
	ui.Info(fmt.Sprintf("%d tools (%d installed), %d applications, %d custom templates", len(doc.Tools), installed, len(doc.Software), len(doc.CustomTemplates)))
	ui.Info(path)
	return nil
}
