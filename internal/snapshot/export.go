package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/openbootdotdev/devenv/internal/software"
	"github.com/openbootdotdev/devenv/internal/tools"
)

// Exporter stores an assembled document and returns where it went.
type Exporter interface {
	SaveExport(ctx context.Context, doc *EnvironmentExport) (string, error)
}

// Assemble builds a current-schema document from detection results and the
// installed software. Custom templates are left empty; callers that want
// them set the field afterwards.
func Assemble(detections []tools.Detection, installedSoftware []software.Recommendation, hostname string, now time.Time) *EnvironmentExport {
	doc := &EnvironmentExport{
		SchemaVersion:   CurrentSchemaVersion,
		ExportedAt:      now.Format(time.RFC3339),
		Hostname:        hostname,
		Tools:           append([]tools.Detection{}, detections...),
		CustomTemplates: []tools.Template{},
	}
	if len(installedSoftware) > 0 {
		doc.Software = append([]software.Recommendation(nil), installedSoftware...)
	}
	return doc
}

// AssembleAndExport assembles the document and hands it to saver.
func AssembleAndExport(ctx context.Context, detections []tools.Detection, installedSoftware []software.Recommendation, hostname string, now time.Time, saver Exporter) (*EnvironmentExport, string, error) {
	doc := Assemble(detections, installedSoftware, hostname, now)
	path, err := saver.SaveExport(ctx, doc)
	if err != nil {
		return nil, "", fmt.Errorf("failed to export environment: %w", err)
	}
	return doc, path, nil
}

// Marshal encodes doc the way export files are written.
func Marshal(doc *EnvironmentExport) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportFileName returns dev-env-YYYY-MM-DD.json for the local date of t.
func ExportFileName(t time.Time) string {
	return fmt.Sprintf("dev-env-%s.json", t.Local().Format("2006-01-02"))
}

// FileExporter writes export documents into Dir.
type FileExporter struct {
	Dir string
	Now func() time.Time
}

func NewFileExporter(dir string) *FileExporter {
	return &FileExporter{Dir: dir, Now: time.Now}
}

func (f *FileExporter) SaveExport(ctx context.Context, doc *EnvironmentExport) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(f.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	data, err := Marshal(doc)
	if err != nil {
		return "", err
	}

	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	path := filepath.Join(f.Dir, ExportFileName(now()))

	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	if err := os.Rename(tmpFile, path); err != nil {
		_ = os.Remove(tmpFile)
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}
