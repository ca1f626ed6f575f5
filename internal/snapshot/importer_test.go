package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbootdotdev/devenv/internal/tools"
)

type recordingPersister struct {
	mu    sync.Mutex
	calls []*EnvironmentExport
	err   error
	drop  map[string]bool
}

func (p *recordingPersister) ImportEnvironment(_ context.Context, doc *EnvironmentExport) (*EnvironmentExport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, doc)
	if p.err != nil {
		return nil, p.err
	}
	out := *doc
	out.CustomTemplates = nil
	for _, t := range doc.CustomTemplates {
		if !p.drop[t.ID] {
			out.CustomTemplates = append(out.CustomTemplates, t)
		}
	}
	return &out, nil
}

const legacyDoc = `{
  "schemaVersion": "0.9",
  "exportedAt": "2024-05-01T10:00:00Z",
  "tools": [{"templateId": "node", "installed": true}],
  "customTemplates": [{"id": "custom1", "name": "X", "executable": "x", "versionCommand": "--v"}]
}`

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dev-env.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestImporter_PreviewLegacyDocument(t *testing.T) {
	im := NewImporter(&fakeLister{}, &recordingPersister{})

	p, err := im.PreviewFile(context.Background(), writeDoc(t, legacyDoc))
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "1.0", p.Document.SchemaVersion)
	require.Len(t, p.Document.CustomTemplates, 1)
	assert.NotNil(t, p.Document.CustomTemplates[0].Dependencies)
	assert.Empty(t, p.Document.CustomTemplates[0].Dependencies)
	assert.Contains(t, p.Warnings, "Migrated environment export from schema version 0.9 to 1.0")
	assert.False(t, p.Resolution.HasConflicts())

	require.Len(t, p.Document.Tools, 1)
	assert.Equal(t, "node", p.Document.Tools[0].TemplateID)
	assert.NotNil(t, p.Document.Tools[0].ConfigFiles)

	assert.NotNil(t, im.Current())
}

func TestImporter_ConfirmWithoutPreview(t *testing.T) {
	im := NewImporter(&fakeLister{}, &recordingPersister{})
	_, err := im.ConfirmImport(context.Background())
	assert.ErrorIs(t, err, ErrNoPreview)
	assert.EqualError(t, err, "No preview data available")
}

func TestImporter_PreviewErrors(t *testing.T) {
	im := NewImporter(&fakeLister{}, &recordingPersister{})
	ctx := context.Background()

	_, err := im.PreviewFile(ctx, filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "failed to read file")

	_, err = im.PreviewBytes(ctx, "bad.json", []byte("{not json"))
	assert.ErrorContains(t, err, "failed to parse file")

	_, err = im.PreviewBytes(ctx, "a.json", []byte(`{"schemaVersion":"1.0"}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.EqualError(t, err, "Missing or invalid exportedAt timestamp, Missing or invalid tools array")

	assert.Nil(t, im.Current())

	_, err = im.PreviewBytes(ctx, "b.json", []byte(`{"schemaVersion":"1.0","exportedAt":"2024-05-01T10:00:00Z","tools":[],"customTemplates":[{"id":"c"}]}`))
	require.NoError(t, err)
	prev := im.Current()
	_, err = im.PreviewBytes(ctx, "c.json", []byte(`[]`))
	require.Error(t, err)
	assert.Equal(t, prev.ID, im.Current().ID, "failed preview keeps the previous one")
}

func TestImporter_CurrentDocumentSkipsMigration(t *testing.T) {
	im := NewImporter(&fakeLister{}, &recordingPersister{})
	p, err := im.PreviewBytes(context.Background(), "x", []byte(`{"schemaVersion":"1.0","exportedAt":"2024-05-01T10:00:00Z","hostname":7,"tools":[]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"Invalid hostname format"}, p.Warnings)
	assert.Empty(t, p.Document.Hostname)
	assert.NotNil(t, p.Document.CustomTemplates)
	assert.Nil(t, p.Resolution)
}

func TestImporter_ConflictFlow(t *testing.T) {
	lister := &fakeLister{templates: []tools.Template{tmpl("rust", "rustc")}}
	persister := &recordingPersister{}
	im := NewImporter(lister, persister)
	ctx := context.Background()

	doc := `{"schemaVersion":"1.0","exportedAt":"2024-05-01T10:00:00Z","tools":[],
		"customTemplates":[
			{"id":"rust","name":"rust tool","executable":"cargo","versionCommand":"--version","versionParser":"stdout","configFiles":[]},
			{"id":"zig","name":"Zig","executable":"zig","versionCommand":"version","versionParser":"stdout","configFiles":[]}
		]}`
	p, err := im.PreviewBytes(ctx, "x", []byte(doc))
	require.NoError(t, err)
	require.True(t, p.Resolution.HasConflicts())
	assert.Equal(t, 0, p.Resolution.ResolvedCount())

	assert.False(t, im.UpdateConflictStrategy("zig", StrategyOverwrite, ""))
	assert.True(t, im.UpdateConflictStrategy("rust", StrategyRename, "rust-imported"))
	assert.Equal(t, 1, im.Current().Resolution.ResolvedCount())
	assert.Equal(t, 0, p.Resolution.ResolvedCount(), "returned preview is a copy")

	res, err := im.ConfirmImport(ctx)
	require.NoError(t, err)
	require.Len(t, persister.calls, 1)
	sent := persister.calls[0].CustomTemplates
	require.Len(t, sent, 2)
	assert.Equal(t, "rust-imported", sent[0].ID)
	assert.Equal(t, "rust tool (imported)", sent[0].Name)
	assert.Equal(t, "zig", sent[1].ID)
	assert.Len(t, res.Document.CustomTemplates, 2)
	assert.Empty(t, res.Warnings)
	assert.Nil(t, im.Current())
}

func TestImporter_ConfirmFailureKeepsPreview(t *testing.T) {
	persister := &recordingPersister{err: errors.New("read-only disk")}
	im := NewImporter(&fakeLister{}, persister)
	ctx := context.Background()

	_, err := im.PreviewFile(ctx, writeDoc(t, legacyDoc))
	require.NoError(t, err)

	_, err = im.ConfirmImport(ctx)
	assert.EqualError(t, err, "failed to import environment: read-only disk")
	assert.NotNil(t, im.Current())

	persister.err = nil
	_, err = im.ConfirmImport(ctx)
	require.NoError(t, err)
	assert.Len(t, persister.calls, 2)
	assert.Nil(t, im.Current())
}

func TestImporter_ReportsSkippedTemplates(t *testing.T) {
	persister := &recordingPersister{drop: map[string]bool{"node": true}}
	im := NewImporter(&fakeLister{}, persister)
	ctx := context.Background()

	_, err := im.PreviewBytes(ctx, "x", []byte(`{"schemaVersion":"1.0","exportedAt":"2024-05-01T10:00:00Z","tools":[],
		"customTemplates":[{"id":"node","name":"N","executable":"node","versionCommand":"-v"}]}`))
	require.NoError(t, err)

	res, err := im.ConfirmImport(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Template 'node' was skipped: built-in templates cannot be replaced"}, res.Warnings)
}

func TestImporter_Cancel(t *testing.T) {
	im := NewImporter(&fakeLister{}, &recordingPersister{})
	_, err := im.PreviewFile(context.Background(), writeDoc(t, legacyDoc))
	require.NoError(t, err)

	im.CancelPreview()
	assert.Nil(t, im.Current())
	assert.False(t, im.UpdateConflictStrategy("custom1", StrategyOverwrite, ""))
	_, err = im.ConfirmImport(context.Background())
	assert.ErrorIs(t, err, ErrNoPreview)
}

func TestImporter_ConcurrentPreviewsLastWriteWins(t *testing.T) {
	im := NewImporter(&fakeLister{}, &recordingPersister{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = im.PreviewBytes(ctx, "x", []byte(legacyDoc))
		}()
	}
	wg.Wait()

	last, err := im.PreviewBytes(ctx, "final", []byte(legacyDoc))
	require.NoError(t, err)
	assert.Equal(t, last.ID, im.Current().ID)
	assert.Equal(t, "final", im.Current().Source)
}

func TestImporter_DropsFieldsOfUnexpectedType(t *testing.T) {
	im := NewImporter(&fakeLister{}, &recordingPersister{})
	doc := `{"schemaVersion":"1.0","exportedAt":"2024-05-01T10:00:00Z",
		"tools":[
			{"templateId":"node","installed":true,"version":22,"configFiles":["~/.npmrc"]},
			{"templateId":"uv","installed":false,"configFiles":"none"}
		],
		"software":"vscode"}`

	p, err := im.PreviewBytes(context.Background(), "x", []byte(doc))
	require.NoError(t, err)

	require.Len(t, p.Document.Tools, 2)
	node := p.Document.Tools[0]
	assert.Equal(t, "node", node.TemplateID)
	assert.True(t, node.Installed)
	assert.Empty(t, node.Version)
	assert.Equal(t, []tools.ConfigFileStatus{{Path: "~/.npmrc"}}, node.ConfigFiles)
	assert.Equal(t, "uv", p.Document.Tools[1].TemplateID)
	assert.Empty(t, p.Document.Tools[1].ConfigFiles)
	assert.Nil(t, p.Document.Software)

	assert.Equal(t, []string{
		"Ignored tools[0].version: unexpected value",
		"Ignored tools[1].configFiles: unexpected value",
		"Ignored software: expected a list",
	}, p.Warnings)
}

func TestImporter_LegacyTemplateConfigPaths(t *testing.T) {
	im := NewImporter(&fakeLister{}, &recordingPersister{})
	doc := `{"schemaVersion":"1.0","exportedAt":"2024-05-01T10:00:00Z","tools":[],
		"software":[{"id":"zed","name":"Zed","installMethods":[{"type":"brew","cask":"zed"}]}, 3],
		"customTemplates":[{"id":"acme","name":"Acme","executable":"acme","versionCommand":"-v","configFiles":["~/.acmerc"]}]}`

	p, err := im.PreviewBytes(context.Background(), "x", []byte(doc))
	require.NoError(t, err)
	require.Len(t, p.Document.CustomTemplates, 1)
	assert.Equal(t, []tools.ConfigFileLocation{{Path: "~/.acmerc"}}, p.Document.CustomTemplates[0].ConfigFiles)
	require.Len(t, p.Document.Software, 1)
	assert.Equal(t, "zed", p.Document.Software[0].ID)
	assert.Equal(t, []string{"Ignored software[1]: expected an object"}, p.Warnings)
}

func TestImporter_PreviewCopiesAreIndependent(t *testing.T) {
	im := NewImporter(&fakeLister{}, &recordingPersister{})
	p, err := im.PreviewFile(context.Background(), writeDoc(t, legacyDoc))
	require.NoError(t, err)

	p.Document.CustomTemplates[0].ID = "mutated"
	p.Document.Tools[0].ConfigFiles = append(p.Document.Tools[0].ConfigFiles, tools.ConfigFileStatus{Path: "x"})
	cur := im.Current()
	cur.Document.CustomTemplates = nil

	again := im.Current()
	require.Len(t, again.Document.CustomTemplates, 1)
	assert.Equal(t, "custom1", again.Document.CustomTemplates[0].ID)
	assert.Empty(t, again.Document.Tools[0].ConfigFiles)
}

func TestImporter_TakenIDs(t *testing.T) {
	lister := &fakeLister{templates: []tools.Template{tmpl("node", "node"), tmpl("rust", "rustc")}}
	im := NewImporter(lister, &recordingPersister{})
	ctx := context.Background()

	taken, err := im.TakenIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"node": true, "rust": true}, taken)

	_, err = im.PreviewFile(ctx, writeDoc(t, legacyDoc))
	require.NoError(t, err)
	taken, err = im.TakenIDs(ctx)
	require.NoError(t, err)
	assert.True(t, taken["custom1"])

	lister.err = errors.New("unreadable store")
	_, err = im.TakenIDs(ctx)
	assert.Error(t, err)
}
