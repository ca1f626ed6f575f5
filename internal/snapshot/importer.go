package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"reflect"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/openbootdotdev/devenv/internal/logging"
	"github.com/openbootdotdev/devenv/internal/software"
	"github.com/openbootdotdev/devenv/internal/tools"
)

var ErrNoPreview = errors.New("No preview data available")

// Persister stores a confirmed import. Custom templates missing from the
// returned document were left out on purpose because they reuse a
// built-in id.
type Persister interface {
	ImportEnvironment(ctx context.Context, doc *EnvironmentExport) (*EnvironmentExport, error)
}

// Preview is a validated, migrated document waiting for confirmation.
type Preview struct {
	ID         string
	Source     string
	Document   *EnvironmentExport
	Resolution *MergeResolution
	Warnings   []string
}

type ImportResult struct {
	Document *EnvironmentExport
	Warnings []string
}

// Importer holds at most one preview between PreviewFile/PreviewBytes and
// ConfirmImport or CancelPreview. It is safe for concurrent use; a newer
// preview replaces an older one.
type Importer struct {
	lister    TemplateLister
	persister Persister

	mu      sync.Mutex
	preview *Preview
}

func NewImporter(lister TemplateLister, persister Persister) *Importer {
	return &Importer{lister: lister, persister: persister}
}

func (im *Importer) PreviewFile(ctx context.Context, path string) (*Preview, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return im.PreviewBytes(ctx, path, data)
}

// PreviewBytes validates, migrates and checks data for template conflicts.
// On success the preview replaces any previous one. On failure the current
// preview is left as it was.
func (im *Importer) PreviewBytes(ctx context.Context, source string, data []byte) (*Preview, error) {
	log := logging.GetLogger("importer")

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}

	validation := Validate(raw)
	if !validation.Valid {
		log.Info().Str("source", source).Strs("errors", validation.Errors).Msg("import rejected")
		return nil, &ValidationError{Errors: validation.Errors}
	}

	doc := raw.(map[string]any)
	var warnings []string
	if doc["schemaVersion"] != CurrentSchemaVersion {
		migrated := Migrate(doc)
		doc = migrated.Document
		warnings = append(warnings, migrated.Warnings...)
	}
	warnings = append(warnings, validation.Warnings...)

	export, decodeWarnings := decodeDocument(doc)
	warnings = append(warnings, decodeWarnings...)

	var resolution *MergeResolution
	if len(export.CustomTemplates) > 0 {
		var err error
		resolution, err = DetectConflicts(ctx, im.lister, export.CustomTemplates)
		if err != nil {
			return nil, err
		}
	}

	p := &Preview{
		ID:         uuid.NewString(),
		Source:     source,
		Document:   export,
		Resolution: resolution,
		Warnings:   warnings,
	}

	im.mu.Lock()
	im.preview = p
	im.mu.Unlock()

	log.Debug().Str("preview", p.ID).Str("source", source).
		Int("tools", len(export.Tools)).Int("customTemplates", len(export.CustomTemplates)).
		Int("conflicts", len(resolution.conflicts())).Msg("import previewed")
	return p.clone(), nil
}

// TakenIDs returns every template id a renamed import must avoid: the local
// templates and the custom templates of the pending preview.
func (im *Importer) TakenIDs(ctx context.Context) (map[string]bool, error) {
	local, err := im.lister.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]bool, len(local))
	for _, t := range local {
		taken[t.ID] = true
	}
	im.mu.Lock()
	if im.preview != nil {
		for _, t := range im.preview.Document.CustomTemplates {
			taken[t.ID] = true
		}
	}
	im.mu.Unlock()
	return taken, nil
}

// Current returns a copy of the pending preview, or nil.
func (im *Importer) Current() *Preview {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.preview.clone()
}

// UpdateConflictStrategy sets the strategy of the conflict for templateID.
// It reports whether such a conflict exists in the pending preview.
func (im *Importer) UpdateConflictStrategy(templateID string, strategy MergeStrategy, newName string) bool {
	im.mu.Lock()
	defer im.mu.Unlock()

	if im.preview == nil {
		return false
	}
	c := im.preview.Resolution.find(templateID)
	if c == nil {
		return false
	}
	c.Strategy = strategy
	c.NewName = newName
	return true
}

// ConfirmImport applies the merge strategies and hands the document to the
// persister. The preview is kept when persisting fails so the caller can retry.
func (im *Importer) ConfirmImport(ctx context.Context) (*ImportResult, error) {
	im.mu.Lock()
	p := im.preview
	if p == nil {
		im.mu.Unlock()
		return nil, ErrNoPreview
	}
	final := *p.Document
	var warnings []string
	if p.Resolution.HasConflicts() {
		merged := ApplyMergeStrategies(p.Document.CustomTemplates, p.Resolution)
		final.CustomTemplates = merged.Templates
		warnings = merged.Warnings
	}
	im.mu.Unlock()

	log := logging.GetLogger("importer")
	stored, err := im.persister.ImportEnvironment(ctx, &final)
	if err != nil {
		log.Warn().Err(err).Str("preview", p.ID).Msg("import failed")
		return nil, fmt.Errorf("failed to import environment: %w", err)
	}
	if stored == nil {
		stored = &final
	}
	warnings = append(warnings, skippedTemplates(final.CustomTemplates, stored.CustomTemplates)...)

	im.mu.Lock()
	if im.preview == p {
		im.preview = nil
	}
	im.mu.Unlock()

	log.Info().Str("preview", p.ID).Int("customTemplates", len(stored.CustomTemplates)).Msg("import confirmed")
	return &ImportResult{Document: stored, Warnings: warnings}, nil
}

func (im *Importer) CancelPreview() {
	im.mu.Lock()
	im.preview = nil
	im.mu.Unlock()
}

func skippedTemplates(sent, stored []tools.Template) []string {
	kept := make(map[string]bool, len(stored))
	for _, t := range stored {
		kept[t.ID] = true
	}
	var warnings []string
	for _, t := range sent {
		if !kept[t.ID] {
			warnings = append(warnings, fmt.Sprintf("Template '%s' was skipped: built-in templates cannot be replaced", t.ID))
		}
	}
	return warnings
}

// decodeDocument turns the validated generic document into an
// EnvironmentExport. Validation only checks the required fields, so optional
// values of the wrong type are dropped here and reported as warnings.
func decodeDocument(doc map[string]any) (*EnvironmentExport, []string) {
	export := &EnvironmentExport{
		Tools:           []tools.Detection{},
		CustomTemplates: []tools.Template{},
	}
	export.SchemaVersion, _ = doc["schemaVersion"].(string)
	export.ExportedAt, _ = doc["exportedAt"].(string)
	export.Hostname, _ = doc["hostname"].(string)

	var warnings []string
	for i, item := range objects(doc["tools"], "tools", &warnings) {
		var det tools.Detection
		warnings = append(warnings, decodeFields(item, &det, fmt.Sprintf("tools[%d]", i))...)
		export.Tools = append(export.Tools, det)
	}
	for i, item := range objects(doc["customTemplates"], "customTemplates", &warnings) {
		var t tools.Template
		warnings = append(warnings, decodeFields(item, &t, fmt.Sprintf("customTemplates[%d]", i))...)
		export.CustomTemplates = append(export.CustomTemplates, t)
	}

	switch sw := doc["software"].(type) {
	case []any:
		for i, item := range objects(sw, "software", &warnings) {
			var r software.Recommendation
			warnings = append(warnings, decodeFields(item, &r, fmt.Sprintf("software[%d]", i))...)
			export.Software = append(export.Software, r)
		}
	default:
		if truthy(sw) {
			warnings = append(warnings, "Ignored software: expected a list")
		}
	}
	return export, warnings
}

// objects returns the object entries of list. Other entries are reported.
func objects(list any, field string, warnings *[]string) []map[string]any {
	items, _ := list.([]any)
	out := make([]map[string]any, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			*warnings = append(*warnings, fmt.Sprintf("Ignored %s[%d]: expected an object", field, i))
			continue
		}
		out = append(out, normalizeConfigFiles(m))
	}
	return out
}

// normalizeConfigFiles rewrites legacy configFiles entries given as plain
// paths into objects.
func normalizeConfigFiles(m map[string]any) map[string]any {
	files, ok := m["configFiles"].([]any)
	if !ok {
		return m
	}
	cp := maps.Clone(m)
	fixed := make([]any, len(files))
	for i, f := range files {
		if path, ok := f.(string); ok {
			fixed[i] = map[string]any{"path": path}
			continue
		}
		fixed[i] = f
	}
	cp["configFiles"] = fixed
	return cp
}

// decodeFields decodes m into out. When the whole object does not fit, each
// field is decoded on its own and the ones that fail are left at their zero
// value.
func decodeFields(m map[string]any, out any, where string) []string {
	if data, err := json.Marshal(m); err == nil && json.Unmarshal(data, out) == nil {
		return nil
	}

	target := reflect.ValueOf(out).Elem()
	target.Set(reflect.Zero(target.Type()))

	var warnings []string
	for _, k := range slices.Sorted(maps.Keys(m)) {
		data, err := json.Marshal(map[string]any{k: m[k]})
		if err == nil {
			err = json.Unmarshal(data, reflect.New(target.Type()).Interface())
		}
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Ignored %s.%s: unexpected value", where, k))
			continue
		}
		_ = json.Unmarshal(data, out)
	}
	return warnings
}

func (r *MergeResolution) conflicts() []TemplateConflict {
	if r == nil {
		return nil
	}
	return r.Conflicts
}

func (p *Preview) clone() *Preview {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Document = p.Document.Clone()
	cp.Warnings = slices.Clone(p.Warnings)
	if p.Resolution != nil {
		conflicts := make([]TemplateConflict, len(p.Resolution.Conflicts))
		for i, c := range p.Resolution.Conflicts {
			c.Imported = c.Imported.Clone()
			c.Existing = c.Existing.Clone()
			conflicts[i] = c
		}
		cp.Resolution = &MergeResolution{Conflicts: conflicts}
	}
	return &cp
}
