package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/openbootdotdev/devenv/internal/logging"
	"github.com/openbootdotdev/devenv/internal/state"
	"github.com/openbootdotdev/devenv/internal/tools"
)

// TemplateSaver stores custom templates.
type TemplateSaver interface {
	SaveTemplate(t tools.Template) error
	IsBuiltin(id string) bool
}

// StorePersister writes imported custom templates into the template store
// and records the document for the restore view.
type StorePersister struct {
	Templates TemplateSaver
	State     state.Store
	Now       func() time.Time
}

func NewStorePersister(templates TemplateSaver, st state.Store) *StorePersister {
	return &StorePersister{Templates: templates, State: st, Now: time.Now}
}

// ImportEnvironment saves every custom template except those reusing a
// built-in id. The returned document lists only the saved templates.
func (p *StorePersister) ImportEnvironment(ctx context.Context, doc *EnvironmentExport) (*EnvironmentExport, error) {
	log := logging.GetLogger("importer")

	stored := *doc
	stored.CustomTemplates = make([]tools.Template, 0, len(doc.CustomTemplates))
	for _, t := range doc.CustomTemplates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if p.Templates.IsBuiltin(t.ID) {
			log.Info().Str("template", t.ID).Msg("skipping custom template with built-in id")
			continue
		}
		if t.VersionParser == "" {
			t.VersionParser = tools.ParserStdout
		}
		if err := p.Templates.SaveTemplate(t); err != nil {
			return nil, fmt.Errorf("failed to save template '%s': %w", t.ID, err)
		}
		stored.CustomTemplates = append(stored.CustomTemplates, t)
	}

	if p.State != nil {
		now := time.Now
		if p.Now != nil {
			now = p.Now
		}
		if err := SaveRestore(p.State, &stored, now()); err != nil {
			return nil, err
		}
	}
	return &stored, nil
}
