package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aymanbagabas/go-udiff"

	"github.com/openbootdotdev/devenv/internal/tools"
)

type MergeStrategy string

const (
	StrategySkip      MergeStrategy = "skip"
	StrategyOverwrite MergeStrategy = "overwrite"
	StrategyRename    MergeStrategy = "rename"
)

func ParseStrategy(s string) (MergeStrategy, error) {
	switch MergeStrategy(s) {
	case StrategySkip, StrategyOverwrite, StrategyRename:
		return MergeStrategy(s), nil
	}
	return "", fmt.Errorf("unknown merge strategy %q (expected skip, overwrite or rename)", s)
}

// TemplateLister lists every template known locally, builtin and custom.
type TemplateLister interface {
	ListTemplates(ctx context.Context) ([]tools.Template, error)
}

// TemplateConflict pairs an imported template with the local one sharing its id.
type TemplateConflict struct {
	Imported tools.Template `json:"imported"`
	Existing tools.Template `json:"existing"`
	Strategy MergeStrategy  `json:"strategy"`
	NewName  string         `json:"newName,omitempty"`
}

type MergeResolution struct {
	Conflicts []TemplateConflict `json:"conflicts"`
}

func (r *MergeResolution) HasConflicts() bool {
	return r != nil && len(r.Conflicts) > 0
}

// ResolvedCount is the number of conflicts with a strategy other than skip.
func (r *MergeResolution) ResolvedCount() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, c := range r.Conflicts {
		if c.Strategy != StrategySkip {
			n++
		}
	}
	return n
}

func (r *MergeResolution) find(id string) *TemplateConflict {
	if r == nil {
		return nil
	}
	for i := range r.Conflicts {
		if r.Conflicts[i].Imported.ID == id {
			return &r.Conflicts[i]
		}
	}
	return nil
}

// DetectConflicts compares imported templates with the local ones. Templates
// with a matching id but different content become conflicts defaulting to skip.
func DetectConflicts(ctx context.Context, lister TemplateLister, imported []tools.Template) (*MergeResolution, error) {
	existing, err := lister.ListTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list existing templates: %w", err)
	}
	byID := tools.IndexByID(existing)

	res := &MergeResolution{Conflicts: []TemplateConflict{}}
	for _, imp := range imported {
		local, ok := byID[imp.ID]
		if !ok {
			continue
		}
		same, err := sameTemplate(imp, local)
		if err != nil {
			return nil, err
		}
		if !same {
			res.Conflicts = append(res.Conflicts, TemplateConflict{
				Imported: imp,
				Existing: local,
				Strategy: StrategySkip,
			})
		}
	}
	return res, nil
}

func sameTemplate(a, b tools.Template) (bool, error) {
	ja, err := canonicalJSON(a, "")
	if err != nil {
		return false, err
	}
	jb, err := canonicalJSON(b, "")
	if err != nil {
		return false, err
	}
	return bytes.Equal(ja, jb), nil
}

// canonicalJSON encodes t with nil lists written as empty lists.
func canonicalJSON(t tools.Template, indent string) ([]byte, error) {
	if t.ConfigFiles == nil {
		t.ConfigFiles = []tools.ConfigFileLocation{}
	}
	var (
		data []byte
		err  error
	)
	if indent != "" {
		data, err = json.MarshalIndent(t, "", indent)
	} else {
		data, err = json.Marshal(t)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode template %s: %w", t.ID, err)
	}
	return data, nil
}

// ConflictDiff renders a unified diff from the existing template to the imported one.
func ConflictDiff(c TemplateConflict) string {
	from, err := canonicalJSON(c.Existing, "  ")
	if err != nil {
		return ""
	}
	to, err := canonicalJSON(c.Imported, "  ")
	if err != nil {
		return ""
	}
	name := c.Imported.ID + ".json"
	diff := udiff.Unified("existing/"+name, "imported/"+name, string(from)+"\n", string(to)+"\n")
	return strings.TrimRight(diff, "\n")
}
