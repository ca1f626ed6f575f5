package snapshot

import (
	"fmt"

	"github.com/openbootdotdev/devenv/internal/tools"
)

const importedSuffix = " (imported)"

type MergeOutcome struct {
	Templates []tools.Template
	Warnings  []string
}

// ApplyMergeStrategies returns the templates to persist, in their original order.
func ApplyMergeStrategies(imported []tools.Template, resolution *MergeResolution) MergeOutcome {
	out := MergeOutcome{Templates: make([]tools.Template, 0, len(imported))}

	for _, t := range imported {
		conflict := resolution.find(t.ID)
		if conflict == nil {
			out.Templates = append(out.Templates, t)
			continue
		}

		switch conflict.Strategy {
		case StrategyOverwrite:
			out.Templates = append(out.Templates, conflict.Imported)
		case StrategyRename:
			if conflict.NewName == "" {
				out.Warnings = append(out.Warnings,
					fmt.Sprintf("Template '%s' was not imported: rename requires a new name", t.ID))
				continue
			}
			renamed := conflict.Imported
			renamed.ID = conflict.NewName
			renamed.Name = conflict.Imported.Name + importedSuffix
			out.Templates = append(out.Templates, renamed)
		default:
			// skip
		}
	}
	return out
}

// GenerateUniqueID returns base-imported, or base-imported-N for the
// smallest N >= 1 that is not already taken.
func GenerateUniqueID(base string, existing map[string]bool) string {
	id := base + "-imported"
	for n := 1; existing[id]; n++ {
		id = fmt.Sprintf("%s-imported-%d", base, n)
	}
	return id
}

// FillRenameIDs returns a copy of conflicts in which every rename without a
// new id gets one from GenerateUniqueID. Ids chosen by the user are reserved
// first so a generated id never takes one of them.
func FillRenameIDs(conflicts []TemplateConflict, taken map[string]bool) []TemplateConflict {
	out := append([]TemplateConflict(nil), conflicts...)
	used := make(map[string]bool, len(taken)+len(out))
	for id := range taken {
		used[id] = true
	}
	for _, c := range out {
		if c.Strategy == StrategyRename && c.NewName != "" {
			used[c.NewName] = true
		}
	}
	for i := range out {
		if out[i].Strategy != StrategyRename || out[i].NewName != "" {
			continue
		}
		out[i].NewName = GenerateUniqueID(out[i].Imported.ID, used)
		used[out[i].NewName] = true
	}
	return out
}
