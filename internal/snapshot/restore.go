package snapshot

import (
	"fmt"
	"time"

	"github.com/openbootdotdev/devenv/internal/logging"
	"github.com/openbootdotdev/devenv/internal/software"
	"github.com/openbootdotdev/devenv/internal/state"
	"github.com/openbootdotdev/devenv/internal/tools"
)

const (
	RestoreKey    = "restore-state"
	RestoreExpiry = 24 * time.Hour
)

// RestoreRecord is the last confirmed import, kept so missing items can be
// installed later.
type RestoreRecord struct {
	Data      *EnvironmentExport `json:"data"`
	Timestamp time.Time          `json:"timestamp"`
}

func (r *RestoreRecord) Expired(now time.Time) bool {
	return now.Sub(r.Timestamp) > RestoreExpiry
}

func SaveRestore(s state.Store, doc *EnvironmentExport, now time.Time) error {
	if err := s.Set(RestoreKey, RestoreRecord{Data: doc, Timestamp: now.UTC()}); err != nil {
		return fmt.Errorf("failed to save restore state: %w", err)
	}
	return nil
}

// LoadRestore returns the stored record, or nil when there is none. Expired
// and unreadable records are deleted.
func LoadRestore(s state.Store, now time.Time) (*RestoreRecord, error) {
	var rec RestoreRecord
	ok, err := s.Get(RestoreKey, &rec)
	if err != nil {
		logging.GetLogger("restore").Warn().Err(err).Msg("discarding unreadable restore state")
		return nil, ClearRestore(s)
	}
	if !ok || rec.Data == nil {
		return nil, nil
	}
	if rec.Expired(now) {
		return nil, ClearRestore(s)
	}
	return &rec, nil
}

func ClearRestore(s state.Store) error {
	if err := s.Delete(RestoreKey); err != nil {
		return fmt.Errorf("failed to clear restore state: %w", err)
	}
	return nil
}

type RestoreItemKind string

const (
	RestoreTool     RestoreItemKind = "tool"
	RestoreSoftware RestoreItemKind = "software"
)

// RestoreItem is one entry of a recorded environment with its status on
// this machine.
type RestoreItem struct {
	Kind      RestoreItemKind
	ID        string
	Name      string
	Installed bool
	Tool      *tools.Detection
	Software  *software.Recommendation
}

type RestorePlan struct {
	Installed []RestoreItem
	Missing   []RestoreItem
}

// RestoreItems splits the recorded tools and software into installed and
// missing. Current detections and software status win over what the record
// says; items without a current status keep the recorded one.
func RestoreItems(doc *EnvironmentExport, current []tools.Detection, softwareInstalled map[string]bool, names func(id string) string) RestorePlan {
	var plan RestorePlan
	if doc == nil {
		return plan
	}

	now := make(map[string]bool, len(current))
	for _, d := range current {
		if _, seen := now[d.TemplateID]; !seen {
			now[d.TemplateID] = d.Installed
		}
	}

	seen := make(map[string]bool)
	for i := range doc.Tools {
		rec := doc.Tools[i]
		if seen[rec.TemplateID] {
			continue
		}
		seen[rec.TemplateID] = true

		installed := rec.Installed
		if v, ok := now[rec.TemplateID]; ok {
			installed = v
		}
		name := rec.TemplateID
		if names != nil {
			name = names(rec.TemplateID)
		}
		plan.add(RestoreItem{Kind: RestoreTool, ID: rec.TemplateID, Name: name, Installed: installed, Tool: &rec})
	}

	for i := range doc.Software {
		rec := doc.Software[i]
		installed := rec.Installed
		if v, ok := softwareInstalled[rec.ID]; ok {
			installed = v
		}
		plan.add(RestoreItem{Kind: RestoreSoftware, ID: rec.ID, Name: rec.Name, Installed: installed, Software: &rec})
	}
	return plan
}

func (p *RestorePlan) add(item RestoreItem) {
	if item.Installed {
		p.Installed = append(p.Installed, item)
	} else {
		p.Missing = append(p.Missing, item)
	}
}

// MissingIDs returns the ids of missing items of the given kind.
func (p RestorePlan) MissingIDs(kind RestoreItemKind) []string {
	var ids []string
	for _, item := range p.Missing {
		if item.Kind == kind {
			ids = append(ids, item.ID)
		}
	}
	return ids
}
