package snapshot

import (
	"slices"

	"github.com/openbootdotdev/devenv/internal/software"
	"github.com/openbootdotdev/devenv/internal/tools"
)

const CurrentSchemaVersion = "1.0"

// SupportedSchemaVersions lists the versions the importer understands, oldest first.
var SupportedSchemaVersions = []string{"0.9", "1.0"}

// EnvironmentExport is the interchange document written by export and read by import.
type EnvironmentExport struct {
	SchemaVersion   string                    `json:"schemaVersion"`
	ExportedAt      string                    `json:"exportedAt"`
	Hostname        string                    `json:"hostname,omitempty"`
	Tools           []tools.Detection         `json:"tools"`
	CustomTemplates []tools.Template          `json:"customTemplates"`
	Software        []software.Recommendation `json:"software,omitempty"`
}

// ToolByID returns the first tool record with the given template id.
func (e *EnvironmentExport) ToolByID(id string) (tools.Detection, bool) {
	for _, t := range e.Tools {
		if t.TemplateID == id {
			return t, true
		}
	}
	return tools.Detection{}, false
}

// Clone returns a deep copy of e.
func (e *EnvironmentExport) Clone() *EnvironmentExport {
	if e == nil {
		return nil
	}
	cp := *e
	if e.Tools != nil {
		cp.Tools = make([]tools.Detection, len(e.Tools))
		for i, d := range e.Tools {
			d.ConfigFiles = slices.Clone(d.ConfigFiles)
			cp.Tools[i] = d
		}
	}
	if e.CustomTemplates != nil {
		cp.CustomTemplates = make([]tools.Template, len(e.CustomTemplates))
		for i, t := range e.CustomTemplates {
			cp.CustomTemplates[i] = t.Clone()
		}
	}
	if e.Software != nil {
		cp.Software = make([]software.Recommendation, len(e.Software))
		for i, r := range e.Software {
			r.InstallMethods = slices.Clone(r.InstallMethods)
			cp.Software[i] = r
		}
	}
	return &cp
}

func isSupportedVersion(v string) bool {
	for _, s := range SupportedSchemaVersions {
		if s == v {
			return true
		}
	}
	return false
}
