package tools

import "slices"

// VersionParser selects which stream of the version command carries the version string.
type VersionParser string

const (
	ParserStdout          VersionParser = "stdout"
	ParserStderr          VersionParser = "stderr"
	ParserStdoutFirstLine VersionParser = "stdout-first-line"
)

func (p VersionParser) Valid() bool {
	switch p {
	case ParserStdout, ParserStderr, ParserStdoutFirstLine:
		return true
	}
	return false
}

const (
	MethodBrew   = "brew"
	MethodDMG    = "dmg"
	MethodScript = "script"
)

// Template describes how to detect and install a command-line tool.
type Template struct {
	ID             string               `json:"id" yaml:"id"`
	Name           string               `json:"name" yaml:"name"`
	Executable     string               `json:"executable" yaml:"executable"`
	VersionCommand string               `json:"versionCommand" yaml:"versionCommand"`
	VersionParser  VersionParser        `json:"versionParser" yaml:"versionParser"`
	ConfigFiles    []ConfigFileLocation `json:"configFiles" yaml:"configFiles"`
	InstallMethods []InstallMethod      `json:"installMethods,omitempty" yaml:"installMethods,omitempty"`
	Dependencies   []string             `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Category       string               `json:"category,omitempty" yaml:"category,omitempty"`
	Emoji          string               `json:"emoji,omitempty" yaml:"emoji,omitempty"`
}

type ConfigFileLocation struct {
	Path        string `json:"path" yaml:"path"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type InstallMethod struct {
	Type            string   `json:"type" yaml:"type"`
	BrewCaskName    string   `json:"brewCaskName,omitempty" yaml:"brewCaskName,omitempty"`
	BrewFormulaName string   `json:"brewFormulaName,omitempty" yaml:"brewFormulaName,omitempty"`
	BrewTap         string   `json:"brewTap,omitempty" yaml:"brewTap,omitempty"`
	DMGURL          string   `json:"dmgUrl,omitempty" yaml:"dmgUrl,omitempty"`
	DMGInstallSteps []string `json:"dmgInstallSteps,omitempty" yaml:"dmgInstallSteps,omitempty"`
	ScriptCommands  []string `json:"scriptCommands,omitempty" yaml:"scriptCommands,omitempty"`
}

// Clone returns a copy that shares no slices with t.
func (t Template) Clone() Template {
	t.ConfigFiles = slices.Clone(t.ConfigFiles)
	t.Dependencies = slices.Clone(t.Dependencies)
	if t.InstallMethods != nil {
		methods := make([]InstallMethod, len(t.InstallMethods))
		for i, m := range t.InstallMethods {
			m.DMGInstallSteps = slices.Clone(m.DMGInstallSteps)
			m.ScriptCommands = slices.Clone(m.ScriptCommands)
			methods[i] = m
		}
		t.InstallMethods = methods
	}
	return t
}

// Detection is the result of probing the machine for one template.
type Detection struct {
	TemplateID     string             `json:"templateId"`
	Installed      bool               `json:"installed"`
	Version        string             `json:"version,omitempty"`
	ExecutablePath string             `json:"executablePath,omitempty"`
	ConfigFiles    []ConfigFileStatus `json:"configFiles"`
	DetectedAt     string             `json:"detectedAt"`
}

type ConfigFileStatus struct {
	Path    string `json:"path"`
	Exists  bool   `json:"exists"`
	CanRead bool   `json:"can_read"`
}

// InstalledSet returns the ids of installed detections.
func InstalledSet(detections []Detection) map[string]bool {
	installed := make(map[string]bool, len(detections))
	for _, d := range detections {
		if d.Installed {
			installed[d.TemplateID] = true
		}
	}
	return installed
}

// IndexByID maps template ids to templates. The first occurrence wins.
func IndexByID(templates []Template) map[string]Template {
	idx := make(map[string]Template, len(templates))
	for _, t := range templates {
		if _, ok := idx[t.ID]; !ok {
			idx[t.ID] = t
		}
	}
	return idx
}
