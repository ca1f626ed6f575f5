package software

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"
)

//go:embed data/recommendations.yaml
var recommendationsYAML embed.FS

const (
	MethodBrew    = "brew"
	MethodGitHub  = "github"
	MethodWebsite = "website"
)

// OverrideFileName is looked up in the config directory and replaces the
// embedded catalog when present.
const OverrideFileName = "software-recommendations.yaml"

type Category struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Emoji string `json:"emoji" yaml:"emoji"`
}

type InstallMethod struct {
	Type         string `json:"type" yaml:"type"`
	Cask         string `json:"cask,omitempty" yaml:"cask,omitempty"`
	Owner        string `json:"owner,omitempty" yaml:"owner,omitempty"`
	Repo         string `json:"repo,omitempty" yaml:"repo,omitempty"`
	AssetPattern string `json:"assetPattern,omitempty" yaml:"assetPattern,omitempty"`
	URL          string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Recommendation is a desktop application suggested to the user.
type Recommendation struct {
	ID             string          `json:"id" yaml:"id"`
	Name           string          `json:"name" yaml:"name"`
	Description    string          `json:"description" yaml:"description"`
	Category       string          `json:"category" yaml:"category"`
	Emoji          string          `json:"emoji" yaml:"emoji"`
	InstallMethods []InstallMethod `json:"installMethods" yaml:"installMethods"`
	Installed      bool            `json:"installed" yaml:"installed,omitempty"`
}

// Method returns the first install method of the given type.
func (r Recommendation) Method(kind string) (InstallMethod, bool) {
	for _, m := range r.InstallMethods {
		if m.Type == kind {
			return m, true
		}
	}
	return InstallMethod{}, false
}

type Catalog struct {
	Categories []Category       `json:"categories" yaml:"categories"`
	Software   []Recommendation `json:"software" yaml:"software"`
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	data, err := recommendationsYAML.ReadFile("data/recommendations.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded catalog: %w", err)
	}
	return ParseCatalog(data)
}

// LoadCatalog reads overridePath when it exists and falls back to the
// embedded catalog otherwise.
func LoadCatalog(overridePath string) (*Catalog, error) {
	if overridePath != "" {
		data, err := os.ReadFile(overridePath)
		switch {
		case err == nil:
			c, err := ParseCatalog(data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", overridePath, err)
			}
			return c, nil
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read catalog %s: %w", overridePath, err)
		}
	}
	return DefaultCatalog()
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) Validate() error {
	categories := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		if categories[cat.ID] {
			return fmt.Errorf("Duplicate category ID: %s", cat.ID)
		}
		categories[cat.ID] = true
	}

	seen := make(map[string]bool, len(c.Software))
	for _, s := range c.Software {
		if seen[s.ID] {
			return fmt.Errorf("Duplicate software ID: %s", s.ID)
		}
		seen[s.ID] = true

		if !categories[s.Category] {
			return fmt.Errorf("Software '%s' references unknown category '%s'", s.ID, s.Category)
		}

		for _, m := range s.InstallMethods {
			switch m.Type {
			case MethodBrew:
				if m.Cask == "" {
					return fmt.Errorf("Software '%s' has brew install method without cask name", s.ID)
				}
			case MethodGitHub:
				if m.Owner == "" || m.Repo == "" {
					return fmt.Errorf("Software '%s' has github install method without owner/repo", s.ID)
				}
			case MethodWebsite:
				if m.URL == "" {
					return fmt.Errorf("Software '%s' has website install method without url", s.ID)
				}
			default:
				return fmt.Errorf("Software '%s' has unknown install method type: %s", s.ID, m.Type)
			}
		}
	}
	return nil
}

func (c *Catalog) Get(id string) (Recommendation, bool) {
	for _, s := range c.Software {
		if s.ID == id {
			return s, true
		}
	}
	return Recommendation{}, false
}

// CategoryName returns the display name of a category, or the id when unknown.
func (c *Catalog) CategoryName(id string) string {
	for _, cat := range c.Categories {
		if cat.ID == id {
			return cat.Name
		}
	}
	return id
}

func (c *Catalog) ByCategory(id string) []Recommendation {
	var out []Recommendation
	for _, s := range c.Software {
		if s.Category == id {
			out = append(out, s)
		}
	}
	return out
}

type recommendationSource []Recommendation

func (s recommendationSource) String(i int) string {
	return strings.Join([]string{s[i].Name, s[i].ID, s[i].Description}, " ")
}

func (s recommendationSource) Len() int { return len(s) }

// Search fuzzy-matches name, id and description. Best matches come first.
func (c *Catalog) Search(query string) []Recommendation {
	if strings.TrimSpace(query) == "" {
		return append([]Recommendation(nil), c.Software...)
	}
	matches := fuzzy.FindFrom(query, recommendationSource(c.Software))
	out := make([]Recommendation, 0, len(matches))
	for _, m := range matches {
		out = append(out, c.Software[m.Index])
	}
	return out
}
