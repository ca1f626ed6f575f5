package tools

import (
	"embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed data/templates.yaml
var templatesYAML embed.FS

type templatesFile struct {
	Templates []Template `yaml:"templates"`
}

// Registry holds the builtin templates in declaration order.
type Registry struct {
	templates []Template
	byID      map[string]int
}

var (
	builtinOnce sync.Once
	builtinReg  *Registry
	builtinErr  error
)

// Builtins returns the registry parsed from the embedded templates file.
func Builtins() (*Registry, error) {
	builtinOnce.Do(func() {
		data, err := templatesYAML.ReadFile("data/templates.yaml")
		if err != nil {
			builtinErr = fmt.Errorf("failed to read embedded templates: %w", err)
			return
		}
		builtinReg, builtinErr = ParseRegistry(data)
	})
	return builtinReg, builtinErr
}

// MustBuiltins panics if the embedded templates are malformed.
func MustBuiltins() *Registry {
	r, err := Builtins()
	if err != nil {
		panic(err)
	}
	return r
}

func ParseRegistry(data []byte) (*Registry, error) {
	var f templatesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return NewRegistry(f.Templates)
}

func NewRegistry(templates []Template) (*Registry, error) {
	r := &Registry{byID: make(map[string]int, len(templates))}
	for _, t := range templates {
		if err := Validate(t); err != nil {
			return nil, fmt.Errorf("builtin template %q: %w", t.ID, err)
		}
		if _, dup := r.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate builtin template id: %s", t.ID)
		}
		if t.ConfigFiles == nil {
			t.ConfigFiles = []ConfigFileLocation{}
		}
		r.byID[t.ID] = len(r.templates)
		r.templates = append(r.templates, t)
	}
	return r, nil
}

func (r *Registry) Get(id string) (Template, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Template{}, false
	}
	return r.templates[i], true
}

// All returns a copy of the builtin templates.
func (r *Registry) All() []Template {
	out := make([]Template, len(r.templates))
	copy(out, r.templates)
	return out
}

func (r *Registry) IDs() []string {
	ids := make([]string, len(r.templates))
	for i, t := range r.templates {
		ids[i] = t.ID
	}
	return ids
}

func (r *Registry) IsBuiltin(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// DisplayName returns the template name, or the id itself when unknown.
func (r *Registry) DisplayName(id string) string {
	if t, ok := r.Get(id); ok {
		return t.Name
	}
	return id
}
