package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrBuiltinTemplate  = errors.New("built-in template")
)

// templateError carries a user-facing message while matching a sentinel with errors.Is.
type templateError struct {
	msg  string
	kind error
}

func (e *templateError) Error() string { return e.msg }
func (e *templateError) Unwrap() error { return e.kind }

func notFound(id string) error {
	return &templateError{msg: fmt.Sprintf("Template '%s' not found", id), kind: ErrTemplateNotFound}
}

// Validate checks the fields a template needs before it can be stored or detected.
func Validate(t Template) error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("Template ID cannot be empty")
	}
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("Template name cannot be empty")
	}
	if strings.TrimSpace(t.Executable) == "" {
		return errors.New("Executable cannot be empty")
	}
	if strings.ContainsAny(t.Executable, `/\`) {
		return errors.New("Executable should be a command name, not a path")
	}
	if !t.VersionParser.Valid() {
		return errors.New("version_parser must be 'stdout', 'stderr', or 'stdout-first-line'")
	}
	for _, cf := range t.ConfigFiles {
		if strings.TrimSpace(cf.Path) == "" {
			return errors.New("Config file path cannot be empty")
		}
	}
	for _, dep := range t.Dependencies {
		if strings.TrimSpace(dep) == "" {
			return errors.New("Dependency ID cannot be empty")
		}
	}
	return nil
}

// Store keeps user-defined templates as one JSON file per template.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(id string) (string, error) {
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid template id: %q", id)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

// List returns the stored templates sorted by id. A missing directory is empty.
func (s *Store) List() ([]Template, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Template{}, nil
		}
		return nil, fmt.Errorf("failed to read custom templates: %w", err)
	}

	out := make([]Template, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}
		var t Template
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", e.Name(), err)
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Get(id string) (Template, error) {
	p, err := s.path(id)
	if err != nil {
		return Template{}, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return Template{}, notFound(id)
		}
		return Template{}, fmt.Errorf("failed to read template: %w", err)
	}
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return Template{}, fmt.Errorf("failed to parse template: %w", err)
	}
	return t, nil
}

// Save validates the template and writes it atomically (temp file + rename).
func (s *Store) Save(t Template) error {
	if err := Validate(t); err != nil {
		return err
	}
	p, err := s.path(t.ID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create templates directory: %w", err)
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal template: %w", err)
	}

	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename template file: %w", err)
	}
	return nil
}

func (s *Store) Delete(id string) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return notFound(id)
		}
		return fmt.Errorf("failed to delete template: %w", err)
	}
	return nil
}
