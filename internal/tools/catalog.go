package tools

import (
	"context"
	"fmt"

	"github.com/sahilm/fuzzy"
)

// Catalog joins the builtin registry with the custom template store.
type Catalog struct {
	Builtins *Registry
	Store    *Store
}

func NewCatalog(builtins *Registry, store *Store) *Catalog {
	return &Catalog{Builtins: builtins, Store: store}
}

// ListTemplates returns builtins followed by custom templates. Custom
// templates that reuse a builtin id are left out.
func (c *Catalog) ListTemplates(ctx context.Context) ([]Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := c.Builtins.All()
	custom, err := c.CustomTemplates()
	if err != nil {
		return nil, err
	}
	return append(out, custom...), nil
}

func (c *Catalog) CustomTemplates() ([]Template, error) {
	stored, err := c.Store.List()
	if err != nil {
		return nil, err
	}
	out := stored[:0]
	for _, t := range stored {
		if !c.Builtins.IsBuiltin(t.ID) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (c *Catalog) IsBuiltin(id string) bool { return c.Builtins.IsBuiltin(id) }

func (c *Catalog) SaveTemplate(t Template) error {
	if c.Builtins.IsBuiltin(t.ID) {
		return &templateError{msg: fmt.Sprintf("Cannot override built-in template '%s'", t.ID), kind: ErrBuiltinTemplate}
	}
	return c.Store.Save(t)
}

func (c *Catalog) DeleteTemplate(id string) error {
	if c.Builtins.IsBuiltin(id) {
		return &templateError{msg: fmt.Sprintf("Cannot delete built-in template '%s'", id), kind: ErrBuiltinTemplate}
	}
	return c.Store.Delete(id)
}

// Lookup finds a template by id, builtins first.
func (c *Catalog) Lookup(ctx context.Context, id string) (Template, error) {
	if t, ok := c.Builtins.Get(id); ok {
		return t, nil
	}
	return c.Store.Get(id)
}

type templateSource []Template

func (s templateSource) String(i int) string { return s[i].ID + " " + s[i].Name + " " + s[i].Category }
func (s templateSource) Len() int            { return len(s) }

// Search fuzzy-matches templates on id, name and category, best match first.
// An empty query returns the input unchanged.
func Search(templates []Template, query string) []Template {
	if query == "" {
		return templates
	}
	matches := fuzzy.FindFrom(query, templateSource(templates))
	out := make([]Template, 0, len(matches))
	for _, m := range matches {
		out = append(out, templates[m.Index])
	}
	return out
}
