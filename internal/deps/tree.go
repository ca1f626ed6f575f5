package deps

import (
	"github.com/openbootdotdev/devenv/internal/tools"
)

const maxTreeDepth = 50

type Node struct {
	ToolID       string `json:"toolId"`
	Name         string `json:"name"`
	Installed    bool   `json:"installed"`
	Dependencies []Node `json:"dependencies"`
}

type Tree struct {
	Root           Node `json:"root"`
	TotalTools     int  `json:"totalTools"`
	InstalledCount int  `json:"installedCount"`
	MissingCount   int  `json:"missingCount"`
}

// Dependent is a tool that lists another tool as a dependency.
type Dependent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BuildTree expands the dependencies of id. Every occurrence of a tool in
// the tree is counted, so shared dependencies count once per path.
func BuildTree(id string, installed map[string]bool, templates []tools.Template) (*Tree, error) {
	byID := tools.IndexByID(templates)
	if _, ok := byID[id]; !ok {
		return nil, &UnknownToolError{ID: id}
	}

	t := &Tree{}
	t.Root = t.build(id, byID, installed, map[string]bool{}, 1)
	t.MissingCount = t.TotalTools - t.InstalledCount
	return t, nil
}

func (t *Tree) build(id string, byID map[string]tools.Template, installed, path map[string]bool, depth int) Node {
	tmpl := byID[id]
	t.TotalTools++
	node := Node{
		ToolID:       id,
		Name:         tmpl.Name,
		Installed:    installed[id],
		Dependencies: []Node{},
	}
	if node.Installed {
		t.InstalledCount++
	}
	if depth >= maxTreeDepth {
		return node
	}

	path[id] = true
	defer delete(path, id)

	for _, dep := range tmpl.Dependencies {
		if _, ok := byID[dep]; !ok || path[dep] {
			continue
		}
		node.Dependencies = append(node.Dependencies, t.build(dep, byID, installed, path, depth+1))
	}
	return node
}

// ReverseDependencies lists the templates that depend on id, in template order.
func ReverseDependencies(id string, templates []tools.Template) []Dependent {
	out := []Dependent{}
	for _, t := range templates {
		for _, dep := range t.Dependencies {
			if dep == id {
				out = append(out, Dependent{ID: t.ID, Name: t.Name})
				break
			}
		}
	}
	return out
}
