package deps

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbootdotdev/devenv/internal/tools"
)

func tmpl(id string, deps ...string) tools.Template {
	return tools.Template{
		ID:            id,
		Name:          "Tool " + id,
		Executable:    id,
		VersionParser: tools.ParserStdout,
		Dependencies:  deps,
	}
}

func TestResolveOrder(t *testing.T) {
	tests := []struct {
		name      string
		templates []tools.Template
		ids       []string
		want      []string
	}{
		{
			name:      "single tool",
			templates: []tools.Template{tmpl("tool1")},
			ids:       []string{"tool1"},
			want:      []string{"tool1"},
		},
		{
			name:      "dependency first",
			templates: []tools.Template{tmpl("base"), tmpl("dependent", "base")},
			ids:       []string{"dependent", "base"},
			want:      []string{"base", "dependent"},
		},
		{
			name:      "chain",
			templates: []tools.Template{tmpl("a"), tmpl("b", "a"), tmpl("c", "b")},
			ids:       []string{"c", "b", "a"},
			want:      []string{"a", "b", "c"},
		},
		{
			name:      "multiple dependencies keep input order among ready tools",
			templates: []tools.Template{tmpl("a"), tmpl("b"), tmpl("c", "a", "b")},
			ids:       []string{"c", "b", "a"},
			want:      []string{"b", "a", "c"},
		},
		{
			name:      "diamond",
			templates: []tools.Template{tmpl("a"), tmpl("b", "a"), tmpl("c", "a"), tmpl("d", "b", "c")},
			ids:       []string{"d", "c", "b", "a"},
			want:      []string{"a", "c", "b", "d"},
		},
		{
			name:      "dependencies outside the set are ignored",
			templates: []tools.Template{tmpl("node"), tmpl("gemini", "node")},
			ids:       []string{"gemini"},
			want:      []string{"gemini"},
		},
		{
			name:      "independent tools keep input order",
			templates: []tools.Template{tmpl("x"), tmpl("y"), tmpl("z")},
			ids:       []string{"z", "x", "y"},
			want:      []string{"z", "x", "y"},
		},
		{
			name:      "duplicates collapse",
			templates: []tools.Template{tmpl("a"), tmpl("b", "a")},
			ids:       []string{"b", "a", "b"},
			want:      []string{"a", "b"},
		},
		{
			name:      "empty input",
			templates: []tools.Template{tmpl("a")},
			ids:       nil,
			want:      []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveOrder(tt.ids, tt.templates)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveOrder_UnknownTool(t *testing.T) {
	_, err := ResolveOrder([]string{"a", "ghost"}, []tools.Template{tmpl("a")})
	require.Error(t, err)
	assert.EqualError(t, err, "unknown tool ID: ghost")

	var unknown *UnknownToolError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "ghost", unknown.ID)
}

func TestResolveOrder_Cycles(t *testing.T) {
	tests := []struct {
		name      string
		templates []tools.Template
		ids       []string
	}{
		{"two node cycle", []tools.Template{tmpl("a", "b"), tmpl("b", "a")}, []string{"a", "b"}},
		{"three node cycle", []tools.Template{tmpl("a", "c"), tmpl("b", "a"), tmpl("c", "b")}, []string{"a", "b", "c"}},
		{"self dependency", []tools.Template{tmpl("a", "a")}, []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveOrder(tt.ids, tt.templates)
			assert.ErrorIs(t, err, ErrCircularDependency)
		})
	}
}

func TestResolveOrder_CycleOutsideSetIsIgnored(t *testing.T) {
	templates := []tools.Template{tmpl("a", "b"), tmpl("b", "a")}
	got, err := ResolveOrder([]string{"a"}, templates)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got)
}

func TestClosure(t *testing.T) {
	templates := []tools.Template{
		tmpl("brew"),
		tmpl("node"),
		tmpl("python"),
		tmpl("uv", "python"),
		tmpl("gemini", "node"),
		tmpl("fish", "brew"),
	}

	got, err := Closure([]string{"gemini", "uv", "fish"}, templates, map[string]bool{"brew": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"gemini", "uv", "fish", "node", "python"}, got)

	order, err := ResolveOrder(got, templates)
	require.NoError(t, err)
	assert.Equal(t, []string{"fish", "node", "gemini", "python", "uv"}, order)
}

func TestClosure_Transitive(t *testing.T) {
	templates := []tools.Template{tmpl("a"), tmpl("b", "a"), tmpl("c", "b")}
	got, err := Closure([]string{"c"}, templates, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, got)
}

func TestClosure_UnknownDependency(t *testing.T) {
	_, err := Closure([]string{"a"}, []tools.Template{tmpl("a", "missing")}, nil)
	var unknown *UnknownToolError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "missing", unknown.ID)
}

func TestBuildTree(t *testing.T) {
	templates := []tools.Template{
		tmpl("a"),
		tmpl("b", "a"),
		tmpl("c", "a"),
		tmpl("d", "b", "c", "d", "unknown"),
	}

	tree, err := BuildTree("d", map[string]bool{"a": true, "c": true}, templates)
	require.NoError(t, err)

	assert.Equal(t, "d", tree.Root.ToolID)
	assert.Equal(t, "Tool d", tree.Root.Name)
	assert.False(t, tree.Root.Installed)
	require.Len(t, tree.Root.Dependencies, 2)
	assert.Equal(t, "b", tree.Root.Dependencies[0].ToolID)
	assert.Equal(t, "a", tree.Root.Dependencies[0].Dependencies[0].ToolID)
	assert.True(t, tree.Root.Dependencies[0].Dependencies[0].Installed)
	assert.Equal(t, "c", tree.Root.Dependencies[1].ToolID)

	// d, b, a, c, a
	assert.Equal(t, 5, tree.TotalTools)
	assert.Equal(t, 3, tree.InstalledCount)
	assert.Equal(t, 2, tree.MissingCount)
}

func TestBuildTree_CycleTerminates(t *testing.T) {
	templates := []tools.Template{tmpl("a", "b"), tmpl("b", "a")}
	tree, err := BuildTree("a", nil, templates)
	require.NoError(t, err)
	assert.Equal(t, 2, tree.TotalTools)
	require.Len(t, tree.Root.Dependencies, 1)
	assert.Empty(t, tree.Root.Dependencies[0].Dependencies)
}

func TestBuildTree_DepthCap(t *testing.T) {
	var templates []tools.Template
	for i := 0; i < 60; i++ {
		id := string(rune('A'+i%26)) + string(rune('a'+i/26))
		next := string(rune('A'+(i+1)%26)) + string(rune('a'+(i+1)/26))
		if i == 59 {
			templates = append(templates, tmpl(id))
			continue
		}
		templates = append(templates, tmpl(id, next))
	}

	tree, err := BuildTree(templates[0].ID, nil, templates)
	require.NoError(t, err)
	assert.Equal(t, maxTreeDepth, tree.TotalTools)
}

func TestBuildTree_Unknown(t *testing.T) {
	_, err := BuildTree("ghost", nil, nil)
	assert.EqualError(t, err, "unknown tool ID: ghost")
}

func TestReverseDependencies(t *testing.T) {
	templates := []tools.Template{tmpl("node"), tmpl("gemini", "node"), tmpl("n", "node"), tmpl("uv", "python")}

	assert.Equal(t, []Dependent{{ID: "gemini", Name: "Tool gemini"}, {ID: "n", Name: "Tool n"}},
		ReverseDependencies("node", templates))
	assert.Empty(t, ReverseDependencies("brew", templates))
}

func TestResolveOrder_Builtins(t *testing.T) {
	all := tools.MustBuiltins().All()
	order, err := ResolveOrder([]string{"lazygit", "gemini", "node", "brew"}, all)
	require.NoError(t, err)
	assert.Equal(t, []string{"node", "gemini", "brew", "lazygit"}, order)
}
