package software

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)
	assert.Len(t, c.Categories, 7)
	assert.Len(t, c.Software, 27)

	gh, ok := c.Get("github-cli")
	require.True(t, ok)
	m, ok := gh.Method(MethodGitHub)
	require.True(t, ok)
	assert.Equal(t, "cli", m.Owner)
	assert.Equal(t, "cli", m.Repo)

	_, ok = gh.Method(MethodWebsite)
	assert.False(t, ok)
}

func TestCatalog_CategoryName(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)
	assert.Equal(t, "Code Editors", c.CategoryName("editors"))
	assert.Equal(t, "games", c.CategoryName("games"))
}

func TestCatalog_Validate(t *testing.T) {
	cats := "categories:\n  - {id: editors, name: Editors}\n"

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "valid",
			yaml: cats + "software:\n  - {id: a, name: A, category: editors, installMethods: [{type: brew, cask: a}]}\n",
		},
		{
			name:    "duplicate category",
			yaml:    "categories:\n  - {id: x, name: X}\n  - {id: x, name: Y}\n",
			wantErr: "Duplicate category ID: x",
		},
		{
			name:    "duplicate software",
			yaml:    cats + "software:\n  - {id: a, category: editors}\n  - {id: a, category: editors}\n",
			wantErr: "Duplicate software ID: a",
		},
		{
			name:    "unknown category",
			yaml:    cats + "software:\n  - {id: a, category: games}\n",
			wantErr: "Software 'a' references unknown category 'games'",
		},
		{
			name:    "brew without cask",
			yaml:    cats + "software:\n  - {id: a, category: editors, installMethods: [{type: brew}]}\n",
			wantErr: "Software 'a' has brew install method without cask name",
		},
		{
			name:    "github without repo",
			yaml:    cats + "software:\n  - {id: a, category: editors, installMethods: [{type: github, owner: o}]}\n",
			wantErr: "Software 'a' has github install method without owner/repo",
		},
		{
			name:    "website without url",
			yaml:    cats + "software:\n  - {id: a, category: editors, installMethods: [{type: website}]}\n",
			wantErr: "Software 'a' has website install method without url",
		},
		{
			name:    "unknown method",
			yaml:    cats + "software:\n  - {id: a, category: editors, installMethods: [{type: mas}]}\n",
			wantErr: "Software 'a' has unknown install method type: mas",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestLoadCatalog_Override(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, OverrideFileName)

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, c.Software, 27, "missing override falls back to the embedded catalog")

	require.NoError(t, os.WriteFile(path, []byte(
		"categories:\n  - {id: editors, name: Editors}\nsoftware:\n  - {id: zed, name: Zed, category: editors, installMethods: [{type: brew, cask: zed}]}\n",
	), 0644))
	c, err = LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, c.Software, 1)
	assert.Equal(t, "zed", c.Software[0].ID)

	require.NoError(t, os.WriteFile(path, []byte("software:\n  - {id: a, category: nope}\n"), 0644))
	_, err = LoadCatalog(path)
	assert.ErrorContains(t, err, "references unknown category 'nope'")
}

func TestCatalog_Search(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	assert.Len(t, c.Search("  "), len(c.Software))

	results := c.Search("vscode")
	require.NotEmpty(t, results)
	assert.Equal(t, "vscode", results[0].ID)

	assert.Empty(t, c.Search("zzzzqqqq"))
}

func TestDetector_Detect(t *testing.T) {
	apps := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(apps, "github cli.app"), 0755))

	items := []Recommendation{
		{ID: "vscode", Name: "Visual Studio Code", InstallMethods: []InstallMethod{{Type: MethodBrew, Cask: "visual-studio-code"}}},
		{ID: "iterm2", Name: "iTerm2", InstallMethods: []InstallMethod{{Type: MethodBrew, Cask: "iterm2"}}},
		{ID: "github-cli", Name: "GitHub CLI", InstallMethods: []InstallMethod{{Type: MethodGitHub, Owner: "cli", Repo: "cli"}}},
		{ID: "chrome", Name: "Google Chrome", InstallMethods: []InstallMethod{{Type: MethodWebsite, URL: "https://example.com"}}},
	}

	calls := 0
	d := &Detector{
		ApplicationsDir: apps,
		ListCasks: func(context.Context) (map[string]bool, error) {
			calls++
			return map[string]bool{"visual-studio-code": true}, nil
		},
	}

	got := d.Detect(context.Background(), items)
	assert.Equal(t, 1, calls)
	assert.True(t, got[0].Installed)
	assert.False(t, got[1].Installed)
	assert.True(t, got[2].Installed, "app bundle match is case-insensitive")
	assert.False(t, got[3].Installed)
	assert.False(t, items[0].Installed, "input is not modified")

	installed := Installed(got)
	require.Len(t, installed, 2)
	assert.Equal(t, "vscode", installed[0].ID)
}

func TestDetector_BrewUnavailable(t *testing.T) {
	d := &Detector{
		ApplicationsDir: filepath.Join(t.TempDir(), "missing"),
		ListCasks: func(context.Context) (map[string]bool, error) {
			return nil, errors.New("brew not found")
		},
	}
	got := d.Detect(context.Background(), []Recommendation{
		{ID: "a", Name: "A", Installed: true, InstallMethods: []InstallMethod{{Type: MethodBrew, Cask: "a"}}},
	})
	assert.False(t, got[0].Installed)
}

func TestAppInstalled(t *testing.T) {
	apps := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(apps, "Raycast.app"), 0755))
	assert.True(t, AppInstalled(apps, "raycast"))
	assert.False(t, AppInstalled(apps, "Rectangle"))
}
