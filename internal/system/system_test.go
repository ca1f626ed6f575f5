package system

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbootdotdev/devenv/testutil"
)

func TestIsMacOS(t *testing.T) {
	assert.Equal(t, runtime.GOOS == "darwin", IsMacOS())
}

func TestHostname(t *testing.T) {
	assert.NotEmpty(t, Hostname())
}

func TestOpenCommand(t *testing.T) {
	const target = "/tmp/dev-env.json"
	const zed = "/Applications/Zed.app"

	name, args := OpenCommand(target, "")
	if IsMacOS() {
		assert.Equal(t, "open", name)
		assert.Equal(t, []string{target}, args)
	} else {
		assert.Equal(t, "xdg-open", name)
		assert.Equal(t, []string{target}, args)
	}

	name, args = OpenCommand(target, zed)
	if IsMacOS() {
		assert.Equal(t, "open", name)
		assert.Equal(t, []string{"-a", zed, target}, args)
	} else {
		assert.Equal(t, zed, name)
		assert.Equal(t, []string{target}, args)
	}
}

func TestOpen_MissingEditor(t *testing.T) {
	err := Open("/tmp/a.json", "/definitely/not/an/editor")
	assert.EqualError(t, err, "Editor not found: /definitely/not/an/editor")
}

func TestOpen_WithEditor(t *testing.T) {
	if IsMacOS() {
		t.Skip("editors are launched through open(1) on macOS")
	}
	dir := t.TempDir()
	marker := filepath.Join(dir, "opened")
	editor := testutil.WriteExecutable(t, dir, "ed", "echo \"$1\" > "+marker+"\n")

	require.NoError(t, Open("/tmp/a.json", editor))
	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(marker)
		return err == nil && string(data) == "/tmp/a.json\n"
	}, 2*time.Second, 20*time.Millisecond)
}
