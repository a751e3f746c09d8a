package jsonfile_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"mcp-manager/core/jsonfile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	dir := t.TempDir()

	t.Run("Missing", func(t *testing.T) {
		var v map[string]any
		err := jsonfile.Read(filepath.Join(dir, "missing.json"), &v)
		assert.True(t, jsonfile.IsNotFound(err))
		assert.False(t, jsonfile.IsMalformed(err))
	})

	t.Run("Malformed", func(t *testing.T) {
		p := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(p, []byte("{not json"), 0o644))

		var v map[string]any
		err := jsonfile.Read(p, &v)
		assert.True(t, jsonfile.IsMalformed(err))
		assert.Contains(t, err.Error(), p)
	})

	t.Run("Empty", func(t *testing.T) {
		p := filepath.Join(dir, "empty.json")
		require.NoError(t, os.WriteFile(p, []byte("  \n"), 0o644))

		var v map[string]any
		assert.True(t, jsonfile.IsMalformed(jsonfile.Read(p, &v)))
	})

	t.Run("StrictRejectsComments", func(t *testing.T) {
		p := filepath.Join(dir, "comments.json")
		require.NoError(t, os.WriteFile(p, []byte("{\n// note\n\"a\": 1,\n}"), 0o644))

		var v map[string]any
		assert.True(t, jsonfile.IsMalformed(jsonfile.Read(p, &v)))

		require.NoError(t, jsonfile.ReadLenient(p, &v))
		assert.Equal(t, float64(1), v["a"])
	})
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "nested", "out.json")

	require.NoError(t, jsonfile.Write(p, map[string]any{"mcpServers": map[string]any{}}))

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"mcpServers\": {}\n}\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(p))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestWrite_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not tracked on windows")
	}
	dir := t.TempDir()

	fresh := filepath.Join(dir, "fresh.json")
	require.NoError(t, jsonfile.Write(fresh, map[string]any{}))
	info, err := os.Stat(fresh)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	existing := filepath.Join(dir, "mcp.json")
	require.NoError(t, os.WriteFile(existing, []byte("{}"), 0o600))
	require.NoError(t, os.Chmod(existing, 0o640))
	require.NoError(t, jsonfile.Write(existing, map[string]any{"mcpServers": map[string]any{}}))
	info, err = os.Stat(existing)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "gone.json")

	assert.NoError(t, jsonfile.Remove(p))

	require.NoError(t, os.WriteFile(p, []byte("{}"), 0o644))
	assert.True(t, jsonfile.Exists(p))
	assert.NoError(t, jsonfile.Remove(p))
	assert.False(t, jsonfile.Exists(p))
}
