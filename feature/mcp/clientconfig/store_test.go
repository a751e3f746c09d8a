package clientconfig_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"mcp-manager/core/backup"
	"mcp-manager/core/jsonfile"
	"mcp-manager/core/lock"
	"mcp-manager/feature/mcp/clientconfig"
	"mcp-manager/feature/mcp/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticSettings struct {
	s *models.Settings
}

func (f staticSettings) Current() *models.Settings {
	return f.s
}

type fixture struct {
	dir      string
	home     string
	settings *models.Settings
	store    *clientconfig.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	home := t.TempDir()
	s := &models.Settings{
		MaxBackups: 3,
		Clients: map[string]models.Client{
			"a": {Name: "A", ConfigPath: filepath.Join(home, "a.json"), Enabled: true},
			"b": {Name: "B", ConfigPath: filepath.Join(home, "b.json"), Enabled: true},
		},
		SyncGroups: map[string]models.SyncGroup{},
	}
	backups := backup.NewManager(func() int { return 3 }, zap.NewNop())
	store := clientconfig.NewStore(dir, staticSettings{s}, backups, lock.New(""), zap.NewNop())
	return &fixture{dir: dir, home: home, settings: s, store: store}
}

func writeRaw(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestResolve_SynthesizesEmpty(t *testing.T) {
	f := newFixture(t)

	res, err := f.store.Resolve(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, clientconfig.StateSynthesized, res.State)
	assert.Equal(t, f.store.ManagedPath("a"), res.Path)
	assert.FileExists(t, res.Path)

	res, err = f.store.Resolve(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, clientconfig.StateManaged, res.State)
}

func TestResolve_AdoptsOriginalOnce(t *testing.T) {
	f := newFixture(t)
	writeRaw(t, f.settings.Clients["a"].ConfigPath, `{
		// editors allow comments here
		"theme": "dark",
		"mcpServers": {"x": {"command": "node", "args": ["x.js"],}},
	}`)
	ctx := context.Background()

	set, res, err := f.store.Read(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, clientconfig.StateAdopted, res.State)
	assert.Equal(t, "node", set["x"].Command)

	// Later edits to the original are no longer read
	writeRaw(t, f.settings.Clients["a"].ConfigPath, `{"mcpServers": {"y": {"command": "python"}}}`)
	set, res, err = f.store.Read(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, clientconfig.StateManaged, res.State)
	assert.Equal(t, []string{"x"}, set.Names())
}

func TestResolve_ConcurrentAdoption(t *testing.T) {
	f := newFixture(t)
	writeRaw(t, f.settings.Clients["a"].ConfigPath, `{"mcpServers": {"x": {"command": "node"}}}`)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.store.Read(context.Background(), "a")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	set, err := clientconfig.ReadFile(f.store.ManagedPath("a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, set.Names())
}

func TestResolve_MalformedOriginal(t *testing.T) {
	f := newFixture(t)
	writeRaw(t, f.settings.Clients["a"].ConfigPath, `{"mcpServers": `)

	_, _, err := f.store.Read(context.Background(), "a")
	require.Error(t, err)
	assert.True(t, jsonfile.IsMalformed(err))
	assert.Contains(t, err.Error(), "a.json")
	assert.NoFileExists(t, f.store.ManagedPath("a"))
}

func TestResolve_Group(t *testing.T) {
	f := newFixture(t)
	f.settings.SyncGroups["g"] = models.SyncGroup{Members: []string{"a", "b"}, ConfigPath: f.store.GroupPath("g")}
	f.settings.Clients["a"] = f.settings.Clients["a"].WithGroup("g")
	f.settings.Clients["b"] = f.settings.Clients["b"].WithGroup("g")

	res, err := f.store.Resolve(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, clientconfig.StateGroup, res.State)
	assert.Equal(t, "g", res.GroupID)
	assert.FileExists(t, f.store.GroupPath("g"))
}

func TestResolve_DanglingGroupReference(t *testing.T) {
	f := newFixture(t)
	f.settings.Clients["a"] = f.settings.Clients["a"].WithGroup("gone")

	res, err := f.store.Resolve(context.Background(), "a")
	require.NoError(t, err)
	assert.NotEqual(t, clientconfig.StateGroup, res.State)
}

func TestResolve_UnknownClient(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Resolve(context.Background(), "zzz")
	assert.ErrorIs(t, err, models.ErrClientNotFound)
}

func TestRead_MalformedManaged(t *testing.T) {
	f := newFixture(t)
	writeRaw(t, f.store.ManagedPath("a"), "not json")

	_, _, err := f.store.Read(context.Background(), "a")
	assert.True(t, jsonfile.IsMalformed(err))
}

func TestWrite_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var def models.ServerDefinition
	require.NoError(t, json.Unmarshal([]byte(`{
		"command": "npx",
		"args": ["-y", "@scope/server"],
		"env": {"TOKEN": "t", "PORT": 8080},
		"disabledTools": ["x"],
		"inspector": {"port": 6274}
	}`), &def))
	set := models.ServerMap{"srv": def}

	require.NoError(t, f.store.Write(ctx, "a", set))
	got, _, err := f.store.Read(ctx, "a")
	require.NoError(t, err)

	want, err := json.Marshal(set)
	require.NoError(t, err)
	have, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(have))
}

func TestWrite_NeverTouchesOriginal(t *testing.T) {
	f := newFixture(t)
	original := f.settings.Clients["a"].ConfigPath
	writeRaw(t, original, `{"mcpServers": {}}`)

	require.NoError(t, f.store.Write(context.Background(), "a", models.ServerMap{"x": {Command: "node"}}))

	data, err := os.ReadFile(original)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mcpServers": {}}`, string(data))
}

func TestSave_UnchangedIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := f.store.ManagedPath("a")
	set := models.ServerMap{"x": {Command: "node"}}

	changed, err := f.store.Save(ctx, path, set, nil)
	require.NoError(t, err)
	assert.True(t, changed)

	var afterCalls []bool
	changed, err = f.store.Save(ctx, path, set.Clone(), func(changed bool) error {
		afterCalls = append(afterCalls, changed)
		return nil
	})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, []bool{false}, afterCalls)

	_, err = os.Stat(filepath.Join(filepath.Dir(path), backup.DirName))
	assert.True(t, os.IsNotExist(err), "an unchanged save takes no backup")
}

func TestSave_BacksUpBeforeWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := f.store.ManagedPath("a")

	_, err := f.store.Save(ctx, path, models.ServerMap{"x": {Command: "node"}}, nil)
	require.NoError(t, err)
	_, err = f.store.Save(ctx, path, models.ServerMap{"x": {Command: "bun"}}, nil)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(filepath.Dir(path), backup.DirName))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var old models.ConfigFile
	require.NoError(t, jsonfile.Read(filepath.Join(filepath.Dir(path), backup.DirName, entries[0].Name()), &old))
	assert.Equal(t, "node", old.MCPServers["x"].Command)
}

func TestWriteOriginal_KeepsOtherKeys(t *testing.T) {
	f := newFixture(t)
	original := f.settings.Clients["a"].ConfigPath
	writeRaw(t, original, `{"theme": "dark", "mcpServers": {"old": {"command": "x"}}}`)

	require.NoError(t, f.store.WriteOriginal(context.Background(), "a", models.ServerMap{"new": {Command: "node"}}))

	data, err := os.ReadFile(original)
	require.NoError(t, err)
	assert.JSONEq(t, `{"theme": "dark", "mcpServers": {"new": {"command": "node"}}}`, string(data))
}

func TestWriteOriginal_RefusesMalformed(t *testing.T) {
	f := newFixture(t)
	original := f.settings.Clients["a"].ConfigPath
	writeRaw(t, original, `{"theme": `)

	err := f.store.WriteOriginal(context.Background(), "a", models.ServerMap{})
	assert.True(t, jsonfile.IsMalformed(err))

	data, err := os.ReadFile(original)
	require.NoError(t, err)
	assert.Equal(t, `{"theme": `, string(data))
}

func TestReadOriginal_Missing(t *testing.T) {
	f := newFixture(t)
	set, err := f.store.ReadOriginal("b")
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestReadopt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	original := f.settings.Clients["a"].ConfigPath
	writeRaw(t, original, `{"mcpServers": {"x": {"command": "node"}}}`)
	_, _, err := f.store.Read(ctx, "a")
	require.NoError(t, err)

	writeRaw(t, original, `{"mcpServers": {"y": {"command": "python"}}}`)
	set, err := f.store.Readopt(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, set.Names())

	got, _, err := f.store.Read(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, got.Names())
}

func TestReadopt_GroupedClient(t *testing.T) {
	f := newFixture(t)
	f.settings.SyncGroups["g"] = models.SyncGroup{Members: []string{"a", "b"}, ConfigPath: f.store.GroupPath("g")}
	f.settings.Clients["a"] = f.settings.Clients["a"].WithGroup("g")

	_, err := f.store.Readopt(context.Background(), "a")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestRemoveFile_Missing(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.store.RemoveFile(context.Background(), f.store.GroupPath("nope")))
}
