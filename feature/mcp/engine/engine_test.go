package engine_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"mcp-manager/core/backup"
	"mcp-manager/core/lock"
	"mcp-manager/feature/mcp/clientconfig"
	"mcp-manager/feature/mcp/engine"
	"mcp-manager/feature/mcp/models"
	"mcp-manager/feature/mcp/registry"
	"mcp-manager/feature/mcp/settings"
	"mcp-manager/feature/mcp/syncgroup"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	home     string
	settings *settings.FileStore
	configs  *clientconfig.Store
	registry *registry.Store
	groups   *syncgroup.Manager
	engine   *engine.Engine
}

func newFixture(t *testing.T, opts ...backup.Option) *fixture {
	t.Helper()
	dir := t.TempDir()
	home := t.TempDir()
	logger := zap.NewNop()

	store := settings.NewFileStore(filepath.Join(dir, settings.FileName), func() *models.Settings {
		return &models.Settings{
			MaxBackups: 5,
			Clients: map[string]models.Client{
				"a": {Name: "A", ConfigPath: filepath.Join(home, "a.json"), Enabled: true},
				"b": {Name: "B", ConfigPath: filepath.Join(home, "b.json"), Enabled: true},
				"c": {Name: "C", ConfigPath: filepath.Join(home, "c.json")},
			},
		}
	}, logger)
	require.NoError(t, store.Load())

	backups := backup.NewManager(func() int { return store.Current().MaxBackups }, logger, opts...)
	store.SetBackuper(backups)
	locks := lock.New("")
	reg := registry.NewStore(dir, backups, locks, logger)
	configs := clientconfig.NewStore(dir, store, backups, locks, logger)

	return &fixture{
		home:     home,
		settings: store,
		configs:  configs,
		registry: reg,
		groups:   syncgroup.NewManager(store, configs, logger),
		engine:   engine.New(store, reg, configs, logger),
	}
}

func (f *fixture) writeOriginal(t *testing.T, client, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.home, client+".json"), []byte(content), 0o644))
}

func (f *fixture) update(t *testing.T, fn func(s *models.Settings)) {
	t.Helper()
	_, err := f.settings.Update(context.Background(), func(s *models.Settings) error {
		fn(s)
		return nil
	})
	require.NoError(t, err)
}

func view(t *testing.T, raw string) models.View {
	t.Helper()
	var v models.View
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestSave_RoundTripIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payload := view(t, `{"mcpServers": {
		"fs": {"command": "npx", "args": ["-y", "fs", "/tmp"], "env": {"A": "1"}, "enabled": true},
		"remote": {"type": "sse", "url": "http://localhost:8080/sse", "headers": {"Authorization": "x"}},
		"odd": {"command": "node", "env": {"N": 1}, "timeout": 30, "inspector": {"port": 6274, "extra": true}}
	}}`)

	res, err := f.engine.Save(ctx, engine.Target{ClientID: "a"}, payload)
	require.NoError(t, err)
	assert.True(t, res.Changed)

	got, err := f.engine.ClientView(ctx, "a")
	require.NoError(t, err)

	want, err := json.Marshal(payload)
	require.NoError(t, err)
	have, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(have))

	res, err = f.engine.Save(ctx, engine.Target{ClientID: "a"}, got)
	require.NoError(t, err)
	assert.False(t, res.Changed, "saving the view back changes nothing")
}

func TestSave_NestedEnabledIsContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	on := `{"mcpServers": {"x": {"command": "node", "inspector": {"enabled": true, "port": 6274}, "env": {"enabled": "1"}}}}`
	off := `{"mcpServers": {"x": {"command": "node", "inspector": {"enabled": false, "port": 6274}, "env": {"enabled": "0"}}}}`

	_, err := f.engine.Save(ctx, engine.Target{ClientID: "a"}, view(t, on))
	require.NoError(t, err)
	res, err := f.engine.Save(ctx, engine.Target{ClientID: "a"}, view(t, off))
	require.NoError(t, err)
	assert.True(t, res.Changed)

	set, _, err := f.configs.Read(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, set["x"].Inspector)
	require.NotNil(t, set["x"].Inspector.Enabled)
	assert.False(t, *set["x"].Inspector.Enabled)
	assert.Equal(t, "0", set["x"].Env["enabled"])
}

func TestSave_ServerNamedEnabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.engine.Save(ctx, engine.Target{ClientID: "a"}, view(t, `{"mcpServers": {"enabled": {"command": "node"}}}`))
	require.NoError(t, err)
	assert.True(t, res.Changed)

	set, _, err := f.configs.Read(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "node", set["enabled"].Command)
}

func TestSave_ConcurrentSavesAreSerialized(t *testing.T) {
	const n = 8
	f := newFixture(t)
	ctx := context.Background()
	f.update(t, func(s *models.Settings) { s.MaxBackups = n + 1 })

	_, err := f.engine.ClientView(ctx, "a")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.engine.Save(ctx, engine.Target{ClientID: "a"}, models.View{MCPServers: map[string]models.ServerView{
				"x": {Definition: models.ServerDefinition{Command: fmt.Sprintf("cmd-%d", i)}, Enabled: true},
			}})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	path := f.configs.ManagedPath("a")
	final, err := clientconfig.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, final, "x")

	dir := filepath.Join(filepath.Dir(path), backup.DirName)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	// Every save backs up exactly the state the previous one left behind
	seen := []string{final["x"].Command}
	for _, e := range entries {
		if _, ok := backup.Stamp(path, e.Name()); !ok {
			continue
		}
		set, err := clientconfig.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		seen = append(seen, set["x"].Command)
	}

	want := []string{""}
	for i := 0; i < n; i++ {
		want = append(want, fmt.Sprintf("cmd-%d", i))
	}
	assert.ElementsMatch(t, want, seen)
}

func TestClientView_EnabledMeansPresent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.registry.Write(ctx, models.ServerMap{
		"x": {Command: "node"},
		"y": {Command: "python"},
	}))
	require.NoError(t, f.configs.Write(ctx, "a", models.ServerMap{"x": {Command: "node", Args: []string{"override"}}}))

	v, err := f.engine.ClientView(ctx, "a")
	require.NoError(t, err)

	assert.True(t, v.MCPServers["x"].Enabled)
	assert.Equal(t, []string{"override"}, v.MCPServers["x"].Definition.Args)
	assert.False(t, v.MCPServers["y"].Enabled)
}

func TestClientView_GrowsRegistry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.writeOriginal(t, "a", `{"mcpServers": {"new": {"command": "deno"}}}`)

	v, err := f.engine.ClientView(ctx, "a")
	require.NoError(t, err)
	assert.True(t, v.MCPServers["new"].Enabled)

	defs, err := f.registry.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, defs, "new")
}

func TestSave_RegistryKeepsDisabledAndOldNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Save(ctx, engine.Target{ClientID: "a"}, view(t, `{"mcpServers": {
		"x": {"command": "node"},
		"y": {"command": "python", "enabled": false}
	}}`))
	require.NoError(t, err)
	_, err = f.engine.Save(ctx, engine.Target{ClientID: "a"}, view(t, `{"mcpServers": {}}`))
	require.NoError(t, err)

	v, err := f.engine.ClientView(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, sortedKeys(v.MCPServers))
	assert.Empty(t, v.EnabledNames())
}

func TestSave_AmbiguousTarget(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Save(context.Background(), engine.Target{}, view(t, `{"mcpServers": {}}`))
	assert.ErrorIs(t, err, models.ErrAmbiguousTarget)
}

func TestSave_UnknownTargets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Save(ctx, engine.Target{ClientID: "zzz"}, view(t, `{"mcpServers": {}}`))
	assert.ErrorIs(t, err, models.ErrClientNotFound)

	_, err = f.engine.Save(ctx, engine.Target{GroupID: "zzz"}, view(t, `{"mcpServers": {}}`))
	assert.ErrorIs(t, err, models.ErrGroupNotFound)
}

func TestSave_GroupWritesOneFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	groupID, group, err := f.groups.CreateOrJoin(ctx, []string{"a", "b"})
	require.NoError(t, err)

	res, err := f.engine.Save(ctx, engine.Target{GroupID: groupID}, view(t, `{"mcpServers": {"x": {"command": "node"}}}`))
	require.NoError(t, err)
	assert.Equal(t, group.ConfigPath, res.Path)
	assert.ElementsMatch(t, []string{"a", "b"}, res.Clients)
	assert.NoFileExists(t, f.configs.ManagedPath("b"))

	va, err := f.engine.ClientView(ctx, "a")
	require.NoError(t, err)
	vb, err := f.engine.ClientView(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, va.Active(), vb.Active())
	assert.Equal(t, []string{"x"}, vb.EnabledNames())

	gv, err := f.engine.GroupView(ctx, groupID)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, gv.EnabledNames())
}

func TestSave_ClientInGroupWritesGroupFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, group, err := f.groups.CreateOrJoin(ctx, []string{"a", "b"})
	require.NoError(t, err)

	res, err := f.engine.Save(ctx, engine.Target{ClientID: "b"}, view(t, `{"mcpServers": {"x": {"command": "node"}}}`))
	require.NoError(t, err)
	assert.Equal(t, group.ConfigPath, res.Path)
	assert.ElementsMatch(t, []string{"a", "b"}, res.Clients)
}

func TestSave_GroupMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	groupID, _, err := f.groups.CreateOrJoin(ctx, []string{"a", "b"})
	require.NoError(t, err)

	_, err = f.engine.Save(ctx, engine.Target{GroupID: groupID, ClientID: "c"}, view(t, `{"mcpServers": {}}`))
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestSave_BackupRetention(t *testing.T) {
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	f := newFixture(t, backup.WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	ctx := context.Background()
	f.update(t, func(s *models.Settings) { s.MaxBackups = 2 })

	commands := []string{"one", "two", "three", "four", "five"}
	for _, cmd := range commands {
		_, err := f.engine.Save(ctx, engine.Target{ClientID: "a"}, models.View{MCPServers: map[string]models.ServerView{
			"x": {Definition: models.ServerDefinition{Command: cmd}, Enabled: true},
		}})
		require.NoError(t, err)
	}

	backups := filepath.Join(filepath.Dir(f.configs.ManagedPath("a")), backup.DirName)
	entries, err := os.ReadDir(backups)
	require.NoError(t, err)

	var kept []string
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".json" {
			continue
		}
		var file models.ConfigFile
		data, err := os.ReadFile(filepath.Join(backups, e.Name()))
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &file))
		kept = append(kept, file.MCPServers["x"].Command)
	}
	// Each save backs up the previous content; only the two newest survive
	assert.ElementsMatch(t, []string{"three", "four"}, kept)
}

func TestSave_Propagation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.writeOriginal(t, "a", `{"theme": "dark", "mcpServers": {}}`)
	groupID, _, err := f.groups.CreateOrJoin(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	f.update(t, func(s *models.Settings) { s.SyncClients = true })

	res, err := f.engine.Save(ctx, engine.Target{GroupID: groupID}, view(t, `{"mcpServers": {"x": {"command": "node"}}}`))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, res.Propagated, "disabled clients are not written")

	data, err := os.ReadFile(filepath.Join(f.home, "a.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"theme": "dark", "mcpServers": {"x": {"command": "node"}}}`, string(data))
	assert.NoFileExists(t, filepath.Join(f.home, "c.json"))
}

func TestSave_NoPropagationWhenSyncOff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.engine.Save(ctx, engine.Target{ClientID: "a"}, view(t, `{"mcpServers": {"x": {"command": "node"}}}`))
	require.NoError(t, err)
	assert.Empty(t, res.Propagated)
	assert.NoFileExists(t, filepath.Join(f.home, "a.json"))
}

func TestAggregatedView_UnregisteredName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.writeOriginal(t, "a", `{"mcpServers": {"solo": {"command": "node"}}}`)

	v, err := f.engine.AggregatedView(ctx)
	require.NoError(t, err)

	solo := v.MCPServers["solo"]
	assert.Equal(t, []string{"a"}, solo.Sources)
	require.NotNil(t, solo.Conflicts)
	assert.False(t, *solo.Conflicts)

	data, err := json.Marshal(solo)
	require.NoError(t, err)
	assert.JSONEq(t, `{"command": "node", "enabled": true, "_sources": ["a"], "_conflicts": false}`, string(data))
}

func TestAggregatedView_Conflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.update(t, func(s *models.Settings) {
		c := s.Clients["c"]
		c.Enabled = true
		s.Clients["c"] = c
	})
	f.writeOriginal(t, "a", `{"mcpServers": {"x": {"command": "node"}, "same": {"command": "uv"}}}`)
	f.writeOriginal(t, "b", `{"mcpServers": {"x": {"command": "python"}, "same": {"command": "uv"}}}`)
	f.writeOriginal(t, "c", `{"mcpServers": {"x": {"command": "node", "enabled": true}}}`)
	require.NoError(t, f.registry.Write(ctx, models.ServerMap{"unused": {Command: "bun"}}))

	v, err := f.engine.AggregatedView(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, v.MCPServers["x"].Sources)
	assert.True(t, *v.MCPServers["x"].Conflicts)
	assert.Equal(t, "node", v.MCPServers["x"].Definition.Command, "the first recorded definition wins")

	assert.Equal(t, []string{"a", "b"}, v.MCPServers["same"].Sources)
	assert.False(t, *v.MCPServers["same"].Conflicts)

	assert.False(t, v.MCPServers["unused"].Enabled)
	assert.Empty(t, v.MCPServers["unused"].Sources)
}

func TestAggregatedView_NestedEnabledConflicts(t *testing.T) {
	f := newFixture(t)
	f.writeOriginal(t, "a", `{"mcpServers": {"x": {"command": "node", "inspector": {"enabled": true}}}}`)
	f.writeOriginal(t, "b", `{"mcpServers": {"x": {"command": "node", "inspector": {"enabled": false}}}}`)

	v, err := f.engine.AggregatedView(context.Background())
	require.NoError(t, err)
	require.NotNil(t, v.MCPServers["x"].Conflicts)
	assert.True(t, *v.MCPServers["x"].Conflicts)
}

func TestAggregatedView_SkipsDisabledClients(t *testing.T) {
	f := newFixture(t)
	f.writeOriginal(t, "c", `{"mcpServers": {"hidden": {"command": "node"}}}`)

	v, err := f.engine.AggregatedView(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, v.MCPServers, "hidden")
}

func TestAggregatedView_MalformedClient(t *testing.T) {
	f := newFixture(t)
	f.writeOriginal(t, "a", `{"mcpServers": {`)

	_, err := f.engine.AggregatedView(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.json")
}

func TestCheckConfigsDiffer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.update(t, func(s *models.Settings) { s.SyncClients = true })
	f.writeOriginal(t, "a", `{"mcpServers": {"x": {"command": "node"}}}`)
	f.writeOriginal(t, "b", `{"mcpServers": {"x": {"command": "python"}}}`)

	report, err := f.engine.CheckConfigsDiffer(ctx)
	require.NoError(t, err)
	assert.True(t, report.ConfigsDiffer)
	require.Len(t, report.Differences, 1)
	assert.Equal(t, "a", report.Differences[0].ClientA)
	assert.Equal(t, "b", report.Differences[0].ClientB)
	assert.Contains(t, report.Differences[0].Message, "a")
	assert.Contains(t, report.Differences[0].Message, "b")
	assert.NotEmpty(t, report.Differences[0].Diff)
}

func TestCheckConfigsDiffer_NestedEnabled(t *testing.T) {
	f := newFixture(t)
	f.update(t, func(s *models.Settings) { s.SyncClients = true })
	f.writeOriginal(t, "a", `{"mcpServers": {"x": {"command": "node", "inspector": {"enabled": true}}}}`)
	f.writeOriginal(t, "b", `{"mcpServers": {"x": {"command": "node", "inspector": {"enabled": false}}}}`)

	report, err := f.engine.CheckConfigsDiffer(context.Background())
	require.NoError(t, err)
	assert.True(t, report.ConfigsDiffer)
}

func TestCheckConfigsDiffer_ServerNamedEnabled(t *testing.T) {
	f := newFixture(t)
	f.update(t, func(s *models.Settings) { s.SyncClients = true })
	f.writeOriginal(t, "a", `{"mcpServers": {"enabled": {"command": "node"}}}`)
	f.writeOriginal(t, "b", `{"mcpServers": {}}`)

	report, err := f.engine.CheckConfigsDiffer(context.Background())
	require.NoError(t, err)
	assert.True(t, report.ConfigsDiffer)
}

func TestCheckConfigsDiffer_ReadsOriginals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.update(t, func(s *models.Settings) { s.SyncClients = true })
	f.writeOriginal(t, "a", `{"other": 1, "mcpServers": {"x": {"command": "node"}}}`)
	f.writeOriginal(t, "b", `{"mcpServers": {"x": {"command": "node"}}}`)

	// Managed copies diverge but the originals agree
	require.NoError(t, f.configs.Write(ctx, "a", models.ServerMap{"y": {Command: "bun"}}))

	report, err := f.engine.CheckConfigsDiffer(ctx)
	require.NoError(t, err)
	assert.False(t, report.ConfigsDiffer)
	assert.Equal(t, []string{"a", "b"}, report.Checked)
}

func TestCheckConfigsDiffer_ShortCircuits(t *testing.T) {
	t.Run("SyncDisabled", func(t *testing.T) {
		f := newFixture(t)
		f.writeOriginal(t, "a", `{"mcpServers": {"x": {"command": "node"}}}`)
		f.writeOriginal(t, "b", `{"mcpServers": {"x": {"command": "python"}}}`)

		report, err := f.engine.CheckConfigsDiffer(context.Background())
		require.NoError(t, err)
		assert.False(t, report.ConfigsDiffer)
		assert.Empty(t, report.Differences)
	})

	t.Run("SingleEnabledClient", func(t *testing.T) {
		f := newFixture(t)
		f.update(t, func(s *models.Settings) {
			s.SyncClients = true
			b := s.Clients["b"]
			b.Enabled = false
			s.Clients["b"] = b
		})
		f.writeOriginal(t, "a", `{"mcpServers": {`)

		report, err := f.engine.CheckConfigsDiffer(context.Background())
		require.NoError(t, err)
		assert.False(t, report.ConfigsDiffer)
	})
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.writeOriginal(t, "a", `{"mcpServers": {"x": {"command": "node"}}}`)
	_, err := f.engine.Save(ctx, engine.Target{ClientID: "a"}, view(t, `{"mcpServers": {"y": {"command": "bun"}}}`))
	require.NoError(t, err)

	v, err := f.engine.Reset(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, v.EnabledNames())
	assert.False(t, v.MCPServers["y"].Enabled)
}

func sortedKeys(m map[string]models.ServerView) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
