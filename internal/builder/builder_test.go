package builder

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pagegen/internal/bundler"
	"github.com/conneroisu/pagegen/internal/config"
	"github.com/conneroisu/pagegen/internal/errors"
	"github.com/conneroisu/pagegen/internal/hooks"
	"github.com/conneroisu/pagegen/internal/kit"
	"github.com/conneroisu/pagegen/internal/metrics"
	"github.com/conneroisu/pagegen/internal/pages"
	"github.com/conneroisu/pagegen/internal/templates"
	"github.com/conneroisu/pagegen/internal/watcher"
)

// countingFs counts the files moved into place per destination.
type countingFs struct {
	afero.Fs
	mu     sync.Mutex
	writes map[string]int
}

func newCountingFs() *countingFs {
	return &countingFs{Fs: afero.NewMemMapFs(), writes: make(map[string]int)}
}

func (c *countingFs) Rename(oldname, newname string) error {
	c.mu.Lock()
	c.writes[filepath.Base(newname)]++
	c.mu.Unlock()
	return c.Fs.Rename(oldname, newname)
}

func (c *countingFs) reset() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.writes
	c.writes = make(map[string]int)
	return out
}

func newProject(t *testing.T, files map[string]string) (*kit.Session, *countingFs) {
	t.Helper()
	fsys := newCountingFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fsys, "/app/"+name, []byte(content), 0o644))
	}
	cfg := config.Default()
	cfg.RootDir = "/app"
	return kit.NewSession(cfg, fsys, nil), fsys
}

func newBuilder(t *testing.T, s *kit.Session) *Builder {
	t.Helper()
	require.NoError(t, kit.NewModuleManager(s).Install(context.Background(), pages.Module()))
	b, err := New(s, metrics.New(metrics.WithRegistry(prometheus.NewRegistry())))
	require.NoError(t, err)
	return b
}

func read(t *testing.T, fsys afero.Fs, name string) string {
	t.Helper()
	data, err := afero.ReadFile(fsys, "/app/.pagegen/"+name)
	require.NoError(t, err)
	return string(data)
}

func TestGenerateAppWritesAllTemplates(t *testing.T) {
	s, fsys := newProject(t, map[string]string{
		"pages/index.vue":     "<template/>",
		"layouts/default.vue": "<slot/>",
	})
	b := newBuilder(t, s)

	require.NoError(t, b.GenerateApp(context.Background()))
	assert.Equal(t, int64(1), b.Passes())

	assert.ElementsMatch(t, []string{
		AppComponentFilename, RootComponentFilename, ClientPluginsFilename, ServerPluginsFilename,
		AutoImportsFilename, TypesFilename, pages.RoutesFilename, pages.LayoutsFilename,
	}, b.LastResult().Written())

	assert.Equal(t, "export { default } from \"/app/node_modules/pagegen/runtime/pages/app.vue\"\n",
		read(t, fsys, AppComponentFilename))
	assert.Equal(t, "// Generated by pagegen\n"+
		"/// <reference path=\"./auto-imports.d.ts\" />\n"+
		"/// <reference types=\"vue-router\" />\n"+
		"export {}\n", read(t, fsys, TypesFilename))
	assert.Equal(t, "import plugin_0 from \"/app/node_modules/pagegen/runtime/pages/router\"\n"+
		"export default [\n  plugin_0\n]\n", read(t, fsys, ClientPluginsFilename))
	assert.Contains(t, read(t, fsys, AutoImportsFilename), `const useRouter: typeof import("/app/node_modules/pagegen/runtime/pages/composables")["useRouter"]`)
	assert.Contains(t, read(t, fsys, pages.RoutesFilename), `path: "/"`)
}

func TestGenerateAppKeepsProjectMainComponent(t *testing.T) {
	s, fsys := newProject(t, map[string]string{"app.vue": "<template/>"})
	b := newBuilder(t, s)

	require.NoError(t, b.GenerateApp(context.Background()))
	assert.Equal(t, "export { default } from \"/app/app.vue\"\n", read(t, fsys, AppComponentFilename))

	_, err := fsys.Stat("/app/.pagegen/" + pages.RoutesFilename)
	assert.Error(t, err, "the router is disabled without a pages directory")
}

func TestGenerateAppIsIdempotent(t *testing.T) {
	s, fsys := newProject(t, map[string]string{"pages/index.vue": "<template/>"})
	b := newBuilder(t, s)

	require.NoError(t, b.GenerateApp(context.Background()))
	fsys.reset()

	require.NoError(t, b.GenerateApp(context.Background()))
	assert.Empty(t, fsys.reset())
	assert.Empty(t, b.LastResult().Written())
}

func TestLayoutAddTriggersOnePass(t *testing.T) {
	s, fsys := newProject(t, map[string]string{
		"pages/index.vue":     "<template/>",
		"layouts/default.vue": "<slot/>",
	})
	b := newBuilder(t, s)
	ctx := context.Background()

	require.NoError(t, b.GenerateApp(ctx))
	fsys.reset()

	require.NoError(t, afero.WriteFile(fsys, "/app/layouts/wide.vue", []byte("<slot/>"), 0o644))
	require.NoError(t, b.HandleEvents(ctx, []watcher.ChangeEvent{
		{Kind: watcher.EventAdd, Path: "layouts/wide.vue"},
	}))

	assert.Equal(t, int64(2), b.Passes())
	assert.Equal(t, map[string]int{pages.LayoutsFilename: 1}, fsys.reset())
	assert.Contains(t, read(t, fsys, pages.LayoutsFilename), "wide: defineAsyncComponent")
}

func TestEventBatchRunsOnePass(t *testing.T) {
	s, fsys := newProject(t, map[string]string{"pages/index.vue": "<template/>"})
	b := newBuilder(t, s)
	ctx := context.Background()

	require.NoError(t, b.GenerateApp(ctx))
	fsys.reset()

	require.NoError(t, afero.WriteFile(fsys, "/app/pages/a.vue", nil, 0o644))
	require.NoError(t, afero.WriteFile(fsys, "/app/pages/b.vue", nil, 0o644))
	require.NoError(t, b.HandleEvents(ctx, []watcher.ChangeEvent{
		{Kind: watcher.EventAdd, Path: "pages/a.vue"},
		{Kind: watcher.EventAdd, Path: "pages/b.vue"},
		{Kind: watcher.EventChange, Path: "pages/index.vue"},
	}))

	assert.Equal(t, int64(2), b.Passes())
	assert.Equal(t, map[string]int{pages.RoutesFilename: 1}, fsys.reset())
}

func TestChangeEventsDoNotRegenerate(t *testing.T) {
	s, _ := newProject(t, map[string]string{"pages/index.vue": "<template/>"})
	b := newBuilder(t, s)

	require.NoError(t, b.HandleEvents(context.Background(), []watcher.ChangeEvent{
		{Kind: watcher.EventChange, Path: "pages/index.vue"},
		{Kind: watcher.EventAdd, Path: "components/button.vue"},
	}))
	assert.Equal(t, int64(0), b.Passes())
}

func TestGenerateAppCoalesces(t *testing.T) {
	s, _ := newProject(t, nil)
	b := newBuilder(t, s)

	entered := make(chan struct{}, 10)
	release := make(chan struct{})
	s.AddTemplate(templates.Generate("slow.mjs", func(ctx context.Context) (string, error) {
		entered <- struct{}{}
		<-release
		return "export default 1\n", nil
	}))

	done := make(chan error, 1)
	go func() { done <- b.GenerateApp(context.Background()) }()
	<-entered

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, b.GenerateApp(context.Background()))
		}()
	}
	wg.Wait()

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("generation did not finish")
	}
	assert.Equal(t, int64(2), b.Passes())
}

func TestGenerateAppViaHook(t *testing.T) {
	s, _ := newProject(t, nil)
	b := newBuilder(t, s)

	require.NoError(t, hooks.Call(context.Background(), s.Hooks, kit.HookGenerateApp, struct{}{}))
	assert.Equal(t, int64(1), b.Passes())
}

func TestGeneratedModulesServedToVite(t *testing.T) {
	s, fsys := newProject(t, map[string]string{"pages/index.vue": "<template/>"})
	b := newBuilder(t, s)
	ctx := context.Background()

	var loader *bundler.VitePlugin
	for _, p := range s.VitePlugins() {
		if p.Name == "pagegen:templates" {
			loader = p
		}
	}
	require.NotNil(t, loader)

	res, err := loader.Load(ctx, BuildAlias+pages.RoutesFilename)
	require.NoError(t, err)
	assert.Nil(t, res, "nothing is served before the first pass")

	require.NoError(t, b.GenerateApp(ctx))

	res, err = loader.Load(ctx, "\x00"+BuildAlias+pages.RoutesFilename+"?v=1")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, read(t, fsys, pages.RoutesFilename), res.Code)

	res, err = loader.Load(ctx, "/app/pages/index.vue")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestTemplatesGeneratedHook(t *testing.T) {
	s, _ := newProject(t, map[string]string{"pages/index.vue": "<template/>"})
	b := newBuilder(t, s)

	var mu sync.Mutex
	var seen [][]string
	hooks.On(s.Hooks, kit.HookTemplatesGenerated, func(ctx context.Context, r *templates.BatchResult) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, r.Written())
		return nil
	})
	hooks.On(s.Hooks, kit.HookTemplatesGenerated, func(ctx context.Context, r *templates.BatchResult) error {
		return fmt.Errorf("listener down")
	})

	require.NoError(t, b.GenerateApp(context.Background()), "listener failures do not fail the pass")
	require.NoError(t, b.GenerateApp(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Contains(t, seen[0], pages.RoutesFilename)
	assert.Empty(t, seen[1])
}

func TestGenerateAppReportsFailures(t *testing.T) {
	s, fsys := newProject(t, nil)
	b := newBuilder(t, s)

	s.AddTemplate(templates.Generate("broken.mjs", func(ctx context.Context) (string, error) {
		return "", fmt.Errorf("no data")
	}))

	err := b.GenerateApp(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTemplateRender))
	assert.Equal(t, []string{"broken.mjs"}, b.LastResult().Failed())
	assert.Contains(t, read(t, fsys, TypesFilename), "auto-imports.d.ts")
}

func TestAppResolveFailureAbortsPass(t *testing.T) {
	s, fsys := newProject(t, nil)
	b := newBuilder(t, s)

	hooks.On(s.Hooks, kit.HookAppResolve, func(ctx context.Context, app *kit.AppState) error {
		return fmt.Errorf("bad app")
	})

	err := b.GenerateApp(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrHookCallback))
	assert.Nil(t, b.LastResult())

	exists, _ := afero.DirExists(fsys, "/app/.pagegen")
	assert.False(t, exists)
}

func TestScannedTemplates(t *testing.T) {
	s, fsys := newProject(t, map[string]string{
		"templates/env.mjs": "export const main = {{ quote .app.MainComponent }}\nexport const mode = {{ quote .data.mode }}\n",
	})
	s.Config.Templates.Dir = "templates"
	s.Config.Templates.Data = map[string]any{"mode": "dev"}
	b := newBuilder(t, s)

	require.NoError(t, b.GenerateApp(context.Background()))
	assert.Equal(t, "export const main = \"@pagegen/ui/pagegen-welcome.vue\"\nexport const mode = \"dev\"\n",
		read(t, fsys, "env.mjs"))
}
