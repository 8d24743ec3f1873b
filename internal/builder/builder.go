// Package builder runs generation passes for a session and re-runs them
// when the source tree changes.
//
// A pass resolves the application shell through app:resolve, resolves
// auto-imports, collects type references through prepare:types and compiles
// every template into the build directory. Requests for a new pass that
// arrive while one is in flight are coalesced into a single follow-up pass.
package builder

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/conneroisu/pagegen/internal/autoimports"
	"github.com/conneroisu/pagegen/internal/bundler"
	"github.com/conneroisu/pagegen/internal/errors"
	"github.com/conneroisu/pagegen/internal/hooks"
	"github.com/conneroisu/pagegen/internal/kit"
	"github.com/conneroisu/pagegen/internal/logging"
	"github.com/conneroisu/pagegen/internal/metrics"
	"github.com/conneroisu/pagegen/internal/templates"
	"github.com/conneroisu/pagegen/internal/watcher"
)

// Builder generates the application for one session.
type Builder struct {
	session *kit.Session
	engine  *templates.Engine
	metrics *metrics.Collector
	logger  logging.Logger

	mu      sync.Mutex
	running bool
	pending bool
	last    *templates.BatchResult

	passes atomic.Int64
}

// New creates a builder and subscribes it to builder:generateApp. A nil
// collector disables metrics.
func New(s *kit.Session, collector *metrics.Collector) (*Builder, error) {
	cfg := s.Config
	engine, err := templates.NewEngine(s.Fs, cfg.BuildPath(), templates.Options{
		Concurrency: cfg.Templates.Concurrency,
		SourceFs:    s.Fs,
		Recorder:    collector,
	}, s.Logger)
	if err != nil {
		return nil, err
	}

	b := &Builder{
		session: s,
		engine:  engine,
		metrics: collector,
		logger:  s.Logger.WithComponent("builder"),
	}

	s.AddVitePlugin(bundler.Vite(bundler.Unplugin{
		Name:    "pagegen:templates",
		Enforce: "pre",
		Load:    b.loadTemplate,
	}))

	hooks.On(s.Hooks, kit.HookGenerateApp, func(ctx context.Context, _ struct{}) error {
		if batch := batchFrom(ctx); batch != nil {
			batch.requested.Store(true)
			return nil
		}
		return b.GenerateApp(ctx)
	})

	return b, nil
}

// BuildAlias prefixes the ids under which generated modules are served.
const BuildAlias = "#build/"

// loadTemplate serves the last rendered content of a generated module.
func (b *Builder) loadTemplate(_ context.Context, id string) (string, bool, error) {
	path, _ := bundler.SplitID(id)
	name, ok := strings.CutPrefix(path, BuildAlias)
	if !ok {
		return "", false, nil
	}
	content, ok := b.engine.Contents(name)
	return content, ok, nil
}

// Engine returns the template engine writing the build directory.
func (b *Builder) Engine() *templates.Engine { return b.engine }

// Passes returns the number of passes run so far.
func (b *Builder) Passes() int64 { return b.passes.Load() }

// LastResult returns the outcome of the most recent pass.
func (b *Builder) LastResult() *templates.BatchResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// GenerateApp runs a generation pass. When a pass is already running the
// request is folded into one follow-up pass and GenerateApp returns nil
// immediately.
func (b *Builder) GenerateApp(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.pending = true
		b.mu.Unlock()
		b.metrics.PassCoalesced()
		b.logger.Debug(ctx, "Generation already running, coalescing request")
		return nil
	}
	b.running = true
	b.mu.Unlock()

	for {
		err := b.pass(ctx)

		b.mu.Lock()
		if !b.pending || ctx.Err() != nil {
			b.running = false
			b.pending = false
			b.mu.Unlock()
			return err
		}
		b.pending = false
		b.mu.Unlock()
	}
}

func (b *Builder) pass(ctx context.Context) error {
	logger := b.logger.With("pass", uuid.NewString())
	perf := logging.StartOperation(logger, "generate")
	b.passes.Add(1)

	result, err := b.generate(ctx)

	b.mu.Lock()
	b.last = result
	b.mu.Unlock()
	b.metrics.PassCompleted(err, perf.Elapsed())

	if err != nil {
		perf.EndWithError(ctx, err)
		return err
	}
	perf.End(ctx,
		"written", len(result.Written()),
		"unchanged", len(result.Unchanged()))

	// Listeners only observe the pass; their failures do not fail it.
	if err := hooks.Call(ctx, b.session.Hooks, kit.HookTemplatesGenerated, result); err != nil {
		logger.Warn(ctx, err, "Generated listener failed")
	}
	return nil
}

func (b *Builder) generate(ctx context.Context) (*templates.BatchResult, error) {
	s := b.session
	cfg := s.Config

	app := &kit.AppState{
		Dir:           cfg.Root(),
		MainComponent: b.mainComponent(),
		RootComponent: DefaultRootComponent,
		Plugins:       s.Plugins(),
	}
	if err := hooks.Call(ctx, s.Hooks, kit.HookAppResolve, app); err != nil {
		return nil, err
	}

	imports, err := autoimports.Resolve(ctx, s.Hooks, autoimports.Defaults)
	if err != nil {
		return nil, err
	}

	types := &kit.TypesPayload{References: []kit.TypeReference{{Path: "./" + AutoImportsFilename}}}
	if err := hooks.Call(ctx, s.Hooks, kit.HookPrepareTypes, types); err != nil {
		return nil, err
	}

	descs := coreTemplates(app, imports, types)
	if cfg.Templates.Dir != "" {
		scanned, err := templates.ScanTemplates(s.Fs, filepath.Join(cfg.Root(), cfg.Templates.Dir), map[string]any{
			"app":  app,
			"data": cfg.Templates.Data,
		})
		if err != nil {
			return nil, errors.WrapIO(err, cfg.Templates.Dir, "cannot scan templates directory")
		}
		descs = append(descs, scanned...)
	}
	descs = append(descs, s.Templates()...)

	return b.engine.Compile(ctx, descs)
}

// mainComponent is the project's app.vue, or the welcome page without one.
func (b *Builder) mainComponent() string {
	candidate := filepath.Join(b.session.Config.Root(), "app.vue")
	if ok, err := afero.Exists(b.session.Fs, candidate); err == nil && ok {
		return candidate
	}
	return kit.WelcomeComponent
}

type batchKey struct{}

type batch struct {
	requested atomic.Bool
}

func batchFrom(ctx context.Context) *batch {
	b, _ := ctx.Value(batchKey{}).(*batch)
	return b
}

// HandleEvents fires builder:watch for every event of a debounced batch.
// Generation requested by any of the callbacks runs once, after the whole
// batch was dispatched.
func (b *Builder) HandleEvents(ctx context.Context, events []watcher.ChangeEvent) error {
	state := &batch{}
	batchCtx := context.WithValue(ctx, batchKey{}, state)

	for _, e := range events {
		b.metrics.WatchEvent(string(e.Kind))
		b.logger.Debug(ctx, "File changed", "kind", e.Kind, "path", e.Path)
		err := hooks.Call(batchCtx, b.session.Hooks, kit.HookBuilderWatch, kit.WatchEvent{Kind: e.Kind, Path: e.Path})
		if err != nil {
			b.logger.Error(ctx, err, "builder:watch callback failed", "path", e.Path)
		}
	}

	if !state.requested.Load() {
		return nil
	}
	return b.GenerateApp(ctx)
}

// Watch starts watching the root directory and regenerates on relevant
// changes until ctx is cancelled. The caller stops the returned watcher.
func (b *Builder) Watch(ctx context.Context) (*watcher.FileWatcher, error) {
	cfg := b.session.Config
	fw, err := watcher.NewFileWatcher(cfg.Root(), cfg.Watch.Debounce, b.session.Logger)
	if err != nil {
		return nil, errors.WrapIO(err, cfg.Root(), "cannot create file watcher")
	}

	ignore := append([]string{filepath.Base(cfg.BuildDir)}, cfg.Watch.Ignore...)
	fw.AddFilter(watcher.IgnoreFilter(ignore...))
	fw.AddHandler(b.HandleEvents)

	if err := fw.AddRecursive(cfg.Root()); err != nil {
		_ = fw.Stop()
		return nil, errors.WrapIO(err, cfg.Root(), "cannot watch root directory")
	}
	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return nil, err
	}

	b.logger.Info(ctx, "Watching for changes", "root", cfg.Root(), "debounce", cfg.Watch.Debounce)
	return fw, nil
}
