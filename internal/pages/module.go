package pages

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"

	"github.com/conneroisu/pagegen/internal/autoimports"
	"github.com/conneroisu/pagegen/internal/bundler"
	"github.com/conneroisu/pagegen/internal/errors"
	"github.com/conneroisu/pagegen/internal/hooks"
	"github.com/conneroisu/pagegen/internal/kit"
	"github.com/conneroisu/pagegen/internal/macro"
	"github.com/conneroisu/pagegen/internal/templates"
	"github.com/conneroisu/pagegen/internal/watcher"
)

// Generated module filenames, relative to the build directory.
const (
	RoutesFilename  = "routes.mjs"
	LayoutsFilename = "layouts.mjs"
)

// Module returns the pages module. It disables itself when the pages
// directory does not exist.
func Module() kit.Module {
	return kit.DefineModule(kit.ModuleMeta{Name: "router", ConfigKey: "pages"}, setup)
}

// Routes compiles the session's pages directory and passes the result
// through pages:extend.
func Routes(ctx context.Context, s *kit.Session) ([]*RouteNode, error) {
	compiler := NewCompiler(s.Fs, s.Config.PagesDir(), CompilerOptions{
		Extensions: s.Config.Extensions,
		Macros:     s.Config.MacroMap(),
	}, s.Logger)

	routes, err := compiler.Compile(ctx)
	if err != nil {
		return nil, err
	}
	if err := hooks.Call(ctx, s.Hooks, HookExtend, &routes); err != nil {
		return nil, err
	}
	return routes, nil
}

// Layouts resolves the session's layouts directory.
func Layouts(ctx context.Context, s *kit.Session) ([]Layout, error) {
	return ResolveLayouts(ctx, s.Fs, s.Config.LayoutsDir(), s.Config.Extensions, s.Logger)
}

// watchPattern matches root-relative paths inside the pages or layouts
// directory.
func watchPattern(pagesDir, layoutsDir string) *regexp.Regexp {
	clean := func(dir string) string {
		return regexp.QuoteMeta(strings.TrimPrefix(path.Clean(filepath.ToSlash(dir)), "./"))
	}
	return regexp.MustCompile(fmt.Sprintf("^(%s|%s)/", clean(pagesDir), clean(layoutsDir)))
}

func setup(ctx context.Context, s *kit.Session) error {
	cfg := s.Config
	logger := s.Logger.WithComponent("pages")

	pagesDir := cfg.PagesDir()
	exists, err := afero.DirExists(s.Fs, pagesDir)
	if err != nil {
		return errors.WrapIO(err, pagesDir, "cannot stat pages directory")
	}
	if !exists {
		logger.Debug(ctx, "No pages directory, router disabled", "dir", pagesDir)
		return fmt.Errorf("%s does not exist: %w", pagesDir, kit.ErrModuleDisabled)
	}

	runtimeDir := cfg.RuntimePath()

	hooks.On(s.Hooks, kit.HookPrepareTypes, func(ctx context.Context, p *kit.TypesPayload) error {
		p.References = append(p.References, kit.TypeReference{Types: "vue-router"})
		return nil
	})

	// Adding or removing a page or layout changes the generated modules;
	// edits to a file only change its contents, which the bundler handles.
	pattern := watchPattern(cfg.Dir.Pages, cfg.Dir.Layouts)
	hooks.On(s.Hooks, kit.HookBuilderWatch, func(ctx context.Context, e kit.WatchEvent) error {
		if e.Kind == watcher.EventChange || !pattern.MatchString(e.Path) {
			return nil
		}
		return hooks.Call(ctx, s.Hooks, kit.HookGenerateApp, struct{}{})
	})

	hooks.On(s.Hooks, kit.HookAppResolve, func(ctx context.Context, app *kit.AppState) error {
		if strings.Contains(app.MainComponent, "pagegen-welcome") {
			app.MainComponent = filepath.Join(runtimeDir, "app.vue")
		}
		return nil
	})

	hooks.On(s.Hooks, autoimports.HookExtend, func(ctx context.Context, imports *[]autoimports.Import) error {
		composables := filepath.Join(runtimeDir, "composables")
		for _, name := range []string{"useRouter", "useRoute", "definePageMeta"} {
			*imports = append(*imports, autoimports.Import{Name: name, As: name, From: composables})
		}
		return nil
	})

	transform := macro.NewTransformer(macro.Options{
		Macros:     cfg.MacroMap(),
		Extensions: cfg.Extensions,
	}, s.Logger)
	s.AddVitePlugin(bundler.Vite(transform.Plugin()))
	s.AddWebpackPlugin(bundler.Webpack(transform.Plugin()))

	s.AddPlugin(kit.PluginRef{Src: filepath.Join(runtimeDir, "router")})

	s.AddTemplate(templates.Generate(RoutesFilename, func(ctx context.Context) (string, error) {
		routes, err := Routes(ctx, s)
		if err != nil {
			return "", err
		}
		return RoutesModule(routes, cfg.Pages.LazyComponents), nil
	}))

	s.AddTemplate(templates.Generate(LayoutsFilename, func(ctx context.Context) (string, error) {
		layouts, err := Layouts(ctx, s)
		if err != nil {
			return "", err
		}
		return LayoutsModule(layouts), nil
	}))

	logger.Debug(ctx, "Router enabled", "dir", pagesDir)
	return nil
}
