package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/conneroisu/pagegen/internal/autoimports"
	"github.com/conneroisu/pagegen/internal/jsvalue"
	"github.com/conneroisu/pagegen/internal/kit"
	"github.com/conneroisu/pagegen/internal/templates"
)

// DefaultRootComponent wraps the main component at runtime.
const DefaultRootComponent = "@pagegen/ui/pagegen-root.vue"

// Core template filenames, relative to the build directory.
const (
	AppComponentFilename  = "app.component.mjs"
	RootComponentFilename = "root-component.mjs"
	ClientPluginsFilename = "plugins.client.mjs"
	ServerPluginsFilename = "plugins.server.mjs"
	TypesFilename         = "pagegen.d.ts"
	AutoImportsFilename   = "auto-imports.d.ts"
)

func reexport(component string) string {
	return fmt.Sprintf("export { default } from %s\n", jsvalue.Quote(component))
}

// pluginsModule renders the plugin list for one side of the application.
// Plugins without a side load on both.
func pluginsModule(plugins []kit.PluginRef, side string) string {
	var (
		b     strings.Builder
		names []any
	)
	for _, p := range plugins {
		if p.Mode != kit.PluginModeAll && p.Mode != side {
			continue
		}
		name := jsvalue.ImportName("plugin", len(names))
		fmt.Fprintf(&b, "import %s from %s\n", name, jsvalue.Quote(p.Src))
		names = append(names, jsvalue.Raw(name))
	}
	b.WriteString("export default ")
	b.WriteString(jsvalue.Serialize(names))
	b.WriteByte('\n')
	return b.String()
}

// typesModule renders triple-slash references in registration order,
// without duplicates.
func typesModule(refs []kit.TypeReference) string {
	var b strings.Builder
	b.WriteString("// Generated by pagegen\n")
	seen := make(map[kit.TypeReference]bool)
	for _, ref := range refs {
		if seen[ref] {
			continue
		}
		seen[ref] = true
		switch {
		case ref.Types != "":
			fmt.Fprintf(&b, "/// <reference types=%s />\n", jsvalue.Quote(ref.Types))
		case ref.Path != "":
			fmt.Fprintf(&b, "/// <reference path=%s />\n", jsvalue.Quote(ref.Path))
		}
	}
	b.WriteString("export {}\n")
	return b.String()
}

func static(filename, content string) templates.Descriptor {
	return templates.Generate(filename, func(context.Context) (string, error) {
		return content, nil
	})
}

// coreTemplates are the descriptors every pass generates besides the ones
// registered by modules.
func coreTemplates(app *kit.AppState, imports []autoimports.Import, types *kit.TypesPayload) []templates.Descriptor {
	return []templates.Descriptor{
		static(AppComponentFilename, reexport(app.MainComponent)),
		static(RootComponentFilename, reexport(app.RootComponent)),
		static(ClientPluginsFilename, pluginsModule(app.Plugins, kit.PluginModeClient)),
		static(ServerPluginsFilename, pluginsModule(app.Plugins, kit.PluginModeServer)),
		static(AutoImportsFilename, autoimports.Declarations(imports)),
		static(TypesFilename, typesModule(types.References)),
	}
}
