package pages

import (
	"fmt"
	"strings"

	"github.com/conneroisu/pagegen/internal/jsvalue"
)

type routesWriter struct {
	lazy    bool
	imports []string
	names   map[string]string
}

// RoutesModule renders the routes virtual module. Pages are loaded lazily
// through dynamic imports, or imported eagerly with hoisted import
// statements when lazy is false.
func RoutesModule(routes []*RouteNode, lazy bool) string {
	w := &routesWriter{lazy: lazy, names: make(map[string]string)}
	value := w.routes(routes)

	var b strings.Builder
	for _, imp := range w.imports {
		b.WriteString(imp)
		b.WriteByte('\n')
	}
	b.WriteString("export default ")
	b.WriteString(jsvalue.Serialize(value))
	b.WriteByte('\n')
	return b.String()
}

func (w *routesWriter) routes(nodes []*RouteNode) []any {
	out := make([]any, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, w.route(n))
	}
	return out
}

func (w *routesWriter) route(n *RouteNode) *jsvalue.Object {
	// The parent's import is allocated before its children so hoisted
	// identifiers follow document order.
	component := w.component(n.File.AbsolutePath)

	obj := jsvalue.NewObject()
	if n.Name != "" {
		obj.Set("name", n.Name)
	}
	obj.Set("path", n.Pattern())
	obj.Set("file", n.File.AbsolutePath)
	obj.Set("children", w.routes(n.Children))
	if n.Meta != nil {
		obj.Set("meta", n.Meta)
	}
	obj.Set("component", component)
	return obj
}

func (w *routesWriter) component(file string) jsvalue.Raw {
	if w.lazy {
		return jsvalue.Raw(fmt.Sprintf("() => import(%s)", jsvalue.Quote(file)))
	}
	if name, ok := w.names[file]; ok {
		return jsvalue.Raw(name)
	}
	name := jsvalue.ImportName("page", len(w.imports))
	w.names[file] = name
	w.imports = append(w.imports, fmt.Sprintf("import %s from %s", name, jsvalue.Quote(file)))
	return jsvalue.Raw(name)
}

// LayoutsModule renders the layouts virtual module: a mapping from layout
// name to an async component.
func LayoutsModule(layouts []Layout) string {
	obj := jsvalue.NewObject()
	for _, l := range layouts {
		obj.Set(l.Name, jsvalue.Raw(fmt.Sprintf(
			"defineAsyncComponent({ suspensible: false, loader: () => import(%s) })",
			jsvalue.Quote(l.File))))
	}

	var b strings.Builder
	b.WriteString("import { defineAsyncComponent } from 'vue'\n")
	b.WriteString("export default ")
	b.WriteString(jsvalue.Serialize(obj))
	b.WriteByte('\n')
	return b.String()
}

// RouteInfo is a plain view of a route for JSON and YAML output.
type RouteInfo struct {
	Name     string         `json:"name,omitempty" yaml:"name,omitempty"`
	Path     string         `json:"path" yaml:"path"`
	File     string         `json:"file" yaml:"file"`
	Meta     map[string]any `json:"meta,omitempty" yaml:"meta,omitempty"`
	Children []RouteInfo    `json:"children,omitempty" yaml:"children,omitempty"`
}

// Describe converts a route tree into RouteInfo values.
func Describe(routes []*RouteNode) []RouteInfo {
	if len(routes) == 0 {
		return nil
	}
	out := make([]RouteInfo, 0, len(routes))
	for _, n := range routes {
		out = append(out, RouteInfo{
			Name:     n.Name,
			Path:     n.Pattern(),
			File:     n.File.RelativePath,
			Meta:     n.Meta.ToMap(),
			Children: Describe(n.Children),
		})
	}
	return out
}
