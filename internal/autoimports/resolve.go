package autoimports

import (
	"context"
	"sort"
	"strings"

	"github.com/conneroisu/pagegen/internal/hooks"
	"github.com/conneroisu/pagegen/internal/jsvalue"
)

// HookExtend lets modules append to or rewrite the auto-import list.
var HookExtend = hooks.Hook[*[]Import]{Name: "autoImports:extend"}

// Resolve expands sources and passes the list through autoImports:extend.
// When two imports claim the same local name the first one is kept.
func Resolve(ctx context.Context, r *hooks.Registry, sources []Source) ([]Import, error) {
	imports := Expand(sources)
	if err := hooks.Call(ctx, r, HookExtend, &imports); err != nil {
		return nil, err
	}
	return dedupe(imports), nil
}

func dedupe(imports []Import) []Import {
	seen := make(map[string]bool, len(imports))
	out := make([]Import, 0, len(imports))
	for _, imp := range imports {
		as := imp.As
		if as == "" {
			as = imp.Name
			imp.As = as
		}
		if seen[as] {
			continue
		}
		seen[as] = true
		out = append(out, imp)
	}
	return out
}

// Declarations renders a TypeScript declaration file that exposes every
// import as a global. Output is sorted by local name.
func Declarations(imports []Import) string {
	sorted := make([]Import, len(imports))
	copy(sorted, imports)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].As < sorted[j].As })

	var b strings.Builder
	b.WriteString("// Generated by pagegen\n")
	b.WriteString("declare global {\n")
	for _, imp := range sorted {
		b.WriteString("  const ")
		b.WriteString(imp.As)
		b.WriteString(": typeof import(")
		b.WriteString(jsvalue.Quote(imp.From))
		b.WriteString(")[")
		b.WriteString(jsvalue.Quote(imp.Name))
		b.WriteString("]\n")
	}
	b.WriteString("}\n")
	b.WriteString("export {}\n")
	return b.String()
}
