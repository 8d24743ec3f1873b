package macro

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/conneroisu/pagegen/internal/bundler"
	"github.com/conneroisu/pagegen/internal/jsvalue"
	"github.com/conneroisu/pagegen/internal/logging"
)

// PluginName is the name the transform is registered under in bundlers.
const PluginName = "pagegen:macros"

// Transformer applies the macro transform to bundler modules. Extraction
// failures are logged and the module passes through unmodified.
type Transformer struct {
	opts   Options
	logger logging.Logger
}

// NewTransformer creates a transformer.
func NewTransformer(opts Options, logger logging.Logger) *Transformer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Transformer{opts: opts, logger: logger.WithComponent("macro")}
}

// Include reports whether a module id is a candidate for the transform.
func (t *Transformer) Include(id string) bool {
	path, _ := bundler.SplitID(id)
	if strings.Contains(filepath.ToSlash(path), "/node_modules/") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range t.opts.extensions() {
		if ext == e {
			return true
		}
	}
	return false
}

// Transform strips macro calls from code. For ids carrying ?macro=true the
// whole module is replaced by the extracted exports.
func (t *Transformer) Transform(ctx context.Context, code, id string) (*bundler.TransformResult, error) {
	path, query := bundler.SplitID(id)

	res, err := Extract(path, code, t.opts)
	if err != nil {
		t.logger.Warn(ctx, err, "Page metadata ignored", "file", path)
		res = nil
	}

	if bundler.HasQueryFlag(query, "macro") {
		return &bundler.TransformResult{Code: ExportsModule(res, t.opts)}, nil
	}

	if res == nil || !res.Changed {
		return nil, nil
	}
	return &bundler.TransformResult{Code: res.Code}, nil
}

// Plugin returns the transform as a bundler-agnostic plugin.
func (t *Transformer) Plugin() bundler.Unplugin {
	return bundler.Unplugin{
		Name:      PluginName,
		Enforce:   "post",
		Include:   t.Include,
		Transform: t.Transform,
	}
}

// ExportsModule renders the ?macro=true variant of a module: one export per
// configured macro, undefined when the source did not call it.
func ExportsModule(res *Result, opts Options) string {
	var b strings.Builder
	for _, name := range opts.exportNames() {
		b.WriteString("export const ")
		b.WriteString(name)
		b.WriteString(" = ")
		if obj := res.Export(name); obj != nil {
			b.WriteString(jsvalue.Serialize(obj))
		} else {
			b.WriteString("undefined")
		}
		b.WriteString("\n")
	}
	return b.String()
}
