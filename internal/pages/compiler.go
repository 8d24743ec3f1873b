// Package pages compiles a pages directory into a route tree and renders the
// routes and layouts virtual modules from it.
//
// File naming follows the router convention: index.* adds no segment, [id]
// is a dynamic segment, [...slug] is a catch-all. A directory X/ next to a
// page X.vue holds that page's child routes; any other directory only
// prefixes the routes inside it.
package pages

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/conneroisu/pagegen/internal/errors"
	"github.com/conneroisu/pagegen/internal/jsvalue"
	"github.com/conneroisu/pagegen/internal/logging"
	"github.com/conneroisu/pagegen/internal/macro"
)

// CompilerOptions configures a Compiler.
type CompilerOptions struct {
	// Extensions lists the page file extensions. Empty means the macro
	// transform's defaults.
	Extensions []string
	// Macros configures metadata extraction. The export named "meta"
	// becomes the route meta.
	Macros map[string]string
}

// Compiler turns a pages directory into a route tree. The tree is rebuilt
// from a full scan on every call.
type Compiler struct {
	fs     afero.Fs
	dir    string
	opts   CompilerOptions
	logger logging.Logger
}

// NewCompiler creates a compiler for the pages directory dir on fsys.
func NewCompiler(fsys afero.Fs, dir string, opts CompilerOptions, logger logging.Logger) *Compiler {
	if logger == nil {
		logger = logging.Discard()
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = macro.DefaultExtensions
	}
	return &Compiler{
		fs:     fsys,
		dir:    filepath.Clean(dir),
		opts:   opts,
		logger: logger.WithComponent("pages"),
	}
}

// Dir returns the pages directory.
func (c *Compiler) Dir() string { return c.dir }

// Compile scans the pages directory and returns the sorted route tree with
// names and metadata assigned. Route errors abort compilation; metadata
// that cannot be extracted is logged and left empty.
func (c *Compiler) Compile(ctx context.Context) ([]*RouteNode, error) {
	exists, err := afero.DirExists(c.fs, c.dir)
	if err != nil {
		return nil, errors.WrapIO(err, c.dir, "cannot stat pages directory")
	}
	if !exists {
		return nil, nil
	}

	routes, err := c.scanDir(ctx, c.dir, "")
	if err != nil {
		return nil, err
	}

	SortRoutes(routes)
	assignNames(routes, nil)
	return routes, nil
}

type dirEntry struct {
	name string
	seg  Segment
	idx  bool
}

// scanDir compiles one directory level. rel is the directory relative to
// the pages root.
func (c *Compiler) scanDir(ctx context.Context, dir, rel string) ([]*RouteNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos, err := afero.ReadDir(c.fs, dir)
	if err != nil {
		return nil, errors.WrapIO(err, dir, "cannot read pages directory")
	}

	var (
		nodes  []*RouteNode
		byName = make(map[string]*RouteNode)
		dirs   []dirEntry
	)

	for _, info := range infos {
		name := info.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		relPath := path.Join(rel, name)

		if info.IsDir() {
			seg, idx, err := parseSegment(relPath, name)
			if err != nil {
				return nil, err
			}
			dirs = append(dirs, dirEntry{name: name, seg: seg, idx: idx})
			continue
		}
		if !hasExtension(name, c.opts.Extensions) {
			continue
		}

		base := strings.TrimSuffix(name, filepath.Ext(name))
		seg, idx, err := parseSegment(relPath, base)
		if err != nil {
			return nil, err
		}

		node := &RouteNode{
			File: PageFile{AbsolutePath: filepath.Join(dir, name), RelativePath: relPath},
		}
		if !idx {
			node.Path = []Segment{seg}
		}
		node.Meta = c.extractMeta(ctx, node.File)

		nodes = append(nodes, node)
		if _, seen := byName[base]; !seen {
			byName[base] = node
		}
	}

	for _, d := range dirs {
		subRel := path.Join(rel, d.name)
		children, err := c.scanDir(ctx, filepath.Join(dir, d.name), subRel)
		if err != nil {
			return nil, err
		}

		if parent, ok := byName[d.name]; ok {
			if err := checkNestedUnderCatchAll(parent, children); err != nil {
				return nil, err
			}
			for _, child := range children {
				child.Nested = true
			}
			parent.Children = append(parent.Children, children...)
			continue
		}

		for _, child := range children {
			if !d.idx {
				if d.seg.Kind == SegmentCatchAll && (len(child.Path) > 0 || hasRoutedChildren(child)) {
					return nil, errors.NewAmbiguousRouteError("/"+subRel,
						"a catch-all segment must be the last segment", child.File.RelativePath)
				}
				child.Path = append([]Segment{d.seg}, child.Path...)
			}
			nodes = append(nodes, child)
		}
	}

	if err := checkSiblings(nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

func hasRoutedChildren(n *RouteNode) bool {
	for _, c := range n.Children {
		if len(c.Path) > 0 || hasRoutedChildren(c) {
			return true
		}
	}
	return false
}

func checkNestedUnderCatchAll(parent *RouteNode, children []*RouteNode) error {
	if !parent.endsWithCatchAll() {
		return nil
	}
	for _, child := range children {
		if len(child.Path) > 0 || hasRoutedChildren(child) {
			return errors.NewAmbiguousRouteError(parent.Pattern(),
				"a catch-all segment must be the last segment",
				parent.File.RelativePath, child.File.RelativePath)
		}
	}
	return nil
}

// checkSiblings rejects two catch-alls and two entries with the same shape
// at one tree position.
func checkSiblings(nodes []*RouteNode) error {
	catchAlls := make(map[string]*RouteNode)
	for _, n := range nodes {
		if !n.endsWithCatchAll() {
			continue
		}
		prefix := (&RouteNode{Path: n.Path[:len(n.Path)-1]}).key()
		if prev, ok := catchAlls[prefix]; ok {
			return errors.NewAmbiguousRouteError(n.Pattern(),
				"more than one catch-all at the same position",
				prev.File.RelativePath, n.File.RelativePath)
		}
		catchAlls[prefix] = n
	}

	seen := make(map[string]*RouteNode, len(nodes))
	for _, n := range nodes {
		key := n.key()
		if prev, ok := seen[key]; ok {
			return errors.NewDuplicateRouteError(n.Pattern(),
				prev.File.RelativePath, n.File.RelativePath)
		}
		seen[key] = n
	}
	return nil
}

// extractMeta reads the page source and returns its static metadata.
func (c *Compiler) extractMeta(ctx context.Context, file PageFile) *jsvalue.Object {
	src, err := afero.ReadFile(c.fs, file.AbsolutePath)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn(ctx, err, "Cannot read page", "file", file.RelativePath)
		}
		return nil
	}

	res, err := macro.Extract(file.AbsolutePath, string(src), macro.Options{Macros: c.opts.Macros})
	if err != nil {
		c.logger.Warn(ctx, err, "Page metadata ignored", "file", file.RelativePath)
		return nil
	}
	return res.Export("meta")
}
