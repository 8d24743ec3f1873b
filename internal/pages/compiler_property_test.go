//go:build property
// +build property

package pages

import (
	"context"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/afero"

	"github.com/conneroisu/pagegen/internal/errors"
)

func siblingFs(statics []string, dynamic, catchAll bool) afero.Fs {
	fsys := afero.NewMemMapFs()
	_ = fsys.MkdirAll(pagesDir, 0o755)
	seen := map[string]bool{"index": true}
	for _, name := range statics {
		name = strings.ToLower(name)
		if seen[name] {
			continue
		}
		seen[name] = true
		_ = afero.WriteFile(fsys, pagesDir+"/"+name+".vue", nil, 0o644)
	}
	if dynamic {
		_ = afero.WriteFile(fsys, pagesDir+"/[id].vue", nil, 0o644)
	}
	if catchAll {
		_ = afero.WriteFile(fsys, pagesDir+"/[...slug].vue", nil, 0o644)
	}
	return fsys
}

// TestCompilerProperties checks ordering and determinism of compiled routes
func TestCompilerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("siblings sort static before dynamic before catch-all", prop.ForAll(
		func(statics []string, dynamic, catchAll bool) bool {
			routes, err := NewCompiler(siblingFs(statics, dynamic, catchAll), pagesDir, CompilerOptions{}, nil).
				Compile(context.Background())
			if err != nil {
				return false
			}
			last := -1
			prevStatic := ""
			for _, r := range routes {
				rank := kindRank[r.Path[0].Kind]
				if rank < last {
					return false
				}
				if r.Path[0].Kind == SegmentStatic {
					if r.Path[0].Value < prevStatic {
						return false
					}
					prevStatic = r.Path[0].Value
				}
				last = rank
			}
			return true
		},
		gen.SliceOf(gen.Identifier()),
		gen.Bool(),
		gen.Bool(),
	))

	properties.Property("compiling twice yields identical modules", prop.ForAll(
		func(statics []string, dynamic, catchAll, lazy bool) bool {
			c := NewCompiler(siblingFs(statics, dynamic, catchAll), pagesDir, CompilerOptions{}, nil)
			first, err := c.Compile(context.Background())
			if err != nil {
				return false
			}
			second, err := c.Compile(context.Background())
			if err != nil {
				return false
			}
			return RoutesModule(first, lazy) == RoutesModule(second, lazy)
		},
		gen.SliceOf(gen.Identifier()),
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
	))

	properties.Property("a second catch-all sibling is ambiguous", prop.ForAll(
		func(statics []string, param string) bool {
			fsys := siblingFs(statics, false, true)
			_ = afero.WriteFile(fsys, pagesDir+"/[..."+param+"x].vue", nil, 0o644)
			_, err := NewCompiler(fsys, pagesDir, CompilerOptions{}, nil).Compile(context.Background())
			return errors.Is(err, errors.ErrAmbiguousRoute)
		},
		gen.SliceOf(gen.Identifier()),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
