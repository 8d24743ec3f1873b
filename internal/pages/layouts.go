package pages

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/spf13/afero"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/pagegen/internal/errors"
	"github.com/conneroisu/pagegen/internal/logging"
)

// DefaultLayout is the layout used by pages that do not choose one.
// ResolveLayouts warns when a project has layouts but none by this name.
const DefaultLayout = "default"

// Layout is a layout component.
type Layout struct {
	Name string `json:"name" yaml:"name"`
	File string `json:"file" yaml:"file"`
}

var lower = cases.Lower(language.Und)

// layoutName converts a layout path without extension to kebab case, e.g.
// admin/SideBar becomes admin-side-bar.
func layoutName(rel string) string {
	var words []string
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		words = append(words, splitWords(part)...)
	}
	return lower.String(strings.Join(words, "-"))
}

func splitWords(s string) []string {
	var (
		words []string
		cur   []rune
	)
	runes := []rune(s)
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	for i, r := range runes {
		switch {
		case r == '-' || r == '_' || r == '.' || unicode.IsSpace(r):
			flush()
			continue
		case unicode.IsUpper(r) && len(cur) > 0:
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return words
}

// ResolveLayouts lists the layouts under dir, sorted by name. A missing
// directory yields no layouts. When two files map to the same name the first
// in path order wins.
func ResolveLayouts(ctx context.Context, fsys afero.Fs, dir string, extensions []string, logger logging.Logger) ([]Layout, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	exists, err := afero.DirExists(fsys, dir)
	if err != nil {
		return nil, errors.WrapIO(err, dir, "cannot stat layouts directory")
	}
	if !exists {
		return nil, nil
	}

	var files []string
	err = afero.Walk(fsys, dir, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(info.Name(), ".") && p != dir {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() || !hasExtension(info.Name(), extensions) {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, errors.WrapIO(err, dir, "cannot read layouts directory")
	}
	sort.Strings(files)

	seen := make(map[string]string)
	var layouts []Layout
	for _, file := range files {
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return nil, errors.WrapIO(err, file, "cannot resolve layout path")
		}
		name := layoutName(strings.TrimSuffix(rel, filepath.Ext(rel)))
		if prev, dup := seen[name]; dup {
			logger.Warn(ctx, nil, "Layout shadowed", "layout", name, "file", file, "kept", prev)
			continue
		}
		seen[name] = file
		layouts = append(layouts, Layout{Name: name, File: file})
	}

	sort.Slice(layouts, func(i, j int) bool { return layouts[i].Name < layouts[j].Name })
	if len(layouts) > 0 && !hasLayout(layouts, DefaultLayout) {
		logger.Warn(ctx, nil, "No default layout, pages without a layout render unwrapped",
			"dir", dir, "expected", DefaultLayout)
	}
	return layouts, nil
}

func hasLayout(layouts []Layout, name string) bool {
	for _, l := range layouts {
		if l.Name == name {
			return true
		}
	}
	return false
}

func hasExtension(name string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}
