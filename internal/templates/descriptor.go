// Package templates renders virtual module descriptors and writes them under
// a destination root.
//
// A descriptor's content is either a text/template source file rendered
// with data, or a generator function re-invoked on every batch. Writes are
// atomic and skipped when the rendered content did not change.
package templates

import (
	"context"
	"io/fs"
	"path"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// Content is the source of a descriptor's text. It is either FileSource or
// Generator.
type Content interface {
	isContent()
}

// FileSource renders the template file at Src with Data.
type FileSource struct {
	Src  string
	Data any
}

// Generator computes the content from live state.
type Generator struct {
	GetContents func(ctx context.Context) (string, error)
}

func (FileSource) isContent() {}
func (Generator) isContent()  {}

// Descriptor describes one generated file. Filename is relative to the
// destination root and uses forward slashes.
type Descriptor struct {
	Filename string
	Content  Content
}

// Generate is shorthand for a generator descriptor.
func Generate(filename string, fn func(ctx context.Context) (string, error)) Descriptor {
	return Descriptor{Filename: filename, Content: Generator{GetContents: fn}}
}

// ScanTemplates returns a FileSource descriptor for every file under dir,
// destined for the same relative path. Results are sorted by filename.
func ScanTemplates(fsys afero.Fs, dir string, data any) ([]Descriptor, error) {
	var descs []Descriptor
	err := afero.Walk(fsys, dir, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		descs = append(descs, Descriptor{
			Filename: filepath.ToSlash(rel),
			Content:  FileSource{Src: p, Data: data},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(descs, func(i, j int) bool { return descs[i].Filename < descs[j].Filename })
	return descs, nil
}

// validFilename reports whether name stays inside the destination root.
func validFilename(name string) bool {
	if name == "" || path.IsAbs(name) || filepath.IsAbs(name) {
		return false
	}
	clean := path.Clean(filepath.ToSlash(name))
	return clean != "." && clean != ".." && !hasDotDotPrefix(clean)
}

func hasDotDotPrefix(p string) bool {
	return len(p) >= 3 && p[:3] == "../"
}
