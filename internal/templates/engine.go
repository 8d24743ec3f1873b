package templates

import (
	"context"
	"crypto/sha256"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/pagegen/internal/errors"
	"github.com/conneroisu/pagegen/internal/jsvalue"
	"github.com/conneroisu/pagegen/internal/logging"
)

// Status is the outcome of one descriptor in a batch.
type Status string

const (
	StatusWritten   Status = "written"
	StatusUnchanged Status = "unchanged"
	StatusFailed    Status = "failed"
)

// Recorder receives one observation per compiled descriptor.
type Recorder interface {
	TemplateCompiled(status string, duration time.Duration)
}

// Options configures an Engine.
type Options struct {
	// Concurrency bounds the number of descriptors rendered at once.
	Concurrency int
	// SourceFs is read for FileSource templates. Defaults to the OS.
	SourceFs afero.Fs
	// SnapshotSize bounds the number of remembered content hashes.
	SnapshotSize int
	// Funcs are added to the template function map.
	Funcs    template.FuncMap
	Recorder Recorder
}

// Outcome reports what happened to one descriptor.
type Outcome struct {
	Filename string
	Path     string
	Status   Status
	Err      error
}

// BatchResult lists the outcome of every descriptor in submission order.
type BatchResult struct {
	Outcomes []Outcome
}

func (r *BatchResult) filter(status Status) []string {
	var out []string
	for _, o := range r.Outcomes {
		if o.Status == status {
			out = append(out, o.Filename)
		}
	}
	return out
}

// Written returns the filenames that were written.
func (r *BatchResult) Written() []string { return r.filter(StatusWritten) }

// Unchanged returns the filenames whose content did not change.
func (r *BatchResult) Unchanged() []string { return r.filter(StatusUnchanged) }

// Failed returns the filenames that failed.
func (r *BatchResult) Failed() []string { return r.filter(StatusFailed) }

// Engine renders descriptors into files under a destination root.
type Engine struct {
	dst       afero.Fs
	src       afero.Fs
	root      string
	opts      Options
	snapshots *lru.Cache[string, [sha256.Size]byte]
	logger    logging.Logger

	mu       sync.RWMutex
	contents map[string]string
}

// NewEngine creates an engine writing under root on dst.
func NewEngine(dst afero.Fs, root string, opts Options, logger logging.Logger) (*Engine, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 8
	}
	if opts.SnapshotSize < 1 {
		opts.SnapshotSize = 1024
	}
	src := opts.SourceFs
	if src == nil {
		src = afero.NewOsFs()
	}

	snapshots, err := lru.New[string, [sha256.Size]byte](opts.SnapshotSize)
	if err != nil {
		return nil, errors.WrapInternal(err, "cannot create render snapshot cache")
	}

	return &Engine{
		dst:       dst,
		src:       src,
		root:      filepath.Clean(root),
		opts:      opts,
		snapshots: snapshots,
		logger:    logger.WithComponent("templates"),
		contents:  make(map[string]string),
	}, nil
}

// Root returns the destination root.
func (e *Engine) Root() string { return e.root }

// Contents returns the content last rendered for filename. The builder
// serves it to the bundler as the #build/ virtual module.
func (e *Engine) Contents(filename string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.contents[filename]
	return c, ok
}

func (e *Engine) funcs() template.FuncMap {
	funcs := template.FuncMap{
		"serialize": jsvalue.Serialize,
		"quote":     jsvalue.Quote,
		"join":      strings.Join,
	}
	for name, fn := range e.opts.Funcs {
		funcs[name] = fn
	}
	return funcs
}

// Render produces the content of d without writing it.
func (e *Engine) Render(ctx context.Context, d Descriptor) (string, error) {
	switch c := d.Content.(type) {
	case FileSource:
		raw, err := afero.ReadFile(e.src, c.Src)
		if err != nil {
			return "", err
		}
		tmpl, err := template.New(filepath.Base(c.Src)).
			Funcs(e.funcs()).
			Option("missingkey=error").
			Parse(string(raw))
		if err != nil {
			return "", err
		}
		var b strings.Builder
		if err := tmpl.Execute(&b, c.Data); err != nil {
			return "", err
		}
		return b.String(), nil
	case Generator:
		if c.GetContents == nil {
			return "", fmt.Errorf("generator has no content function")
		}
		return c.GetContents(ctx)
	default:
		return "", fmt.Errorf("descriptor has no content")
	}
}

// Compile renders and writes every descriptor concurrently. Failures are
// isolated: every descriptor runs, and the returned error combines one
// TemplateRenderError per failed descriptor. Descriptors not yet started
// when ctx is cancelled fail with the context error.
//
// Compile holds a process-wide lock for the destination root, so two
// batches never write the same root at once.
func (e *Engine) Compile(ctx context.Context, descs []Descriptor) (*BatchResult, error) {
	unlock := lockRoot(e.root)
	defer unlock()

	descs = dedupe(descs)
	result := &BatchResult{Outcomes: make([]Outcome, len(descs))}

	if err := e.dst.MkdirAll(e.root, 0o755); err != nil {
		return result, errors.WrapIO(err, e.root, "cannot create destination root")
	}

	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)
	for i, d := range descs {
		i, d := i, d
		g.Go(func() error {
			start := time.Now()
			if err := ctx.Err(); err != nil {
				result.Outcomes[i] = e.failed(d, err)
			} else {
				result.Outcomes[i] = e.compileOne(ctx, d)
			}
			if e.opts.Recorder != nil {
				e.opts.Recorder.TemplateCompiled(string(result.Outcomes[i].Status), time.Since(start))
			}
			return nil
		})
	}
	_ = g.Wait()

	var errs error
	for _, o := range result.Outcomes {
		errs = multierr.Append(errs, o.Err)
	}
	return result, errs
}

func (e *Engine) failed(d Descriptor, cause error) Outcome {
	return Outcome{
		Filename: d.Filename,
		Path:     e.destination(d.Filename),
		Status:   StatusFailed,
		Err:      errors.NewTemplateRenderError(d.Filename, cause),
	}
}

func (e *Engine) destination(filename string) string {
	return filepath.Join(e.root, filepath.FromSlash(filename))
}

func (e *Engine) compileOne(ctx context.Context, d Descriptor) Outcome {
	if !validFilename(d.Filename) {
		return e.failed(d, fmt.Errorf("filename must be a relative path inside the build directory"))
	}

	content, err := e.Render(ctx, d)
	if err != nil {
		e.logger.Warn(ctx, err, "Template rendering failed", "template", d.Filename)
		return e.failed(d, err)
	}

	e.mu.Lock()
	e.contents[d.Filename] = content
	e.mu.Unlock()

	dest := e.destination(d.Filename)
	sum := sha256.Sum256([]byte(content))
	if e.unchanged(dest, sum) {
		e.logger.Debug(ctx, "Template unchanged", "template", d.Filename)
		return Outcome{Filename: d.Filename, Path: dest, Status: StatusUnchanged}
	}

	if err := e.writeAtomic(dest, []byte(content)); err != nil {
		return e.failed(d, err)
	}
	e.snapshots.Add(dest, sum)

	e.logger.Debug(ctx, "Compiled template", "template", d.Filename, "path", dest)
	return Outcome{Filename: d.Filename, Path: dest, Status: StatusWritten}
}

// unchanged compares sum with the last written content. Without a snapshot
// the file on disk is compared, which keeps restarts from rewriting files.
func (e *Engine) unchanged(dest string, sum [sha256.Size]byte) bool {
	if prev, ok := e.snapshots.Get(dest); ok {
		if prev != sum {
			return false
		}
		exists, err := afero.Exists(e.dst, dest)
		return err == nil && exists
	}

	existing, err := afero.ReadFile(e.dst, dest)
	if err != nil {
		return false
	}
	if sha256.Sum256(existing) != sum {
		return false
	}
	e.snapshots.Add(dest, sum)
	return true
}

// writeAtomic writes data to a temporary file in the destination directory
// and renames it into place, so readers never see a partial file.
func (e *Engine) writeAtomic(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	if err := e.dst.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapIO(err, dir, "cannot create directory")
	}

	tmp, err := afero.TempFile(e.dst, dir, "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return errors.WrapIO(err, dir, "cannot create temporary file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = e.dst.Remove(tmpName)
		return errors.WrapIO(err, tmpName, "cannot write temporary file")
	}
	if err := tmp.Close(); err != nil {
		_ = e.dst.Remove(tmpName)
		return errors.WrapIO(err, tmpName, "cannot close temporary file")
	}
	_ = e.dst.Chmod(tmpName, 0o644)
	if err := e.dst.Rename(tmpName, dest); err != nil {
		_ = e.dst.Remove(tmpName)
		return errors.WrapIO(err, dest, "cannot move file into place")
	}
	return nil
}

// dedupe keeps the last descriptor for each filename, at the position of
// its first occurrence.
func dedupe(descs []Descriptor) []Descriptor {
	index := make(map[string]int, len(descs))
	out := make([]Descriptor, 0, len(descs))
	for _, d := range descs {
		if i, ok := index[d.Filename]; ok {
			out[i] = d
			continue
		}
		index[d.Filename] = len(out)
		out = append(out, d)
	}
	return out
}

var rootLocks sync.Map

// lockRoot acquires the process-wide mutex for a destination root.
func lockRoot(root string) func() {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	m, _ := rootLocks.LoadOrStore(root, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
