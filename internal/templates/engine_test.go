package templates

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/conneroisu/pagegen/internal/errors"
)

const root = "/app/.pagegen"

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) TemplateCompiled(status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	r.counts[status]++
}

func newEngine(t *testing.T, fsys afero.Fs, opts Options) *Engine {
	t.Helper()
	if opts.SourceFs == nil {
		opts.SourceFs = fsys
	}
	e, err := NewEngine(fsys, root, opts, nil)
	require.NoError(t, err)
	return e
}

func static(filename, content string) Descriptor {
	return Generate(filename, func(context.Context) (string, error) { return content, nil })
}

func readFile(t *testing.T, fsys afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fsys, path)
	require.NoError(t, err)
	return string(data)
}

func TestRenderFileSource(t *testing.T) {
	fsys := afero.NewMemMapFs()
	src := "/app/templates/plugins.mjs"
	require.NoError(t, afero.WriteFile(fsys, src,
		[]byte(`{{range .Plugins}}import {{.Name}} from {{quote .Src}}
{{end}}export default [{{join .Names ", "}}]
`), 0o644))

	e := newEngine(t, fsys, Options{})
	data := map[string]any{
		"Plugins": []map[string]string{{"Name": "plugin_0", "Src": "/app/plugins/router"}},
		"Names":   []string{"plugin_0"},
	}

	out, err := e.Render(context.Background(), Descriptor{Filename: "plugins.mjs", Content: FileSource{Src: src, Data: data}})
	require.NoError(t, err)
	assert.Equal(t, "import plugin_0 from \"/app/plugins/router\"\nexport default [plugin_0]\n", out)
}

func TestRenderMissingKeyFails(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/t/a.txt", []byte("{{.Missing}}"), 0o644))
	e := newEngine(t, fsys, Options{})

	_, err := e.Render(context.Background(), Descriptor{Filename: "a.txt", Content: FileSource{Src: "/t/a.txt", Data: map[string]any{}}})
	assert.Error(t, err)
}

func TestCompileWritesAndSkipsUnchanged(t *testing.T) {
	fsys := afero.NewMemMapFs()
	rec := &countingRecorder{}
	e := newEngine(t, fsys, Options{Recorder: rec})
	ctx := context.Background()

	descs := []Descriptor{static("routes.mjs", "export default []\n"), static("types/pages.d.ts", "export {}\n")}

	res, err := e.Compile(ctx, descs)
	require.NoError(t, err)
	assert.Equal(t, []string{"routes.mjs", "types/pages.d.ts"}, res.Written())
	assert.Equal(t, "export default []\n", readFile(t, fsys, root+"/routes.mjs"))
	assert.Equal(t, "export {}\n", readFile(t, fsys, root+"/types/pages.d.ts"))

	res, err = e.Compile(ctx, descs)
	require.NoError(t, err)
	assert.Empty(t, res.Written())
	assert.Equal(t, []string{"routes.mjs", "types/pages.d.ts"}, res.Unchanged())

	assert.Equal(t, 2, rec.counts["written"])
	assert.Equal(t, 2, rec.counts["unchanged"])

	content, ok := e.Contents("routes.mjs")
	require.True(t, ok)
	assert.Equal(t, "export default []\n", content)
}

func TestCompileRewritesDeletedFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	e := newEngine(t, fsys, Options{})
	ctx := context.Background()
	descs := []Descriptor{static("routes.mjs", "x")}

	_, err := e.Compile(ctx, descs)
	require.NoError(t, err)
	require.NoError(t, fsys.Remove(root+"/routes.mjs"))

	res, err := e.Compile(ctx, descs)
	require.NoError(t, err)
	assert.Equal(t, []string{"routes.mjs"}, res.Written())
}

func TestCompileRestartComparesDisk(t *testing.T) {
	fsys := afero.NewMemMapFs()
	ctx := context.Background()
	descs := []Descriptor{static("layouts.mjs", "export default {}\n")}

	_, err := newEngine(t, fsys, Options{}).Compile(ctx, descs)
	require.NoError(t, err)

	res, err := newEngine(t, fsys, Options{}).Compile(ctx, descs)
	require.NoError(t, err)
	assert.Equal(t, []string{"layouts.mjs"}, res.Unchanged())
}

func TestGeneratorsAreReinvokedEveryBatch(t *testing.T) {
	fsys := afero.NewMemMapFs()
	e := newEngine(t, fsys, Options{})

	var calls atomic.Int32
	d := Generate("count.txt", func(context.Context) (string, error) {
		return fmt.Sprintf("%d", calls.Add(1)), nil
	})

	for i := 1; i <= 3; i++ {
		_, err := e.Compile(context.Background(), []Descriptor{d})
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("%d", i), readFile(t, fsys, root+"/count.txt"))
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestCompileIsolatesAndAggregatesFailures(t *testing.T) {
	fsys := afero.NewMemMapFs()
	e := newEngine(t, fsys, Options{})

	descs := []Descriptor{
		Generate("broken.mjs", func(context.Context) (string, error) { return "", fmt.Errorf("route state unavailable") }),
		static("ok.mjs", "ok"),
		{Filename: "missing.mjs", Content: FileSource{Src: "/nope/missing.tmpl"}},
		static("../escape.mjs", "no"),
	}

	res, err := e.Compile(context.Background(), descs)
	require.Error(t, err)

	assert.Equal(t, []string{"ok.mjs"}, res.Written())
	assert.Equal(t, []string{"broken.mjs", "missing.mjs", "../escape.mjs"}, res.Failed())
	assert.Equal(t, "ok", readFile(t, fsys, root+"/ok.mjs"))

	errs := multierr.Errors(err)
	require.Len(t, errs, 3)
	for _, batchErr := range errs {
		assert.True(t, errors.Is(batchErr, errors.ErrTemplateRender))
	}
	assert.Contains(t, err.Error(), "broken.mjs")
	assert.Contains(t, err.Error(), "route state unavailable")
	assert.Contains(t, err.Error(), "missing.mjs")
	assert.True(t, errors.Is(err, errors.ErrTemplateRender))

	exists, _ := afero.Exists(fsys, "/app/escape.mjs")
	assert.False(t, exists)
}

func TestCompileCancelled(t *testing.T) {
	fsys := afero.NewMemMapFs()
	e := newEngine(t, fsys, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.Compile(ctx, []Descriptor{static("a.mjs", "a"), static("b.mjs", "b")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Len(t, res.Failed(), 2)
}

func TestConcurrentWritesIntoSharedDirectories(t *testing.T) {
	fsys := afero.NewMemMapFs()
	e := newEngine(t, fsys, Options{Concurrency: 16})

	var descs []Descriptor
	for i := 0; i < 50; i++ {
		descs = append(descs, static(fmt.Sprintf("deep/nested/dir/file-%02d.mjs", i), fmt.Sprintf("%d", i)))
	}

	res, err := e.Compile(context.Background(), descs)
	require.NoError(t, err)
	assert.Len(t, res.Written(), 50)

	// No temporary files are left behind.
	err = afero.Walk(fsys, root, func(path string, info fs.FileInfo, err error) error {
		require.NoError(t, err)
		assert.NotContains(t, path, ".tmp-")
		return nil
	})
	require.NoError(t, err)
}

func TestDuplicateFilenamesLastWins(t *testing.T) {
	fsys := afero.NewMemMapFs()
	e := newEngine(t, fsys, Options{})

	res, err := e.Compile(context.Background(), []Descriptor{
		static("app.mjs", "first"),
		static("other.mjs", "other"),
		static("app.mjs", "second"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"app.mjs", "other.mjs"}, res.Written())
	assert.Equal(t, "second", readFile(t, fsys, root+"/app.mjs"))
}

func TestCompileIsIdempotent(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/src/tmpl/a.txt", []byte("hello {{.Name}}"), 0o644))
	e := newEngine(t, fsys, Options{})

	descs, err := ScanTemplates(fsys, "/src/tmpl", map[string]string{"Name": "pages"})
	require.NoError(t, err)

	_, err = e.Compile(context.Background(), descs)
	require.NoError(t, err)
	first := readFile(t, fsys, root+"/a.txt")

	_, err = e.Compile(context.Background(), descs)
	require.NoError(t, err)
	assert.Equal(t, first, readFile(t, fsys, root+"/a.txt"))
	assert.Equal(t, "hello pages", first)
}

func TestScanTemplates(t *testing.T) {
	fsys := afero.NewMemMapFs()
	for _, p := range []string{"/tmpl/b.mjs", "/tmpl/a.mjs", "/tmpl/sub/c.d.ts"} {
		require.NoError(t, afero.WriteFile(fsys, p, []byte("x"), 0o644))
	}

	descs, err := ScanTemplates(fsys, "/tmpl", "data")
	require.NoError(t, err)

	var names []string
	for _, d := range descs {
		names = append(names, d.Filename)
		src, ok := d.Content.(FileSource)
		require.True(t, ok)
		assert.True(t, strings.HasPrefix(src.Src, "/tmpl/"))
		assert.Equal(t, "data", src.Data)
	}
	assert.Equal(t, []string{"a.mjs", "b.mjs", "sub/c.d.ts"}, names)
}
