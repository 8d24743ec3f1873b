// Package bundler describes build-tool-agnostic transform plugins and adapts
// them to the plugin contracts of concrete bundler integrations.
package bundler

import (
	"context"
	"net/url"
	"strings"
)

// TransformResult is the output of a transform. A nil result means the
// module was left untouched.
type TransformResult struct {
	Code string
	Map  string
}

// TransformFunc transforms the source of one module.
type TransformFunc func(ctx context.Context, code, id string) (*TransformResult, error)

// LoadFunc supplies the source of a module the plugin owns. ok is false for
// ids it does not own.
type LoadFunc func(ctx context.Context, id string) (code string, ok bool, err error)

// Unplugin is a transform written once and installed into any supported
// bundler through an adapter.
type Unplugin struct {
	Name string
	// Enforce is "pre", "post" or empty.
	Enforce string
	// Include filters module ids. Nil accepts every module.
	Include   func(id string) bool
	Transform TransformFunc
	Load      LoadFunc
}

func (u Unplugin) includes(id string) bool {
	return u.Transform != nil && (u.Include == nil || u.Include(id))
}

// SplitID separates a module id into its file path and raw query string.
// Virtual module prefixes ("\x00") are removed.
func SplitID(id string) (string, string) {
	id = strings.TrimPrefix(id, "\x00")
	path, query, _ := strings.Cut(id, "?")
	return path, query
}

// HasQueryFlag reports whether the raw query sets key to "true" or to an
// empty value.
func HasQueryFlag(query, key string) bool {
	values, err := url.ParseQuery(query)
	if err != nil {
		return false
	}
	if _, ok := values[key]; !ok {
		return false
	}
	v := values.Get(key)
	return v == "" || v == "true"
}
