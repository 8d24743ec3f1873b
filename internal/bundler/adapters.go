package bundler

import "context"

// VitePlugin adapts an Unplugin to the vite transform hook contract.
type VitePlugin struct {
	Name    string
	Enforce string

	u Unplugin
}

// Vite wraps u as a vite plugin.
func Vite(u Unplugin) *VitePlugin {
	return &VitePlugin{Name: u.Name, Enforce: u.Enforce, u: u}
}

// Transform implements the vite transform hook. Modules outside the plugin's
// include filter return nil.
func (p *VitePlugin) Transform(ctx context.Context, code, id string) (*TransformResult, error) {
	if !p.u.includes(id) {
		return nil, nil
	}
	return p.u.Transform(ctx, code, id)
}

// Load implements the vite load hook. Ids the plugin does not own return
// nil so the next plugin is asked.
func (p *VitePlugin) Load(ctx context.Context, id string) (*TransformResult, error) {
	if p.u.Load == nil {
		return nil, nil
	}
	code, ok, err := p.u.Load(ctx, id)
	if err != nil || !ok {
		return nil, err
	}
	return &TransformResult{Code: code}, nil
}

// WebpackLoader adapts an Unplugin to a webpack loader.
type WebpackLoader struct {
	Name string

	u Unplugin
}

// Webpack wraps u as a webpack loader.
func Webpack(u Unplugin) *WebpackLoader {
	return &WebpackLoader{Name: u.Name, u: u}
}

// Load runs the loader over a resource. resource is the resource path
// followed by its query, as webpack reports it. Untouched modules are
// returned as given.
func (l *WebpackLoader) Load(ctx context.Context, resource string, source []byte) ([]byte, error) {
	if !l.u.includes(resource) {
		return source, nil
	}
	res, err := l.u.Transform(ctx, string(source), resource)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return source, nil
	}
	return []byte(res.Code), nil
}
