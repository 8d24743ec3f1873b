// Package kit holds the state modules share during one compilation session
// and the API they use to contribute templates, plugins and hooks.
package kit

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/conneroisu/pagegen/internal/bundler"
	"github.com/conneroisu/pagegen/internal/config"
	"github.com/conneroisu/pagegen/internal/hooks"
	"github.com/conneroisu/pagegen/internal/logging"
	"github.com/conneroisu/pagegen/internal/templates"
)

// PluginRef is an application runtime plugin.
type PluginRef struct {
	Src  string `json:"src" yaml:"src"`
	Mode string `json:"mode" yaml:"mode"`
}

// Plugin modes.
const (
	PluginModeAll    = "all"
	PluginModeClient = "client"
	PluginModeServer = "server"
)

// normalizePlugin derives the mode from a .client or .server suffix when it
// is not set explicitly.
func normalizePlugin(p PluginRef) PluginRef {
	if p.Mode != "" {
		return p
	}
	base := strings.TrimSuffix(filepath.Base(p.Src), filepath.Ext(p.Src))
	switch {
	case strings.HasSuffix(base, ".client"):
		p.Mode = PluginModeClient
	case strings.HasSuffix(base, ".server"):
		p.Mode = PluginModeServer
	default:
		p.Mode = PluginModeAll
	}
	return p
}

// Session is the build state for one compilation session. Hook
// registrations live as long as the session.
type Session struct {
	Config *config.Config
	Fs     afero.Fs
	Hooks  *hooks.Registry
	Logger logging.Logger

	mu             sync.RWMutex
	templates      []templates.Descriptor
	plugins        []PluginRef
	vitePlugins    []*bundler.VitePlugin
	webpackLoaders []*bundler.WebpackLoader
}

// NewSession creates a session. A nil fs means the OS filesystem.
func NewSession(cfg *config.Config, fsys afero.Fs, logger logging.Logger) *Session {
	if logger == nil {
		logger = logging.Discard()
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return &Session{
		Config: cfg,
		Fs:     fsys,
		Hooks:  hooks.NewRegistry(logger),
		Logger: logger,
	}
}

// AddTemplate registers a virtual module rendered on every generation pass.
func (s *Session) AddTemplate(d templates.Descriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates = append(s.templates, d)
}

// Templates returns the registered templates in registration order.
func (s *Session) Templates() []templates.Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]templates.Descriptor, len(s.templates))
	copy(out, s.templates)
	return out
}

// AddPlugin registers a runtime plugin ahead of the ones already added.
func (s *Session) AddPlugin(p PluginRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plugins = append([]PluginRef{normalizePlugin(p)}, s.plugins...)
}

// AppendPlugin registers a runtime plugin after the ones already added.
func (s *Session) AppendPlugin(p PluginRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plugins = append(s.plugins, normalizePlugin(p))
}

// Plugins returns the runtime plugins in load order.
func (s *Session) Plugins() []PluginRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PluginRef, len(s.plugins))
	copy(out, s.plugins)
	return out
}

// AddVitePlugin installs a transform into the vite integration.
func (s *Session) AddVitePlugin(p *bundler.VitePlugin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vitePlugins = append(s.vitePlugins, p)
}

// AddWebpackPlugin installs a loader into the webpack integration.
func (s *Session) AddWebpackPlugin(l *bundler.WebpackLoader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webpackLoaders = append(s.webpackLoaders, l)
}

// VitePlugins returns the installed vite plugins.
func (s *Session) VitePlugins() []*bundler.VitePlugin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*bundler.VitePlugin, len(s.vitePlugins))
	copy(out, s.vitePlugins)
	return out
}

// WebpackLoaders returns the installed webpack loaders.
func (s *Session) WebpackLoaders() []*bundler.WebpackLoader {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*bundler.WebpackLoader, len(s.webpackLoaders))
	copy(out, s.webpackLoaders)
	return out
}
