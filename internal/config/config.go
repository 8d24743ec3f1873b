// Package config provides configuration management for pagegen using Viper
// for loading from files, environment variables and command-line flags.
//
// The configuration file is .pagegen.yml. Every key can be overridden by an
// environment variable with the PAGEGEN_ prefix, e.g. PAGEGEN_DIR_PAGES.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/pagegen/internal/errors"
)

type Config struct {
	RootDir    string          `mapstructure:"root_dir"   yaml:"root_dir"`
	BuildDir   string          `mapstructure:"build_dir"  yaml:"build_dir"`
	Dir        DirConfig       `mapstructure:"dir"        yaml:"dir"`
	Extensions []string        `mapstructure:"extensions" yaml:"extensions"`
	Pages      PagesConfig     `mapstructure:"pages"      yaml:"pages"`
	Templates  TemplatesConfig `mapstructure:"templates"  yaml:"templates"`
	Watch      WatchConfig     `mapstructure:"watch"      yaml:"watch"`
	Log        LogConfig       `mapstructure:"log"        yaml:"log"`
	Dev        DevConfig       `mapstructure:"dev"        yaml:"dev"`
}

type DirConfig struct {
	Pages   string `mapstructure:"pages"   yaml:"pages"`
	Layouts string `mapstructure:"layouts" yaml:"layouts"`
}

type PagesConfig struct {
	LazyComponents bool          `mapstructure:"lazy_components" yaml:"lazy_components"`
	RuntimeDir     string        `mapstructure:"runtime_dir"     yaml:"runtime_dir"`
	Macros         []MacroConfig `mapstructure:"macros"          yaml:"macros"`
}

// MacroConfig names a compile-time macro and the export it produces. Macros
// are a list rather than a map because viper lowercases map keys.
type MacroConfig struct {
	Name   string `mapstructure:"name"   yaml:"name"`
	Export string `mapstructure:"export" yaml:"export"`
}

type TemplatesConfig struct {
	Concurrency int            `mapstructure:"concurrency" yaml:"concurrency"`
	Dir         string         `mapstructure:"dir"         yaml:"dir,omitempty"`
	Data        map[string]any `mapstructure:"data"        yaml:"data,omitempty"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
	Ignore   []string      `mapstructure:"ignore"   yaml:"ignore"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DevConfig controls the HTTP listener of the dev command, which serves
// Prometheus metrics and the reload socket. An empty Addr disables it.
type DevConfig struct {
	Addr    string   `mapstructure:"addr"    yaml:"addr,omitempty"`
	Origins []string `mapstructure:"origins" yaml:"origins,omitempty"`
}

// DefaultDebounce is the quiet window used to coalesce file-change bursts.
const DefaultDebounce = 200 * time.Millisecond

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		RootDir:    ".",
		BuildDir:   ".pagegen",
		Dir:        DirConfig{Pages: "pages", Layouts: "layouts"},
		Extensions: []string{".vue", ".js", ".jsx", ".mjs", ".ts", ".tsx"},
		Pages: PagesConfig{
			LazyComponents: true,
			RuntimeDir:     "node_modules/pagegen/runtime/pages",
			Macros:         []MacroConfig{{Name: "definePageMeta", Export: "meta"}},
		},
		Templates: TemplatesConfig{Concurrency: 8},
		Watch: WatchConfig{
			Debounce: DefaultDebounce,
			Ignore:   []string{"node_modules", ".git", ".pagegen"},
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// SetDefaults registers default values on v so that unset keys and
// environment overrides resolve consistently.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("root_dir", d.RootDir)
	v.SetDefault("build_dir", d.BuildDir)
	v.SetDefault("dir.pages", d.Dir.Pages)
	v.SetDefault("dir.layouts", d.Dir.Layouts)
	v.SetDefault("extensions", d.Extensions)
	v.SetDefault("pages.lazy_components", d.Pages.LazyComponents)
	v.SetDefault("pages.runtime_dir", d.Pages.RuntimeDir)
	v.SetDefault("templates.concurrency", d.Templates.Concurrency)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("watch.ignore", d.Watch.Ignore)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v, applies defaults and validates.
func LoadFrom(v *viper.Viper) (*Config, error) {
	config := Default()
	if err := v.Unmarshal(config); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, errors.ErrCodeConfigInvalid,
			"cannot decode configuration")
	}

	// Slices set through the environment arrive as a single string.
	if v.IsSet("extensions") {
		config.Extensions = v.GetStringSlice("extensions")
	}
	if v.IsSet("watch.ignore") {
		config.Watch.Ignore = v.GetStringSlice("watch.ignore")
	}
	if len(config.Pages.Macros) == 0 {
		config.Pages.Macros = Default().Pages.Macros
	}
	if config.Watch.Debounce == 0 {
		config.Watch.Debounce = DefaultDebounce
	}

	for i, ext := range config.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		config.Extensions[i] = ext
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// validateConfig validates configuration values for correctness
func validateConfig(config *Config) error {
	if config.RootDir == "" {
		return errors.NewConfigError("root_dir", "must not be empty")
	}

	for key, value := range map[string]string{
		"build_dir":   config.BuildDir,
		"dir.pages":   config.Dir.Pages,
		"dir.layouts": config.Dir.Layouts,
	} {
		if err := validateRelativePath(value); err != nil {
			return errors.NewConfigError(key, err.Error())
		}
	}

	if len(config.Extensions) == 0 {
		return errors.NewConfigError("extensions", "at least one page extension is required")
	}
	for _, ext := range config.Extensions {
		if ext == "" || ext == "." || strings.ContainsAny(ext, `/\`) {
			return errors.NewConfigError("extensions", fmt.Sprintf("invalid extension %q", ext))
		}
	}

	for _, m := range config.Pages.Macros {
		if m.Name == "" || m.Export == "" {
			return errors.NewConfigError("pages.macros", "macro name and export must not be empty")
		}
	}

	if config.Templates.Concurrency < 1 {
		return errors.NewConfigError("templates.concurrency",
			fmt.Sprintf("must be at least 1, got %d", config.Templates.Concurrency))
	}
	if config.Watch.Debounce < 0 {
		return errors.NewConfigError("watch.debounce", "must not be negative")
	}

	switch config.Log.Format {
	case "text", "json":
	default:
		return errors.NewConfigError("log.format", fmt.Sprintf("unknown format %q", config.Log.Format))
	}

	return nil
}

// validateRelativePath rejects empty paths and paths escaping the root.
func validateRelativePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	if filepath.IsAbs(path) {
		return fmt.Errorf("path must be relative to root_dir: %s", path)
	}
	clean := filepath.Clean(path)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path contains traversal: %s", path)
	}
	return nil
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	root := c.RootDir
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return filepath.Join(root, path)
}

// MacroMap returns the configured macros keyed by function name.
func (c *Config) MacroMap() map[string]string {
	out := make(map[string]string, len(c.Pages.Macros))
	for _, m := range c.Pages.Macros {
		out[m.Name] = m.Export
	}
	return out
}

// Root returns the absolute root directory.
func (c *Config) Root() string { return c.resolve(".") }

// PagesDir returns the absolute pages directory.
func (c *Config) PagesDir() string { return c.resolve(c.Dir.Pages) }

// LayoutsDir returns the absolute layouts directory.
func (c *Config) LayoutsDir() string { return c.resolve(c.Dir.Layouts) }

// BuildPath returns the absolute directory generated files are written to.
func (c *Config) BuildPath() string { return c.resolve(c.BuildDir) }

// RuntimePath returns the absolute directory of the pages runtime.
func (c *Config) RuntimePath() string { return c.resolve(c.Pages.RuntimeDir) }
