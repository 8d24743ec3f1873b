package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/pagegen/internal/config"
	"github.com/conneroisu/pagegen/internal/metrics"
	"github.com/conneroisu/pagegen/internal/pages"
	"github.com/conneroisu/pagegen/internal/reload"
)

// setupProject creates a project under a temp dir and points the global
// configuration at it.
func setupProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	viper.Reset()
	config.SetDefaults(viper.GetViper())
	viper.Set("root_dir", root)
	viper.Set("log.level", "error")
	t.Cleanup(viper.Reset)
	return root
}

func TestRootCommand(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"generate", "dev", "routes", "init", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}

	for _, flag := range []string{"config", "root", "log-level", "log-format"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestInitProject(t *testing.T) {
	fsys := afero.NewMemMapFs()
	var out bytes.Buffer

	require.NoError(t, initProject(fsys, "/proj", false, &out))
	assert.Contains(t, out.String(), ConfigFilename)

	for _, dir := range []string{"/proj/pages", "/proj/layouts"} {
		ok, err := afero.DirExists(fsys, dir)
		require.NoError(t, err)
		assert.True(t, ok, dir)
	}

	data, err := afero.ReadFile(fsys, "/proj/"+ConfigFilename)
	require.NoError(t, err)
	var written config.Config
	require.NoError(t, yaml.Unmarshal(data, &written))
	assert.Equal(t, config.Default().Dir, written.Dir)
	assert.Equal(t, config.Default().Extensions, written.Extensions)

	t.Run("existing file", func(t *testing.T) {
		err := initProject(fsys, "/proj", false, &out)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")
	})

	t.Run("force overwrites", func(t *testing.T) {
		require.NoError(t, afero.WriteFile(fsys, "/proj/"+ConfigFilename, []byte("junk"), 0o644))
		require.NoError(t, initProject(fsys, "/proj", true, &out))
		data, err := afero.ReadFile(fsys, "/proj/"+ConfigFilename)
		require.NoError(t, err)
		assert.NotEqual(t, "junk", string(data))
	})
}

func TestRunRoutes(t *testing.T) {
	setupProject(t, map[string]string{
		"pages/index.vue":      "",
		"pages/about.vue":      "",
		"pages/users/[id].vue": "",
	})

	tests := []struct {
		format string
		check  func(t *testing.T, out string)
	}{
		{
			format: "text",
			check: func(t *testing.T, out string) {
				lines := strings.Split(strings.TrimSpace(out), "\n")
				require.Len(t, lines, 3)
				assert.True(t, strings.HasPrefix(lines[0], "/ "))
				assert.True(t, strings.HasPrefix(lines[1], "/about"))
				assert.True(t, strings.HasPrefix(lines[2], "/users/:id"))
			},
		},
		{
			format: "json",
			check: func(t *testing.T, out string) {
				var routes []pages.RouteInfo
				require.NoError(t, json.Unmarshal([]byte(out), &routes))
				require.Len(t, routes, 3)
				assert.Equal(t, "users-id", routes[2].Name)
				assert.Equal(t, "users/[id].vue", routes[2].File)
			},
		},
		{
			format: "yaml",
			check: func(t *testing.T, out string) {
				var routes []pages.RouteInfo
				require.NoError(t, yaml.Unmarshal([]byte(out), &routes))
				require.Len(t, routes, 3)
				assert.Equal(t, "/about", routes[1].Path)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var out bytes.Buffer
			routesCmd.SetOut(&out)
			routesCmd.SetContext(context.Background())
			routesFormat = tt.format
			t.Cleanup(func() { routesFormat = "text" })

			require.NoError(t, runRoutes(routesCmd, nil))
			tt.check(t, out.String())
		})
	}

	t.Run("unsupported format", func(t *testing.T) {
		routesCmd.SetContext(context.Background())
		routesFormat = "xml"
		t.Cleanup(func() { routesFormat = "text" })
		assert.Error(t, runRoutes(routesCmd, nil))
	})
}

func TestRunRoutesReportsRouteErrors(t *testing.T) {
	setupProject(t, map[string]string{
		"pages/[].vue": "",
	})

	routesCmd.SetOut(&bytes.Buffer{})
	routesCmd.SetContext(context.Background())
	err := runRoutes(routesCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[].vue")
}

func TestRunGenerate(t *testing.T) {
	root := setupProject(t, map[string]string{
		"pages/index.vue":     "",
		"layouts/default.vue": "",
	})

	var out bytes.Buffer
	generateCmd.SetOut(&out)
	generateCmd.SetContext(context.Background())
	require.NoError(t, runGenerate(generateCmd, nil))
	assert.Contains(t, out.String(), "Generated")

	routes, err := os.ReadFile(filepath.Join(root, ".pagegen", pages.RoutesFilename))
	require.NoError(t, err)
	assert.Contains(t, string(routes), filepath.ToSlash(filepath.Join(root, "pages", "index.vue")))

	_, err = os.Stat(filepath.Join(root, ".pagegen", pages.LayoutsFilename))
	assert.NoError(t, err)
}

func TestRunGenerateInvalidConfig(t *testing.T) {
	setupProject(t, nil)
	viper.Set("templates.concurrency", 0)

	generateCmd.SetOut(&bytes.Buffer{})
	generateCmd.SetContext(context.Background())
	err := runGenerate(generateCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "templates.concurrency")
}

func TestRunVersion(t *testing.T) {
	t.Cleanup(func() {
		versionFormat = "text"
		versionShort = false
	})

	var out bytes.Buffer
	versionCmd.SetOut(&out)

	versionShort = true
	require.NoError(t, runVersion(versionCmd, nil))
	assert.NotEmpty(t, strings.TrimSpace(out.String()))

	out.Reset()
	versionShort = false
	versionFormat = "json"
	require.NoError(t, runVersion(versionCmd, nil))
	var info map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "goVersion")

	versionFormat = "xml"
	assert.Error(t, runVersion(versionCmd, nil))
}

func TestDevMux(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := metrics.New(metrics.WithRegistry(registry))
	collector.WatchEvent("add")

	hub := reload.NewHub(nil)
	t.Cleanup(hub.Shutdown)

	srv := httptest.NewServer(devMux(registry, hub))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "watch_events_total")

	// A plain GET on the socket path is not an upgrade.
	resp, err = http.Get(srv.URL + reload.Path)
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
}
