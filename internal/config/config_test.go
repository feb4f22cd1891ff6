package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
servers:
  - host: "127.0.0.1"
    port: "8080"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.EqualValues(t, DefaultMaxServerSize, cfg.MaxServerSize)
	require.EqualValues(t, DefaultTimeoutSeconds, cfg.TimeoutSeconds)

	require.Len(t, cfg.Servers, 1)
	s := cfg.Servers[0]
	require.Equal(t, "127.0.0.1", s.Host)
	require.Equal(t, DefaultServerName, s.ServerName)
	require.EqualValues(t, DefaultMaxBodySize, s.MaxBodySize)

	require.Len(t, s.Routes, 1)
	require.Equal(t, DefaultRoutePath, s.Routes[0].Path)
	require.Equal(t, DefaultRouteRoot, s.Routes[0].Root)
}

func TestLoadFullServer(t *testing.T) {
	path := writeConfig(t, `
max_server_size: 2048
timeout_seconds: 5
servers:
  - host: "0.0.0.0"
    port: "9000"
    server_name: "example"
    max_body_size: 1024
    error_pages:
      404: "/errors/404.html"
    routes:
      - path: "/"
        root: "./www"
        methods: [GET, POST]
        index: "index.html"
      - path: "/cgi"
        root: "./www/cgi-bin"
        cgi_extension: ".sh"
        cgi_interpreter: "/bin/sh"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.EqualValues(t, 2048, cfg.MaxServerSize)
	require.EqualValues(t, 5, cfg.TimeoutSeconds)

	s := cfg.Servers[0]
	require.Equal(t, "example", s.ServerName)
	require.Equal(t, "/errors/404.html", s.ErrorPages[404])
	require.Len(t, s.Routes, 2)
	require.Equal(t, []string{"GET", "POST"}, s.Routes[0].Methods)
	require.Equal(t, ".sh", s.Routes[1].CGIExtension)

	require.EqualValues(t, 1024, cfg.EffectiveBodyLimit(0))
}

func TestLoadNoServersIsError(t *testing.T) {
	path := writeConfig(t, "max_server_size: 100\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
