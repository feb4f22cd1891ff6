// Package config loads the text configuration file that describes the
// listeners, routes, and limits the reactor serves. The file on disk looks
// like YAML (and is decoded as YAML) but only a narrow subset of it is
// meaningful here: a list of servers, each with a list of routes.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults applied to any field the config file leaves unset. These mirror
// the original implementation's default_server/default_route conventions.
const (
	DefaultHost           = "0.0.0.0"
	DefaultServerName     = "localhost"
	DefaultMaxBodySize    = 1 << 20  // 1 MiB
	DefaultMaxServerSize  = 10 << 20 // 10 MiB
	DefaultTimeoutSeconds = 30
	DefaultRoutePath      = "/"
	DefaultRouteRoot      = "./www"
)

// RouteConfig describes one route block within a server.
type RouteConfig struct {
	Path            string   `yaml:"path"`
	Root            string   `yaml:"root"`
	UploadDir       string   `yaml:"upload_dir"`
	Methods         []string `yaml:"methods"`
	Index           string   `yaml:"index"`
	Autoindex       bool     `yaml:"autoindex"`
	Redirect        string   `yaml:"redirect"`
	CGIExtension    string   `yaml:"cgi_extension"`
	CGIInterpreter  string   `yaml:"cgi_interpreter"`
}

// ServerConfig describes one server block (one bind address).
type ServerConfig struct {
	Host         string          `yaml:"host"`
	Port         string          `yaml:"port"`
	ServerName   string          `yaml:"server_name"`
	MaxBodySize  int64           `yaml:"max_body_size"`
	ErrorPages   map[int]string  `yaml:"error_pages"`
	Routes       []RouteConfig   `yaml:"routes"`
}

// Config is the fully-resolved, immutable-after-load configuration that the
// reactor is constructed from.
type Config struct {
	MaxServerSize  int64          `yaml:"max_server_size"`
	TimeoutSeconds int64          `yaml:"timeout_seconds"`
	Servers        []ServerConfig `yaml:"servers"`
}

// rawConfig mirrors Config but leaves numeric fields as pointers so we can
// tell "absent" apart from "explicitly zero" before applying defaults.
type rawConfig struct {
	MaxServerSize  *int64         `yaml:"max_server_size"`
	TimeoutSeconds *int64         `yaml:"timeout_seconds"`
	Servers        []rawServer    `yaml:"servers"`
}

type rawServer struct {
	Host        string         `yaml:"host"`
	Port        string         `yaml:"port"`
	ServerName  string         `yaml:"server_name"`
	MaxBodySize *int64         `yaml:"max_body_size"`
	ErrorPages  map[int]string `yaml:"error_pages"`
	Routes      []rawRoute     `yaml:"routes"`
}

type rawRoute struct {
	Path           string   `yaml:"path"`
	Root           string   `yaml:"root"`
	UploadDir      string   `yaml:"upload_dir"`
	Methods        []string `yaml:"methods"`
	Index          string   `yaml:"index"`
	Autoindex      bool     `yaml:"autoindex"`
	Redirect       string   `yaml:"redirect"`
	CGIExtension   string   `yaml:"cgi_extension"`
	CGIInterpreter string   `yaml:"cgi_interpreter"`
}

// Load reads and decodes the config file at path, applying defaults for any
// field left unset. It does not validate bind addresses; that happens at
// listen time, one listener at a time, so a single bad server block does not
// prevent the others from starting (see spec.md §6 "Bind failure" policy).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := &Config{
		MaxServerSize:  DefaultMaxServerSize,
		TimeoutSeconds: DefaultTimeoutSeconds,
	}
	if raw.MaxServerSize != nil {
		cfg.MaxServerSize = *raw.MaxServerSize
	}
	if raw.TimeoutSeconds != nil {
		cfg.TimeoutSeconds = *raw.TimeoutSeconds
	}

	for _, rs := range raw.Servers {
		cfg.Servers = append(cfg.Servers, resolveServer(rs))
	}

	if len(cfg.Servers) == 0 {
		return nil, fmt.Errorf("config %s: no servers defined", path)
	}

	return cfg, nil
}

func resolveServer(rs rawServer) ServerConfig {
	s := ServerConfig{
		Host:        rs.Host,
		Port:        rs.Port,
		ServerName:  rs.ServerName,
		MaxBodySize: DefaultMaxBodySize,
		ErrorPages:  rs.ErrorPages,
	}
	if s.Host == "" {
		s.Host = DefaultHost
	}
	if s.ServerName == "" {
		s.ServerName = DefaultServerName
	}
	if rs.MaxBodySize != nil {
		s.MaxBodySize = *rs.MaxBodySize
	}
	for _, rr := range rs.Routes {
		s.Routes = append(s.Routes, resolveRoute(rr))
	}
	if len(s.Routes) == 0 {
		s.Routes = []RouteConfig{{Path: DefaultRoutePath, Root: DefaultRouteRoot}}
	}
	return s
}

func resolveRoute(rr rawRoute) RouteConfig {
	r := RouteConfig{
		Path:           rr.Path,
		Root:           rr.Root,
		UploadDir:      rr.UploadDir,
		Methods:        rr.Methods,
		Index:          rr.Index,
		Autoindex:      rr.Autoindex,
		Redirect:       rr.Redirect,
		CGIExtension:   rr.CGIExtension,
		CGIInterpreter: rr.CGIInterpreter,
	}
	if r.Path == "" {
		r.Path = DefaultRoutePath
	}
	if r.Root == "" {
		r.Root = DefaultRouteRoot
	}
	return r
}

// EffectiveBodyLimit is min(server.MaxBodySize, global.MaxServerSize), the
// "effective body limit" of spec.md §4.C/§5.
func (c *Config) EffectiveBodyLimit(serverIdx int) int64 {
	s := c.Servers[serverIdx]
	if s.MaxBodySize < c.MaxServerSize {
		return s.MaxBodySize
	}
	return c.MaxServerSize
}
