// Package yaml loads docpilot configuration files.
package yaml

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fwojciec/docpilot"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvDocsRoot = "DOCPILOT_DOCS_ROOT"
	EnvCatalog  = "DOCPILOT_CATALOG"
	EnvCacheDir = "DOCPILOT_CACHE_DIR"
)

// Loader reads configuration files. The zero value is not usable; call
// NewLoader.
type Loader struct {
	Getenv  func(key string) string
	HomeDir func() (string, error)
}

// NewLoader returns a Loader backed by the process environment.
func NewLoader() *Loader {
	return &Loader{Getenv: os.Getenv, HomeDir: os.UserHomeDir}
}

// Load reads the configuration at path using the process environment.
func Load(path string) (*docpilot.Config, error) {
	return NewLoader().Load(path)
}

// Load reads the configuration at path, applies defaults and environment
// overrides and validates the result. An empty path loads defaults only.
// Relative paths in the file resolve against the file's directory.
func (l *Loader) Load(path string) (*docpilot.Config, error) {
	cfg := docpilot.DefaultConfig()

	baseDir, err := os.Getwd()
	if err != nil {
		return nil, docpilot.Errorf(docpilot.ECONFIG, "working directory: %v", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, docpilot.Errorf(docpilot.ECONFIG, "read config: %v", err)
		}
		if err := decode(data, cfg); err != nil {
			return nil, docpilot.Errorf(docpilot.ECONFIG, "parse %s: %v", path, err)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, docpilot.Errorf(docpilot.ECONFIG, "config path: %v", err)
		}
		fileDir := filepath.Dir(abs)
		cfg.DocsRoot = l.resolve(fileDir, cfg.DocsRoot)
		cfg.CatalogPath = l.resolve(fileDir, cfg.CatalogPath)
		cfg.CacheDir = l.resolve(fileDir, cfg.CacheDir)
	}

	if v := l.Getenv(EnvDocsRoot); v != "" {
		cfg.DocsRoot = l.resolve(baseDir, v)
	}
	if v := l.Getenv(EnvCatalog); v != "" {
		cfg.CatalogPath = l.resolve(baseDir, v)
	}
	if v := l.Getenv(EnvCacheDir); v != "" {
		cfg.CacheDir = l.resolve(baseDir, v)
	}

	if cfg.CatalogPath == "" || cfg.CacheDir == "" {
		home, err := l.HomeDir()
		if err != nil {
			return nil, docpilot.Errorf(docpilot.ECONFIG, "home directory: %v", err)
		}
		if cfg.CatalogPath == "" {
			cfg.CatalogPath = filepath.Join(home, ".docpilot", "catalog.db")
		}
		if cfg.CacheDir == "" {
			cfg.CacheDir = filepath.Join(home, ".docpilot", "cache")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode strictly unmarshals data over cfg. Unknown keys are rejected.
func decode(data []byte, cfg *docpilot.Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// resolve makes p absolute against dir, expanding a leading "~/".
func (l *Loader) resolve(dir, p string) string {
	if p == "" {
		return ""
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := l.HomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}
