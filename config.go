package docpilot

import (
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"
)

// Config holds the settings shared by build and query runs.
type Config struct {
	DocsRoot       string   `yaml:"docs_root"`
	IncludeScopes  []string `yaml:"include_scopes"`
	ExcludeScopes  []string `yaml:"exclude_scopes"`
	TextExtensions []string `yaml:"text_extensions"`

	CatalogPath string `yaml:"catalog_path"`
	CacheDir    string `yaml:"cache_dir"`

	Workers      int           `yaml:"workers"`
	TombstoneTTL time.Duration `yaml:"tombstone_ttl"`

	Symbols SymbolConfig `yaml:"symbols"`
	Query   QueryConfig  `yaml:"query"`
}

// SymbolConfig configures symbol detection.
type SymbolConfig struct {
	// Patterns replace the default detection patterns when non-empty.
	Patterns []string `yaml:"patterns"`
	MinLength int     `yaml:"min_length"`
}

// QueryConfig holds query defaults.
type QueryConfig struct {
	TopK          int `yaml:"topk"`
	Final         int `yaml:"final"`
	RecallLimit   int `yaml:"recall_limit"`
	EvidenceLines int `yaml:"evidence_lines"`
}

// Default scopes for an OpenHarmony-style documentation checkout.
var (
	DefaultIncludeScopes  = []string{"zh-cn/application-dev", "zh-cn/design"}
	DefaultExcludeScopes  = []string{"zh-cn/release-notes", "zh-cn/contribute"}
	DefaultTextExtensions = []string{".md", ".markdown"}
)

// DefaultConfig returns a Config with every field except DocsRoot and the
// storage locations set.
func DefaultConfig() *Config {
	return &Config{
		IncludeScopes:  append([]string(nil), DefaultIncludeScopes...),
		ExcludeScopes:  append([]string(nil), DefaultExcludeScopes...),
		TextExtensions: append([]string(nil), DefaultTextExtensions...),
		Workers:        runtime.NumCPU(),
		TombstoneTTL:   7 * 24 * time.Hour,
		Symbols: SymbolConfig{
			MinLength: 3,
		},
		Query: QueryConfig{
			TopK:          DefaultTopK,
			Final:         DefaultFinal,
			RecallLimit:   2000,
			EvidenceLines: 20,
		},
	}
}

// Validate returns ECONFIG if the configuration is unusable.
func (c *Config) Validate() error {
	if c.DocsRoot == "" {
		return Errorf(ECONFIG, "docs_root required")
	}
	if !filepath.IsAbs(c.DocsRoot) {
		return Errorf(ECONFIG, "docs_root %q must be absolute", c.DocsRoot)
	}
	if c.CatalogPath == "" {
		return Errorf(ECONFIG, "catalog_path required")
	}
	for _, scope := range append(append([]string(nil), c.IncludeScopes...), c.ExcludeScopes...) {
		if err := validateScope(scope); err != nil {
			return err
		}
	}
	for _, ext := range c.TextExtensions {
		if !strings.HasPrefix(ext, ".") {
			return Errorf(ECONFIG, "text extension %q must start with a dot", ext)
		}
	}
	for _, p := range c.Symbols.Patterns {
		if _, err := regexp.Compile(p); err != nil {
			return Errorf(ECONFIG, "symbol pattern %q: %v", p, err)
		}
	}
	if c.Workers < 0 {
		return Errorf(ECONFIG, "workers must not be negative")
	}
	if c.Query.TopK < 0 || c.Query.Final < 0 || c.Query.RecallLimit < 0 || c.Query.EvidenceLines < 0 {
		return Errorf(ECONFIG, "query limits must not be negative")
	}
	return nil
}

func validateScope(scope string) error {
	clean := filepath.ToSlash(filepath.Clean(scope))
	if scope == "" || filepath.IsAbs(scope) || clean == ".." || strings.HasPrefix(clean, "../") {
		return Errorf(ECONFIG, "scope %q must be a relative path inside docs_root", scope)
	}
	return nil
}

// NormalizeScopes cleans scope prefixes into slash-separated form without
// trailing separators.
func NormalizeScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		clean := filepath.ToSlash(filepath.Clean(s))
		if clean == "" {
			continue
		}
		out = append(out, clean)
	}
	return out
}

// UnderScope reports whether the slash-separated relative path rel equals
// one of scopes or lies below it.
func UnderScope(rel string, scopes []string) bool {
	for _, s := range scopes {
		if s == "." || rel == s || strings.HasPrefix(rel, s+"/") {
			return true
		}
	}
	return false
}
