package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"codeintel/internal/engine/parser/registry"
	"codeintel/internal/shared/util"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
)

// FileName is the project-level configuration file.
const FileName = "codeintel.toml"

type Config struct {
	Paths         Paths               `toml:"paths"`
	Languages     map[string]Language `toml:"languages"`
	Exclude       Exclude             `toml:"exclude"`
	Caches        Caches              `toml:"caches"`
	Limits        Limits              `toml:"limits"`
	Context       Context             `toml:"context"`
	Refactor      Refactor            `toml:"refactor"`
	Watch         Watch               `toml:"watch"`
	Logging       Logging             `toml:"logging"`
	Observability Observability       `toml:"observability"`
}

type Paths struct {
	ProjectRoot string `toml:"project_root"`
}

type Language struct {
	Enabled    *bool    `toml:"enabled"`
	Extensions []string `toml:"extensions"`
	Filenames  []string `toml:"filenames"`
}

type Exclude struct {
	Dirs      []string `toml:"dirs"`
	Files     []string `toml:"files"`
	Gitignore bool     `toml:"gitignore"`
	// Patterns are extra gitignore-style lines applied on top of .gitignore.
	Patterns []string `toml:"patterns"`
}

type Caches struct {
	SyntaxTrees int `toml:"syntax_trees"`
}

type Limits struct {
	MaxFiles       int     `toml:"max_files"`
	MaxResults     int     `toml:"max_results"`
	MaxRenameFiles int     `toml:"max_rename_files"`
	Workers        int     `toml:"workers"`
	FilesPerSecond float64 `toml:"files_per_second"`
	// MaxFileSize is a human-readable size such as "4 MiB"; "0" disables it.
	MaxFileSize string `toml:"max_file_size"`
}

type Context struct {
	Lines int `toml:"lines"`
}

type Refactor struct {
	Backup       bool   `toml:"backup"`
	BackupSuffix string `toml:"backup_suffix"`
	// PlanStore is a SQLite file, relative to the project root, that keeps
	// previewed plans so a later process can apply them. Empty disables it.
	PlanStore string `toml:"plan_store"`
}

type Watch struct {
	Enabled  bool          `toml:"enabled"`
	Debounce time.Duration `toml:"debounce"`
}

type Logging struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

type Observability struct {
	Enabled        bool   `toml:"enabled"`
	MetricsAddress string `toml:"metrics_address"`
	OTLPEndpoint   string `toml:"otlp_endpoint"`
	EnableTracing  bool   `toml:"enable_tracing"`
}

// Default returns the configuration used when no file is present. Load
// decodes on top of it, so keys missing from a file keep these values.
func Default() *Config {
	return &Config{
		Exclude: Exclude{Gitignore: true},
		Caches:  Caches{SyntaxTrees: 512},
		Limits: Limits{
			MaxFiles:       5000,
			MaxResults:     100,
			MaxRenameFiles: 100,
			Workers:        runtime.NumCPU(),
			MaxFileSize:    "4 MiB",
		},
		Context:  Context{Lines: 2},
		Refactor: Refactor{BackupSuffix: ".bak"},
		Watch:    Watch{Debounce: 300 * time.Millisecond},
		Logging: Logging{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Observability: Observability{MetricsAddress: "127.0.0.1:9464"},
	}
}

// Load reads path over the defaults, applies CODEINTEL_* overrides and
// validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("parse %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	ApplyEnvOverrides(cfg)
	normalize(cfg)
	if errs := Validate(cfg); len(errs) > 0 {
		return nil, errs[0]
	}
	return cfg, nil
}

func normalize(cfg *Config) {
	cfg.Paths.ProjectRoot = strings.TrimSpace(cfg.Paths.ProjectRoot)
	if cfg.Limits.Workers <= 0 {
		cfg.Limits.Workers = runtime.NumCPU()
	}
	if strings.TrimSpace(cfg.Refactor.BackupSuffix) == "" {
		cfg.Refactor.BackupSuffix = ".bak"
	}
	cfg.Refactor.PlanStore = strings.TrimSpace(cfg.Refactor.PlanStore)
	cfg.Exclude.Dirs = normalizePatterns(cfg.Exclude.Dirs)
	cfg.Exclude.Files = normalizePatterns(cfg.Exclude.Files)
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	if len(cfg.Languages) > 0 {
		langs := make(map[string]Language, len(cfg.Languages))
		for id, l := range cfg.Languages {
			langs[strings.ToLower(strings.TrimSpace(id))] = l
		}
		cfg.Languages = langs
	}
}

// normalizePatterns rewrites glob patterns to forward slashes without a
// leading "./" and drops empty ones.
func normalizePatterns(patterns []string) []string {
	if len(patterns) == 0 {
		return patterns
	}
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if n := util.NormalizePatternPath(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// MaxFileBytes parses Limits.MaxFileSize; 0 means unlimited.
func (c *Config) MaxFileBytes() int64 {
	s := strings.TrimSpace(c.Limits.MaxFileSize)
	if s == "" || s == "0" {
		return 0
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0
	}
	return int64(n)
}

// RegistryOverrides converts the [languages] tables for registry.New.
func (c *Config) RegistryOverrides() map[string]registry.Override {
	if len(c.Languages) == 0 {
		return nil
	}
	out := make(map[string]registry.Override, len(c.Languages))
	for id, l := range c.Languages {
		out[id] = registry.Override{
			Enabled:    l.Enabled,
			Extensions: l.Extensions,
			Filenames:  l.Filenames,
		}
	}
	return out
}
