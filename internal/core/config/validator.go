package config

import (
	"fmt"
	"strconv"
	"strings"

	"codeintel/internal/engine/parser/registry"

	"github.com/dustin/go-humanize"
	"github.com/gobwas/glob"
)

func validateLimits(cfg *Config) []error {
	var errs []error
	ints := []struct {
		name  string
		value int
	}{
		{"caches.syntax_trees", cfg.Caches.SyntaxTrees},
		{"limits.max_files", cfg.Limits.MaxFiles},
		{"limits.max_results", cfg.Limits.MaxResults},
		{"limits.max_rename_files", cfg.Limits.MaxRenameFiles},
		{"limits.workers", cfg.Limits.Workers},
		{"context.lines", cfg.Context.Lines},
	}
	for _, v := range ints {
		if v.value < 0 {
			errs = append(errs, fmt.Errorf("%s must be >= 0, got %d", v.name, v.value))
		}
	}
	if cfg.Limits.FilesPerSecond < 0 {
		errs = append(errs, fmt.Errorf("limits.files_per_second must be >= 0, got %g", cfg.Limits.FilesPerSecond))
	}
	if s := strings.TrimSpace(cfg.Limits.MaxFileSize); s != "" && s != "0" {
		if _, err := humanize.ParseBytes(s); err != nil {
			errs = append(errs, fmt.Errorf("limits.max_file_size %q: %w", s, err))
		}
	}
	if cfg.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce must not be negative"))
	}
	return errs
}

// validateLanguages builds a throwaway registry, which rejects unknown ids
// and extensions claimed by two enabled languages.
func validateLanguages(cfg *Config) error {
	for language, settings := range cfg.Languages {
		if strings.TrimSpace(language) == "" {
			return fmt.Errorf("languages key must not be empty")
		}
		for _, ext := range settings.Extensions {
			if strings.TrimSpace(ext) == "" {
				return fmt.Errorf("languages.%s.extensions must not include empty values", language)
			}
		}
		for _, name := range settings.Filenames {
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("languages.%s.filenames must not include empty values", language)
			}
		}
	}
	if _, err := registry.New(cfg.RegistryOverrides()); err != nil {
		return fmt.Errorf("languages: %w", err)
	}
	return nil
}

func validateExclude(cfg *Config) []error {
	var errs []error
	check := func(section string, patterns []string) {
		for i, p := range patterns {
			if strings.TrimSpace(p) == "" {
				errs = append(errs, fmt.Errorf("exclude.%s[%d] must not be empty", section, i))
				continue
			}
			if _, err := glob.Compile(p, '/'); err != nil {
				errs = append(errs, fmt.Errorf("exclude.%s[%d] %q is not a valid glob: %w", section, i, p, err))
			}
		}
	}
	check("dirs", cfg.Exclude.Dirs)
	check("files", cfg.Exclude.Files)
	return errs
}

func validateLogging(cfg *Config) error {
	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
		return nil
	}
	if _, err := strconv.Atoi(cfg.Logging.Level); err == nil {
		return nil
	}
	return fmt.Errorf("logging.level must be one of: debug, info, warn, error (or a number), got %q", cfg.Logging.Level)
}

func validateObservability(cfg *Config) error {
	if cfg.Observability.EnableTracing && strings.TrimSpace(cfg.Observability.OTLPEndpoint) == "" {
		return fmt.Errorf("observability.otlp_endpoint is required when observability.enable_tracing=true")
	}
	if cfg.Observability.Enabled && strings.TrimSpace(cfg.Observability.MetricsAddress) == "" {
		return fmt.Errorf("observability.metrics_address must not be empty when observability.enabled=true")
	}
	return nil
}

func Validate(cfg *Config) []error {
	var errs []error

	errs = append(errs, validateLimits(cfg)...)
	if err := validateLanguages(cfg); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, validateExclude(cfg)...)
	if err := validateLogging(cfg); err != nil {
		errs = append(errs, err)
	}
	if err := validateObservability(cfg); err != nil {
		errs = append(errs, err)
	}
	return errs
}
