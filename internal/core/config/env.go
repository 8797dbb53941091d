package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: CODEINTEL_[SECTION]_[KEY] (e.g., CODEINTEL_LIMITS_MAX_FILES).
func ApplyEnvOverrides(cfg *Config) {
	// Paths
	setEnvString(&cfg.Paths.ProjectRoot, "CODEINTEL_PATHS_PROJECT_ROOT")

	// Exclude
	setEnvBool(&cfg.Exclude.Gitignore, "CODEINTEL_EXCLUDE_GITIGNORE")
	setEnvList(&cfg.Exclude.Dirs, "CODEINTEL_EXCLUDE_DIRS")
	setEnvList(&cfg.Exclude.Files, "CODEINTEL_EXCLUDE_FILES")

	// Caches
	setEnvInt(&cfg.Caches.SyntaxTrees, "CODEINTEL_CACHES_SYNTAX_TREES")

	// Limits
	setEnvInt(&cfg.Limits.MaxFiles, "CODEINTEL_LIMITS_MAX_FILES")
	setEnvInt(&cfg.Limits.MaxResults, "CODEINTEL_LIMITS_MAX_RESULTS")
	setEnvInt(&cfg.Limits.MaxRenameFiles, "CODEINTEL_LIMITS_MAX_RENAME_FILES")
	setEnvInt(&cfg.Limits.Workers, "CODEINTEL_LIMITS_WORKERS")
	setEnvFloat64(&cfg.Limits.FilesPerSecond, "CODEINTEL_LIMITS_FILES_PER_SECOND")
	setEnvString(&cfg.Limits.MaxFileSize, "CODEINTEL_LIMITS_MAX_FILE_SIZE")

	setEnvInt(&cfg.Context.Lines, "CODEINTEL_CONTEXT_LINES")

	// Refactor
	setEnvBool(&cfg.Refactor.Backup, "CODEINTEL_REFACTOR_BACKUP")
	setEnvString(&cfg.Refactor.BackupSuffix, "CODEINTEL_REFACTOR_BACKUP_SUFFIX")
	setEnvString(&cfg.Refactor.PlanStore, "CODEINTEL_REFACTOR_PLAN_STORE")

	// Watch
	setEnvBool(&cfg.Watch.Enabled, "CODEINTEL_WATCH_ENABLED")
	setEnvDuration(&cfg.Watch.Debounce, "CODEINTEL_WATCH_DEBOUNCE")

	// Logging
	setEnvString(&cfg.Logging.Level, "CODEINTEL_LOGGING_LEVEL")
	setEnvString(&cfg.Logging.File, "CODEINTEL_LOGGING_FILE")

	// Observability
	setEnvBool(&cfg.Observability.Enabled, "CODEINTEL_OBSERVABILITY_ENABLED")
	setEnvString(&cfg.Observability.MetricsAddress, "CODEINTEL_OBSERVABILITY_METRICS_ADDRESS")
	setEnvString(&cfg.Observability.OTLPEndpoint, "CODEINTEL_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvBool(&cfg.Observability.EnableTracing, "CODEINTEL_OBSERVABILITY_ENABLE_TRACING")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

// setEnvList splits a comma-separated value.
func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		var items []string
		for _, item := range strings.Split(val, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		slog.Debug("applying env override", "key", key, "value", val)
		*target = items
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		} else {
			slog.Warn("ignoring env override", "key", key, "error", err)
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		} else {
			slog.Warn("ignoring env override", "key", key, "error", err)
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
