package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[paths]
project_root = "."

[languages.python]
extensions = [".py", ".pyw"]

[languages.css]
enabled = false

[exclude]
dirs = ["third_party/", "./**/generated", " "]
files = ["*.min.js"]
gitignore = false
patterns = ["*.pb.go"]

[caches]
syntax_trees = 64

[limits]
max_files = 200
max_results = 10
workers = 2
files_per_second = 50
max_file_size = "512 KiB"

[context]
lines = 0

[refactor]
backup = true
plan_store = " .codeintel/plans.db "

[watch]
enabled = true
debounce = "1s"

[logging]
level = "DEBUG"
file = "codeintel.log"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Caches.SyntaxTrees != 64 {
		t.Errorf("expected syntax_trees 64, got %d", cfg.Caches.SyntaxTrees)
	}
	if cfg.Limits.MaxFiles != 200 || cfg.Limits.MaxResults != 10 || cfg.Limits.Workers != 2 {
		t.Errorf("unexpected limits: %+v", cfg.Limits)
	}
	if cfg.Limits.MaxRenameFiles != 100 {
		t.Errorf("expected default max_rename_files 100, got %d", cfg.Limits.MaxRenameFiles)
	}
	if got := cfg.MaxFileBytes(); got != 512*1024 {
		t.Errorf("expected 524288 bytes, got %d", got)
	}
	if cfg.Context.Lines != 0 {
		t.Errorf("explicit context.lines = 0 must survive defaults, got %d", cfg.Context.Lines)
	}
	if !cfg.Refactor.Backup || cfg.Refactor.BackupSuffix != ".bak" || cfg.Refactor.PlanStore != ".codeintel/plans.db" {
		t.Errorf("unexpected refactor settings: %+v", cfg.Refactor)
	}
	if !cfg.Watch.Enabled || cfg.Watch.Debounce != time.Second {
		t.Errorf("unexpected watch settings: %+v", cfg.Watch)
	}
	if cfg.Exclude.Gitignore {
		t.Error("expected gitignore to be disabled")
	}
	if got := cfg.Exclude.Dirs; len(got) != 2 || got[0] != "third_party" || got[1] != "**/generated" {
		t.Errorf("expected normalised exclude dirs, got %q", got)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected normalised level debug, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.MaxBackups != 3 {
		t.Errorf("expected default max_backups 3, got %d", cfg.Logging.MaxBackups)
	}

	overrides := cfg.RegistryOverrides()
	if len(overrides["python"].Extensions) != 2 {
		t.Errorf("expected python extension override, got %+v", overrides["python"])
	}
	if css := overrides["css"]; css.Enabled == nil || *css.Enabled {
		t.Errorf("expected css disabled, got %+v", css)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Caches.SyntaxTrees != 512 {
		t.Errorf("expected default cache size, got %d", cfg.Caches.SyntaxTrees)
	}
	if cfg.Limits.Workers != runtime.NumCPU() {
		t.Errorf("expected NumCPU workers, got %d", cfg.Limits.Workers)
	}
	if cfg.Context.Lines != 2 {
		t.Errorf("expected 2 context lines, got %d", cfg.Context.Lines)
	}
	if !cfg.Exclude.Gitignore {
		t.Error("expected gitignore on by default")
	}
	if cfg.MaxFileBytes() != 4*1024*1024 {
		t.Errorf("unexpected default max file bytes %d", cfg.MaxFileBytes())
	}
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "[limits]\nmax_filez = 3\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "limits.max_filez") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeConfig(t, "[limits\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CODEINTEL_LIMITS_MAX_FILES", "42")
	t.Setenv("CODEINTEL_REFACTOR_BACKUP", "TRUE")
	t.Setenv("CODEINTEL_EXCLUDE_DIRS", "vendor, out ,")
	t.Setenv("CODEINTEL_WATCH_DEBOUNCE", "2s")
	t.Setenv("CODEINTEL_LIMITS_MAX_RESULTS", "many")

	cfg := Default()
	ApplyEnvOverrides(cfg)

	if cfg.Limits.MaxFiles != 42 {
		t.Errorf("expected max_files 42, got %d", cfg.Limits.MaxFiles)
	}
	if !cfg.Refactor.Backup {
		t.Error("expected backup enabled")
	}
	if len(cfg.Exclude.Dirs) != 2 || cfg.Exclude.Dirs[0] != "vendor" || cfg.Exclude.Dirs[1] != "out" {
		t.Errorf("unexpected dirs %q", cfg.Exclude.Dirs)
	}
	if cfg.Watch.Debounce != 2*time.Second {
		t.Errorf("unexpected debounce %s", cfg.Watch.Debounce)
	}
	if cfg.Limits.MaxResults != 100 {
		t.Errorf("invalid override must be ignored, got %d", cfg.Limits.MaxResults)
	}
}
