package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"codeintel/internal/core/app"
	"codeintel/internal/core/config"
	"codeintel/internal/shared/observability"

	"gopkg.in/natefinch/lumberjack.v2"
)

// runtime is what every subcommand runs against.
type runtime struct {
	cfg      *config.Config
	app      *app.App
	cleanups []func(context.Context) error
}

// setup loads configuration, configures logging and builds the App. The
// root comes from --root, then paths.project_root, then detection from the
// working directory.
func setup(ctx context.Context, opts *options, stderr io.Writer) (*runtime, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("detect working directory: %w", err)
	}

	root := opts.root
	if root == "" {
		if root, err = config.DetectProjectRoot(cwd); err != nil {
			return nil, err
		}
	} else {
		root = config.ResolveRelative(cwd, root)
	}

	cfgPath := config.FindConfigFile(opts.configPath, root)
	if opts.configPath != "" {
		if _, err := os.Stat(cfgPath); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if opts.root == "" && cfg.Paths.ProjectRoot != "" {
		if root, err = config.ResolveProjectRoot(cfg, root); err != nil {
			return nil, err
		}
	}

	rt := &runtime{cfg: cfg}
	if closer := configureLogging(cfg.Logging, opts.verbose, stderr); closer != nil {
		rt.cleanups = append(rt.cleanups, func(context.Context) error { return closer.Close() })
	}
	slog.Debug("configuration loaded", "path", cfgPath, "root", root)

	if cfg.Observability.EnableTracing {
		shutdown, err := observability.SetupTracing(ctx, cfg.Observability.OTLPEndpoint)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.cleanups = append(rt.cleanups, shutdown)
	}

	a, err := app.New(cfg, root)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.app = a
	rt.cleanups = append(rt.cleanups, a.Close)
	return rt, nil
}

// close runs cleanups in reverse order with a bounded grace period.
func (rt *runtime) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(rt.cleanups) - 1; i >= 0; i-- {
		if err := rt.cleanups[i](ctx); err != nil {
			slog.Warn("shutdown step failed", "error", err)
		}
	}
	rt.cleanups = nil
}

// configureLogging installs the default slog logger. Logs go to stderr
// unless logging.file is set, in which case they rotate through lumberjack.
// The returned closer, if any, must be closed on exit.
func configureLogging(cfg config.Logging, verbose bool, stderr io.Writer) io.Closer {
	level := parseLevel(cfg.Level, slog.LevelInfo)
	if verbose {
		level = slog.LevelDebug
	}

	var (
		out    = stderr
		closer io.Closer
	)
	if path := strings.TrimSpace(cfg.File); path != "" {
		lj := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		out, closer = lj, lj
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
	return closer
}

// parseLevel accepts the names config validation allows, or a number.
func parseLevel(s string, fallback slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if n, err := strconv.Atoi(s); err == nil {
		return slog.Level(n)
	}
	return fallback
}
