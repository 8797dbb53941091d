package app

import (
	"context"
	"fmt"
	"time"

	"codeintel/internal/shared/util"

	"github.com/dustin/go-humanize"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Root       string            `json:"root"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Root:       s.app.Root,
		Components: make(map[string]string),
	}

	if s.app.Cache == nil {
		status.Status = "degraded"
		status.Components["syntax_cache"] = "missing"
	} else {
		status.Components["syntax_cache"] = fmt.Sprintf("ok (%d/%d trees)", s.app.Cache.Len(), s.app.Config.Caches.SyntaxTrees)
	}

	if s.app.Registry == nil {
		status.Status = "degraded"
		status.Components["registry"] = "missing"
	} else {
		status.Components["registry"] = fmt.Sprintf("ok (%d languages)", len(s.app.Registry.Languages()))
	}

	status.Components["import_graph"] = fmt.Sprintf("%d files", s.app.analyzer.CachedFiles())

	pending, archived, err := s.app.storedPlans(ctx)
	switch {
	case err != nil:
		status.Status = "degraded"
		status.Components["plans"] = fmt.Sprintf("%d pending, store unavailable: %v", pending, err)
	case archived >= 0:
		status.Components["plans"] = fmt.Sprintf("%d pending, %d stored", pending, archived)
	default:
		status.Components["plans"] = fmt.Sprintf("%d pending", pending)
	}

	s.app.watcherMu.Lock()
	watching := s.app.activeWatcher != nil
	s.app.watcherMu.Unlock()
	if watching {
		status.Components["watcher"] = "ok"
	} else if s.app.Config.Watch.Enabled {
		status.Status = "degraded"
		status.Components["watcher"] = "not running but enabled in config"
	}

	status.Components["heap"] = humanize.IBytes(util.GetHeapAllocMB() * 1024 * 1024)
	return status
}

// HealthFunc adapts Check for the observability server.
func (s *HealthService) HealthFunc(ctx context.Context) any {
	return s.Check(ctx)
}
