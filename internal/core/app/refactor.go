package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"codeintel/internal/core/errors"
	"codeintel/internal/core/ports"
	"codeintel/internal/engine/parser/registry"
	"codeintel/internal/engine/refactor"
	"codeintel/internal/engine/symbols"
	"codeintel/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	OpPreview = "preview"
	OpRename  = "rename"
)

// Refactor previews or performs a rename of every identifier occurrence of
// OldName in scope. Preview never touches disk and keeps the plan so it can
// be applied later through ApplyPlan. Rename applies the same plan at once.
func (a *App) Refactor(ctx context.Context, req ports.RefactorRequest) (ports.RefactorResult, error) {
	op := strings.ToLower(strings.TrimSpace(req.Operation))
	spanName := "app.Preview"
	if op == OpRename {
		spanName = "app.Rename"
	}
	ctx, span := observability.Tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("old_name", req.OldName),
		attribute.String("new_name", req.NewName),
		attribute.String("scope", req.Scope),
	))
	defer span.End()
	defer observeOperation("refactor_"+op, time.Now())

	if op != OpPreview && op != OpRename {
		return ports.RefactorResult{}, validation("unknown refactor operation %q", req.Operation)
	}
	oldName, newName := strings.TrimSpace(req.OldName), strings.TrimSpace(req.NewName)
	if err := refactor.Validate(oldName, newName, nil); err != nil {
		return ports.RefactorResult{}, err
	}
	scope, err := a.ParseScope(req.Scope)
	if err != nil {
		return ports.RefactorResult{}, err
	}

	plan, warnings, err := a.plan(ctx, scope, oldName, newName)
	if err != nil {
		return ports.RefactorResult{}, errors.AddContext(err, errors.CtxOperation, op)
	}
	span.SetAttributes(attribute.Int("total_changes", plan.TotalChanges))

	if op == OpPreview {
		a.storePlan(ctx, plan)
		result := a.planResult(plan, op)
		result.Warnings = warnings
		return result, nil
	}

	if err := plan.Confirm(); err != nil {
		return ports.RefactorResult{}, err
	}
	backup := a.Config.Refactor.Backup
	if req.Backup != nil {
		backup = *req.Backup
	}
	result, err := a.apply(ctx, plan, op, backup)
	result.Warnings = warnings
	return result, err
}

// plan indexes every file in scope and builds a previewed plan. Bindings of
// newName already visible at an occurrence abort with AMBIGUOUS_RENAME.
func (a *App) plan(ctx context.Context, scope Scope, oldName, newName string) (*refactor.Plan, []errors.Warning, error) {
	files, scanWarnings, err := a.scanner.Files(ctx, scope)
	if err != nil {
		return nil, nil, err
	}

	type fileResult struct {
		edits     *refactor.FileEdits
		conflicts []refactor.Location
		lang      registry.Descriptor
	}
	results := make([]fileResult, len(files))
	warnings := make([]*errors.Warning, len(files))
	err = a.forEachFile(ctx, files, func(ctx context.Context, i int, path string) error {
		ps, err := a.Cache.Get(ctx, path)
		if err != nil {
			if errors.IsCode(err, errors.CodeCancelled) {
				return err
			}
			warnings[i] = a.skip(path, err)
			return nil
		}
		defer ps.Release()

		if !ps.Descriptor.Searchable() {
			return nil
		}
		if ps.HasSyntaxErrors {
			warnings[i] = a.skip(path, syntaxError(path))
			return nil
		}
		idx, err := symbols.Index(ps)
		if err != nil {
			warnings[i] = a.skip(path, errors.Wrap(err, errors.CodeParse, "index symbols"))
			return nil
		}
		edits := refactor.Collect(idx, oldName, newName)
		if len(edits) == 0 {
			return nil
		}
		results[i] = fileResult{
			edits: &refactor.FileEdits{
				Path:    path,
				Display: a.rel(path),
				Content: ps.Content,
				ModTime: ps.ModTime,
				Size:    ps.Size,
				Edits:   edits,
			},
			conflicts: refactor.Conflicts(idx, oldName, newName),
			lang:      ps.Descriptor,
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var (
		affected  []refactor.FileEdits
		conflicts []refactor.Location
		langs     []registry.Descriptor
		seenLang  = make(map[registry.Language]bool)
	)
	for _, r := range results {
		if r.edits == nil {
			continue
		}
		affected = append(affected, *r.edits)
		for _, c := range r.conflicts {
			c.Path = a.rel(c.Path)
			conflicts = append(conflicts, c)
		}
		if !seenLang[r.lang.ID] {
			seenLang[r.lang.ID] = true
			langs = append(langs, r.lang)
		}
	}
	if len(conflicts) > 0 {
		return nil, nil, refactor.AmbiguousError(oldName, newName, conflicts)
	}
	if err := refactor.Validate(oldName, newName, langs); err != nil {
		return nil, nil, err
	}
	if limit := a.Config.Limits.MaxRenameFiles; limit > 0 && len(affected) > limit {
		return nil, nil, validation("rename touches %d files, more than limits.max_rename_files (%d)", len(affected), limit)
	}

	plan, err := refactor.NewPlan(oldName, newName, scope.Selector, affected)
	if err != nil {
		return nil, nil, err
	}
	return plan, collectWarnings(scanWarnings, warnings), nil
}

func (a *App) apply(ctx context.Context, plan *refactor.Plan, op string, backup bool) (ports.RefactorResult, error) {
	res, err := refactor.Apply(ctx, plan, refactor.ApplyOptions{
		Backup:       backup,
		BackupSuffix: a.Config.Refactor.BackupSuffix,
	})
	for _, p := range res.Written {
		a.Cache.Invalidate(p)
		a.analyzer.Invalidate(p)
	}

	result := a.planResult(plan, op)
	result.Applied = err == nil
	for _, w := range res.Written {
		result.Written = append(result.Written, a.rel(w))
	}
	for _, b := range res.Backups {
		result.Backups = append(result.Backups, a.rel(b))
	}
	if err != nil {
		result.FilesModified = res.FilesModified
		result.TotalChanges = res.TotalChanges
		return result, err
	}
	return result, nil
}

func (a *App) planResult(plan *refactor.Plan, op string) ports.RefactorResult {
	result := ports.RefactorResult{
		PlanID:        plan.ID,
		Operation:     op,
		OldName:       plan.OldName,
		NewName:       plan.NewName,
		Scope:         plan.Scope,
		State:         plan.State(),
		FilesModified: plan.FilesModified(),
		TotalChanges:  plan.TotalChanges,
		FileChanges:   make([]ports.FileChange, 0, len(plan.Files)),
	}
	for _, fc := range plan.Files {
		result.FileChanges = append(result.FileChanges, ports.FileChange{
			Path:  fc.Display,
			Diff:  fc.Diff,
			Edits: fc.Edits,
		})
	}
	return result
}

// storePlan keeps a previewed plan in memory and, when a plan store is
// configured, on disk for other processes. A failed save only logs.
func (a *App) storePlan(ctx context.Context, plan *refactor.Plan) {
	saved := false
	if a.archive != nil {
		if snap, err := plan.Snapshot(); err == nil {
			if err := a.archive.Save(ctx, snap); err != nil {
				slog.Warn("saving plan failed", "plan_id", plan.ID, "error", err)
			} else {
				saved = true
			}
		}
	}

	a.plansMu.Lock()
	defer a.plansMu.Unlock()
	a.plans[plan.ID] = plan
	a.planOrder = append(a.planOrder, plan.ID)
	if saved {
		a.archived[plan.ID] = true
	}
	for len(a.planOrder) > maxStoredPlans {
		oldest := a.planOrder[0]
		a.planOrder = a.planOrder[1:]
		if p, ok := a.plans[oldest]; ok {
			delete(a.plans, oldest)
			if !a.archived[oldest] {
				_ = p.Cancel()
			}
			delete(a.archived, oldest)
		}
	}
}

// takePlan removes a previewed plan from memory and the plan store. Plans
// evicted from memory or saved by another process come from the store. A
// stored plan whose row is gone was applied or cancelled elsewhere.
func (a *App) takePlan(ctx context.Context, id string) (*refactor.Plan, error) {
	a.plansMu.Lock()
	p, ok := a.plans[id]
	wasArchived := a.archived[id]
	if ok {
		delete(a.plans, id)
		delete(a.archived, id)
		for i, pid := range a.planOrder {
			if pid == id {
				a.planOrder = append(a.planOrder[:i], a.planOrder[i+1:]...)
				break
			}
		}
	}
	a.plansMu.Unlock()

	notFound := errors.AddContext(errors.New(errors.CodeNotFound, "no previewed plan with this id"), "plan_id", id)
	if a.archive == nil {
		if !ok {
			return nil, notFound
		}
		return p, nil
	}

	if ok {
		claimed, err := a.archive.Delete(ctx, id)
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeIO, "claim stored plan"), "plan_id", id)
		}
		if wasArchived && !claimed {
			_ = p.Cancel()
			return nil, notFound
		}
		return p, nil
	}
	snap, found, err := a.archive.Take(ctx, id)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeIO, "load stored plan"), "plan_id", id)
	}
	if !found {
		return nil, notFound
	}
	return refactor.Restore(snap)
}

// ApplyPlan confirms and applies a plan returned by an earlier preview. A
// plan is applied at most once; files edited since the preview make the
// apply fail with CONFLICT before anything is written.
func (a *App) ApplyPlan(ctx context.Context, id string) (ports.RefactorResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.Rename", trace.WithAttributes(attribute.String("plan_id", id)))
	defer span.End()
	defer observeOperation("refactor_apply", time.Now())

	plan, err := a.takePlan(ctx, id)
	if err != nil {
		return ports.RefactorResult{}, err
	}
	if err := plan.Confirm(); err != nil {
		return ports.RefactorResult{}, err
	}
	return a.apply(ctx, plan, OpRename, a.Config.Refactor.Backup)
}

// CancelPlan discards a previewed plan.
func (a *App) CancelPlan(ctx context.Context, id string) error {
	plan, err := a.takePlan(ctx, id)
	if err != nil {
		return err
	}
	return plan.Cancel()
}

// storedPlans reports the plans held in memory and, if configured, on disk.
func (a *App) storedPlans(ctx context.Context) (inMemory int, archived int, err error) {
	a.plansMu.Lock()
	inMemory = len(a.plans)
	a.plansMu.Unlock()
	if a.archive == nil {
		return inMemory, -1, nil
	}
	archived, err = a.archive.Count(ctx)
	return inMemory, archived, err
}
