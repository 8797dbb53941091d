package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"codeintel/internal/core/config"
	"codeintel/internal/core/errors"
	"codeintel/internal/core/ports"
	"codeintel/internal/engine/refactor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(t *testing.T, a *App, files map[string]string) map[string]string {
	t.Helper()
	out := make(map[string]string, len(files))
	for rel := range files {
		out[rel] = readRel(t, a, rel)
	}
	return out
}

func TestRefactor_PreviewWritesNothing(t *testing.T) {
	a := newTestApp(t, sample, nil)
	before := snapshot(t, a, sample)

	res, err := a.Refactor(context.Background(), ports.RefactorRequest{Operation: "preview", OldName: "foo", NewName: "bar"})
	require.NoError(t, err)

	assert.Equal(t, before, snapshot(t, a, sample))
	assert.Equal(t, refactor.StatePreviewed, res.State)
	assert.False(t, res.Applied)
	assert.NotEmpty(t, res.PlanID)
	assert.Equal(t, "project", res.Scope)
	assert.Equal(t, 2, res.FilesModified)
	assert.Equal(t, 3, res.TotalChanges)
	require.Len(t, res.FileChanges, 2)
	assert.Equal(t, "a.py", res.FileChanges[0].Path)
	assert.Equal(t, "b.py", res.FileChanges[1].Path)
	assert.Contains(t, res.FileChanges[1].Diff, "-from a import foo")
	assert.Contains(t, res.FileChanges[1].Diff, "+from a import bar")
}

func TestRefactor_RenameMatchesPreview(t *testing.T) {
	a := newTestApp(t, sample, nil)
	ctx := context.Background()

	preview, err := a.Refactor(ctx, ports.RefactorRequest{Operation: "preview", OldName: "foo", NewName: "bar"})
	require.NoError(t, err)
	rename, err := a.Refactor(ctx, ports.RefactorRequest{Operation: "rename", OldName: "foo", NewName: "bar"})
	require.NoError(t, err)

	assert.True(t, rename.Applied)
	assert.Equal(t, refactor.StateApplied, rename.State)
	assert.Equal(t, preview.TotalChanges, rename.TotalChanges)
	assert.Equal(t, preview.FileChanges, rename.FileChanges)

	assert.Equal(t, "import os\n\ndef bar():\n    return os.getcwd()\n", readRel(t, a, "a.py"))
	assert.Equal(t, "from a import bar\n\n\n\nbar()\n", readRel(t, a, "b.py"))
	assert.Equal(t, sample["c.py"], readRel(t, a, "c.py"), "comments and strings are left alone")
}

func TestRefactor_SecondPreviewIsEmpty(t *testing.T) {
	a := newTestApp(t, sample, nil)
	ctx := context.Background()

	_, err := a.Refactor(ctx, ports.RefactorRequest{Operation: "rename", OldName: "foo", NewName: "bar"})
	require.NoError(t, err)

	res, err := a.Refactor(ctx, ports.RefactorRequest{Operation: "preview", OldName: "foo", NewName: "bar"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalChanges)
	assert.Empty(t, res.FileChanges)
}

func TestRefactor_AmbiguousRename(t *testing.T) {
	files := map[string]string{
		"a.py": "bar = 2\n\ndef foo():\n    return bar\n",
		"b.py": "from a import foo\nfoo()\n",
	}
	a := newTestApp(t, files, nil)
	before := snapshot(t, a, files)

	_, err := a.Refactor(context.Background(), ports.RefactorRequest{Operation: "rename", OldName: "foo", NewName: "bar"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeAmbiguousRename))
	assert.Contains(t, err.Error(), "a.py:1:1")
	assert.Equal(t, before, snapshot(t, a, files))
}

func TestRefactor_Validation(t *testing.T) {
	a := newTestApp(t, sample, nil)
	ctx := context.Background()

	tests := []ports.RefactorRequest{
		{Operation: "extract", OldName: "foo", NewName: "bar"},
		{Operation: "preview", OldName: "foo", NewName: "foo"},
		{Operation: "preview", OldName: "foo", NewName: "2bar"},
		{Operation: "preview", OldName: "", NewName: "bar"},
		{Operation: "preview", OldName: "foo", NewName: "class"},
	}
	for _, req := range tests {
		_, err := a.Refactor(ctx, req)
		assert.True(t, errors.IsCode(err, errors.CodeValidationError), "%+v: %v", req, err)
	}
}

func TestRefactor_MaxRenameFiles(t *testing.T) {
	a := newTestApp(t, sample, func(c *config.Config) { c.Limits.MaxRenameFiles = 1 })

	_, err := a.Refactor(context.Background(), ports.RefactorRequest{Operation: "preview", OldName: "foo", NewName: "bar"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestRefactor_ScopedToFile(t *testing.T) {
	a := newTestApp(t, sample, nil)

	res, err := a.Refactor(context.Background(), ports.RefactorRequest{Operation: "rename", OldName: "foo", NewName: "bar", Scope: "file:b.py"})
	require.NoError(t, err)
	assert.Equal(t, "file:b.py", res.Scope)
	assert.Equal(t, 1, res.FilesModified)
	assert.Equal(t, sample["a.py"], readRel(t, a, "a.py"))
	assert.Equal(t, "from a import bar\n\n\n\nbar()\n", readRel(t, a, "b.py"))
}

func TestRefactor_Backup(t *testing.T) {
	a := newTestApp(t, sample, nil)
	backup := true

	res, err := a.Refactor(context.Background(), ports.RefactorRequest{Operation: "rename", OldName: "foo", NewName: "bar", Backup: &backup})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py.bak", "b.py.bak"}, res.Backups)
	assert.Equal(t, []string{"a.py", "b.py"}, res.Written)
	assert.Equal(t, sample["b.py"], readRel(t, a, "b.py.bak"))
}

func TestApplyPlan(t *testing.T) {
	a := newTestApp(t, sample, nil)
	ctx := context.Background()

	preview, err := a.Refactor(ctx, ports.RefactorRequest{Operation: "preview", OldName: "foo", NewName: "bar"})
	require.NoError(t, err)

	res, err := a.ApplyPlan(ctx, preview.PlanID)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, preview.FileChanges, res.FileChanges)
	assert.Equal(t, "from a import bar\n\n\n\nbar()\n", readRel(t, a, "b.py"))

	_, err = a.ApplyPlan(ctx, preview.PlanID)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound), "a plan is applied at most once")
}

func TestApplyPlan_ConflictAfterEdit(t *testing.T) {
	a := newTestApp(t, sample, nil)
	ctx := context.Background()

	preview, err := a.Refactor(ctx, ports.RefactorRequest{Operation: "preview", OldName: "foo", NewName: "bar"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(a.Root, "b.py"), []byte("from a import foo\nfoo()\nfoo()\n"), 0o644))

	_, err = a.ApplyPlan(ctx, preview.PlanID)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeConflict))
	assert.Equal(t, sample["a.py"], readRel(t, a, "a.py"), "nothing is written when any file changed")
}

func TestCancelPlan(t *testing.T) {
	a := newTestApp(t, sample, nil)
	ctx := context.Background()

	preview, err := a.Refactor(ctx, ports.RefactorRequest{Operation: "preview", OldName: "foo", NewName: "bar"})
	require.NoError(t, err)
	require.NoError(t, a.CancelPlan(ctx, preview.PlanID))

	_, err = a.ApplyPlan(ctx, preview.PlanID)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
	assert.Equal(t, sample["b.py"], readRel(t, a, "b.py"))

	assert.True(t, errors.IsCode(a.CancelPlan(ctx, "nope"), errors.CodeNotFound))
}

func TestStorePlan_EvictsOldest(t *testing.T) {
	a := newTestApp(t, sample, nil)
	ctx := context.Background()

	var ids []string
	for i := 0; i < maxStoredPlans+2; i++ {
		res, err := a.Refactor(ctx, ports.RefactorRequest{Operation: "preview", OldName: "foo", NewName: "bar"})
		require.NoError(t, err)
		ids = append(ids, res.PlanID)
	}
	assert.Len(t, a.plans, maxStoredPlans)
	assert.True(t, errors.IsCode(a.CancelPlan(ctx, ids[0]), errors.CodeNotFound))
	assert.NoError(t, a.CancelPlan(ctx, ids[len(ids)-1]))
}

func TestRefactor_Cancelled(t *testing.T) {
	a := newTestApp(t, sample, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Refactor(ctx, ports.RefactorRequest{Operation: "rename", OldName: "foo", NewName: "bar"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeCancelled))
	assert.Equal(t, sample["a.py"], readRel(t, a, "a.py"))
}

func withPlanStore(cfg *config.Config) {
	cfg.Refactor.PlanStore = ".codeintel/plans.db"
}

func TestApplyPlan_FromAnotherProcess(t *testing.T) {
	first := newTestApp(t, sample, withPlanStore)
	ctx := context.Background()

	preview, err := first.Refactor(ctx, ports.RefactorRequest{Operation: "preview", OldName: "foo", NewName: "bar"})
	require.NoError(t, err)

	cfg := config.Default()
	withPlanStore(cfg)
	second, err := New(cfg, first.Root)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close(context.Background()) })

	res, err := second.ApplyPlan(ctx, preview.PlanID)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, preview.TotalChanges, res.TotalChanges)
	assert.Equal(t, "from a import bar\n\n\n\nbar()\n", readRel(t, second, "b.py"))

	_, err = first.ApplyPlan(ctx, preview.PlanID)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound), "a plan is applied at most once")
}

func TestApplyPlan_EvictedPlanComesFromStore(t *testing.T) {
	a := newTestApp(t, sample, withPlanStore)
	ctx := context.Background()

	var ids []string
	for i := 0; i < maxStoredPlans+1; i++ {
		res, err := a.Refactor(ctx, ports.RefactorRequest{Operation: "preview", OldName: "foo", NewName: "bar"})
		require.NoError(t, err)
		ids = append(ids, res.PlanID)
	}
	require.Len(t, a.plans, maxStoredPlans)

	res, err := a.ApplyPlan(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, 2, res.FilesModified)

	_, err = a.ApplyPlan(ctx, ids[1])
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeConflict), "files changed after the other plan was applied")
}

func TestCancelPlan_RemovesStoredPlan(t *testing.T) {
	a := newTestApp(t, sample, withPlanStore)
	ctx := context.Background()

	preview, err := a.Refactor(ctx, ports.RefactorRequest{Operation: "preview", OldName: "foo", NewName: "bar"})
	require.NoError(t, err)
	status := NewHealthService(a).Check(ctx)
	assert.Equal(t, "1 pending, 1 stored", status.Components["plans"])

	require.NoError(t, a.CancelPlan(ctx, preview.PlanID))
	status = NewHealthService(a).Check(ctx)
	assert.Equal(t, "0 pending, 0 stored", status.Components["plans"])
}
