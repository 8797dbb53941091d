package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"codeintel/internal/core/config"
	"codeintel/internal/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScope(t *testing.T) {
	a := newTestApp(t, map[string]string{"src/a.py": "x = 1\n", "b.py": "y = 2\n"}, nil)

	tests := []struct {
		selector string
		kind     ScopeKind
		rendered string
		code     errors.ErrorCode
	}{
		{selector: "", kind: ScopeProject, rendered: "project"},
		{selector: "project", kind: ScopeProject, rendered: "project"},
		{selector: "file:b.py", kind: ScopeFile, rendered: "file:b.py"},
		{selector: "file:./src/a.py", kind: ScopeFile, rendered: "file:src/a.py"},
		{selector: "directory:src", kind: ScopeDirectory, rendered: "directory:src"},
		{selector: "directory:src/", kind: ScopeDirectory, rendered: "directory:src"},
		{selector: "module:src", code: errors.CodeValidationError},
		{selector: "src", code: errors.CodeValidationError},
		{selector: "file:src", code: errors.CodeValidationError},
		{selector: "directory:b.py", code: errors.CodeValidationError},
		{selector: "file:missing.py", code: errors.CodeNotFound},
		{selector: "directory:../", code: errors.CodePermissionDenied},
		{selector: "file:/etc/passwd", code: errors.CodePermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			scope, err := a.ParseScope(tt.selector)
			if tt.code != "" {
				require.Error(t, err)
				assert.Equal(t, tt.code, errors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, scope.Kind)
			assert.Equal(t, tt.rendered, scope.Selector)
			assert.True(t, filepath.IsAbs(scope.Path))
		})
	}
}

func TestParseScope_AbsoluteInsideRoot(t *testing.T) {
	a := newTestApp(t, map[string]string{"src/a.py": "x = 1\n"}, nil)

	scope, err := a.ParseScope("file:" + filepath.Join(a.Root, "src", "a.py"))
	require.NoError(t, err)
	assert.Equal(t, "file:src/a.py", scope.Selector)
}

func TestParseScope_SymlinkEscape(t *testing.T) {
	outside := writeTree(t, map[string]string{"secret.py": "token = 1\n"})
	a := newTestApp(t, map[string]string{"a.py": "x = 1\n"}, nil)
	if err := os.Symlink(outside, filepath.Join(a.Root, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := a.ParseScope("directory:link")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodePermissionDenied))

	_, err = a.ParseScope("file:link/secret.py")
	assert.True(t, errors.IsCode(err, errors.CodePermissionDenied))
}

func TestScope_Contains(t *testing.T) {
	file := Scope{Kind: ScopeFile, Path: "/p/a.py"}
	assert.True(t, file.Contains("/p/a.py"))
	assert.False(t, file.Contains("/p/b.py"))

	dir := Scope{Kind: ScopeDirectory, Path: "/p/src"}
	assert.True(t, dir.Contains("/p/src/x/a.py"))
	assert.False(t, dir.Contains("/p/srcx/a.py"))
	assert.False(t, dir.Contains("/p/a.py"))
}

func TestScanner_Excludes(t *testing.T) {
	files := map[string]string{
		".gitignore":              "ignored/\n*.gen.py\n",
		"keep.py":                 "x = 1\n",
		"skip.gen.py":             "x = 1\n",
		"ignored/a.py":            "x = 1\n",
		"node_modules/m/index.js": "module.exports = 1;\n",
		".hidden/h.py":            "x = 1\n",
		"vendor/v.py":             "x = 1\n",
		"src/app.ts":              "export const a = 1;\n",
		"src/app.test.ts":         "export const b = 1;\n",
		"src/data.bin":            "\x00\x01",
		"notes.txt":               "foo\n",
	}
	a := newTestApp(t, files, func(c *config.Config) {
		c.Exclude.Dirs = []string{"vendor"}
		c.Exclude.Files = []string{"*.test.ts"}
	})

	scope, err := a.ParseScope("project")
	require.NoError(t, err)
	got, warnings, err := a.scanner.Files(context.Background(), scope)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	var rels []string
	for _, f := range got {
		rels = append(rels, a.rel(f))
	}
	assert.Equal(t, []string{"keep.py", "src/app.ts"}, rels)
}

func TestScanner_ExtraPatternsWithoutGitignore(t *testing.T) {
	files := map[string]string{
		".gitignore":  "keep.py\n",
		"keep.py":     "x = 1\n",
		"legacy/a.py": "x = 1\n",
	}
	a := newTestApp(t, files, func(c *config.Config) {
		c.Exclude.Gitignore = false
		c.Exclude.Patterns = []string{"legacy/"}
	})

	scope, err := a.ParseScope("")
	require.NoError(t, err)
	got, _, err := a.scanner.Files(context.Background(), scope)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "keep.py", a.rel(got[0]))
}

func TestScanner_MaxFiles(t *testing.T) {
	files := map[string]string{"a.py": "", "b.py": "", "c.py": "", "d.py": ""}
	a := newTestApp(t, files, func(c *config.Config) { c.Limits.MaxFiles = 2 })

	scope, err := a.ParseScope("")
	require.NoError(t, err)
	got, warnings, err := a.scanner.Files(context.Background(), scope)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "file limit of 2")
}

func TestScanner_Cancelled(t *testing.T) {
	a := newTestApp(t, map[string]string{"a.py": ""}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scope, err := a.ParseScope("")
	require.NoError(t, err)
	_, _, err = a.scanner.Files(ctx, scope)
	assert.True(t, errors.IsCode(err, errors.CodeCancelled))
}
