package ports

import (
	"context"

	"codeintel/internal/core/errors"
	"codeintel/internal/engine/graph"
	"codeintel/internal/engine/refactor"
	"codeintel/internal/engine/symbols"
)

// SymbolRequest drives a symbol search.
type SymbolRequest struct {
	Symbol string `json:"symbol"`
	// Operation is definition, references or all (the default).
	Operation string `json:"operation"`
	// Scope is project (the default), file:<path> or directory:<path>.
	Scope string `json:"scope"`
	// Language optionally restricts the search to one registry id.
	Language string `json:"language"`
	// ContextLines overrides the configured number of surrounding lines.
	ContextLines *int `json:"context_lines"`
}

type SymbolResult struct {
	Symbol        string           `json:"symbol"`
	Operation     string           `json:"operation"`
	Scope         string           `json:"scope"`
	Matches       []symbols.Match  `json:"matches"`
	TotalMatches  int              `json:"total_matches"`
	Truncated     bool             `json:"truncated"`
	FilesSearched int              `json:"files_searched"`
	Warnings      []errors.Warning `json:"warnings,omitempty"`
}

// DependencyRequest drives the dependency analyzer.
type DependencyRequest struct {
	// Operation is imports, dependents or graph.
	Operation string `json:"operation"`
	Target    string `json:"target"`
	Scope     string `json:"scope"`
	Depth     int    `json:"depth"`
}

type DependencyResult struct {
	Operation  string             `json:"operation"`
	Target     string             `json:"target"`
	Imports    []graph.ImportEdge `json:"imports,omitempty"`
	Dependents []graph.ImportEdge `json:"dependents,omitempty"`
	Graph      *graph.Expansion   `json:"graph,omitempty"`
	Warnings   []errors.Warning   `json:"warnings,omitempty"`
}

// RefactorRequest drives a rename preview or a rename.
type RefactorRequest struct {
	// Operation is preview or rename.
	Operation string `json:"operation"`
	OldName   string `json:"old_name"`
	NewName   string `json:"new_name"`
	Scope     string `json:"scope"`
	// Backup overrides refactor.backup from the configuration.
	Backup *bool `json:"backup"`
}

type FileChange struct {
	Path  string          `json:"path"`
	Diff  string          `json:"diff"`
	Edits []refactor.Edit `json:"edits"`
}

type RefactorResult struct {
	PlanID        string           `json:"plan_id"`
	Operation     string           `json:"operation"`
	OldName       string           `json:"old_name"`
	NewName       string           `json:"new_name"`
	Scope         string           `json:"scope"`
	State         refactor.State   `json:"state"`
	FilesModified int              `json:"files_modified"`
	TotalChanges  int              `json:"total_changes"`
	FileChanges   []FileChange     `json:"file_changes"`
	Applied       bool             `json:"applied"`
	// Written lists the files rewritten so far, also when applying failed
	// part way.
	Written       []string         `json:"written,omitempty"`
	Backups       []string         `json:"backups,omitempty"`
	Warnings      []errors.Warning `json:"warnings,omitempty"`
}

// CodeIntel is the surface collaborators drive: one entry point per engine
// operation.
type CodeIntel interface {
	SymbolSearch(ctx context.Context, req SymbolRequest) (SymbolResult, error)
	Dependencies(ctx context.Context, req DependencyRequest) (DependencyResult, error)
	Refactor(ctx context.Context, req RefactorRequest) (RefactorResult, error)
}

// PlanStore is implemented by services that keep previewed plans so a
// caller can confirm or cancel one later by id.
type PlanStore interface {
	ApplyPlan(ctx context.Context, id string) (RefactorResult, error)
	CancelPlan(ctx context.Context, id string) error
}

// Invalidator receives file system changes from a watcher.
type Invalidator interface {
	InvalidatePaths(paths []string)
}
