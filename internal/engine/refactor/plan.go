// Package refactor plans and applies multi-file identifier renames. A plan is
// computed without touching disk, confirmed by the caller, and applied at
// most once.
package refactor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"codeintel/internal/core/errors"

	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"
)

// State is the lifecycle position of a Plan.
type State int

const (
	StateRequested State = iota
	StatePreviewed
	StateConfirmed
	StateApplied
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateRequested:
		return "requested"
	case StatePreviewed:
		return "previewed"
	case StateConfirmed:
		return "confirmed"
	case StateApplied:
		return "applied"
	case StateCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Edit replaces the identifier at [StartByte, EndByte).
type Edit struct {
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	StartByte uint   `json:"start_byte"`
	EndByte   uint   `json:"end_byte"`
	OldText   string `json:"old_text"`
	NewText   string `json:"new_text"`
}

// FileEdits is the raw material for one file of a plan: the content the
// edits were computed against and the edits themselves.
type FileEdits struct {
	Path    string
	Display string
	Content []byte
	ModTime time.Time
	Size    int64
	Edits   []Edit
}

// FileChange is one file of a plan.
type FileChange struct {
	Path    string `json:"path"`
	Display string `json:"display_path"`
	Edits   []Edit `json:"edits"`
	Diff    string `json:"diff"`

	modTime time.Time
	size    int64
	hash    string
}

// Plan is a computed rename.
type Plan struct {
	ID           string       `json:"id"`
	OldName      string       `json:"old_name"`
	NewName      string       `json:"new_name"`
	Scope        string       `json:"scope"`
	Files        []FileChange `json:"file_changes"`
	TotalChanges int          `json:"total_changes"`

	mu    sync.Mutex
	state State
}

// NewPlan builds a previewed plan from per-file edits. Files without edits
// are dropped; edits must not overlap and must match the content.
func NewPlan(oldName, newName, scope string, files []FileEdits) (*Plan, error) {
	p := &Plan{
		ID:      uuid.NewString(),
		OldName: oldName,
		NewName: newName,
		Scope:   scope,
		state:   StateRequested,
	}

	sorted := append([]FileEdits(nil), files...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	for _, f := range sorted {
		if len(f.Edits) == 0 {
			continue
		}
		edits := append([]Edit(nil), f.Edits...)
		sort.Slice(edits, func(i, j int) bool { return edits[i].StartByte < edits[j].StartByte })
		if err := checkEdits(f.Content, edits); err != nil {
			return nil, errors.AddContext(err, errors.CtxPath, f.Path)
		}

		display := f.Display
		if display == "" {
			display = f.Path
		}
		diff, err := unifiedDiff(display, f.Content, applyEdits(f.Content, edits))
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "compute diff"), errors.CtxPath, f.Path)
		}
		p.Files = append(p.Files, FileChange{
			Path:    f.Path,
			Display: display,
			Edits:   edits,
			Diff:    diff,
			modTime: f.ModTime,
			size:    f.Size,
			hash:    contentHash(f.Content),
		})
		p.TotalChanges += len(edits)
	}

	p.state = StatePreviewed
	return p, nil
}

// State returns the current lifecycle state.
func (p *Plan) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// FilesModified is the number of files the plan rewrites.
func (p *Plan) FilesModified() int {
	return len(p.Files)
}

// Confirm moves a previewed plan to confirmed.
func (p *Plan) Confirm() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePreviewed {
		return transitionError(p.state, StateConfirmed)
	}
	p.state = StateConfirmed
	return nil
}

// Cancel abandons a plan that has not been applied.
func (p *Plan) Cancel() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePreviewed && p.state != StateConfirmed {
		return transitionError(p.state, StateCancelled)
	}
	p.state = StateCancelled
	return nil
}

func transitionError(from, to State) error {
	code := errors.CodeValidationError
	if from == StateApplied || from == StateCancelled {
		code = errors.CodeConflict
	}
	return errors.New(code, fmt.Sprintf("cannot move plan from %s to %s", from, to))
}

func checkEdits(content []byte, edits []Edit) error {
	var prevEnd uint
	for i, e := range edits {
		if e.EndByte < e.StartByte || int(e.EndByte) > len(content) {
			return errors.New(errors.CodeValidationError, fmt.Sprintf("edit at line %d is out of range", e.Line))
		}
		if i > 0 && e.StartByte < prevEnd {
			return errors.New(errors.CodeValidationError, fmt.Sprintf("edits overlap at line %d", e.Line))
		}
		if string(content[e.StartByte:e.EndByte]) != e.OldText {
			return errors.New(errors.CodeConflict, fmt.Sprintf("content at line %d no longer reads %q", e.Line, e.OldText))
		}
		prevEnd = e.EndByte
	}
	return nil
}

// applyEdits rewrites content back to front so earlier offsets stay valid.
// edits must be sorted ascending and non-overlapping.
func applyEdits(content []byte, edits []Edit) []byte {
	out := append([]byte(nil), content...)
	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		tail := append([]byte(e.NewText), out[e.EndByte:]...)
		out = append(out[:e.StartByte], tail...)
	}
	return out
}

func unifiedDiff(display string, before, after []byte) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: "a/" + display,
		ToFile:   "b/" + display,
		Context:  3,
	})
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
