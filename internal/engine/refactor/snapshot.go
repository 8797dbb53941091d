package refactor

import (
	"fmt"
	"time"

	"codeintel/internal/core/errors"
)

// Snapshot is the serialisable form of a previewed plan, including the file
// fingerprints Apply checks before writing.
type Snapshot struct {
	ID           string         `json:"id"`
	OldName      string         `json:"old_name"`
	NewName      string         `json:"new_name"`
	Scope        string         `json:"scope"`
	TotalChanges int            `json:"total_changes"`
	Files        []FileSnapshot `json:"files"`
}

type FileSnapshot struct {
	Path    string    `json:"path"`
	Display string    `json:"display_path"`
	Edits   []Edit    `json:"edits"`
	Diff    string    `json:"diff"`
	ModTime time.Time `json:"mod_time"`
	Size    int64     `json:"size"`
	Hash    string    `json:"sha256"`
}

// Snapshot captures a plan that is still previewed.
func (p *Plan) Snapshot() (Snapshot, error) {
	if st := p.State(); st != StatePreviewed {
		return Snapshot{}, errors.New(errors.CodeValidationError, fmt.Sprintf("only previewed plans can be saved, plan is %s", st))
	}
	s := Snapshot{
		ID:           p.ID,
		OldName:      p.OldName,
		NewName:      p.NewName,
		Scope:        p.Scope,
		TotalChanges: p.TotalChanges,
		Files:        make([]FileSnapshot, len(p.Files)),
	}
	for i, fc := range p.Files {
		s.Files[i] = FileSnapshot{
			Path:    fc.Path,
			Display: fc.Display,
			Edits:   fc.Edits,
			Diff:    fc.Diff,
			ModTime: fc.modTime,
			Size:    fc.size,
			Hash:    fc.hash,
		}
	}
	return s, nil
}

// Restore rebuilds a previewed plan from a snapshot. Edit ranges are checked
// again against the files when the plan is applied.
func Restore(s Snapshot) (*Plan, error) {
	if s.ID == "" {
		return nil, errors.New(errors.CodeValidationError, "snapshot has no plan id")
	}
	p := &Plan{
		ID:      s.ID,
		OldName: s.OldName,
		NewName: s.NewName,
		Scope:   s.Scope,
		state:   StatePreviewed,
	}
	for _, f := range s.Files {
		if f.Hash == "" {
			return nil, errors.AddContext(errors.New(errors.CodeValidationError, "snapshot file has no content hash"), errors.CtxPath, f.Path)
		}
		p.Files = append(p.Files, FileChange{
			Path:    f.Path,
			Display: f.Display,
			Edits:   f.Edits,
			Diff:    f.Diff,
			modTime: f.ModTime,
			size:    f.Size,
			hash:    f.Hash,
		})
		p.TotalChanges += len(f.Edits)
	}
	if p.TotalChanges != s.TotalChanges {
		return nil, errors.New(errors.CodeValidationError, fmt.Sprintf("snapshot counts %d changes but lists %d edits", s.TotalChanges, p.TotalChanges))
	}
	return p, nil
}
