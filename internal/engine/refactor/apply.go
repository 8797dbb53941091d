package refactor

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"codeintel/internal/core/errors"
	"codeintel/internal/shared/observability"
	"codeintel/internal/shared/util"
)

const DefaultBackupSuffix = ".bak"

type ApplyOptions struct {
	// Backup keeps the previous content next to each rewritten file.
	Backup       bool
	BackupSuffix string
}

type ApplyResult struct {
	FilesModified int      `json:"files_modified"`
	TotalChanges  int      `json:"total_changes"`
	Written       []string `json:"written"`
	Backups       []string `json:"backups,omitempty"`
}

// Apply writes a confirmed plan to disk. Every file is first checked against
// the content the plan was computed from; then files are rewritten one at a
// time, each with a single whole-file replacement. Cancellation is honoured
// between files, never inside one. Files already written stay written.
func Apply(ctx context.Context, p *Plan, opts ApplyOptions) (ApplyResult, error) {
	var res ApplyResult

	p.mu.Lock()
	if p.state != StateConfirmed {
		st := p.state
		p.mu.Unlock()
		return res, transitionError(st, StateApplied)
	}
	p.state = StateApplied
	p.mu.Unlock()

	suffix := opts.BackupSuffix
	if suffix == "" {
		suffix = DefaultBackupSuffix
	}

	originals := make([][]byte, len(p.Files))
	for i, fc := range p.Files {
		content, err := verify(fc)
		if err != nil {
			return res, err
		}
		originals[i] = content
	}

	for i, fc := range p.Files {
		if err := ctx.Err(); err != nil {
			return res, errors.Wrap(err, errors.CodeCancelled, "rename cancelled")
		}
		if opts.Backup {
			backup := fc.Path + suffix
			if err := util.WriteFileAtomic(backup, originals[i], 0o644); err != nil {
				return res, errors.AddContext(errors.Wrap(err, errors.CodeIO, "write backup"), errors.CtxPath, backup)
			}
			res.Backups = append(res.Backups, backup)
		}
		if err := util.WriteFileAtomic(fc.Path, applyEdits(originals[i], fc.Edits), 0o644); err != nil {
			return res, errors.AddContext(errors.Wrap(err, errors.CodeIO, "write file"), errors.CtxPath, fc.Path)
		}
		res.Written = append(res.Written, fc.Path)
		res.FilesModified++
		res.TotalChanges += len(fc.Edits)
		observability.RenameEditsTotal.Add(float64(len(fc.Edits)))
		slog.Debug("rename applied", "path", fc.Path, "edits", len(fc.Edits), "plan", p.ID)
	}
	return res, nil
}

// verify re-reads a file and confirms it is the version the plan saw.
func verify(fc FileChange) ([]byte, error) {
	info, err := os.Stat(fc.Path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeIO, "stat file"), errors.CtxPath, fc.Path)
	}
	changed := info.Size() != fc.size || (!fc.modTime.IsZero() && !info.ModTime().Equal(fc.modTime))
	if changed {
		return nil, conflict(fc.Path, "file changed since preview")
	}
	content, err := os.ReadFile(fc.Path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeIO, "read file"), errors.CtxPath, fc.Path)
	}
	if contentHash(content) != fc.hash {
		return nil, conflict(fc.Path, "file content changed since preview")
	}
	if err := checkEdits(content, fc.Edits); err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, fc.Path)
	}
	return content, nil
}

func conflict(path, msg string) error {
	return errors.AddContext(errors.New(errors.CodeConflict, fmt.Sprintf("%s: %s", msg, path)), errors.CtxPath, path)
}
