// Package plans keeps previewed rename plans in SQLite so a plan computed by
// one process can be applied or cancelled by another.
package plans

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeintel/internal/engine/refactor"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

// DefaultKeep bounds the plans kept per project; older ones are pruned.
const DefaultKeep = 64

type Store struct {
	db         *sql.DB
	projectKey string
	keep       int
}

type payload struct {
	Version int               `json:"version"`
	Plan    refactor.Snapshot `json:"plan"`
}

// Open opens or creates the store at path. projectKey separates projects
// sharing one file; the canonical project root is the usual key.
func Open(path, projectKey string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("plan store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("plan store path %q is a directory", cleanPath)
	}
	if dir := filepath.Dir(cleanPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create plan store directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cleanPath)
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open plan store %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping plan store %q: %w", cleanPath, err)
	}
	if err := migrateSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	key := strings.TrimSpace(projectKey)
	if key == "" {
		key = "default"
	}
	return &Store{db: db, projectKey: key, keep: DefaultKeep}, nil
}

// Save records a plan, replacing one with the same id, and prunes the
// oldest plans beyond the retention limit.
func (s *Store) Save(ctx context.Context, snap refactor.Snapshot) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("plan store not initialized")
	}
	raw, err := json.Marshal(payload{Version: schemaVersion, Plan: snap})
	if err != nil {
		return fmt.Errorf("marshal plan %s: %w", snap.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin plan save tx: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
INSERT OR REPLACE INTO rename_plans (id, project_key, old_name, new_name, scope, total_changes, payload, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, snap.ID, s.projectKey, snap.OldName, snap.NewName, snap.Scope, snap.TotalChanges, raw, time.Now().UTC().UnixNano())
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("save plan %s: %w", snap.ID, err)
	}
	_, err = tx.ExecContext(ctx, `
DELETE FROM rename_plans
WHERE project_key = ? AND id NOT IN (
  SELECT id FROM rename_plans WHERE project_key = ? ORDER BY created_at DESC LIMIT ?
)
`, s.projectKey, s.projectKey, s.keep)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prune plans: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit plan save tx: %w", err)
	}
	return nil
}

// Take removes and returns the plan with id. ok is false when there is none.
func (s *Store) Take(ctx context.Context, id string) (snap refactor.Snapshot, ok bool, err error) {
	if s == nil || s.db == nil {
		return snap, false, fmt.Errorf("plan store not initialized")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return snap, false, fmt.Errorf("begin plan take tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var raw []byte
	err = tx.QueryRowContext(ctx, `SELECT payload FROM rename_plans WHERE project_key = ? AND id = ?`, s.projectKey, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return snap, false, nil
	}
	if err != nil {
		return snap, false, fmt.Errorf("load plan %s: %w", id, err)
	}
	var p payload
	if err = json.Unmarshal(raw, &p); err != nil {
		return snap, false, fmt.Errorf("decode plan %s: %w", id, err)
	}
	if p.Version != schemaVersion {
		err = fmt.Errorf("plan %s has unsupported version %d", id, p.Version)
		return snap, false, err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM rename_plans WHERE project_key = ? AND id = ?`, s.projectKey, id); err != nil {
		return snap, false, fmt.Errorf("delete plan %s: %w", id, err)
	}
	if err = tx.Commit(); err != nil {
		return snap, false, fmt.Errorf("commit plan take tx: %w", err)
	}
	return p.Plan, true, nil
}

// Delete drops the plan with id and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("plan store not initialized")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM rename_plans WHERE project_key = ? AND id = ?`, s.projectKey, id)
	if err != nil {
		return false, fmt.Errorf("delete plan %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete plan %s: %w", id, err)
	}
	return n > 0, nil
}

// Count returns the number of plans kept for the project.
func (s *Store) Count(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("plan store not initialized")
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM rename_plans WHERE project_key = ?`, s.projectKey).Scan(&count); err != nil {
		return 0, fmt.Errorf("count plans: %w", err)
	}
	return count, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
