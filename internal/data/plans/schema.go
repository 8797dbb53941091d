package plans

import (
	"database/sql"
	"fmt"
)

const schemaVersion = 1

func migrateSchema(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("plan store db is nil")
	}
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS rename_plans (
  id TEXT PRIMARY KEY,
  project_key TEXT NOT NULL,
  old_name TEXT NOT NULL,
  new_name TEXT NOT NULL,
  scope TEXT NOT NULL,
  total_changes INTEGER NOT NULL,
  payload BLOB NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rename_plans_project_created ON rename_plans(project_key, created_at);
`)
	if err != nil {
		return fmt.Errorf("migrate plan store schema: %w", err)
	}
	return nil
}
