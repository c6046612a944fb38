// Package store persists migration context units in a local SQLite database.
// Units are the raw ingested documents (component sources, docs, mapping and
// rule files) that the index builder chunks and embeds.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/logging"
)

// ErrUnavailable indicates the backing database cannot be reached.
var ErrUnavailable = errors.New("context store unavailable")

// Unit categories. One category per corpus section.
const (
	CategoryV1Components      = "v1_components"
	CategoryV2Components      = "v2_components"
	CategoryV1Docs            = "v1_docs"
	CategoryV2Docs            = "v2_docs"
	CategoryMigrationPlan     = "migration_plan"
	CategoryVerificationRules = "verification_rules"
	CategoryConstraints       = "constraints"
)

// Unit is a single ingested document.
type Unit struct {
	ID        int64
	Category  string
	Name      string
	Content   string
	Meta      map[string]string
	UpdatedAt time.Time
}

// ContextStore is a SQLite-backed store of context units.
type ContextStore struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the store at path.
func Open(path string) (*ContextStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer. SQLite serializes writes anyway and this avoids
	// SQLITE_BUSY churn under concurrent ingest.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &ContextStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("[Store] opened %s", path)
	return s, nil
}

func (s *ContextStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS context_units (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		category TEXT NOT NULL,
		name TEXT NOT NULL,
		content TEXT NOT NULL,
		meta TEXT NOT NULL DEFAULT '{}',
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(category, name)
	);
	CREATE INDEX IF NOT EXISTS idx_context_units_category ON context_units(category);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *ContextStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *ContextStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// UpsertUnit inserts or replaces a unit keyed by (category, name).
func (s *ContextStore) UpsertUnit(ctx context.Context, unit Unit) error {
	metaJSON := "{}"
	if len(unit.Meta) > 0 {
		data, err := json.Marshal(unit.Meta)
		if err != nil {
			return fmt.Errorf("failed to marshal meta: %w", err)
		}
		metaJSON = string(data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO context_units (category, name, content, meta, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(category, name) DO UPDATE SET
			content = excluded.content,
			meta = excluded.meta,
			updated_at = CURRENT_TIMESTAMP
	`, unit.Category, unit.Name, unit.Content, metaJSON)
	if err != nil {
		return fmt.Errorf("failed to upsert unit %s/%s: %w", unit.Category, unit.Name, err)
	}

	logging.StoreDebug("[Store] upserted %s/%s (%d bytes)", unit.Category, unit.Name, len(unit.Content))
	return nil
}

// LoadUnitsByCategory returns all units in a category ordered by name.
func (s *ContextStore) LoadUnitsByCategory(ctx context.Context, category string) ([]Unit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, name, content, meta, updated_at
		FROM context_units
		WHERE category = ?
		ORDER BY name
	`, category)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer rows.Close()

	return scanUnits(rows)
}

// LoadAllUnits returns every unit ordered by category then name.
func (s *ContextStore) LoadAllUnits(ctx context.Context) ([]Unit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, name, content, meta, updated_at
		FROM context_units
		ORDER BY category, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer rows.Close()

	return scanUnits(rows)
}

// GetUnit returns a single unit or sql.ErrNoRows.
func (s *ContextStore) GetUnit(ctx context.Context, category, name string) (Unit, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, category, name, content, meta, updated_at
		FROM context_units
		WHERE category = ? AND name = ?
	`, category, name)

	return scanUnit(row)
}

// CountByCategory returns unit counts keyed by category.
func (s *ContextStore) CountByCategory(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*) FROM context_units GROUP BY category
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count units: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[category] = n
	}
	return counts, rows.Err()
}

// DeleteCategory removes every unit in a category. Used on re-ingest.
func (s *ContextStore) DeleteCategory(ctx context.Context, category string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM context_units WHERE category = ?`, category)
	if err != nil {
		return 0, fmt.Errorf("failed to delete category %s: %w", category, err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logging.Store("[Store] deleted %d units from %s", n, category)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUnit(row rowScanner) (Unit, error) {
	var u Unit
	var metaJSON string
	if err := row.Scan(&u.ID, &u.Category, &u.Name, &u.Content, &metaJSON, &u.UpdatedAt); err != nil {
		return Unit{}, err
	}
	if metaJSON != "" && metaJSON != "{}" {
		if err := json.Unmarshal([]byte(metaJSON), &u.Meta); err != nil {
			logging.Get(logging.CategoryStore).Warn("[Store] bad meta for %s/%s: %v", u.Category, u.Name, err)
		}
	}
	return u, nil
}

func scanUnits(rows *sql.Rows) ([]Unit, error) {
	var units []Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}
