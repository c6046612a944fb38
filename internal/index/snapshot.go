package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/embedding"
	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/logging"
)

// Save writes the index to a SQLite snapshot at path. The write goes to a
// temp file first and renames into place so readers never see a partial
// snapshot.
func (idx *VectorIndex) Save(ctx context.Context, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	os.Remove(tmpPath)

	db, err := sql.Open("sqlite", tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := writeSnapshot(ctx, db, idx); err != nil {
		db.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to install snapshot: %w", err)
	}

	logging.Index("[Snapshot] saved %d chunks to %s", idx.Len(), path)
	return nil
}

func writeSnapshot(ctx context.Context, db *sql.DB, idx *VectorIndex) error {
	schema := `
	CREATE TABLE snapshot_meta (
		dimension INTEGER NOT NULL,
		engine TEXT NOT NULL
	);
	CREATE TABLE chunks (
		seq INTEGER PRIMARY KEY,
		id TEXT NOT NULL,
		section_type TEXT NOT NULL,
		name TEXT NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL
	);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create snapshot schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshot_meta (dimension, engine) VALUES (?, ?)`,
		idx.dimension, idx.engine.Name()); err != nil {
		return fmt.Errorf("failed to write snapshot meta: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (seq, id, section_type, name, content, embedding) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for seq, c := range idx.chunks {
		if _, err := stmt.ExecContext(ctx, seq, c.ID, c.SectionType, c.Name, c.Text, encodeEmbedding(c.Embedding)); err != nil {
			return fmt.Errorf("failed to write chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// Load reads a snapshot into a fresh index bound to engine. Insertion order
// is the snapshot's seq order. Loading fails with ErrDimensionMismatch when
// the snapshot was built with a different embedding dimension.
func Load(ctx context.Context, engine embedding.Engine, path string) (*VectorIndex, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("snapshot not found at %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	var dimension int
	var engineName string
	if err := db.QueryRowContext(ctx,
		`SELECT dimension, engine FROM snapshot_meta`).Scan(&dimension, &engineName); err != nil {
		return nil, fmt.Errorf("failed to read snapshot meta: %w", err)
	}

	if dimension != engine.Dimensions() {
		return nil, fmt.Errorf("%w: snapshot has %d, engine %s has %d",
			ErrDimensionMismatch, dimension, engine.Name(), engine.Dimensions())
	}
	if engineName != engine.Name() {
		logging.Get(logging.CategoryIndex).Warn(
			"[Snapshot] built with engine %s but loading with %s", engineName, engine.Name())
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, section_type, name, content, embedding FROM chunks ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunks: %w", err)
	}
	defer rows.Close()

	idx := New(engine)
	for rows.Next() {
		var c ContextChunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.SectionType, &c.Name, &c.Text, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		c.Embedding, err = decodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("failed to decode embedding for %s: %w", c.ID, err)
		}
		idx.chunks = append(idx.chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chunks: %w", err)
	}

	logging.Index("[Snapshot] loaded %d chunks from %s (dim=%d)", idx.Len(), path, dimension)
	return idx, nil
}

// encodeEmbedding packs a float32 vector as little-endian bytes.
func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}
