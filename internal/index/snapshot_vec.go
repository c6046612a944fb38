//go:build sqlite_vec && cgo

package index

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/embedding"
	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/logging"
)

// SearchSnapshot answers a one-off query without loading the index
// resident: the query embeds once and a vec0 KNN runs directly against the
// snapshot file. Empty queries have no vector to match, so they fall back
// to the resident insertion-order scan.
func SearchSnapshot(ctx context.Context, engine embedding.Engine, path, query string, k int) ([]ContextChunk, error) {
	if query == "" {
		idx, err := Load(ctx, engine, path)
		if err != nil {
			return nil, err
		}
		return idx.Query(ctx, "", k)
	}
	queryVec, err := engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return QuerySnapshotKNN(ctx, path, queryVec, k)
}

// QuerySnapshotKNN runs a vec0 KNN query directly against a snapshot file
// using the sqlite-vec extension, without loading the index into memory.
// Useful for very large snapshots where a resident index is not wanted.
func QuerySnapshotKNN(ctx context.Context, path string, queryVec []float32, k int) ([]ContextChunk, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer db.Close()

	var dimension int
	if err := db.QueryRowContext(ctx, `SELECT dimension FROM snapshot_meta`).Scan(&dimension); err != nil {
		return nil, fmt.Errorf("failed to read snapshot meta: %w", err)
	}
	if len(queryVec) != dimension {
		return nil, fmt.Errorf("%w: query has %d dims, snapshot has %d",
			ErrDimensionMismatch, len(queryVec), dimension)
	}

	// vec0 virtual tables are rebuilt per query session. The chunks table
	// stays the source of truth.
	if _, err := db.ExecContext(ctx, fmt.Sprintf(
		`CREATE VIRTUAL TABLE temp.vec_chunks USING vec0(embedding float[%d])`, dimension)); err != nil {
		return nil, fmt.Errorf("failed to create vec table: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO temp.vec_chunks (rowid, embedding) SELECT seq, embedding FROM chunks`); err != nil {
		return nil, fmt.Errorf("failed to populate vec table: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT c.id, c.section_type, c.name, c.content, c.embedding
		FROM temp.vec_chunks v
		JOIN chunks c ON c.seq = v.rowid
		WHERE v.embedding MATCH ? AND v.k = ?
		ORDER BY v.distance
	`, encodeEmbedding(queryVec), k)
	if err != nil {
		return nil, fmt.Errorf("vec query failed: %w", err)
	}
	defer rows.Close()

	var out []ContextChunk
	for rows.Next() {
		var c ContextChunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.SectionType, &c.Name, &c.Text, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		c.Embedding, err = decodeEmbedding(blob)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}

	logging.RetrievalDebug("[Snapshot] vec0 KNN returned %d of k=%d", len(out), k)
	return out, rows.Err()
}
