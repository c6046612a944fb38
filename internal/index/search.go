//go:build !(sqlite_vec && cgo)

package index

import (
	"context"

	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/embedding"
)

// SearchSnapshot answers a one-off query against a snapshot file by loading
// it resident and scanning. Builds tagged sqlite_vec answer it with a vec0
// KNN query over the file instead, skipping the resident load.
func SearchSnapshot(ctx context.Context, engine embedding.Engine, path, query string, k int) ([]ContextChunk, error) {
	idx, err := Load(ctx, engine, path)
	if err != nil {
		return nil, err
	}
	return idx.Query(ctx, query, k)
}
