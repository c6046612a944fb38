// Package retrieval assembles migration context strings from the vector
// index, combining similarity search with exact source-key filtering driven
// by the component tags present in the query snippet.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/index"
	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/logging"
)

// MappingNotFound is the sentinel value a mapping carries for components
// with no counterpart in the new component set. It is an expected
// condition, not an error.
const MappingNotFound = "Not Found"

// NoContentPlaceholder renders in place of an empty section block.
const NoContentPlaceholder = "<no content>"

// MappingState exposes the component mapping a pipeline run has produced.
// Implemented by pipeline.MigrationState.
type MappingState interface {
	// LookupMapping returns the mapped v2 file for a normalized v1 key.
	LookupMapping(v1Key string) (string, bool)
}

// Engine answers retrieval requests against one index instance. The index
// is read-only here; rebuilds swap in a new Engine.
type Engine struct {
	index   *index.VectorIndex
	scanCap int
}

// NewEngine creates an Engine with a bounded fallback scan ceiling.
// scanCap must be positive; it caps the full-index scan used when an
// exactly-mapped component misses the similarity candidates.
func NewEngine(idx *index.VectorIndex, scanCap int) (*Engine, error) {
	if scanCap <= 0 {
		return nil, fmt.Errorf("scan cap must be positive, got %d", scanCap)
	}
	return &Engine{index: idx, scanCap: scanCap}, nil
}

// RetrieveFlat returns the k nearest chunks' text joined with blank lines,
// in ranked order.
func (e *Engine) RetrieveFlat(ctx context.Context, query string, k int) (string, error) {
	chunks, err := e.index.Query(ctx, query, k)
	if err != nil {
		return "", fmt.Errorf("flat retrieval failed: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	logging.Retrieval("[Retrieval] flat query k=%d returned %d chunks", k, len(chunks))
	return strings.Join(texts, "\n\n"), nil
}

// RetrieveBySection builds a two-block context string for a code snippet:
// a V1 COMPONENT block with the old components the snippet references, and
// a V2 COMPONENT block with their mapped replacements.
//
// The broad similarity candidates seed both blocks. For mapped v2 targets
// absent from the candidates a bounded full-index scan recovers the exact
// source-key match; v1 chunks are taken from the candidates only.
func (e *Engine) RetrieveBySection(ctx context.Context, query string, kSearch, kPick int, mapping MappingState) (string, error) {
	candidates, err := e.index.Query(ctx, query, kSearch)
	if err != nil {
		return "", fmt.Errorf("section retrieval failed: %w", err)
	}

	tags := ExtractTags(query)
	logging.Retrieval("[Retrieval] section query kSearch=%d kPick=%d tags=%v", kSearch, kPick, tags)

	var v1Bucket, v2Bucket []string
	for _, tag := range tags {
		v1Key := NormalizeV1Key(tag)

		v1Bucket = append(v1Bucket, pickBySourceKey(candidates, index.SectionV1Component+":"+v1Key, kPick)...)

		v2File, ok := lookupMapping(mapping, v1Key)
		if !ok {
			logging.RetrievalDebug("[Retrieval] no v2 mapping for %s", v1Key)
			continue
		}

		v2SourceKey := index.SectionV2Component + ":" + v2File
		hits := pickBySourceKey(candidates, v2SourceKey, kPick)
		if len(hits) == 0 {
			// Mapped components are structurally certain matches. Recover
			// them with a bounded scan when similarity ranking missed them.
			scan, err := e.index.Query(ctx, "", e.scanCap)
			if err != nil {
				return "", fmt.Errorf("fallback scan failed: %w", err)
			}
			hits = pickBySourceKey(scan, v2SourceKey, kPick)
			logging.RetrievalDebug("[Retrieval] fallback scan for %s found %d", v2SourceKey, len(hits))
		}
		v2Bucket = append(v2Bucket, hits...)
	}

	return renderSection("V1 COMPONENT", v1Bucket) + "\n\n" + renderSection("V2 COMPONENT", v2Bucket), nil
}

func lookupMapping(mapping MappingState, v1Key string) (string, bool) {
	if mapping == nil {
		return "", false
	}
	v2File, ok := mapping.LookupMapping(v1Key)
	if !ok || v2File == "" || v2File == MappingNotFound {
		return "", false
	}
	return v2File, true
}

// pickBySourceKey filters chunks by exact source key, preserving ranked
// order, up to limit texts.
func pickBySourceKey(chunks []index.ContextChunk, sourceKey string, limit int) []string {
	var out []string
	for _, c := range chunks {
		if c.SourceKey() != sourceKey {
			continue
		}
		out = append(out, c.Text)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func renderSection(header string, texts []string) string {
	body := NoContentPlaceholder
	if len(texts) > 0 {
		body = strings.Join(texts, "\n\n")
	}
	return "### " + header + "\n" + body
}
