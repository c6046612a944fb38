// Package index provides an in-memory vector index over migration context
// chunks, with a SQLite snapshot format for persistence between runs.
package index

import "errors"

// Section types partition the corpus. Retrieval filters on these.
const (
	SectionV1Component       = "v1_component"
	SectionV2Component       = "v2_component"
	SectionDoc               = "doc"
	SectionMigrationPlan     = "migration_plan"
	SectionVerificationRules = "verification_rules"
	SectionMisc              = "misc"
)

// ErrDimensionMismatch indicates a snapshot was built with a different
// embedding dimension than the active engine produces. The snapshot must
// be rebuilt; mixing dimensions silently corrupts distance ranking.
var ErrDimensionMismatch = errors.New("snapshot embedding dimension does not match engine")

// ContextChunk is one embedded unit of migration context.
type ContextChunk struct {
	ID          string
	SectionType string
	Name        string
	Text        string
	Embedding   []float32
}

// SourceKey identifies the chunk's origin document as "sectionType:name".
// Chunks split from the same document share a source key.
func (c ContextChunk) SourceKey() string {
	return c.SectionType + ":" + c.Name
}
