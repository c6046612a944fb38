package ingest

import (
	"strings"

	"github.com/google/uuid"

	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/index"
)

const (
	defaultChunkSize    = 512
	defaultChunkOverlap = 100
)

// Chunker splits document content into overlapping chunks sized for
// embedding.
type Chunker struct {
	Size    int
	Overlap int
}

// NewChunker returns a chunker with the default size and overlap.
func NewChunker() Chunker {
	return Chunker{Size: defaultChunkSize, Overlap: defaultChunkOverlap}
}

// Chunk splits one document into context chunks. Each chunk text opens
// with an uppercase section header so the section survives splitting, and
// all chunks of a document share its source key.
func (c Chunker) Chunk(sectionType, name, content string) []index.ContextChunk {
	header := strings.ToUpper(strings.ReplaceAll(sectionType, "_", " ")) + " - " + name
	full := header + ":\n" + content

	pieces := splitText(full, c.Size, c.Overlap)
	chunks := make([]index.ContextChunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = index.ContextChunk{
			ID:          uuid.NewString(),
			SectionType: sectionType,
			Name:        name,
			Text:        piece,
		}
	}
	return chunks
}

// splitText cuts text into pieces of at most size characters, preferring
// whitespace boundaries and overlapping consecutive pieces.
func splitText(text string, size, overlap int) []string {
	if size <= 0 || len(text) <= size {
		return []string{text}
	}
	if overlap >= size {
		overlap = size / 2
	}

	var pieces []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			pieces = append(pieces, text[start:])
			break
		}

		cut := end
		if i := strings.LastIndexAny(text[start:end], "\n "); i > size/2 {
			cut = start + i
		}
		pieces = append(pieces, text[start:cut])

		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return pieces
}
