package graph

import (
	"fmt"

	"github.com/OFFIS-RIT/kgraph/internal/util"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
)

const (
	DefaultChunkSize    = 700
	DefaultChunkOverlap = 100
)

// Span is a half-open rune range [Start, End) of a text together with its content.
type Span struct {
	Seq   int
	Start int
	End   int
	Text  string
}

// SplitIntoChunks cuts text into fixed windows of size runes that overlap by
// overlap runes. Chunk i starts at i*(size-overlap); the last chunk ends at
// the end of the text and may be shorter. Empty text yields no chunks.
func SplitIntoChunks(text string, size, overlap int) ([]Span, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk window %d with overlap %d", common.ErrInvalidInput, size, overlap)
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	step := size - overlap
	spans := make([]Span, 0, len(runes)/step+1)
	for start := 0; ; start += step {
		end := min(start+size, len(runes))
		spans = append(spans, Span{
			Seq:   len(spans),
			Start: start,
			End:   end,
			Text:  string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
	}
	return spans, nil
}

func spansToChunks(docID string, spans []Span) []common.Chunk {
	chunks := make([]common.Chunk, len(spans))
	for i, s := range spans {
		chunks[i] = common.Chunk{
			ID:         util.ChunkID(docID, s.Seq),
			DocumentID: docID,
			Seq:        s.Seq,
			Text:       s.Text,
			Start:      s.Start,
			End:        s.End,
		}
	}
	return chunks
}
