package text

import (
	"fmt"
	"iter"
	"strings"

	"finsight/backend/internal/apperr"
)

const (
	// DefaultChunkSize and DefaultChunkOverlap are the word-window defaults
	// used by the ingestion pipeline when the config leaves them unset.
	DefaultChunkSize    = 512
	DefaultChunkOverlap = 50
)

// ChunkWords splits text into overlapping windows of size words, advancing
// size-overlap words per step. The returned sequence is lazy and restartable;
// empty input yields an empty sequence. Invalid parameters are rejected up
// front instead of producing a stalled iterator.
func ChunkWords(text string, size, overlap int) (iter.Seq[string], error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", apperr.ErrConfiguration, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must satisfy 0 <= overlap < size, got overlap=%d size=%d", apperr.ErrConfiguration, overlap, size)
	}

	words := strings.Fields(text)
	step := size - overlap

	return func(yield func(string) bool) {
		for start := 0; start < len(words); start += step {
			end := min(start+size, len(words))
			if !yield(strings.Join(words[start:end], " ")) {
				return
			}
			if end == len(words) {
				return
			}
		}
	}, nil
}

// ChunkText is the slice form of ChunkWords.
func ChunkText(text string, size, overlap int) ([]string, error) {
	seq, err := ChunkWords(text, size, overlap)
	if err != nil {
		return nil, err
	}
	var chunks []string
	for c := range seq {
		chunks = append(chunks, c)
	}
	return chunks, nil
}
