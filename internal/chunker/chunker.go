// Package chunker splits raw document text into bounded-size token
// windows for embedding and storage.
//
// Token boundaries come from a BPE vocabulary compatible with the
// embedding models (cl100k_base), not from raw characters, so chunk
// budgets line up with what providers actually count.
package chunker

import (
	"iter"
	"log/slog"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE vocabulary used for chunking.
const DefaultEncoding = "cl100k_base"

// Chunker partitions text into consecutive, non-overlapping windows of
// at most Size tokens. The final window may be shorter. Decoding the
// concatenated windows reproduces the original token sequence exactly.
//
// Chunker is safe for concurrent use: the underlying codec is
// read-only after construction.
type Chunker struct {
	size   int
	codec  *tiktoken.Tiktoken
	logger *slog.Logger
}

// New creates a Chunker with the given window size in tokens.
func New(size int, logger *slog.Logger) (*Chunker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	codec, err := tiktoken.GetEncoding(DefaultEncoding)
	if err != nil {
		// Degrade rather than fail: a chunker without a vocabulary
		// yields empty sequences, and ingestion records zero chunks.
		logger.Warn("tokenizer unavailable, chunking disabled", "encoding", DefaultEncoding, "error", err)
		codec = nil
	}

	return &Chunker{
		size:   size,
		codec:  codec,
		logger: logger,
	}, nil
}

// Size returns the window size in tokens.
func (c *Chunker) Size() int { return c.size }

// Chunk returns a lazy, restartable sequence of chunk strings. Empty
// input or tokenizer failure yields an empty sequence; errors never
// propagate out of the iterator.
func (c *Chunker) Chunk(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if text == "" || c.codec == nil || c.size < 1 {
			return
		}

		tokens := c.codec.Encode(text, nil, nil)
		for start := 0; start < len(tokens); start += c.size {
			end := min(start+c.size, len(tokens))
			if !yield(c.codec.Decode(tokens[start:end])) {
				return
			}
		}
	}
}

// ChunkAll materializes the sequence. Convenience for callers that
// need the count up front.
func (c *Chunker) ChunkAll(text string) []string {
	var chunks []string
	for chunk := range c.Chunk(text) {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// TokenCount returns the number of tokens in text, or 0 when the
// tokenizer is unavailable.
func (c *Chunker) TokenCount(text string) int {
	if c.codec == nil {
		return 0
	}
	return len(c.codec.Encode(text, nil, nil))
}
