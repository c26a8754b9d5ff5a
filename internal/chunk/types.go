// Package chunk splits markdown documentation into semantically coherent,
// size-bounded pieces suitable for embedding and retrieval.
package chunk

import "fmt"

// Strategy selects how a document is split into chunks.
type Strategy string

const (
	// StrategyMarkdownH3 splits at H3 ("### ") boundaries, the preferred
	// strategy for upstream docs (including Context7's llms.txt format).
	StrategyMarkdownH3 Strategy = "markdown-h3"
	// StrategyCharacter is a sliding character window with overlap.
	StrategyCharacter Strategy = "character"
	// StrategyParagraph coalesces blank-line-delimited paragraphs.
	StrategyParagraph Strategy = "paragraph"
	// StrategyToken is a character window sized by an estimated token count.
	StrategyToken Strategy = "token"
)

// Default size policy: ~1000 tokens (~4000 characters) per chunk, with
// 10-20% overlap for the character-based strategies.
const (
	DefaultMaxChunkChars = 4000
	DefaultOverlapChars  = 500
	DefaultMaxChunkTokens = 1000
	DefaultMinParagraphChars = 200

	// TokensPerChar is the rough character-per-token ratio used by the
	// token strategy's estimator (no external tokenizer dependency).
	TokensPerChar = 4
)

// Params configures a chunking strategy. Zero values fall back to the
// defaults above.
type Params struct {
	ChunkSize int // character strategy: window size
	Overlap   int // character strategy: overlap size
	MinLength int // paragraph strategy: minimum chunk length before flush
	MaxLength int // paragraph strategy: maximum chunk length before flush
	MaxTokens int // token strategy: target token count
}

// withDefaults returns params with zero fields replaced by strategy defaults.
func (p Params) withDefaults() Params {
	if p.ChunkSize == 0 {
		p.ChunkSize = DefaultMaxChunkChars
	}
	if p.Overlap == 0 {
		p.Overlap = DefaultOverlapChars
	}
	if p.MinLength == 0 {
		p.MinLength = DefaultMinParagraphChars
	}
	if p.MaxLength == 0 {
		p.MaxLength = DefaultMaxChunkChars
	}
	if p.MaxTokens == 0 {
		p.MaxTokens = DefaultMaxChunkTokens
	}
	return p
}

// Result is one chunk produced by a chunker, before persistence assigns it
// a document_id, chunk_index and chunk_total.
type Result struct {
	Text        string
	Ordinal     int    // 0-based position within the document
	SectionPath string // heading breadcrumb, e.g. "Hooks > useState" (markdown-h3 only)
}

// Chunk splits markdown into a deterministic sequence of Results using the
// given strategy. The same input, strategy and params always produce the
// same output sequence.
func Chunk(markdown string, strategy Strategy, params Params) ([]Result, error) {
	p := params.withDefaults()
	switch strategy {
	case "", StrategyMarkdownH3:
		return chunkMarkdownH3(markdown, p), nil
	case StrategyCharacter:
		return chunkCharacter(markdown, p), nil
	case StrategyParagraph:
		return chunkParagraph(markdown, p), nil
	case StrategyToken:
		return chunkToken(markdown, p), nil
	default:
		return nil, fmt.Errorf("chunk: unknown strategy %q", strategy)
	}
}

// EstimateTokens approximates a token count from character length.
// Mirrors the rough 4-chars-per-token heuristic used throughout the corpus;
// good enough for bounding chunk size without pulling in a real tokenizer.
func EstimateTokens(text string) int {
	return (len(text) + TokensPerChar - 1) / TokensPerChar
}
