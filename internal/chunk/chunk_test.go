package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_MarkdownH3_SplitsAtHeadings(t *testing.T) {
	// Given: a document with two H3 sections under one H2
	doc := "## Hooks\n\n### useState\n\nTracks local state.\n\n### useEffect\n\nRuns side effects.\n"

	// When: chunking with the markdown-h3 strategy
	results, err := Chunk(doc, StrategyMarkdownH3, Params{})

	// Then: one chunk per H3 section, each carrying a breadcrumb path
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Hooks > useState", results[0].SectionPath)
	assert.Contains(t, results[0].Text, "Tracks local state")
	assert.Equal(t, "Hooks > useEffect", results[1].SectionPath)
	assert.Equal(t, 0, results[0].Ordinal)
	assert.Equal(t, 1, results[1].Ordinal)
}

func TestChunk_MarkdownH3_NeverSplitsCodeBlock(t *testing.T) {
	// Given: a section whose code block contains a "###" comment and a
	// blank line, both of which must not be mistaken for structure
	doc := "### Example\n\n```go\nfunc main() {\n\t// ### not a heading\n\n\tfmt.Println(\"hi\")\n}\n```\n"

	// When: chunking
	results, err := Chunk(doc, StrategyMarkdownH3, Params{})

	// Then: the whole fenced block survives in a single chunk untouched
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, strings.Contains(results[0].Text, "```go"))
	assert.True(t, strings.Contains(results[0].Text, "fmt.Println"))
}

func TestChunk_MarkdownH3_SubdividesOversizedSection(t *testing.T) {
	// Given: one H3 section far larger than the token budget
	var b strings.Builder
	b.WriteString("### Big Section\n\n")
	for i := 0; i < 50; i++ {
		b.WriteString("This is a paragraph with enough words to add up over many repetitions.\n\n")
	}

	// When: chunking with a small token budget
	results, err := Chunk(b.String(), StrategyMarkdownH3, Params{MaxTokens: 50})

	// Then: it is subdivided, and every piece still carries the heading
	require.NoError(t, err)
	require.Greater(t, len(results), 1)
	for _, r := range results {
		assert.Contains(t, r.Text, "### Big Section")
	}
}

func TestChunk_MarkdownH3_NoHeadingsFallsBackToParagraph(t *testing.T) {
	// Given: a document with no H3 headings at all
	doc := "Just a paragraph.\n\nAnd another one.\n"

	// When: chunking with the markdown-h3 strategy
	results, err := Chunk(doc, StrategyMarkdownH3, Params{})

	// Then: content is preserved via the paragraph fallback, not dropped
	require.NoError(t, err)
	require.NotEmpty(t, results)
	joined := ""
	for _, r := range results {
		joined += r.Text
	}
	assert.Contains(t, joined, "Just a paragraph")
	assert.Contains(t, joined, "And another one")
}

func TestChunk_Character_OverlapsAdjacentWindows(t *testing.T) {
	// Given: a long document and a small window/overlap
	doc := strings.Repeat("abcdefghij", 50) // 500 chars

	// When: chunking with the character strategy
	results, err := Chunk(doc, StrategyCharacter, Params{ChunkSize: 100, Overlap: 20})

	// Then: multiple overlapping windows are produced covering the input
	require.NoError(t, err)
	require.Greater(t, len(results), 1)
	assert.LessOrEqual(t, len(results[0].Text), 100)
}

func TestChunk_Paragraph_RespectsMinAndMaxLength(t *testing.T) {
	// Given: several short paragraphs
	doc := "One.\n\nTwo.\n\nThree.\n\nFour.\n\nFive.\n"

	// When: chunking with a small min/max length
	results, err := Chunk(doc, StrategyParagraph, Params{MinLength: 5, MaxLength: 15})

	// Then: paragraphs are coalesced up to the max before a new chunk starts
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.LessOrEqual(t, len(r.Text), 40)
	}
}

func TestChunk_Paragraph_KeepsCodeBlockIntact(t *testing.T) {
	// Given: a paragraph-strategy document containing a fenced block with
	// an internal blank line
	doc := "Intro text.\n\n```js\nconst a = 1;\n\nconst b = 2;\n```\n\nOutro text.\n"

	// When: chunking with the paragraph strategy
	results, err := Chunk(doc, StrategyParagraph, Params{MinLength: 1000, MaxLength: 2000})

	// Then: the fenced block is never torn across two results
	require.NoError(t, err)
	for _, r := range results {
		opens := strings.Count(r.Text, "```")
		assert.Equal(t, 0, opens%2, "fence markers must be balanced within a single chunk")
	}
}

func TestChunk_Token_BudgetsByEstimatedTokenCount(t *testing.T) {
	// Given: a document long enough to exceed a tiny token budget
	doc := strings.Repeat("word ", 2000)

	// When: chunking with the token strategy
	results, err := Chunk(doc, StrategyToken, Params{MaxTokens: 20})

	// Then: each chunk stays near the requested token budget
	require.NoError(t, err)
	require.Greater(t, len(results), 1)
	for _, r := range results {
		assert.LessOrEqual(t, EstimateTokens(r.Text), 25)
	}
}

func TestChunk_UnknownStrategy_ReturnsError(t *testing.T) {
	// Given: a strategy name that doesn't exist
	_, err := Chunk("text", Strategy("bogus"), Params{})

	// Then: an error is returned rather than silently falling back
	require.Error(t, err)
}

func TestChunk_Deterministic(t *testing.T) {
	// Given: the same input, strategy and params
	doc := "### A\n\nhello\n\n### B\n\nworld\n"

	// When: chunked twice
	first, err1 := Chunk(doc, StrategyMarkdownH3, Params{})
	second, err2 := Chunk(doc, StrategyMarkdownH3, Params{})

	// Then: the output sequence is identical
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first, second)
}

func TestEstimateTokens_ScalesWithLength(t *testing.T) {
	// Given: two strings of different lengths
	short := "hi"
	long := strings.Repeat("hi", 100)

	// When: estimating tokens
	// Then: the longer string estimates a proportionally larger count
	assert.Less(t, EstimateTokens(short), EstimateTokens(long))
}
