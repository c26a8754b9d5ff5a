package chunk

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// headerPattern matches ATX headers: # Title, ## Title, up to h6.
var headerPattern = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*$`)

// codeFencePattern matches the opening/closing line of a fenced code block.
var codeFencePattern = regexp.MustCompile("^\\s*(```|~~~)")

// section is one heading-delimited region of the document.
type section struct {
	level      int
	title      string
	path       string // breadcrumb, e.g. "Hooks > useState"
	startLine  int
	endLine    int // exclusive
}

// chunkMarkdownH3 splits markdown at "### " boundaries. Each chunk is one
// complete H3 section including its heading. Oversized sections are
// subdivided by paragraph with the heading re-prepended to each piece.
// Code blocks (detected via a goldmark parse, so a "###" inside a fence is
// never mistaken for a heading) are never split across chunks.
func chunkMarkdownH3(markdown string, p Params) []Result {
	if strings.TrimSpace(markdown) == "" {
		return nil
	}

	lines := strings.Split(markdown, "\n")
	codeLine := codeBlockMask(markdown, len(lines))

	sections := splitSections(lines, codeLine, 3)
	if len(sections) == 0 {
		// No H3 headings found at all: fall back to paragraph splitting
		// over the whole document so content is never dropped.
		return chunkParagraph(markdown, p)
	}

	var results []Result
	ordinal := 0
	for _, sec := range sections {
		text := strings.Join(lines[sec.startLine:sec.endLine], "\n")
		text = strings.TrimRight(text, "\n")
		if strings.TrimSpace(text) == "" {
			continue
		}

		if EstimateTokens(text) <= p.MaxTokens {
			results = append(results, Result{Text: text, Ordinal: ordinal, SectionPath: sec.path})
			ordinal++
			continue
		}

		for _, piece := range subdivideSection(sec, lines, codeLine, p) {
			results = append(results, Result{Text: piece, Ordinal: ordinal, SectionPath: sec.path})
			ordinal++
		}
	}

	return results
}

// codeBlockMask returns, per line index, whether that line sits inside a
// fenced code block. Built from a goldmark parse of the document plus a
// fallback fence-count pass for documents goldmark can't fully resolve.
func codeBlockMask(markdown string, numLines int) []bool {
	mask := make([]bool, numLines)

	src := []byte(markdown)
	reader := text.NewReader(src)
	doc := goldmark.DefaultParser().Parse(reader)

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fcb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		lns := fcb.Lines()
		for i := 0; i < lns.Len(); i++ {
			seg := lns.At(i)
			start := countNewlines(src[:seg.Start])
			end := countNewlines(src[:seg.Stop])
			for ln := start; ln <= end && ln < numLines; ln++ {
				mask[ln] = true
			}
		}
		return ast.WalkContinue, nil
	})

	// The fence delimiter lines themselves aren't part of Lines(); mark them
	// too using a simple toggle pass so headerPattern never matches a fence.
	inFence := false
	for i, line := range strings.Split(markdown, "\n") {
		if i >= numLines {
			break
		}
		if codeFencePattern.MatchString(line) {
			mask[i] = true
			inFence = !inFence
			continue
		}
		if inFence {
			mask[i] = true
		}
	}

	return mask
}

func countNewlines(b []byte) int {
	n := 0
	for _, c := range b {
		if c == '\n' {
			n++
		}
	}
	return n
}

// splitSections groups lines into sections delimited by headings at
// splitLevel (e.g. 3 for H3). Content before the first splitLevel heading
// (including any H1/H2 titles) is attached to the first section; if the
// document has no splitLevel heading at all, no sections are returned.
func splitSections(lines []string, codeLine []bool, splitLevel int) []section {
	headerStack := make([]string, 6)
	var sections []section
	var cur *section
	var leading int // lines before the first split-level heading

	for i, line := range lines {
		if codeLine[i] {
			continue
		}
		m := headerPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		level := len(m[1])
		title := strings.TrimSpace(m[2])
		headerStack[level-1] = title
		for l := level; l < 6; l++ {
			headerStack[l] = ""
		}

		if level != splitLevel {
			continue
		}

		if cur != nil {
			cur.endLine = i
			sections = append(sections, *cur)
		} else {
			leading = i
		}

		var parts []string
		for l := 0; l < level; l++ {
			if headerStack[l] != "" {
				parts = append(parts, headerStack[l])
			}
		}
		cur = &section{
			level:     level,
			title:     title,
			path:      strings.Join(parts, " > "),
			startLine: i,
		}
	}

	if cur != nil {
		cur.endLine = len(lines)
		sections = append(sections, *cur)
	}

	if len(sections) > 0 && leading > 0 {
		// Prepend any document-level intro (title, description) to the
		// first section so it isn't silently dropped.
		sections[0].startLine = 0
	}

	return sections
}

// subdivideSection splits an oversized section into paragraph-bounded
// pieces, re-prepending the section's heading line to every piece so each
// sub-chunk remains self-contained. Atomic blocks (fenced code) are never
// split across pieces.
func subdivideSection(sec section, lines []string, codeLine []bool, p Params) []string {
	heading := strings.Repeat("#", sec.level) + " " + sec.title
	body := strings.Join(lines[sec.startLine+1:sec.endLine], "\n")

	paragraphs := splitParagraphsAtomic(body)

	var pieces []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		piece := heading + "\n\n" + strings.TrimSpace(cur.String())
		pieces = append(pieces, piece)
		cur.Reset()
	}

	for _, para := range paragraphs {
		candidateTokens := EstimateTokens(cur.String() + "\n\n" + para)
		if cur.Len() > 0 && candidateTokens > p.MaxTokens {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
	}
	flush()

	if len(pieces) == 0 {
		pieces = []string{heading}
	}
	return pieces
}

// splitParagraphsAtomic splits on blank lines, then re-merges any paragraphs
// that were only split because a fenced code block contains blank lines.
func splitParagraphsAtomic(body string) []string {
	raw := strings.Split(body, "\n\n")
	var out []string
	var fenceBuf strings.Builder
	inFence := false

	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		fences := strings.Count(trimmed, "```") + strings.Count(trimmed, "~~~")

		if inFence {
			fenceBuf.WriteString("\n\n")
			fenceBuf.WriteString(part)
			if fences%2 == 1 {
				out = append(out, fenceBuf.String())
				fenceBuf.Reset()
				inFence = false
			}
			continue
		}

		if fences%2 == 1 {
			inFence = true
			fenceBuf.WriteString(part)
			continue
		}

		out = append(out, part)
	}

	if inFence {
		out = append(out, fenceBuf.String())
	}

	return out
}
