package chunk

import "strings"

// chunkCharacter slides a fixed-size character window over the document
// with a configurable overlap, breaking at the nearest paragraph boundary
// when one falls within the tail of the window so chunks don't cut a
// sentence in half whenever avoidable.
func chunkCharacter(markdown string, p Params) []Result {
	runes := []rune(markdown)
	n := len(runes)
	if n == 0 {
		return nil
	}

	size := p.ChunkSize
	overlap := p.Overlap
	if overlap >= size {
		overlap = size / 5
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}

	var results []Result
	ordinal := 0
	for start := 0; start < n; start += step {
		end := start + size
		if end > n {
			end = n
		}

		if end < n {
			if cut := lastParagraphBreak(runes, start, end); cut > start {
				end = cut
			}
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			results = append(results, Result{Text: piece, Ordinal: ordinal})
			ordinal++
		}

		if end >= n {
			break
		}
	}

	return results
}

// lastParagraphBreak looks backward from end (within the last quarter of
// the window) for a blank-line boundary to split on instead of a hard cut.
func lastParagraphBreak(runes []rune, start, end int) int {
	lookback := (end - start) / 4
	floor := end - lookback
	if floor < start {
		floor = start
	}
	for i := end; i > floor; i-- {
		if i >= 2 && runes[i-1] == '\n' && runes[i-2] == '\n' {
			return i
		}
	}
	return end
}

// chunkParagraph coalesces blank-line-delimited paragraphs into chunks
// bounded by [MinLength, MaxLength], never splitting a single paragraph
// (including a fenced code block) across two chunks.
func chunkParagraph(markdown string, p Params) []Result {
	paragraphs := splitParagraphsAtomic(markdown)
	if len(paragraphs) == 0 {
		return nil
	}

	var results []Result
	var cur strings.Builder
	ordinal := 0

	flush := func() {
		text := strings.TrimSpace(cur.String())
		if text == "" {
			return
		}
		results = append(results, Result{Text: text, Ordinal: ordinal})
		ordinal++
		cur.Reset()
	}

	for _, para := range paragraphs {
		if cur.Len() >= p.MinLength && cur.Len()+len(para) > p.MaxLength {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
		if cur.Len() > p.MaxLength {
			flush()
		}
	}
	flush()

	return results
}

// chunkToken is a character window sized to an estimated token budget
// rather than a raw character count; it reuses the character strategy's
// sliding-window mechanics with ChunkSize derived from MaxTokens.
func chunkToken(markdown string, p Params) []Result {
	tp := p
	tp.ChunkSize = p.MaxTokens * TokensPerChar
	tp.Overlap = tp.ChunkSize / 10
	return chunkCharacter(markdown, tp)
}
