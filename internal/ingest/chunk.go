package ingest

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the chunk budget in characters.
const DefaultChunkSize = 2000

// ChunkText greedily packs whole lines into chunks of at most budget
// characters. A line longer than the budget is hard-split. Concatenating the
// result reproduces text exactly; empty text yields no chunks.
func ChunkText(text string, budget int) []string {
	if text == "" {
		return nil
	}
	if budget <= 0 {
		budget = DefaultChunkSize
	}
	if utf8.RuneCountInString(text) <= budget {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		n := utf8.RuneCountInString(line)
		if n > budget {
			flush()
			pieces := splitRunes(line, budget)
			chunks = append(chunks, pieces[:len(pieces)-1]...)
			last := pieces[len(pieces)-1]
			cur.WriteString(last)
			curLen = utf8.RuneCountInString(last)
			continue
		}
		if curLen+n > budget {
			flush()
		}
		cur.WriteString(line)
		curLen += n
	}
	flush()
	return chunks
}

// splitRunes cuts s into consecutive pieces of at most size runes.
func splitRunes(s string, size int) []string {
	var out []string
	for len(s) > 0 {
		end, count := 0, 0
		for end < len(s) && count < size {
			_, w := utf8.DecodeRuneInString(s[end:])
			end += w
			count++
		}
		out = append(out, s[:end])
		s = s[end:]
	}
	return out
}
