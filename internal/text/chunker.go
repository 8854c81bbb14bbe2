package text

import (
	"strings"
	"unicode/utf8"
)

// Chunker splits plain text into spans bounded by MaxChars, preferring
// paragraph boundaries, then lines, then words. Overlap carries the tail of
// each chunk into the next so sentences cut at a boundary stay retrievable.
type Chunker struct {
	MaxChars int
	Overlap  int
}

func NewChunker(maxChars, overlap int) *Chunker {
	if maxChars <= 0 {
		maxChars = 2000
	}
	if overlap < 0 || overlap >= maxChars {
		overlap = 0
	}
	return &Chunker{MaxChars: maxChars, Overlap: overlap}
}

func (c *Chunker) Chunk(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= c.MaxChars {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	var carried string

	flush := func() {
		if current.Len() == 0 || current.String() == carried {
			return
		}
		chunk := current.String()
		chunks = append(chunks, chunk)
		current.Reset()
		carried = ""
		if c.Overlap > 0 && len(chunk) > c.Overlap {
			carried = overlapTail(chunk, c.Overlap)
			current.WriteString(carried)
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if current.Len()+len(para)+2 <= c.MaxChars {
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(para)
			continue
		}
		flush()

		if len(para) <= c.MaxChars {
			if current.Len()+len(para)+2 > c.MaxChars {
				current.Reset()
			}
			current.WriteString(para)
			continue
		}

		// Paragraph too large: fall back to lines, then words.
		for _, line := range strings.Split(para, "\n") {
			if current.Len()+len(line)+1 <= c.MaxChars {
				if current.Len() > 0 {
					current.WriteString("\n")
				}
				current.WriteString(line)
				continue
			}
			flush()

			if len(line) <= c.MaxChars {
				if current.Len()+len(line)+1 > c.MaxChars {
					current.Reset()
				}
				current.WriteString(line)
				continue
			}

			for _, word := range strings.Fields(line) {
				if current.Len()+len(word)+1 > c.MaxChars {
					flush()
					if current.Len()+len(word)+1 > c.MaxChars {
						current.Reset()
					}
				}
				if current.Len() > 0 {
					current.WriteString(" ")
				}
				current.WriteString(word)
			}
		}
	}

	if current.Len() > 0 && current.String() != carried {
		chunks = append(chunks, current.String())
	}

	return chunks
}

// overlapTail returns roughly the last n bytes of s, extended left to the
// nearest word boundary so the overlap never starts mid-word. The cut is
// walked back to a rune boundary first so multi-byte text never yields a
// tail that starts inside a rune.
func overlapTail(s string, n int) string {
	i := len(s) - n
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	tail := s[i:]
	if idx := strings.IndexAny(tail, " \n"); idx >= 0 {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}
