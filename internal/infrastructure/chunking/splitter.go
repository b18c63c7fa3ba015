package chunking

import (
	"strings"
	"unicode/utf8"
)

// separators in preference order: paragraph, line, sentence, word.
var separators = []string{"\n\n", "\n", ". ", " "}

type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

// Split cuts text into windows of at most ChunkSize runes where consecutive
// windows share exactly Overlap runes. Window ends prefer a natural separator
// inside the window when one exists past the overlap region; otherwise the cut
// is a hard one at ChunkSize. Chunks are emitted verbatim, so stripping the
// first Overlap runes of every chunk after the first reconstructs the input.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.ChunkSize - s.Overlap
	out := make([]string, 0, len(runes)/step+1)

	start := 0
	for {
		end := start + s.ChunkSize
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			return out
		}
		end = s.cutPoint(runes, start, end)
		out = append(out, string(runes[start:end]))

		next := end - s.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
}

// cutPoint backs the window end up to the last occurrence of the best
// separator, as long as that keeps the cut past the overlap region so the
// next window still advances.
func (s *Splitter) cutPoint(runes []rune, start, end int) int {
	window := string(runes[start:end])
	minCut := start + s.Overlap + 1

	for _, sep := range separators {
		idx := strings.LastIndex(window, sep)
		if idx < 0 {
			continue
		}
		cut := start + utf8.RuneCountInString(window[:idx+len(sep)])
		if cut >= minCut {
			return cut
		}
	}
	return end
}
