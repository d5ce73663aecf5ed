package chunker

import (
	"strings"
	"unicode"

	"askdocs/internal/models"
)

// Chunker splits extracted text into bounded, optionally overlapping chunks.
// Sizes are counted in runes.
type Chunker struct {
	maxSize   int
	overlap   int
	tolerance int
}

// New validates the sizes and returns a Chunker. A zero tolerance means the
// boundary search may look back up to half of maxSize.
func New(maxSize, overlap, tolerance int) (*Chunker, error) {
	if maxSize < 1 {
		return nil, models.Wrap(models.ErrConfiguration, nil, "chunk size must be at least 1, got %d", maxSize)
	}
	if overlap < 0 || overlap >= maxSize {
		return nil, models.Wrap(models.ErrConfiguration, nil, "chunk overlap must be in [0, %d), got %d", maxSize, overlap)
	}
	if tolerance < 0 || tolerance >= maxSize {
		return nil, models.Wrap(models.ErrConfiguration, nil, "boundary tolerance must be in [0, %d), got %d", maxSize, tolerance)
	}
	if tolerance == 0 {
		tolerance = maxSize / 2
	}
	return &Chunker{maxSize: maxSize, overlap: overlap, tolerance: tolerance}, nil
}

// Chunk splits text into chunks of at most maxSize runes, numbered from 0.
// Cuts prefer paragraph, then line, then sentence, then word boundaries.
// Consecutive chunks share exactly overlap runes.
func (c *Chunker) Chunk(sourceID, text string) []models.Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= c.maxSize {
		return []models.Chunk{{Text: text, SourceID: sourceID, SequenceIndex: 0}}
	}

	var chunks []models.Chunk
	start := 0
	for start < len(runes) {
		end := len(runes)
		if start+c.maxSize < len(runes) {
			end = c.cutPoint(runes, start)
		}

		// Unnormalized input can leave a window of only whitespace.
		if piece := string(runes[start:end]); strings.TrimSpace(piece) != "" {
			chunks = append(chunks, models.Chunk{
				Text:          piece,
				SourceID:      sourceID,
				SequenceIndex: len(chunks),
			})
		}
		if end == len(runes) {
			break
		}

		if c.overlap > 0 {
			start = end - c.overlap
			continue
		}
		start = end
		for start < len(runes) && unicode.IsSpace(runes[start]) {
			start++
		}
	}
	return chunks
}

// cutPoint returns the exclusive end of the chunk starting at start.
func (c *Chunker) cutPoint(runes []rune, start int) int {
	hi := start + c.maxSize
	lo := max(hi-c.tolerance, start+c.overlap+1)

	best, bestTier := -1, tierNone
	for end := hi; end >= lo; end-- {
		tier := boundaryTier(runes, end)
		if tier > bestTier {
			best, bestTier = end, tier
			if tier == tierParagraph {
				break
			}
		}
	}
	if best < 0 {
		return hi
	}
	return best
}

type tier int

const (
	tierNone tier = iota
	tierWord
	tierSentence
	tierLine
	tierParagraph
)

// boundaryTier classifies a cut before runes[end]. The chunk keeps any
// trailing punctuation and the following whitespace starts the next chunk.
func boundaryTier(runes []rune, end int) tier {
	if end <= 0 || end >= len(runes) {
		return tierNone
	}
	next, prev := runes[end], runes[end-1]
	switch {
	case next == '\n' && end+1 < len(runes) && runes[end+1] == '\n' && prev != '\n':
		return tierParagraph
	case next == '\n' && prev != '\n':
		return tierLine
	case unicode.IsSpace(next) && isSentenceEnd(prev):
		return tierSentence
	case isCJKSentenceEnd(prev):
		return tierSentence
	case unicode.IsSpace(next) && !unicode.IsSpace(prev):
		return tierWord
	}
	return tierNone
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?':
		return true
	}
	return isCJKSentenceEnd(r)
}

func isCJKSentenceEnd(r rune) bool {
	switch r {
	case '。', '！', '？':
		return true
	}
	return false
}
