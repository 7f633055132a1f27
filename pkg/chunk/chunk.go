// Package chunk splits long text into overlapping windows sized for
// embedding, preferring natural breaks (paragraphs, then lines, then
// sentences, then words) before falling back to a fixed stride.
package chunk

import "strings"

// Chunk is one slice of a larger text.
type Chunk struct {
	Text      string
	Index     int
	CharStart int
	CharEnd   int
	CharCount int
	WordCount int
}

// Options configures ChunkText.
type Options struct {
	ChunkSize  int      // max characters per chunk
	Overlap    int       // characters of trailing overlap carried into the next chunk
	Separators []string // tried in order; default below when nil
}

// DefaultSeparators is tried paragraph-first, then line, then sentence, then
// word boundary.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " "}

const (
	defaultChunkSize = 1000
	defaultOverlap   = 100
)

// ChunkText splits text into chunks no longer than opts.ChunkSize,
// consecutive chunks overlapping by the last opts.Overlap characters of the
// previous chunk.
func ChunkText(text string, opts Options) []Chunk {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.ChunkSize {
		opts.Overlap = defaultOverlap
	}
	if opts.Separators == nil {
		opts.Separators = DefaultSeparators
	}

	if text == "" {
		return nil
	}

	contentLimit := opts.ChunkSize - opts.Overlap
	if contentLimit <= 0 {
		contentLimit = opts.ChunkSize
	}

	var pieces []string
	splitRecursive(text, opts.Separators, contentLimit, &pieces)

	merged := mergeWithOverlap(pieces, contentLimit, opts.Overlap)

	chunks := make([]Chunk, 0, len(merged))
	cursor := 0
	for i, piece := range merged {
		start := strings.Index(text[cursor:], piece)
		if start == -1 {
			// overlap text may not literally re-occur past cursor; search
			// from the start of the document instead.
			start = strings.Index(text, piece)
			if start == -1 {
				start = cursor
			}
		} else {
			start += cursor
		}
		end := start + len(piece)

		chunks = append(chunks, Chunk{
			Text:      piece,
			Index:     i,
			CharStart: start,
			CharEnd:   end,
			CharCount: len(piece),
			WordCount: len(strings.Fields(piece)),
		})
		cursor = end - opts.Overlap
		if cursor < 0 {
			cursor = 0
		}
	}
	return chunks
}

// splitRecursive breaks text on the first separator that yields pieces all
// within limit, recursing into any oversize piece with the remaining
// separators. When separators are exhausted, an oversize piece is sliced at
// fixed stride.
func splitRecursive(text string, separators []string, limit int, out *[]string) {
	if len(text) <= limit {
		if text != "" {
			*out = append(*out, text)
		}
		return
	}
	if len(separators) == 0 {
		sliceFixedStride(text, limit, out)
		return
	}

	sep, rest := separators[0], separators[1:]
	parts := strings.Split(text, sep)
	if len(parts) == 1 {
		splitRecursive(text, rest, limit, out)
		return
	}

	for i, part := range parts {
		piece := part
		if i < len(parts)-1 {
			piece += sep
		}
		if piece == "" {
			continue
		}
		if len(piece) <= limit {
			*out = append(*out, piece)
		} else {
			splitRecursive(piece, rest, limit, out)
		}
	}
}

func sliceFixedStride(text string, limit int, out *[]string) {
	stride := limit
	for start := 0; start < len(text); start += stride {
		end := start + limit
		if end > len(text) {
			end = len(text)
		}
		*out = append(*out, text[start:end])
		if end == len(text) {
			break
		}
	}
}

// mergeWithOverlap packs consecutive pieces up to contentLimit new
// characters per chunk, prepending up to overlap trailing characters of the
// previous chunk onto each chunk after the first. Total chunk length never
// exceeds contentLimit+overlap, the caller's ChunkSize.
func mergeWithOverlap(pieces []string, contentLimit, overlap int) []string {
	if len(pieces) == 0 {
		return nil
	}

	var chunks []string
	var current strings.Builder // the chunk being built: tail + new content
	var content strings.Builder // tracks only the new-content length for budgeting

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, current.String())
		current.Reset()
		content.Reset()
	}

	for _, p := range pieces {
		if content.Len() > 0 && content.Len()+len(p) > contentLimit {
			flush()
		}
		if current.Len() == 0 && overlap > 0 && len(chunks) > 0 {
			tail := chunks[len(chunks)-1]
			if len(tail) > overlap {
				tail = tail[len(tail)-overlap:]
			}
			current.WriteString(tail)
		}
		current.WriteString(p)
		content.WriteString(p)
	}
	flush()

	return chunks
}
