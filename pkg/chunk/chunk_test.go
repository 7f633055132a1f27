package chunk

import (
	"strings"
	"testing"
)

func TestChunkTextRespectsChunkSize(t *testing.T) {
	text := strings.Repeat("word ", 500)
	chunks := ChunkText(text, Options{ChunkSize: 100, Overlap: 10})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if c.CharCount > 100 {
			t.Fatalf("chunk %d exceeds chunk size: %d chars", c.Index, c.CharCount)
		}
	}
}

func TestChunkTextPrefersParagraphBoundaries(t *testing.T) {
	text := "First paragraph here.\n\nSecond paragraph here.\n\nThird paragraph here."
	chunks := ChunkText(text, Options{ChunkSize: 40, Overlap: 0})
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	for _, c := range chunks {
		if strings.Contains(c.Text, "First") && strings.Contains(c.Text, "Second") {
			t.Fatal("expected paragraph separator to prevent merging distinct paragraphs this early")
		}
	}
}

func TestChunkTextOverlapCarriesTrailingCharacters(t *testing.T) {
	text := strings.Repeat("abcdefghij", 20) // 200 chars, no separators
	chunks := ChunkText(text, Options{ChunkSize: 50, Overlap: 10})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	prevTail := chunks[0].Text[len(chunks[0].Text)-10:]
	if !strings.HasPrefix(chunks[1].Text, prevTail) {
		t.Fatalf("expected chunk 1 to start with chunk 0's trailing overlap %q, got %q", prevTail, chunks[1].Text[:10])
	}
	for _, c := range chunks {
		if c.CharCount > 50 {
			t.Fatalf("chunk %d exceeds ChunkSize even with overlap prepended: %d chars", c.Index, c.CharCount)
		}
	}
}

func TestChunkTextFallsBackToFixedStride(t *testing.T) {
	text := strings.Repeat("x", 500) // no separators present at all
	chunks := ChunkText(text, Options{ChunkSize: 100, Overlap: 0, Separators: []string{"\n\n", "\n"}})
	if len(chunks) != 5 {
		t.Fatalf("expected 5 fixed-stride chunks, got %d", len(chunks))
	}
}

func TestChunkTextEmptyInput(t *testing.T) {
	if chunks := ChunkText("", Options{}); chunks != nil {
		t.Fatalf("expected nil for empty text, got %v", chunks)
	}
}

func TestChunkTextWordCount(t *testing.T) {
	chunks := ChunkText("one two three", Options{ChunkSize: 1000})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].WordCount != 3 {
		t.Fatalf("expected word count 3, got %d", chunks[0].WordCount)
	}
}

func TestChunkTextDefaultsApplyWhenUnset(t *testing.T) {
	text := strings.Repeat("hello world ", 200)
	chunks := ChunkText(text, Options{})
	if len(chunks) == 0 {
		t.Fatal("expected chunks using default size/overlap")
	}
	for _, c := range chunks {
		if c.CharCount > defaultChunkSize {
			t.Fatalf("chunk exceeds default chunk size: %d", c.CharCount)
		}
	}
}
