package ingestion

import "strings"

// Page is one page of extracted document text.
type Page struct {
	Number int
	Text   string
}

// Chunk is one indexable piece of a document.
type Chunk struct {
	Content string
	Page    int
	Index   int
}

// ChunkPages splits page text into overlapping chunks of at most size
// characters, cutting at the last space past the midpoint so words stay
// intact when the text allows it. Page numbers ride along as metadata
// and Index is the chunk's ordinal within the document.
func ChunkPages(pages []Page, size, overlap int) []Chunk {
	chunks := []Chunk{}
	for _, page := range pages {
		text := []rune(page.Text)
		for start := 0; start < len(text); {
			end := start + size
			var piece []rune
			if end < len(text) {
				piece = text[start:end]
				if cut := lastSpace(piece); cut > size/2 {
					piece = piece[:cut]
					end = start + cut
				}
			} else {
				piece = text[start:]
			}

			if content := strings.TrimSpace(string(piece)); content != "" {
				chunks = append(chunks, Chunk{
					Content: content,
					Page:    page.Number,
					Index:   len(chunks),
				})
			}

			next := end - overlap
			if next <= start {
				// The window must advance even when overlap reaches past
				// the cut point.
				next = end
			}
			start = next
		}
	}
	return chunks
}

func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == ' ' {
			return i
		}
	}
	return -1
}
