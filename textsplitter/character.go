package textsplitter

import "fmt"

// CharacterSplitter slides a fixed-width window over the text, stepping by
// ChunkSize-ChunkOverlap characters. Boundaries fall on raw character
// offsets; callers must not assume chunks align with words or sentences.
type CharacterSplitter struct {
	ChunkSize    int
	ChunkOverlap int
}

func (s *CharacterSplitter) SplitText(text string) ([]string, error) {
	if s.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", s.ChunkSize)
	}
	if s.ChunkOverlap >= s.ChunkSize {
		// A non-positive stride would loop forever.
		return nil, fmt.Errorf("chunk overlap (%d) must be less than chunk size (%d)", s.ChunkOverlap, s.ChunkSize)
	}

	if len(text) <= s.ChunkSize {
		return []string{text}, nil
	}

	stride := s.ChunkSize - s.ChunkOverlap
	chunks := make([]string, 0, len(text)/stride+1)
	for i := 0; i < len(text); i += stride {
		end := i + s.ChunkSize
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[i:end])
		// The window that reaches the end of the text is the last one;
		// nothing past it would add new content.
		if i+s.ChunkSize >= len(text) {
			break
		}
	}
	return chunks, nil
}
