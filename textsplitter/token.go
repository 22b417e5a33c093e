package textsplitter

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

// TokenSplitter windows over BPE tokens instead of characters, so chunk
// sizes track what the embedding model actually sees. Same sliding-window
// semantics as CharacterSplitter.
type TokenSplitter struct {
	ChunkSize    int
	ChunkOverlap int

	enc *tiktoken.Tiktoken
}

func NewTokenSplitter(chunkSize, overlap int) (*TokenSplitter, error) {
	enc, err := tiktoken.GetEncoding(defaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer failed, err: %w", err)
	}
	return &TokenSplitter{ChunkSize: chunkSize, ChunkOverlap: overlap, enc: enc}, nil
}

func (s *TokenSplitter) SplitText(text string) ([]string, error) {
	if s.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", s.ChunkSize)
	}
	if s.ChunkOverlap >= s.ChunkSize {
		return nil, fmt.Errorf("chunk overlap (%d) must be less than chunk size (%d)", s.ChunkOverlap, s.ChunkSize)
	}

	tokens := s.enc.Encode(text, nil, nil)
	if len(tokens) <= s.ChunkSize {
		return []string{text}, nil
	}

	stride := s.ChunkSize - s.ChunkOverlap
	chunks := make([]string, 0, len(tokens)/stride+1)
	for i := 0; i < len(tokens); i += stride {
		end := i + s.ChunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, s.enc.Decode(tokens[i:end]))
		if i+s.ChunkSize >= len(tokens) {
			break
		}
	}
	return chunks, nil
}
